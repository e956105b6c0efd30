package templates

import (
	"net/http"
	"strconv"

	"github.com/Scriptzstarling/meme-Forge/templates"
	"github.com/go-chi/render"
)

type ListResponse struct {
	Templates []templates.Template `json:"templates"`
	Total     int                  `json:"total"`
	Offset    int                  `json:"offset"`
	Limit     int                  `json:"limit"`
}

// HandleList serves GET /api/templates?q=&offset=&limit=.
func HandleList(catalog *templates.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		offset, err := intParam(q.Get("offset"), 0)
		if err != nil || offset < 0 {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "offset must be a non-negative integer"})
			return
		}
		limit, err := intParam(q.Get("limit"), templates.DefaultPageSize)
		if err != nil || limit <= 0 {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "limit must be a positive integer"})
			return
		}

		items, total := catalog.Search(q.Get("q"), offset, limit)
		render.JSON(w, r, ListResponse{
			Templates: items,
			Total:     total,
			Offset:    offset,
			Limit:     limit,
		})
	}
}

func intParam(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
