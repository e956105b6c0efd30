package memes

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Scriptzstarling/meme-Forge/core"
	"github.com/Scriptzstarling/meme-Forge/export"
	"github.com/Scriptzstarling/meme-Forge/layers"
	"github.com/Scriptzstarling/meme-Forge/media"
	"github.com/Scriptzstarling/meme-Forge/middleware"
	"github.com/Scriptzstarling/meme-Forge/render"
	"github.com/go-chi/chi/v5"
	chirender "github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// RenderRequest is the body of POST /api/memes/render. Without a layers
// field the default top and bottom captions are used.
type RenderRequest struct {
	Background string          `json:"background"`
	Layers     json.RawMessage `json:"layers"`
	Save       bool            `json:"save"`
}

// Renderer composites memes server-side with the same compositor the editor
// uses.
type Renderer struct {
	resolver *media.Resolver
	comp     *render.Compositor
	store    core.MemeStore
	now      func() time.Time
}

func NewRenderer(resolver *media.Resolver, comp *render.Compositor, store core.MemeStore) *Renderer {
	return &Renderer{resolver: resolver, comp: comp, store: store, now: time.Now}
}

func claimsOrUnauthorized(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		chirender.Status(r, http.StatusUnauthorized)
		chirender.JSON(w, r, map[string]string{"error": "User claims not found"})
		return "", false
	}
	return claims.Subject, true
}

func parseLayers(raw json.RawMessage) ([]core.TextLayer, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return layers.Defaults(), nil
	}
	var ls []core.TextLayer
	if err := json.Unmarshal(raw, &ls); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(ls))
	for _, l := range ls {
		if err := l.Validate(); err != nil {
			return nil, err
		}
		if seen[l.ID] {
			return nil, fmt.Errorf("%w: %s", layers.ErrDuplicateLayer, l.ID)
		}
		seen[l.ID] = true
	}
	return ls, nil
}

// storedReference keeps data URLs out of the meme record.
func storedReference(ref string) string {
	if strings.HasPrefix(ref, "data:") {
		header, _, _ := strings.Cut(ref, ",")
		return header + ",..."
	}
	return ref
}

func (h *Renderer) HandleRender() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := claimsOrUnauthorized(w, r)
		if !ok {
			return
		}

		var req RenderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			chirender.Status(r, http.StatusBadRequest)
			chirender.JSON(w, r, map[string]string{"error": "Invalid JSON in request body"})
			return
		}
		if strings.TrimSpace(req.Background) == "" {
			chirender.Status(r, http.StatusBadRequest)
			chirender.JSON(w, r, map[string]string{"error": "Background is required"})
			return
		}
		textLayers, err := parseLayers(req.Layers)
		if err != nil {
			chirender.Status(r, http.StatusBadRequest)
			chirender.JSON(w, r, map[string]string{"error": "Invalid layers: " + err.Error()})
			return
		}

		log := logrus.WithFields(logrus.Fields{"userID": userID, "layers": len(textLayers)})
		if media.Classify(req.Background) == core.Video {
			chirender.Status(r, http.StatusUnprocessableEntity)
			chirender.JSON(w, r, map[string]string{"error": "Video backgrounds cannot be exported"})
			return
		}
		src, err := h.resolver.Load(r.Context(), req.Background)
		if err == nil && src.Frame == nil {
			src.Close()
			err = fmt.Errorf("%w: %s background", media.ErrUnsupported, src.Kind)
		}
		if err != nil {
			log.WithField("error", err).Warn("Failed to load background")
			chirender.Status(r, http.StatusUnprocessableEntity)
			chirender.JSON(w, r, map[string]string{"error": "Background could not be loaded"})
			return
		}

		canvas := render.NewCanvas(render.MaxDimension, render.MaxDimension)
		h.comp.RenderFinal(canvas, src.Frame, textLayers)
		file, err := export.Encode(canvas, h.now())
		if err != nil {
			log.WithField("error", err).Error("Failed to encode meme")
			chirender.Status(r, http.StatusInternalServerError)
			chirender.JSON(w, r, map[string]string{"error": "Failed to export meme"})
			return
		}

		if req.Save {
			layerJSON, err := json.Marshal(textLayers)
			if err != nil {
				log.WithField("error", err).Error("Failed to encode layers")
				chirender.Status(r, http.StatusInternalServerError)
				chirender.JSON(w, r, map[string]string{"error": "Failed to save meme"})
				return
			}
			meme := &core.Meme{
				UserID:     userID,
				Name:       file.Name,
				Width:      file.Width,
				Height:     file.Height,
				Background: storedReference(req.Background),
				Layers:     layerJSON,
				Image:      file.Data,
			}
			if err := h.store.Save(r.Context(), meme); err != nil {
				log.WithField("error", err).Error("Failed to save meme")
				chirender.Status(r, http.StatusInternalServerError)
				chirender.JSON(w, r, map[string]string{"error": "Failed to save meme"})
				return
			}
			w.Header().Set("X-Meme-Id", meme.ID)
			log.WithField("memeID", meme.ID).Info("Meme saved")
		}

		writePNG(w, file.Name, file.Data)
	}
}

func writePNG(w http.ResponseWriter, name string, data []byte) {
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func HandleListMemes(store core.MemeStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := claimsOrUnauthorized(w, r)
		if !ok {
			return
		}

		memes, err := store.List(r.Context(), userID)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"userID": userID,
			}).Error("Failed to list memes")
			chirender.Status(r, http.StatusInternalServerError)
			chirender.JSON(w, r, map[string]string{"error": "Failed to list memes"})
			return
		}

		// an empty list, not null, for users without memes
		if memes == nil {
			memes = []*core.Meme{}
		}
		chirender.JSON(w, r, memes)
	}
}

func HandleGetMeme(store core.MemeStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := claimsOrUnauthorized(w, r)
		if !ok {
			return
		}

		id := chi.URLParam(r, "id")
		if id == "" {
			chirender.Status(r, http.StatusBadRequest)
			chirender.JSON(w, r, map[string]string{"error": "Meme id is required"})
			return
		}

		meme, err := store.Get(r.Context(), userID, id)
		if err != nil {
			writeStoreError(w, r, err, userID, id, "Failed to get meme")
			return
		}
		writePNG(w, meme.Name, meme.Image)
	}
}

func HandleDeleteMeme(store core.MemeStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := claimsOrUnauthorized(w, r)
		if !ok {
			return
		}

		id := chi.URLParam(r, "id")
		if id == "" {
			chirender.Status(r, http.StatusBadRequest)
			chirender.JSON(w, r, map[string]string{"error": "Meme id is required"})
			return
		}

		if err := store.Delete(r.Context(), userID, id); err != nil {
			writeStoreError(w, r, err, userID, id, "Failed to delete meme")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeStoreError(w http.ResponseWriter, r *http.Request, err error, userID, id, msg string) {
	log := logrus.WithFields(logrus.Fields{
		"error":  err,
		"userID": userID,
		"memeID": id,
	})
	if errors.Is(err, core.ErrMemeNotFound) {
		log.Warn(msg)
		chirender.Status(r, http.StatusNotFound)
		chirender.JSON(w, r, map[string]string{"error": "Meme not found"})
		return
	}
	log.Error(msg)
	chirender.Status(r, http.StatusInternalServerError)
	chirender.JSON(w, r, map[string]string{"error": msg})
}
