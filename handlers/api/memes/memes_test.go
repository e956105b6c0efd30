package memes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/Scriptzstarling/meme-Forge/core"
	"github.com/Scriptzstarling/meme-Forge/handlers/auth"
	"github.com/Scriptzstarling/meme-Forge/media"
	"github.com/Scriptzstarling/meme-Forge/middleware"
	"github.com/Scriptzstarling/meme-Forge/render"
	"github.com/Scriptzstarling/meme-Forge/stores/memory"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

// mockStore lets tests inject store failures.
type mockStore struct {
	core.MemeStore
	err error
}

func (m *mockStore) List(ctx context.Context, userID string) ([]*core.Meme, error) {
	return nil, m.err
}

func (m *mockStore) Get(ctx context.Context, userID, id string) (*core.Meme, error) {
	return nil, m.err
}

func (m *mockStore) Save(ctx context.Context, meme *core.Meme) error {
	return m.err
}

func (m *mockStore) Delete(ctx context.Context, userID, id string) error {
	return m.err
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 90, G: 90, B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newRenderer(t *testing.T, store core.MemeStore) *Renderer {
	t.Helper()
	fonts, err := render.NewFontSet("")
	if err != nil {
		t.Fatalf("failed to load fonts: %v", err)
	}
	assets := fstest.MapFS{"images/gray.png": {Data: pngBytes(t, 200, 100)}}
	h := NewRenderer(media.NewResolver(media.NewHTTPFetcher(assets, time.Second), nil), render.New(fonts), store)
	h.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return h
}

func withUser(r *http.Request, userID string) *http.Request {
	claims := &auth.AppClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: userID}}
	return r.WithContext(middleware.WithClaims(r.Context(), claims))
}

func withID(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestHandleRender(t *testing.T) {
	store := memory.NewStore()
	h := newRenderer(t, store)

	body := `{"background": "/images/gray.png", "save": true}`
	req := withUser(httptest.NewRequest("POST", "/api/memes/render", strings.NewReader(body)), "user1")
	rr := httptest.NewRecorder()
	h.HandleRender().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %s", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); cd != `attachment; filename="meme-1700000000000.png"` {
		t.Errorf("unexpected content disposition %q", cd)
	}
	img, err := png.Decode(rr.Body)
	if err != nil {
		t.Fatalf("response is not a png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 100 {
		t.Errorf("expected 200x100 export, got %v", b)
	}

	id := rr.Header().Get("X-Meme-Id")
	if id == "" {
		t.Fatal("expected X-Meme-Id for a saved meme")
	}
	saved, err := store.Get(context.Background(), "user1", id)
	if err != nil {
		t.Fatalf("saved meme not found: %v", err)
	}
	if saved.Background != "/images/gray.png" || saved.Width != 200 {
		t.Errorf("unexpected saved meme: %+v", saved)
	}
	var ls []core.TextLayer
	if err := json.Unmarshal(saved.Layers, &ls); err != nil || len(ls) != 2 {
		t.Errorf("expected the two default layers to be saved, got %s", saved.Layers)
	}
}

func TestHandleRender_DataURL(t *testing.T) {
	store := memory.NewStore()
	h := newRenderer(t, store)

	bg := media.EncodeDataURL("image/png", pngBytes(t, 50, 50))
	body, _ := json.Marshal(map[string]any{
		"background": bg,
		"layers":     []map[string]any{{"id": "top", "content": "HI", "x": 50, "y": 10, "fontSize": 20, "color": "#ffffff"}},
		"save":       true,
	})
	req := withUser(httptest.NewRequest("POST", "/api/memes/render", bytes.NewReader(body)), "user1")
	rr := httptest.NewRecorder()
	h.HandleRender().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	saved, err := store.Get(context.Background(), "user1", rr.Header().Get("X-Meme-Id"))
	if err != nil {
		t.Fatalf("saved meme not found: %v", err)
	}
	if saved.Background != "data:image/png;base64,..." {
		t.Errorf("expected data url to be shortened, got %q", saved.Background)
	}
}

func TestHandleRender_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		store      core.MemeStore
		wantStatus int
	}{
		{"invalid json", `{`, nil, http.StatusBadRequest},
		{"missing background", `{"layers": []}`, nil, http.StatusBadRequest},
		{"invalid layer", `{"background": "/images/gray.png", "layers": [{"id": "", "fontSize": 10}]}`, nil, http.StatusBadRequest},
		{"duplicate layer", `{"background": "/images/gray.png", "layers": [{"id": "a", "fontSize": 10}, {"id": "a", "fontSize": 10}]}`, nil, http.StatusBadRequest},
		{"video background", `{"background": "/images/clip.mp4"}`, nil, http.StatusUnprocessableEntity},
		{"missing asset", `{"background": "/images/absent.png"}`, nil, http.StatusUnprocessableEntity},
		{"undecodable data", `{"background": "data:image/png;base64,bm90IGFuIGltYWdl"}`, nil, http.StatusUnprocessableEntity},
		{"save failure", `{"background": "/images/gray.png", "save": true}`, &mockStore{err: errors.New("disk full")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := tt.store
			if store == nil {
				store = memory.NewStore()
			}
			h := newRenderer(t, store)
			req := withUser(httptest.NewRequest("POST", "/api/memes/render", strings.NewReader(tt.body)), "user1")
			rr := httptest.NewRecorder()
			h.HandleRender().ServeHTTP(rr, req)
			if rr.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestHandleRender_RefusesInternalURL(t *testing.T) {
	img := pngBytes(t, 10, 10)
	var hit atomic.Bool
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit.Store(true)
		w.Write(img)
	}))
	defer internal.Close()

	h := newRenderer(t, memory.NewStore())
	body := `{"background": "` + internal.URL + `/latest/meta-data/x.png"}`
	req := withUser(httptest.NewRequest("POST", "/api/memes/render", strings.NewReader(body)), "user1")
	rr := httptest.NewRecorder()
	h.HandleRender().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected status %d, got %d: %s", http.StatusUnprocessableEntity, rr.Code, rr.Body.String())
	}
	if hit.Load() {
		t.Error("loopback background was fetched")
	}
}

func TestHandleRender_RejectsHugeImage(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, media.MaxImageSide+1, 2))); err != nil {
		t.Fatal(err)
	}
	h := newRenderer(t, memory.NewStore())
	body, _ := json.Marshal(map[string]string{"background": media.EncodeDataURL("image/png", buf.Bytes())})
	req := withUser(httptest.NewRequest("POST", "/api/memes/render", bytes.NewReader(body)), "user1")
	rr := httptest.NewRecorder()
	h.HandleRender().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected status %d, got %d", http.StatusUnprocessableEntity, rr.Code)
	}
}

func TestHandlers_RequireClaims(t *testing.T) {
	store := memory.NewStore()
	handlers := map[string]http.HandlerFunc{
		"render": newRenderer(t, store).HandleRender(),
		"list":   HandleListMemes(store),
		"get":    HandleGetMeme(store),
		"delete": HandleDeleteMeme(store),
	}
	for name, handler := range handlers {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, withID(httptest.NewRequest("GET", "/api/memes", nil), "x"))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected status %d, got %d", name, http.StatusUnauthorized, rr.Code)
		}
	}
}

func TestListGetDelete(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	data := pngBytes(t, 4, 4)
	meme := &core.Meme{UserID: "user1", Name: "meme-1.png", Width: 4, Height: 4, Image: data}
	if err := store.Save(ctx, meme); err != nil {
		t.Fatal(err)
	}

	// empty list for another user is [] not null
	rr := httptest.NewRecorder()
	HandleListMemes(store).ServeHTTP(rr, withUser(httptest.NewRequest("GET", "/api/memes", nil), "user2"))
	if got := strings.TrimSpace(rr.Body.String()); got != "[]" {
		t.Errorf("expected empty list, got %s", got)
	}

	rr = httptest.NewRecorder()
	HandleListMemes(store).ServeHTTP(rr, withUser(httptest.NewRequest("GET", "/api/memes", nil), "user1"))
	var listed []core.Meme
	if err := json.Unmarshal(rr.Body.Bytes(), &listed); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != meme.ID || listed[0].Image != nil {
		t.Errorf("unexpected list: %+v", listed)
	}

	rr = httptest.NewRecorder()
	HandleGetMeme(store).ServeHTTP(rr, withID(withUser(httptest.NewRequest("GET", "/api/memes/"+meme.ID, nil), "user1"), meme.ID))
	if rr.Code != http.StatusOK || !bytes.Equal(rr.Body.Bytes(), data) {
		t.Errorf("expected the stored png, got status %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	HandleGetMeme(store).ServeHTTP(rr, withID(withUser(httptest.NewRequest("GET", "/api/memes/"+meme.ID, nil), "user2"), meme.ID))
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected other users to get 404, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	HandleDeleteMeme(store).ServeHTTP(rr, withID(withUser(httptest.NewRequest("DELETE", "/api/memes/"+meme.ID, nil), "user1"), meme.ID))
	if rr.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, rr.Code)
	}

	rr = httptest.NewRecorder()
	HandleDeleteMeme(store).ServeHTTP(rr, withID(withUser(httptest.NewRequest("DELETE", "/api/memes/"+meme.ID, nil), "user1"), meme.ID))
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected second delete to 404, got %d", rr.Code)
	}
}

func TestStoreFailures(t *testing.T) {
	store := &mockStore{err: errors.New("connection reset")}
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"list", HandleListMemes(store)},
		{"get", HandleGetMeme(store)},
		{"delete", HandleDeleteMeme(store)},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		tt.handler.ServeHTTP(rr, withID(withUser(httptest.NewRequest("GET", "/api/memes/x", nil), "user1"), "x"))
		if rr.Code != http.StatusInternalServerError {
			t.Errorf("%s: expected status %d, got %d", tt.name, http.StatusInternalServerError, rr.Code)
		}
	}
}
