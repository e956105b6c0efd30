package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Scriptzstarling/meme-Forge/core"
)

func newTestStore(t *testing.T) *sqliteStore {
	t.Helper()
	store, err := NewStore(":memory:")
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSqliteStore_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	meme := &core.Meme{
		UserID:     "github:1",
		Name:       "meme-1.png",
		Width:      400,
		Height:     300,
		Background: "/images/drake.jpg",
		Layers:     []byte(`[{"id":"top"}]`),
		Image:      []byte("png"),
	}
	if err := store.Save(ctx, meme); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if meme.ID == "" {
		t.Fatal("expected Save to assign an ID")
	}

	got, err := store.Get(ctx, "github:1", meme.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "meme-1.png" || got.Width != 400 || got.Height != 300 {
		t.Errorf("unexpected meme: %+v", got)
	}
	if string(got.Image) != "png" {
		t.Errorf("expected image bytes %q, got %q", "png", got.Image)
	}
	if string(got.Layers) != `[{"id":"top"}]` {
		t.Errorf("unexpected layers: %s", got.Layers)
	}
}

func TestSqliteStore_ListNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := &core.Meme{UserID: "u", Name: "first", Image: []byte("a"), CreatedAt: time.Unix(100, 0)}
	second := &core.Meme{UserID: "u", Name: "second", Image: []byte("b"), CreatedAt: time.Unix(200, 0)}
	for _, m := range []*core.Meme{first, second} {
		if err := store.Save(ctx, m); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}
	if err := store.Save(ctx, &core.Meme{UserID: "someone-else", Name: "other"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	memes, err := store.List(ctx, "u")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(memes) != 2 {
		t.Fatalf("expected 2 memes, got %d", len(memes))
	}
	if memes[0].Name != "second" || memes[1].Name != "first" {
		t.Errorf("expected newest first, got %s, %s", memes[0].Name, memes[1].Name)
	}
	if memes[0].Image != nil {
		t.Error("expected list view without image bytes")
	}
}

func TestSqliteStore_NotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Get(ctx, "u", "missing"); !errors.Is(err, core.ErrMemeNotFound) {
		t.Errorf("expected ErrMemeNotFound, got %v", err)
	}
	if err := store.Delete(ctx, "u", "missing"); !errors.Is(err, core.ErrMemeNotFound) {
		t.Errorf("expected ErrMemeNotFound, got %v", err)
	}

	meme := &core.Meme{UserID: "u", Name: "x"}
	if err := store.Save(ctx, meme); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := store.Get(ctx, "other", meme.ID); !errors.Is(err, core.ErrMemeNotFound) {
		t.Errorf("expected ErrMemeNotFound for another user, got %v", err)
	}
	if err := store.Delete(ctx, "u", meme.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "u", meme.ID); !errors.Is(err, core.ErrMemeNotFound) {
		t.Errorf("expected ErrMemeNotFound after delete, got %v", err)
	}
}
