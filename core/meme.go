package core

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrMemeNotFound is returned by stores when the user owns no meme with the
// requested id.
var ErrMemeNotFound = errors.New("meme not found")

type (
	// Meme is an exported meme kept for the signed-in user who rendered it.
	Meme struct {
		ID         string          `json:"id"`
		UserID     string          `json:"-"` // Not exposed in JSON responses, used internally.
		Name       string          `json:"name"`
		Width      int             `json:"width"`
		Height     int             `json:"height"`
		Background string          `json:"background,omitempty"`
		Layers     json.RawMessage `json:"layers,omitempty"`
		Image      []byte          `json:"image,omitempty"` // PNG bytes, not included in list views.
		CreatedAt  time.Time       `json:"createdAt"`
	}

	// MemeStore defines the persistence layer for exported memes.
	// All operations are scoped to a specific user.
	MemeStore interface {
		// List returns metadata for all memes owned by a user, newest first.
		// The returned Meme objects do not carry the `Image` field.
		List(ctx context.Context, userID string) ([]*Meme, error)

		// Get returns a single meme by its ID, ensuring it belongs to the user.
		Get(ctx context.Context, userID, id string) (*Meme, error)

		// Save stores a meme. An empty ID is assigned a new ULID.
		Save(ctx context.Context, meme *Meme) error

		// Delete removes a meme, ensuring it belongs to the user.
		Delete(ctx context.Context, userID, id string) error
	}
)
