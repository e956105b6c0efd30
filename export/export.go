// Package export serializes a composited canvas into a downloadable PNG.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"time"

	"github.com/Scriptzstarling/meme-Forge/render"
)

// ContentType of every exported file.
const ContentType = "image/png"

// ErrEmptyCanvas is returned when there is nothing to export.
var ErrEmptyCanvas = errors.New("canvas has no background")

// File is one exported meme.
type File struct {
	Name   string
	Data   []byte
	Width  int
	Height int
}

// Filename returns meme-<unix epoch milliseconds>.png.
func Filename(t time.Time) string {
	return fmt.Sprintf("meme-%d.png", t.UnixMilli())
}

// Encode snapshots the canvas as a PNG named after t.
func Encode(canvas *render.Canvas, t time.Time) (*File, error) {
	if canvas == nil || !canvas.HasBackground() {
		return nil, ErrEmptyCanvas
	}
	img := canvas.Image()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return &File{
		Name:   Filename(t),
		Data:   buf.Bytes(),
		Width:  canvas.Width(),
		Height: canvas.Height(),
	}, nil
}
