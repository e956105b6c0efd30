package render

import (
	"image"
)

// MaxDimension caps each canvas axis independently.
const MaxDimension = 600

// Canvas is the pixel buffer the compositor draws into. Every resize clears
// it, the same as assigning a new width to an HTML canvas.
type Canvas struct {
	img     *image.RGBA
	painted bool
}

// NewCanvas returns an empty, transparent canvas of the given size.
func NewCanvas(width, height int) *Canvas {
	return &Canvas{img: image.NewRGBA(image.Rect(0, 0, width, height))}
}

// Image returns the backing buffer. It is replaced on every resize, so
// callers must not hold on to it across renders.
func (c *Canvas) Image() *image.RGBA {
	return c.img
}

func (c *Canvas) Width() int {
	return c.img.Bounds().Dx()
}

func (c *Canvas) Height() int {
	return c.img.Bounds().Dy()
}

// HasBackground reports whether a background has been drawn since the canvas
// was created.
func (c *Canvas) HasBackground() bool {
	return c.painted
}

// Snapshot copies the current pixels.
func (c *Canvas) Snapshot() *image.RGBA {
	out := image.NewRGBA(c.img.Rect)
	copy(out.Pix, c.img.Pix)
	return out
}

func (c *Canvas) resize(width, height int) {
	if c.img.Bounds().Dx() == width && c.img.Bounds().Dy() == height {
		clear(c.img.Pix)
		return
	}
	c.img = image.NewRGBA(image.Rect(0, 0, width, height))
}

// CappedSize returns the canvas size used for a background of the given
// size. The axes are capped independently, so the aspect ratio changes when
// only one axis (or both, unequally) exceeds MaxDimension.
func CappedSize(width, height int) (int, int) {
	return min(width, MaxDimension), min(height, MaxDimension)
}

// Distorted reports whether capping a background of the given size changes
// its aspect ratio.
func Distorted(width, height int) bool {
	w, h := CappedSize(width, height)
	return w*height != h*width
}
