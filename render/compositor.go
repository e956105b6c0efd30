// Package render composites a background frame and text layers into a
// canvas, for both live preview and final export.
package render

import (
	"image"
	"image/draw"
	"math"

	"github.com/fogleman/gg"
	"github.com/sirupsen/logrus"
	xdraw "golang.org/x/image/draw"

	"github.com/Scriptzstarling/meme-Forge/core"
)

// Compositor holds no per-render state; the same value may serve many
// canvases concurrently as long as each canvas has a single writer.
type Compositor struct {
	fonts *FontSet
}

func New(fonts *FontSet) *Compositor {
	return &Compositor{fonts: fonts}
}

// RenderPreview clears dst, resizes it to the capped background size and
// draws only the background. A nil background is a no-op.
func (c *Compositor) RenderPreview(dst *Canvas, bg image.Image) {
	if dst == nil || bg == nil {
		return
	}
	drawBackground(dst, bg)
}

// RenderFinal draws the background like RenderPreview, then every layer in
// order. A nil background is a no-op.
func (c *Compositor) RenderFinal(dst *Canvas, bg image.Image, layers []core.TextLayer) {
	if dst == nil || bg == nil {
		return
	}
	drawBackground(dst, bg)
	c.drawLayers(dst, layers)
}

// RenderOverlay draws the layers over whatever background dst already holds,
// for video frames that are redrawn externally on every tick. It is a no-op
// on a canvas that never received a background.
func (c *Compositor) RenderOverlay(dst *Canvas, layers []core.TextLayer) {
	if dst == nil || !dst.HasBackground() {
		return
	}
	c.drawLayers(dst, layers)
}

func drawBackground(dst *Canvas, bg image.Image) {
	sb := bg.Bounds()
	w, h := CappedSize(sb.Dx(), sb.Dy())
	dst.resize(w, h)
	dst.painted = true

	if w == sb.Dx() && h == sb.Dy() {
		draw.Draw(dst.img, dst.img.Bounds(), bg, sb.Min, draw.Over)
		return
	}
	xdraw.BiLinear.Scale(dst.img, dst.img.Bounds(), bg, sb, xdraw.Over, nil)
}

func (c *Compositor) drawLayers(dst *Canvas, layers []core.TextLayer) {
	if len(layers) == 0 {
		return
	}
	dc := gg.NewContextForRGBA(dst.img)
	for _, l := range layers {
		c.drawLayer(dc, l)
	}
}

// drawLayer strokes then fills one label. The outline is built by stamping
// the glyphs at every offset inside a circle of half the stroke width.
func (c *Compositor) drawLayer(dc *gg.Context, l core.TextLayer) {
	if l.Content == "" || l.FontSize <= 0 {
		return
	}
	face, err := c.fonts.Face(l.FontWeight, l.FontSize)
	if err != nil {
		logrus.WithFields(logrus.Fields{"layer": l.ID, "error": err}).Warn("skipping layer")
		return
	}
	defer face.Close()
	dc.SetFontFace(face)

	// top baseline
	y := l.Y + float64(face.Metrics().Ascent.Ceil())

	if l.StrokeWidth > 0 {
		dc.SetColor(l.Stroke)
		r := int(math.Ceil(float64(l.StrokeWidth) / 2))
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				if dx*dx+dy*dy > r*r {
					continue
				}
				dc.DrawString(l.Content, l.X+float64(dx), y+float64(dy))
			}
		}
	}

	dc.SetColor(l.Color)
	dc.DrawString(l.Content, l.X, y)
}
