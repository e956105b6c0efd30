package core

import (
	"encoding/json"
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

type (
	// RGB is an opaque color. It serializes as "#RRGGBB".
	RGB struct {
		R, G, B uint8
	}

	// TextLayer is one positioned, styled overlay label. X and Y are the
	// top-left anchor in background pixels; text is drawn with a top baseline.
	TextLayer struct {
		ID          string  `json:"id"`
		Content     string  `json:"content"`
		FontSize    int     `json:"fontSize"`
		FontWeight  int     `json:"fontWeight"`
		Color       RGB     `json:"color"`
		Stroke      RGB     `json:"stroke"`
		StrokeWidth int     `json:"strokeWidth"`
		X           float64 `json:"x"`
		Y           float64 `json:"y"`
	}

	// MediaKind classifies a background reference.
	MediaKind int
)

const (
	StaticImage MediaKind = iota
	AnimatedImage
	Video
)

var (
	White = RGB{255, 255, 255}
	Black = RGB{0, 0, 0}
)

func (k MediaKind) String() string {
	switch k {
	case StaticImage:
		return "image"
	case AnimatedImage:
		return "gif"
	case Video:
		return "video"
	}
	return fmt.Sprintf("MediaKind(%d)", int(k))
}

func (k MediaKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// RGBA implements color.Color.
func (c RGB) RGBA() (r, g, b, a uint32) {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}.RGBA()
}

func (c RGB) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

func (c RGB) String() string {
	return c.Hex()
}

// ParseRGB accepts "#RRGGBB" and "#RGB", with or without the leading hash.
func ParseRGB(s string) (RGB, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return RGB{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

func (c RGB) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Hex())
}

func (c *RGB) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRGB(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Validate reports field values no layer may carry. Size and weight outside
// the editing controls' ranges are allowed.
func (l TextLayer) Validate() error {
	if l.ID == "" {
		return fmt.Errorf("layer id is required")
	}
	if l.FontSize <= 0 {
		return fmt.Errorf("layer %s: font size must be positive, got %d", l.ID, l.FontSize)
	}
	if l.StrokeWidth < 0 {
		return fmt.Errorf("layer %s: stroke width must not be negative, got %d", l.ID, l.StrokeWidth)
	}
	return nil
}
