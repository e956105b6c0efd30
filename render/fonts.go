package render

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// FontSet maps a CSS-style font weight to a parsed font. The embedded Go
// family is the fallback when no custom font is configured or it fails to load.
type FontSet struct {
	regular *opentype.Font
	medium  *opentype.Font
	bold    *opentype.Font
}

// NewFontSet loads customPath for every weight when it is set and readable,
// otherwise the embedded Go regular/medium/bold faces.
func NewFontSet(customPath string) (*FontSet, error) {
	if customPath != "" {
		data, err := os.ReadFile(customPath)
		if err == nil {
			f, err := opentype.Parse(data)
			if err == nil {
				return &FontSet{regular: f, medium: f, bold: f}, nil
			}
			logrus.WithFields(logrus.Fields{"path": customPath, "error": err}).Warn("could not parse custom font, using default")
		} else {
			logrus.WithFields(logrus.Fields{"path": customPath, "error": err}).Warn("could not load custom font, using default")
		}
	}

	fs := &FontSet{}
	var err error
	if fs.regular, err = opentype.Parse(goregular.TTF); err != nil {
		return nil, fmt.Errorf("failed to parse regular font: %w", err)
	}
	if fs.medium, err = opentype.Parse(gomedium.TTF); err != nil {
		return nil, fmt.Errorf("failed to parse medium font: %w", err)
	}
	if fs.bold, err = opentype.Parse(gobold.TTF); err != nil {
		return nil, fmt.Errorf("failed to parse bold font: %w", err)
	}
	return fs, nil
}

func (fs *FontSet) forWeight(weight int) *opentype.Font {
	switch {
	case weight >= 700:
		return fs.bold
	case weight >= 500:
		return fs.medium
	default:
		return fs.regular
	}
}

// Face returns a new face for the weight at size pixels. Faces are not safe
// for concurrent use; callers close them when done.
func (fs *FontSet) Face(weight, size int) (font.Face, error) {
	face, err := opentype.NewFace(fs.forWeight(weight), &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	return face, nil
}
