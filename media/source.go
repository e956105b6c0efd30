package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/url"
	"path"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/Scriptzstarling/meme-Forge/core"
)

type (
	// VideoStream yields frames of a video background.
	VideoStream interface {
		Size() (width, height int)
		Duration() time.Duration
		FrameAt(ctx context.Context, t time.Duration) (image.Image, error)
		Close() error
	}

	// VideoOpener turns fetched video bytes into a stream.
	VideoOpener interface {
		Open(ctx context.Context, data []byte) (VideoStream, error)
	}

	// Source is the active background. Frame is set for images once decoding
	// succeeded (the first frame for animated images); Video for videos.
	Source struct {
		Reference string
		Kind      core.MediaKind
		Frame     image.Image
		Video     VideoStream
	}
)

// Ready reports whether the source can be composited.
func (s *Source) Ready() bool {
	return s != nil && (s.Frame != nil || s.Video != nil)
}

func (s *Source) Close() error {
	if s == nil || s.Video == nil {
		return nil
	}
	return s.Video.Close()
}

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
}

// Resolver fetches and decodes references.
type Resolver struct {
	fetcher Fetcher
	videos  VideoOpener
}

// NewResolver returns a resolver; videos may be nil, in which case video
// references fail with ErrUnsupported.
func NewResolver(fetcher Fetcher, videos VideoOpener) *Resolver {
	return &Resolver{fetcher: fetcher, videos: videos}
}

// Load resolves ref synchronously.
func (r *Resolver) Load(ctx context.Context, ref string) (*Source, error) {
	kind, certain := classify(ref)

	data, err := r.fetcher.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !certain {
		if sniffed, ok := Sniff(data); ok {
			kind = sniffed
		}
	}

	src := &Source{Reference: ref, Kind: kind}
	if kind == core.Video {
		if r.videos == nil {
			return nil, fmt.Errorf("%w: video playback is not configured", ErrUnsupported)
		}
		if src.Video, err = r.videos.Open(ctx, data); err != nil {
			return nil, fmt.Errorf("failed to open video: %w", err)
		}
		return src, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if err := checkDimensions(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	src.Frame = img
	return src, nil
}

// Decoded images are limited in pixels, not only in bytes: a few kilobytes of
// compressed PNG can declare a frame of gigabytes.
const (
	MaxImageSide   = 8192
	MaxImagePixels = 40_000_000
)

func checkDimensions(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: empty image %dx%d", ErrUnsupported, width, height)
	}
	if width > MaxImageSide || height > MaxImageSide || int64(width)*int64(height) > MaxImagePixels {
		return fmt.Errorf("%w: image %dx%d is too large", ErrUnsupported, width, height)
	}
	return nil
}

// classify is Classify plus whether the reference alone was conclusive.
func classify(ref string) (core.MediaKind, bool) {
	if _, ok := dataURLMIME(ref); ok {
		return Classify(ref), true
	}
	p := ref
	if u, err := url.Parse(ref); err == nil && u.Path != "" {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	return Classify(ref), videoExts[ext] || imageExts[ext]
}
