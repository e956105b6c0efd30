// Package media resolves background references into decoded frames or
// video streams.
package media

import (
	"net/url"
	"path"
	"strings"

	"github.com/h2non/filetype"

	"github.com/Scriptzstarling/meme-Forge/core"
)

var videoExts = map[string]bool{
	".mp4":  true,
	".webm": true,
	".ogg":  true,
	".mov":  true,
}

// Classify derives the media kind from a reference: data URLs by their MIME
// type, everything else by the extension of the path (query and fragment
// ignored). Unknown extensions count as static images.
func Classify(ref string) core.MediaKind {
	if mime, ok := dataURLMIME(ref); ok {
		return kindForMIME(mime)
	}

	p := ref
	if u, err := url.Parse(ref); err == nil && u.Path != "" {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	switch {
	case videoExts[ext]:
		return core.Video
	case ext == ".gif":
		return core.AnimatedImage
	}
	return core.StaticImage
}

// Sniff classifies raw bytes by their magic numbers.
func Sniff(data []byte) (core.MediaKind, bool) {
	head := data
	if len(head) > 261 {
		head = head[:261]
	}
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return core.StaticImage, false
	}
	return kindForMIME(kind.MIME.Value), true
}

func kindForMIME(mime string) core.MediaKind {
	mime = strings.ToLower(mime)
	switch {
	case strings.HasPrefix(mime, "video/"):
		return core.Video
	case mime == "image/gif":
		return core.AnimatedImage
	}
	return core.StaticImage
}

// dataURLMIME returns the media type of a "data:" URL.
func dataURLMIME(ref string) (string, bool) {
	if !strings.HasPrefix(ref, "data:") {
		return "", false
	}
	header, _, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return "", false
	}
	mime, _, _ := strings.Cut(header, ";")
	return mime, true
}
