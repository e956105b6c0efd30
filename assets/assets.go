// Package assets embeds the meme template images and their manifest.
package assets

import "embed"

// FS holds images.json and images/*, laid out as they are served.
//
//go:embed images.json images
var FS embed.FS
