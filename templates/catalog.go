// Package templates lists the meme templates users can start from.
package templates

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

// ManifestFile is read from the root of the asset filesystem.
const ManifestFile = "images.json"

// DefaultPageSize is the page size used when no limit is given.
const DefaultPageSize = 12

type Template struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Fallback is served when the manifest is missing or invalid.
var Fallback = []Template{
	{ID: 1, Name: "Drake Pointing", URL: "https://images.pexels.com/photos/220453/pexels-photo-220453.jpeg?auto=compress&cs=tinysrgb&w=400"},
	{ID: 2, Name: "Success Kid", URL: "https://images.pexels.com/photos/1545743/pexels-photo-1545743.jpeg?auto=compress&cs=tinysrgb&w=400"},
}

var imageExt = regexp.MustCompile(`(?i)\.(png|jpe?g|gif|webp)$`)

// manifestEntry is either a bare filename or a {url, name} record.
type manifestEntry struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

func (e *manifestEntry) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.URL = s
		return nil
	}
	type record manifestEntry
	return json.Unmarshal(data, (*record)(e))
}

// Catalog is an immutable, searchable template list.
type Catalog struct {
	templates []Template
}

// Load reads the manifest from fsys, falling back to Fallback when it is
// missing or cannot be parsed.
func Load(fsys fs.FS) *Catalog {
	templates, err := parseManifest(fsys)
	if err != nil {
		logrus.WithField("error", err).Info("images.json not usable, using fallback templates")
		return &Catalog{templates: Fallback}
	}
	return &Catalog{templates: templates}
}

func parseManifest(fsys fs.FS) ([]Template, error) {
	if fsys == nil {
		return nil, fmt.Errorf("no asset filesystem")
	}
	data, err := fs.ReadFile(fsys, ManifestFile)
	if err != nil {
		return nil, err
	}
	var entries []manifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", ManifestFile, err)
	}

	templates := make([]Template, 0, len(entries))
	for _, e := range entries {
		if e.URL == "" {
			continue
		}
		name := e.Name
		if name == "" {
			name = NameFromFile(e.URL)
		}
		templates = append(templates, Template{
			ID:   len(templates) + 1,
			Name: name,
			URL:  fixPath(e.URL),
		})
	}
	return templates, nil
}

// NameFromFile turns "this_is-fine.png" into "this is fine".
func NameFromFile(p string) string {
	base := path.Base(p)
	base = imageExt.ReplaceAllString(base, "")
	return strings.NewReplacer("-", " ", "_", " ").Replace(base)
}

func fixPath(p string) string {
	if strings.HasPrefix(p, "/") || strings.Contains(p, "://") {
		return p
	}
	return "/images/" + p
}

// All returns every template in manifest order.
func (c *Catalog) All() []Template {
	out := make([]Template, len(c.templates))
	copy(out, c.templates)
	return out
}

// Search filters by name (case-insensitive substring) and returns the page
// [offset, offset+limit) plus the number of matches. limit <= 0 means
// DefaultPageSize.
func (c *Catalog) Search(query string, offset, limit int) ([]Template, int) {
	query = strings.ToLower(strings.TrimSpace(query))
	matches := make([]Template, 0, len(c.templates))
	for _, t := range c.templates {
		if query == "" || strings.Contains(strings.ToLower(t.Name), query) {
			matches = append(matches, t)
		}
	}

	if limit <= 0 {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	if offset > len(matches) {
		offset = len(matches)
	}
	end := offset + min(limit, len(matches)-offset)
	return matches[offset:end], len(matches)
}
