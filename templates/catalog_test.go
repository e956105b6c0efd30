package templates

import (
	"math"
	"testing"
	"testing/fstest"

	"github.com/Scriptzstarling/meme-Forge/assets"
)

func TestLoad_Manifest(t *testing.T) {
	fsys := fstest.MapFS{
		ManifestFile: {Data: []byte(`[
			"drake_hotline-bling.JPG",
			"/custom/success-kid.png",
			{"url": "two-buttons.png", "name": "Two Buttons"},
			{"name": "no url"},
			"https://example.com/remote.webp"
		]`)},
	}
	got := Load(fsys).All()
	want := []Template{
		{ID: 1, Name: "drake hotline bling", URL: "/images/drake_hotline-bling.JPG"},
		{ID: 2, Name: "success kid", URL: "/custom/success-kid.png"},
		{ID: 3, Name: "Two Buttons", URL: "/images/two-buttons.png"},
		{ID: 4, Name: "remote", URL: "https://example.com/remote.webp"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d templates, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("template %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestLoad_Fallback(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
	}{
		{"missing manifest", fstest.MapFS{}},
		{"invalid manifest", fstest.MapFS{ManifestFile: {Data: []byte(`{"not": "a list"}`)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Load(tt.fsys).All()
			if len(got) != len(Fallback) || got[0].Name != "Drake Pointing" {
				t.Errorf("expected fallback templates, got %+v", got)
			}
		})
	}
}

func TestSearch(t *testing.T) {
	c := &Catalog{}
	for i, name := range []string{"Drake", "Success Kid", "Distracted Boyfriend", "Drake Again"} {
		c.templates = append(c.templates, Template{ID: i + 1, Name: name, URL: "/images/x.png"})
	}

	items, total := c.Search("drake", 0, 0)
	if total != 2 || len(items) != 2 {
		t.Fatalf("expected 2 drake matches, got %d/%d", len(items), total)
	}

	items, total = c.Search("", 1, 2)
	if total != 4 || len(items) != 2 || items[0].Name != "Success Kid" {
		t.Errorf("unexpected page: %+v (total %d)", items, total)
	}

	items, total = c.Search("", 1, math.MaxInt)
	if total != 4 || len(items) != 3 {
		t.Errorf("expected the rest of the list for a huge limit, got %+v", items)
	}

	items, total = c.Search("", 10, 5)
	if total != 4 || len(items) != 0 {
		t.Errorf("expected empty page past the end, got %+v", items)
	}
}

func TestEmbeddedAssets(t *testing.T) {
	c := Load(assets.FS)
	all := c.All()
	if len(all) == 0 || all[0].URL == Fallback[0].URL {
		t.Fatalf("expected the embedded manifest, got %+v", all)
	}
	for _, tpl := range all {
		if _, err := assets.FS.Open(tpl.URL[1:]); err != nil {
			t.Errorf("template %q points at a missing asset: %v", tpl.Name, err)
		}
	}
}
