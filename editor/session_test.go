package editor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Scriptzstarling/meme-Forge/layers"
	"github.com/Scriptzstarling/meme-Forge/media"
)

var (
	red  = color.RGBA{200, 0, 0, 255}
	blue = color.RGBA{0, 0, 200, 255}
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func pngOf(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fakeFetcher struct {
	data  map[string][]byte
	block map[string]chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if ch, ok := f.block[ref]; ok {
		<-ch
	}
	if d, ok := f.data[ref]; ok {
		return d, nil
	}
	return nil, errors.New("not found")
}

type fakeOpener struct{}

func (fakeOpener) Open(ctx context.Context, data []byte) (media.VideoStream, error) {
	return &fakeStream{frame: solid(300, 200, red)}, nil
}

type fakeStream struct {
	frame image.Image
}

func (s *fakeStream) Size() (int, int)        { return 300, 200 }
func (s *fakeStream) Duration() time.Duration { return 2 * time.Second }
func (s *fakeStream) FrameAt(ctx context.Context, t time.Duration) (image.Image, error) {
	return s.frame, nil
}
func (s *fakeStream) Close() error { return nil }

// idleScheduler never ticks, so playback only draws on demand.
type idleScheduler struct{}

func (idleScheduler) Start(ctx context.Context) <-chan time.Duration {
	return make(chan time.Duration)
}

type gate struct {
	signedIn bool
	prompts  int
}

func (g *gate) SignedIn() bool { return g.signedIn }
func (g *gate) PromptSignIn()  { g.prompts++ }

func newSession(t *testing.T, fetcher *fakeFetcher, g Gate) *Session {
	t.Helper()
	s, err := New(Options{
		Resolver:  media.NewResolver(fetcher, fakeOpener{}),
		Scheduler: idleScheduler{},
		Gate:      g,
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func onlyColor(img *image.RGBA, c color.RGBA) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.RGBAAt(x, y) != c {
				return false
			}
		}
	}
	return true
}

func TestSession_GatedActions(t *testing.T) {
	g := &gate{}
	s := newSession(t, &fakeFetcher{}, g)

	assert.ErrorIs(t, s.Select(context.Background(), "/a.png"), ErrSignInRequired)
	assert.ErrorIs(t, s.ApplyCaption("hello", layers.TopID), ErrSignInRequired)
	assert.ErrorIs(t, s.Reset(), ErrSignInRequired)
	_, err := s.TogglePlay()
	assert.ErrorIs(t, err, ErrSignInRequired)
	_, _, err = s.Export(time.Now())
	assert.ErrorIs(t, err, ErrSignInRequired)
	top := s.Layers()[0]
	top.Content = "changed"
	assert.ErrorIs(t, s.EditLayer(top), ErrSignInRequired)

	assert.Equal(t, 6, g.prompts)
	assert.Equal(t, "TOP TEXT", s.Layers()[0].Content)
	assert.Nil(t, s.Source())
}

func TestSession_SelectImageRendersPreview(t *testing.T) {
	fetcher := &fakeFetcher{data: map[string][]byte{"/a.png": pngOf(t, solid(300, 200, red))}}
	s := newSession(t, fetcher, nil)

	require.NoError(t, s.Select(context.Background(), "/a.png"))
	s.Wait()

	snap := s.Snapshot()
	assert.Equal(t, image.Rect(0, 0, 300, 200), snap.Bounds())
	assert.True(t, onlyColor(snap, red), "preview draws the background only")

	require.NoError(t, s.ApplyCaption("hello", layers.TopID))
	assert.Equal(t, "hello", s.Layers()[0].Content)
	assert.True(t, onlyColor(s.Snapshot(), red))
}

func TestSession_LatestSelectionWins(t *testing.T) {
	release := make(chan struct{})
	fetcher := &fakeFetcher{
		data: map[string][]byte{
			"/a.png": pngOf(t, solid(100, 100, red)),
			"/b.png": pngOf(t, solid(120, 80, blue)),
		},
		block: map[string]chan struct{}{"/a.png": release},
	}
	s := newSession(t, fetcher, nil)

	require.NoError(t, s.Select(context.Background(), "/a.png"))
	require.NoError(t, s.Select(context.Background(), "/b.png"))
	close(release)
	s.Wait()

	assert.Equal(t, "/b.png", s.Source().Reference)
	snap := s.Snapshot()
	assert.Equal(t, image.Rect(0, 0, 120, 80), snap.Bounds())
	assert.True(t, onlyColor(snap, blue))
}

func TestSession_ExportStillImage(t *testing.T) {
	fetcher := &fakeFetcher{data: map[string][]byte{"/a.png": pngOf(t, solid(400, 400, red))}}
	s := newSession(t, fetcher, nil)

	_, ok, err := s.Export(time.Now())
	require.NoError(t, err)
	assert.False(t, ok, "nothing to export before a background loads")

	require.NoError(t, s.Select(context.Background(), "/a.png"))
	s.Wait()

	file, ok, err := s.Export(time.UnixMilli(1000))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "meme-1000.png", file.Name)

	img, err := png.Decode(bytes.NewReader(file.Data))
	require.NoError(t, err)
	rgba := image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), img, image.Point{}, draw.Src)
	assert.Equal(t, image.Rect(0, 0, 400, 400), rgba.Bounds())
	assert.False(t, onlyColor(rgba, red), "export includes the text layers")

	assert.True(t, onlyColor(s.Snapshot(), red), "export leaves the preview alone")
}

func TestSession_DragCommitsOnRelease(t *testing.T) {
	s := newSession(t, &fakeFetcher{}, nil)

	require.True(t, s.PointerDown(1, layers.TopID, 60, 20))
	assert.False(t, s.PointerDown(2, layers.TopID, 60, 20), "layer is already captured")

	s.PointerMove(1, 160, 120)
	top, _ := s.store.Get(layers.TopID)
	assert.Equal(t, 50.0, top.X, "no store write mid-drag")
	assert.Equal(t, 10.0, top.Y)
	x, y, ok := s.DragPosition(layers.TopID)
	require.True(t, ok)
	assert.Equal(t, 150.0, x)
	assert.Equal(t, 110.0, y)

	s.PointerUp(1, 999, 999)
	top, _ = s.store.Get(layers.TopID)
	assert.Equal(t, 150.0, top.X)
	assert.Equal(t, 110.0, top.Y)

	require.NoError(t, s.Reset())
	x, y, _ = s.DragPosition(layers.TopID)
	assert.Equal(t, 50.0, x)
	assert.Equal(t, 10.0, y)
}

func TestSession_VideoBackground(t *testing.T) {
	fetcher := &fakeFetcher{data: map[string][]byte{"/clip.mp4": []byte("video")}}
	s := newSession(t, fetcher, nil)

	require.NoError(t, s.Select(context.Background(), "/clip.mp4"))
	s.Wait()

	snap := s.Snapshot()
	assert.Equal(t, image.Rect(0, 0, 300, 200), snap.Bounds())
	assert.False(t, onlyColor(snap, red), "paused video draws frame and overlay")

	require.NoError(t, s.ApplyCaption("", layers.TopID))
	require.NoError(t, s.ApplyCaption("", layers.BottomID))
	assert.True(t, onlyColor(s.Snapshot(), red), "layer change redraws the paused frame")

	playing, err := s.TogglePlay()
	require.NoError(t, err)
	assert.True(t, playing)
	assert.True(t, s.Playing())

	require.NoError(t, s.Reset())
	assert.False(t, s.Playing(), "reset pauses playback")

	_, ok, err := s.Export(time.Now())
	require.NoError(t, err)
	assert.False(t, ok, "video backgrounds are not exported")
}

func TestSession_ImageTogglePlayIsNoop(t *testing.T) {
	fetcher := &fakeFetcher{data: map[string][]byte{"/a.png": pngOf(t, solid(10, 10, red))}}
	s := newSession(t, fetcher, nil)
	require.NoError(t, s.Select(context.Background(), "/a.png"))
	s.Wait()

	playing, err := s.TogglePlay()
	require.NoError(t, err)
	assert.False(t, playing)
}

func TestSession_DecodeFailureDrawsNothing(t *testing.T) {
	fetcher := &fakeFetcher{data: map[string][]byte{"/bad.png": []byte("garbage")}}
	s := newSession(t, fetcher, nil)
	require.NoError(t, s.Select(context.Background(), "/bad.png"))
	s.Wait()

	assert.False(t, s.Source().Ready())
	assert.True(t, onlyColor(s.Snapshot(), color.RGBA{}))
	_, ok, err := s.Export(time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}
