// Package editor wires the loader, layer store, drag controllers, render loop
// and compositor into one editing session.
package editor

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Scriptzstarling/meme-Forge/core"
	"github.com/Scriptzstarling/meme-Forge/drag"
	"github.com/Scriptzstarling/meme-Forge/export"
	"github.com/Scriptzstarling/meme-Forge/layers"
	"github.com/Scriptzstarling/meme-Forge/media"
	"github.com/Scriptzstarling/meme-Forge/playback"
	"github.com/Scriptzstarling/meme-Forge/render"
)

// ErrSignInRequired is returned by gated actions for anonymous users.
var ErrSignInRequired = errors.New("sign in required")

// Gate decides whether the user may act. PromptSignIn is invoked whenever a
// gated action is refused.
type Gate interface {
	SignedIn() bool
	PromptSignIn()
}

type openGate struct{}

func (openGate) SignedIn() bool { return true }
func (openGate) PromptSignIn()  {}

// Options configure a Session. Zero values get working defaults except
// Resolver, which is required.
type Options struct {
	Resolver  *media.Resolver
	Fonts     *render.FontSet
	Scheduler playback.Scheduler
	Gate      Gate
	Layers    []core.TextLayer
}

// Session is one user's editor. The canvas is guarded by its own mutex so
// the render loop can draw while the session lock is held.
type Session struct {
	comp   *render.Compositor
	store  *layers.Store
	loader *media.Loader
	router *drag.Router
	gate   Gate
	sched  playback.Scheduler

	mu     sync.Mutex
	source *media.Source
	loop   *playback.Loop

	canvasMu sync.Mutex
	canvas   *render.Canvas
}

func New(opts Options) (*Session, error) {
	if opts.Resolver == nil {
		return nil, errors.New("editor: resolver is required")
	}
	if opts.Fonts == nil {
		fonts, err := render.NewFontSet("")
		if err != nil {
			return nil, err
		}
		opts.Fonts = fonts
	}
	if opts.Scheduler == nil {
		opts.Scheduler = playback.NewTickerScheduler(30)
	}
	if opts.Gate == nil {
		opts.Gate = openGate{}
	}
	store, err := layers.New(opts.Layers...)
	if err != nil {
		return nil, err
	}

	s := &Session{
		comp:   render.New(opts.Fonts),
		store:  store,
		router: drag.NewRouter(),
		gate:   opts.Gate,
		sched:  opts.Scheduler,
		canvas: render.NewCanvas(render.MaxDimension, render.MaxDimension),
	}
	s.loader = media.NewLoader(opts.Resolver, s.onReady)
	for _, l := range store.Layers() {
		s.router.Register(l.ID, drag.Point{X: l.X, Y: l.Y}, s.commit)
	}
	store.Subscribe(s.onLayersChanged)
	return s, nil
}

func (s *Session) allowed() error {
	if s.gate.SignedIn() {
		return nil
	}
	s.gate.PromptSignIn()
	return ErrSignInRequired
}

// Layers returns the current text layers in draw order.
func (s *Session) Layers() []core.TextLayer {
	return s.store.Layers()
}

// Source returns the active background; it may still be loading.
func (s *Session) Source() *media.Source {
	return s.loader.Current()
}

// Snapshot copies the canvas.
func (s *Session) Snapshot() *image.RGBA {
	s.canvasMu.Lock()
	defer s.canvasMu.Unlock()
	return s.canvas.Snapshot()
}

// Select switches the background. A running video stops immediately; the new
// background is drawn once its load completes, unless another Select came
// first.
func (s *Session) Select(ctx context.Context, ref string) error {
	if err := s.allowed(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loop != nil {
		s.loop.Pause()
		s.loop = nil
	}
	s.source = nil
	s.loader.Select(ctx, ref)
	return nil
}

// Wait blocks until pending background loads have completed.
func (s *Session) Wait() {
	s.loader.Wait()
}

func (s *Session) onReady(gen uint64, src *media.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loader.IsCurrent(gen) {
		return
	}
	s.source = src
	if src.Kind == core.Video && src.Video != nil {
		s.loop = playback.New(src.Video, s.sched, s.drawFrame)
		s.loop.Seek(context.Background(), 0)
		return
	}
	s.canvasMu.Lock()
	s.comp.RenderPreview(s.canvas, src.Frame)
	s.canvasMu.Unlock()
}

func (s *Session) drawFrame(frame image.Image) {
	ls := s.store.Layers()
	s.canvasMu.Lock()
	defer s.canvasMu.Unlock()
	s.comp.RenderPreview(s.canvas, frame)
	s.comp.RenderOverlay(s.canvas, ls)
}

// redraw refreshes the canvas after a layer change. A playing video picks
// the change up on its next tick.
func (s *Session) redraw() {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.source == nil:
	case s.loop != nil:
		if !s.loop.Playing() {
			s.loop.Redraw(context.Background())
		}
	case s.source.Frame != nil:
		s.canvasMu.Lock()
		s.comp.RenderPreview(s.canvas, s.source.Frame)
		s.canvasMu.Unlock()
	}
}

func (s *Session) onLayersChanged() {
	for _, l := range s.store.Layers() {
		pos := drag.Point{X: l.X, Y: l.Y}
		if c, ok := s.router.Controller(l.ID); ok {
			c.Sync(pos)
			continue
		}
		s.router.Register(l.ID, pos, s.commit)
	}
	s.redraw()
}

func (s *Session) commit(c drag.Commit) {
	err := s.store.Merge(c.ID, func(l *core.TextLayer) {
		l.X, l.Y = c.X, c.Y
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{"layer": c.ID, "error": err}).Warn("failed to commit drag")
	}
}

// EditLayer replaces the layer with the same id.
func (s *Session) EditLayer(layer core.TextLayer) error {
	if err := s.allowed(); err != nil {
		return err
	}
	return s.store.Replace(layer)
}

// ApplyCaption sets the content of the layer at position ("top" or
// "bottom", or any other layer id).
func (s *Session) ApplyCaption(caption, position string) error {
	if err := s.allowed(); err != nil {
		return err
	}
	return s.store.Merge(position, func(l *core.TextLayer) {
		l.Content = caption
	})
}

// Reset pauses a playing video and restores the default captions.
func (s *Session) Reset() error {
	if err := s.allowed(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.loop != nil {
		s.loop.Pause()
	}
	s.mu.Unlock()
	s.store.Reset()
	return nil
}

// TogglePlay flips video playback and reports whether it is now playing.
// It is a no-op for image backgrounds.
func (s *Session) TogglePlay() (bool, error) {
	if err := s.allowed(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loop == nil {
		return false, nil
	}
	return s.loop.Toggle(), nil
}

func (s *Session) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loop != nil && s.loop.Playing()
}

// Seek moves video playback to t; a paused video is redrawn once.
func (s *Session) Seek(ctx context.Context, t time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loop != nil {
		s.loop.Seek(ctx, t)
	}
}

// Export renders the final meme against the decoded still background. ok is
// false when there is nothing to export, including video backgrounds.
func (s *Session) Export(t time.Time) (file *export.File, ok bool, err error) {
	if err := s.allowed(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	src := s.source
	s.mu.Unlock()
	if src == nil || src.Frame == nil {
		return nil, false, nil
	}

	canvas := render.NewCanvas(render.MaxDimension, render.MaxDimension)
	s.comp.RenderFinal(canvas, src.Frame, s.store.Layers())
	file, err = export.Encode(canvas, t)
	if err != nil {
		return nil, false, err
	}
	return file, true, nil
}

// PointerDown starts dragging layerID; it reports whether the layer took the
// pointer.
func (s *Session) PointerDown(pointerID int, layerID string, x, y float64) bool {
	return s.router.Down(pointerID, layerID, drag.Point{X: x, Y: y})
}

func (s *Session) PointerMove(pointerID int, x, y float64) {
	s.router.Move(pointerID, drag.Point{X: x, Y: y})
}

func (s *Session) PointerUp(pointerID int, x, y float64) {
	s.router.Up(pointerID, drag.Point{X: x, Y: y})
}

// DragPosition is where layerID is shown right now, including an
// uncommitted drag.
func (s *Session) DragPosition(layerID string) (x, y float64, ok bool) {
	c, ok := s.router.Controller(layerID)
	if !ok {
		return 0, 0, false
	}
	p := c.Position()
	return p.X, p.Y, true
}

// Close stops playback and releases the background.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.loop != nil {
		s.loop.Pause()
		s.loop = nil
	}
	s.source = nil
	s.mu.Unlock()
	return s.loader.Close()
}
