// Package layers holds the ordered set of text layers a meme is drawn with.
package layers

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Scriptzstarling/meme-Forge/core"
)

const (
	TopID    = "top"
	BottomID = "bottom"
)

var (
	ErrUnknownLayer   = errors.New("unknown layer")
	ErrDuplicateLayer = errors.New("duplicate layer")
)

type position struct {
	content string
	x, y    float64
}

// Content and position the two default layers return to on Reset.
var resetTo = map[string]position{
	TopID:    {content: "TOP TEXT", x: 50, y: 10},
	BottomID: {content: "BOTTOM TEXT", x: 50, y: 90},
}

// Defaults returns the top and bottom layers a new meme starts with.
func Defaults() []core.TextLayer {
	mk := func(id string) core.TextLayer {
		p := resetTo[id]
		return core.TextLayer{
			ID:          id,
			Content:     p.content,
			FontSize:    48,
			FontWeight:  700,
			Color:       core.White,
			Stroke:      core.Black,
			StrokeWidth: 3,
			X:           p.x,
			Y:           p.y,
		}
	}
	return []core.TextLayer{mk(TopID), mk(BottomID)}
}

// Store is the single source of truth for what the compositor draws.
// Subscribers are notified after every mutation, outside the lock.
type Store struct {
	mu     sync.RWMutex
	layers []core.TextLayer
	subs   []func()
}

// New returns a store holding layers in the given order, or the two
// defaults when none are given.
func New(initial ...core.TextLayer) (*Store, error) {
	if len(initial) == 0 {
		initial = Defaults()
	}
	s := &Store{}
	for _, l := range initial {
		if err := s.add(l); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Layers returns a copy of the layers in draw order.
func (s *Store) Layers() []core.TextLayer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.TextLayer, len(s.layers))
	copy(out, s.layers)
	return out
}

func (s *Store) Get(id string) (core.TextLayer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.index(id); i >= 0 {
		return s.layers[i], true
	}
	return core.TextLayer{}, false
}

// Replace swaps the whole record with the same id. It is not a patch:
// callers merge their changes into the current record first (see Merge).
func (s *Store) Replace(layer core.TextLayer) error {
	s.mu.Lock()
	i := s.index(layer.ID)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownLayer, layer.ID)
	}
	s.layers[i] = layer
	s.mu.Unlock()
	s.notify()
	return nil
}

// Merge applies fn to the current record for id and stores the result.
func (s *Store) Merge(id string, fn func(*core.TextLayer)) error {
	s.mu.Lock()
	i := s.index(id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownLayer, id)
	}
	l := s.layers[i]
	fn(&l)
	l.ID = id
	s.layers[i] = l
	s.mu.Unlock()
	s.notify()
	return nil
}

// Add appends a layer after the existing ones.
func (s *Store) Add(layer core.TextLayer) error {
	s.mu.Lock()
	err := s.add(layer)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify()
	return nil
}

// Reset restores content and position of the default layers and keeps
// their style. Other layers are left as they are.
func (s *Store) Reset() {
	s.mu.Lock()
	for i, l := range s.layers {
		p, ok := resetTo[l.ID]
		if !ok {
			continue
		}
		l.Content, l.X, l.Y = p.content, p.x, p.y
		s.layers[i] = l
	}
	s.mu.Unlock()
	s.notify()
}

// Subscribe registers fn to run after every mutation.
func (s *Store) Subscribe(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

func (s *Store) add(layer core.TextLayer) error {
	if layer.ID == "" {
		return fmt.Errorf("layer id is required")
	}
	if s.index(layer.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateLayer, layer.ID)
	}
	s.layers = append(s.layers, layer)
	return nil
}

func (s *Store) index(id string) int {
	for i, l := range s.layers {
		if l.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) notify() {
	s.mu.RLock()
	subs := make([]func(), len(s.subs))
	copy(subs, s.subs)
	s.mu.RUnlock()
	for _, fn := range subs {
		fn()
	}
}
