// Package drag positions text layers interactively. A Controller tracks one
// layer's drag and hands the final position to a commit callback on release;
// it never writes the layer store while the pointer is down.
package drag

import (
	"sync"
)

type (
	Point struct {
		X, Y float64
	}

	// Commit is the single write-back a finished drag produces.
	Commit struct {
		ID string
		X  float64
		Y  float64
	}

	// Capturer routes a pointer's later events to the capturing controller
	// even after the pointer leaves the layer's bounds.
	Capturer interface {
		Capture(pointerID int, c *Controller)
		Release(pointerID int)
	}

	state int
)

const (
	idle state = iota
	dragging
)

func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Controller is the Idle -> Dragging -> Idle state machine of one layer.
type Controller struct {
	mu      sync.Mutex
	id      string
	state   state
	pointer int
	origin  Point
	live    Point
	commit  func(Commit)
	capture Capturer
}

// NewController starts idle at pos. capture may be nil.
func NewController(layerID string, pos Point, commit func(Commit), capture Capturer) *Controller {
	return &Controller{
		id:      layerID,
		live:    pos,
		commit:  commit,
		capture: capture,
	}
}

func (c *Controller) LayerID() string {
	return c.id
}

// Position is the overlay position: the live drag position while dragging,
// the last committed or synced one otherwise.
func (c *Controller) Position() Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

func (c *Controller) Dragging() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == dragging
}

// Sync follows a position change made elsewhere (reset, another commit).
// It is ignored mid-drag.
func (c *Controller) Sync(pos Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == idle {
		c.live = pos
	}
}

// PointerDown starts a drag so the point under the pointer stays fixed
// relative to the label.
func (c *Controller) PointerDown(pointerID int, p Point) {
	c.mu.Lock()
	if c.state != idle {
		c.mu.Unlock()
		return
	}
	c.state = dragging
	c.pointer = pointerID
	c.origin = p.Sub(c.live)
	c.mu.Unlock()

	if c.capture != nil {
		c.capture.Capture(pointerID, c)
	}
}

func (c *Controller) PointerMove(pointerID int, p Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != dragging || pointerID != c.pointer {
		return
	}
	c.live = p.Sub(c.origin)
}

// PointerUp ends the drag and commits the live position. The release point
// itself is not used; the last move already placed the label.
func (c *Controller) PointerUp(pointerID int, _ Point) {
	c.mu.Lock()
	if c.state != dragging || pointerID != c.pointer {
		c.mu.Unlock()
		return
	}
	c.state = idle
	pos := c.live
	c.mu.Unlock()

	if c.capture != nil {
		c.capture.Release(pointerID)
	}
	if c.commit != nil {
		c.commit(Commit{ID: c.id, X: pos.X, Y: pos.Y})
	}
}
