package drag

import (
	"sync"
)

// Router dispatches pointer events. A pointer-down is hit-tested by the
// caller (it names the layer); afterwards the pointer is captured and all its
// moves and ups go to that layer's controller until release. Each pointer id
// maps to at most one controller.
type Router struct {
	mu          sync.Mutex
	controllers map[string]*Controller
	captured    map[int]*Controller
}

func NewRouter() *Router {
	return &Router{
		controllers: make(map[string]*Controller),
		captured:    make(map[int]*Controller),
	}
}

// Register creates the controller for a layer, replacing any previous one.
func (r *Router) Register(layerID string, pos Point, commit func(Commit)) *Controller {
	c := NewController(layerID, pos, commit, r)
	r.mu.Lock()
	r.controllers[layerID] = c
	r.mu.Unlock()
	return c
}

func (r *Router) Controller(layerID string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.controllers[layerID]
	return c, ok
}

func (r *Router) Capture(pointerID int, c *Controller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captured[pointerID] = c
}

func (r *Router) Release(pointerID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.captured, pointerID)
}

// Down delivers a pointer-down on layerID. It reports false when the layer
// is unknown, already being dragged, or the pointer is captured elsewhere.
func (r *Router) Down(pointerID int, layerID string, p Point) bool {
	r.mu.Lock()
	c, ok := r.controllers[layerID]
	_, busy := r.captured[pointerID]
	r.mu.Unlock()
	if !ok || busy || c.Dragging() {
		return false
	}
	c.PointerDown(pointerID, p)
	return true
}

func (r *Router) Move(pointerID int, p Point) {
	if c := r.target(pointerID); c != nil {
		c.PointerMove(pointerID, p)
	}
}

func (r *Router) Up(pointerID int, p Point) {
	if c := r.target(pointerID); c != nil {
		c.PointerUp(pointerID, p)
	}
}

func (r *Router) target(pointerID int) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.captured[pointerID]
}
