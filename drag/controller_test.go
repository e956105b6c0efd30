package drag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type commits struct {
	got []Commit
}

func (c *commits) add(cm Commit) {
	c.got = append(c.got, cm)
}

func TestController_CommitsLivePositionOnRelease(t *testing.T) {
	tests := []struct {
		name    string
		initial Point
		down    Point
		moves   []Point
		want    Point
	}{
		{"two moves", Point{50, 10}, Point{60, 25}, []Point{{70, 30}, {160, 225}}, Point{150, 210}},
		{"no move", Point{50, 90}, Point{55, 95}, nil, Point{50, 90}},
		{"negative", Point{5, 5}, Point{10, 10}, []Point{{0, 0}}, Point{-5, -5}},
		{"fractional", Point{0.5, 1.25}, Point{1, 2}, []Point{{3.5, 4}}, Point{3, 3.25}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var c commits
			ctl := NewController("top", tc.initial, c.add, nil)

			ctl.PointerDown(1, tc.down)
			require.True(t, ctl.Dragging())
			for _, m := range tc.moves {
				ctl.PointerMove(1, m)
				assert.Empty(t, c.got, "no commit before release")
			}
			ctl.PointerUp(1, Point{999, 999})

			require.Len(t, c.got, 1)
			// committed = last move - (down - initial)
			assert.Equal(t, Commit{ID: "top", X: tc.want.X, Y: tc.want.Y}, c.got[0])
			assert.Equal(t, tc.want, ctl.Position())
			assert.False(t, ctl.Dragging())
		})
	}
}

func TestController_IgnoresEventsWhileIdle(t *testing.T) {
	var c commits
	ctl := NewController("bottom", Point{1, 2}, c.add, nil)

	ctl.PointerMove(1, Point{100, 100})
	ctl.PointerUp(1, Point{100, 100})

	assert.Empty(t, c.got)
	assert.Equal(t, Point{1, 2}, ctl.Position())

	// late duplicate up after a finished drag
	ctl.PointerDown(1, Point{1, 2})
	ctl.PointerUp(1, Point{1, 2})
	ctl.PointerUp(1, Point{1, 2})
	assert.Len(t, c.got, 1)
}

func TestController_IgnoresOtherPointers(t *testing.T) {
	var c commits
	ctl := NewController("top", Point{0, 0}, c.add, nil)

	ctl.PointerDown(1, Point{10, 10})
	ctl.PointerDown(2, Point{500, 500})
	ctl.PointerMove(2, Point{600, 600})
	ctl.PointerUp(2, Point{600, 600})
	assert.Empty(t, c.got)

	ctl.PointerMove(1, Point{20, 30})
	ctl.PointerUp(1, Point{20, 30})
	require.Len(t, c.got, 1)
	assert.Equal(t, Commit{ID: "top", X: 10, Y: 20}, c.got[0])
}

func TestController_SyncOnlyWhenIdle(t *testing.T) {
	ctl := NewController("top", Point{0, 0}, nil, nil)
	ctl.Sync(Point{50, 10})
	assert.Equal(t, Point{50, 10}, ctl.Position())

	ctl.PointerDown(1, Point{50, 10})
	ctl.PointerMove(1, Point{60, 20})
	ctl.Sync(Point{0, 0})
	assert.Equal(t, Point{60, 20}, ctl.Position())
}

func TestRouter_CaptureKeepsEventsAfterLeavingBounds(t *testing.T) {
	var c commits
	r := NewRouter()
	r.Register("top", Point{50, 10}, c.add)

	require.True(t, r.Down(7, "top", Point{55, 15}))
	// far outside any label; still delivered to the captured controller
	r.Move(7, Point{1000, 2000})
	r.Up(7, Point{1000, 2000})

	require.Len(t, c.got, 1)
	assert.Equal(t, Commit{ID: "top", X: 995, Y: 1995}, c.got[0])

	// released: further events for the pointer go nowhere
	r.Move(7, Point{0, 0})
	r.Up(7, Point{0, 0})
	assert.Len(t, c.got, 1)
}

func TestRouter_MultiplePointersIndependentLayers(t *testing.T) {
	var c commits
	r := NewRouter()
	r.Register("top", Point{0, 0}, c.add)
	r.Register("bottom", Point{0, 100}, c.add)

	require.True(t, r.Down(1, "top", Point{0, 0}))
	require.True(t, r.Down(2, "bottom", Point{0, 100}))
	assert.False(t, r.Down(3, "top", Point{0, 0}), "a layer has one active drag")
	assert.False(t, r.Down(1, "bottom", Point{0, 0}), "a pointer drives one controller")
	assert.False(t, r.Down(4, "missing", Point{0, 0}))

	r.Move(1, Point{10, 10})
	r.Move(2, Point{20, 120})
	r.Up(2, Point{20, 120})
	r.Up(1, Point{10, 10})

	assert.Equal(t, []Commit{
		{ID: "bottom", X: 20, Y: 120},
		{ID: "top", X: 10, Y: 10},
	}, c.got)
}
