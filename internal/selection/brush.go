package selection

import (
	"math"

	"github.com/thehyve/single-cell-explorer/internal/transform"
)

// BrushState is the state of a Brush.
type BrushState int

const (
	BrushIdle BrushState = iota
	BrushDragging
)

// Extent is a screen-space rectangle given by its top-left and
// bottom-right corners.
type Extent [2]transform.Vec2

// Brush is the rectangular selection tool.
type Brush struct {
	layout   string
	dispatch Dispatcher

	state  BrushState
	anchor transform.Vec2
	extent *Extent
	// extent at gesture start, restored on cancel
	before *Extent
}

// NewBrush returns an idle brush for a layout.
func NewBrush(layout string, d Dispatcher) *Brush {
	return &Brush{layout: layout, dispatch: d}
}

// State returns the brush state.
func (b *Brush) State() BrushState { return b.state }

// Extent returns the visible handles, or nil when there are none.
func (b *Brush) Extent() *Extent {
	if b.extent == nil {
		return nil
	}
	e := *b.extent
	return &e
}

// Handle advances the brush by one gesture step.
func (b *Brush) Handle(g Gesture, m Mapper) {
	if g.Synthetic {
		return
	}
	if g.Phase == GestureCancel {
		if b.state == BrushDragging {
			b.state = BrushIdle
			b.extent = b.before
			b.before = nil
		}
		return
	}
	vp := m.Viewport()
	if !vp.Ready() {
		return
	}

	switch g.Phase {
	case GestureStart:
		b.state = BrushDragging
		b.anchor = clampToViewport(g.Pos, vp)
		b.before = b.extent
		b.extent = nil
		b.emit(Event{Kind: EventStart})

	case GestureMove:
		if b.state != BrushDragging {
			return
		}
		b.extent = extentFrom(b.anchor, clampToViewport(g.Pos, vp))
		if b.extent == nil {
			return
		}
		if payload, ok := b.payload(m); ok {
			b.emit(Event{Kind: EventChange, Rect: payload})
		}

	case GestureEnd:
		if b.state != BrushDragging {
			return
		}
		b.state = BrushIdle
		b.before = nil
		b.extent = extentFrom(b.anchor, clampToViewport(g.Pos, vp))
		if b.extent == nil {
			b.emit(Event{Kind: EventClear})
			return
		}
		payload, ok := b.payload(m)
		if !ok {
			b.extent = nil
			b.emit(Event{Kind: EventClear})
			return
		}
		b.emit(Event{Kind: EventCommit, Rect: payload})
	}
}

// Sync moves the handles to match an external selection. Rectangles are
// mapped to screen space and the handles move whenever any corner
// differs; any other shape clears the handles. It reports whether the
// handles changed. A drag in progress keeps going from the synced
// rectangle: its anchor moves to the nearest synced corner and a cancel
// restores the synced handles.
func (b *Brush) Sync(shape Shape, m Mapper) bool {
	rect, ok := shape.(Rectangle)
	if !ok {
		b.before = nil
		if b.extent == nil {
			return false
		}
		b.extent = nil
		return true
	}

	nw, err := m.DataToScreen(rect.Northwest)
	if err != nil {
		return false
	}
	se, err := m.DataToScreen(rect.Southeast)
	if err != nil {
		return false
	}
	want := Extent{nw, se}
	b.before = nil
	if b.state == BrushDragging {
		b.anchor = nearestCorner(want, b.anchor)
		kept := want
		b.before = &kept
	}
	if b.extent != nil {
		var delta float64
		for c := 0; c < 2; c++ {
			for axis := 0; axis < 2; axis++ {
				delta += math.Abs(b.extent[c][axis] - want[c][axis])
			}
		}
		if delta == 0 {
			return false
		}
	}
	b.extent = &want
	return true
}

// Clear drops the handles without emitting an event.
func (b *Brush) Clear() {
	b.state = BrushIdle
	b.extent = nil
	b.before = nil
}

func (b *Brush) payload(m Mapper) (*RectPayload, bool) {
	nw, err := m.ScreenToData(b.extent[0])
	if err != nil {
		return nil, false
	}
	se, err := m.ScreenToData(b.extent[1])
	if err != nil {
		return nil, false
	}
	return &RectPayload{
		MinX:      nw[0],
		MaxY:      nw[1],
		MaxX:      se[0],
		MinY:      se[1],
		Northwest: nw,
		Southeast: se,
	}, true
}

func (b *Brush) emit(ev Event) {
	if b.dispatch == nil {
		return
	}
	ev.Tool = ToolBrush
	ev.Layout = b.layout
	b.dispatch.Dispatch(ev)
}

// extentFrom returns the rectangle spanned by two corners, or nil when it
// has no area.
func extentFrom(a, c transform.Vec2) *Extent {
	e := Extent{
		{math.Min(a[0], c[0]), math.Min(a[1], c[1])},
		{math.Max(a[0], c[0]), math.Max(a[1], c[1])},
	}
	if e[0][0] == e[1][0] || e[0][1] == e[1][1] {
		return nil
	}
	return &e
}

// nearestCorner returns the corner of e closest to p.
func nearestCorner(e Extent, p transform.Vec2) transform.Vec2 {
	x, y := e[0][0], e[0][1]
	if math.Abs(e[1][0]-p[0]) < math.Abs(x-p[0]) {
		x = e[1][0]
	}
	if math.Abs(e[1][1]-p[1]) < math.Abs(y-p[1]) {
		y = e[1][1]
	}
	return transform.Vec2{x, y}
}

func clampToViewport(p transform.Vec2, vp transform.Viewport) transform.Vec2 {
	return transform.Vec2{
		math.Max(0, math.Min(p[0], float64(vp.Width))),
		math.Max(0, math.Min(p[1], float64(vp.Height))),
	}
}
