package selection

import "github.com/thehyve/single-cell-explorer/internal/transform"

// MinLassoArea is the smallest polygon, in square pixels, that commits a
// lasso selection.
const MinLassoArea = 10

// LassoState is the state of a Lasso.
type LassoState int

const (
	LassoIdle LassoState = iota
	LassoDrawing
)

// Lasso is the free-form selection tool.
type Lasso struct {
	layout   string
	dispatch Dispatcher
	minArea  float64

	state LassoState
	path  []transform.Vec2 // in-progress screen vertices
	shown []transform.Vec2 // committed or synced screen polygon
}

// NewLasso returns an idle lasso. A minArea of zero or less uses
// MinLassoArea.
func NewLasso(layout string, d Dispatcher, minArea float64) *Lasso {
	if minArea <= 0 {
		minArea = MinLassoArea
	}
	return &Lasso{layout: layout, dispatch: d, minArea: minArea}
}

// State returns the lasso state.
func (l *Lasso) State() LassoState { return l.state }

// Path returns a copy of the polygon being drawn.
func (l *Lasso) Path() []transform.Vec2 {
	return append([]transform.Vec2(nil), l.path...)
}

// Polygon returns a copy of the displayed polygon in screen space.
func (l *Lasso) Polygon() []transform.Vec2 {
	return append([]transform.Vec2(nil), l.shown...)
}

// Handle advances the lasso by one gesture step.
func (l *Lasso) Handle(g Gesture, m Mapper) {
	if g.Synthetic {
		return
	}

	switch g.Phase {
	case GestureStart:
		if !m.Viewport().Ready() {
			return
		}
		l.state = LassoDrawing
		l.path = []transform.Vec2{g.Pos}
		l.emit(Event{Kind: EventStart})

	case GestureMove:
		if l.state != LassoDrawing {
			return
		}
		if g.Pos != l.path[len(l.path)-1] {
			l.path = append(l.path, g.Pos)
		}

	case GestureEnd:
		if l.state != LassoDrawing {
			return
		}
		if g.Pos != l.path[len(l.path)-1] {
			l.path = append(l.path, g.Pos)
		}
		path := l.path
		l.state = LassoIdle
		l.path = nil

		if len(path) < 3 || Area(path) < l.minArea {
			l.shown = nil
			l.emit(Event{Kind: EventClear})
			return
		}
		vertices := make([]transform.Vec2, len(path))
		for i, p := range path {
			v, err := m.ScreenToData(p)
			if err != nil {
				l.shown = nil
				l.emit(Event{Kind: EventClear})
				return
			}
			vertices[i] = v
		}
		l.shown = path
		l.emit(Event{Kind: EventCommit, Polygon: vertices})

	case GestureCancel:
		if l.state != LassoDrawing {
			return
		}
		l.state = LassoIdle
		l.path = nil
		l.emit(Event{Kind: EventCancel})
	}
}

// Sync shows an external polygon selection in screen space, or resets the
// lasso for any other shape. It reports whether the display changed. A
// path being drawn keeps growing; only the shown polygon follows the sync.
func (l *Lasso) Sync(shape Shape, m Mapper) bool {
	poly, ok := shape.(Polygon)
	if !ok {
		if l.shown == nil {
			return false
		}
		l.shown = nil
		return true
	}
	screen := make([]transform.Vec2, len(poly.Vertices))
	for i, v := range poly.Vertices {
		p, err := m.DataToScreen(v)
		if err != nil {
			return false
		}
		screen[i] = p
	}
	if equalPath(screen, l.shown) {
		return false
	}
	l.shown = screen
	return true
}

// Clear drops any displayed or in-progress polygon without emitting an
// event.
func (l *Lasso) Clear() {
	l.state = LassoIdle
	l.path = nil
	l.shown = nil
}

func (l *Lasso) emit(ev Event) {
	if l.dispatch == nil {
		return
	}
	ev.Tool = ToolLasso
	ev.Layout = l.layout
	l.dispatch.Dispatch(ev)
}

func equalPath(a, b []transform.Vec2) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
