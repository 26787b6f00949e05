package selection

import "github.com/thehyve/single-cell-explorer/internal/transform"

// Overlay is the screen-space decoration of the active tool.
type Overlay struct {
	Tool    Tool
	Extent  *Extent
	Polygon []transform.Vec2
	Path    []transform.Vec2
}

// Selector owns the brush and the lasso for one layout and routes
// gestures to whichever is active.
type Selector struct {
	tool     Tool
	layout   string
	dispatch Dispatcher
	minArea  float64

	brush *Brush
	lasso *Lasso
}

// NewSelector returns a selector with tool active.
func NewSelector(tool Tool, layout string, d Dispatcher, minLassoArea float64) *Selector {
	s := &Selector{tool: tool, dispatch: d, minArea: minLassoArea}
	s.SetLayout(layout)
	return s
}

// Tool returns the active tool.
func (s *Selector) Tool() Tool { return s.tool }

// Layout returns the layout tool events are tagged with.
func (s *Selector) Layout() string { return s.layout }

// Busy reports whether a gesture is in progress.
func (s *Selector) Busy() bool {
	return s.brush.State() == BrushDragging || s.lasso.State() == LassoDrawing
}

// SetTool switches tools, cancelling any gesture in progress. It
// reports whether the tool changed.
func (s *Selector) SetTool(t Tool) bool {
	if t == s.tool {
		return false
	}
	s.Cancel()
	s.brush.Clear()
	s.lasso.Clear()
	s.tool = t
	return true
}

// SetLayout recreates both tools for a new layout.
func (s *Selector) SetLayout(layout string) {
	if s.brush != nil {
		s.Cancel()
	}
	s.layout = layout
	s.brush = NewBrush(layout, s.dispatch)
	s.lasso = NewLasso(layout, s.dispatch, s.minArea)
}

// Handle routes a gesture to the active tool.
func (s *Selector) Handle(g Gesture, m Mapper) {
	if s.tool == ToolLasso {
		s.lasso.Handle(g, m)
		return
	}
	s.brush.Handle(g, m)
}

// Cancel discards a gesture in progress.
func (s *Selector) Cancel() {
	cancel := Gesture{Phase: GestureCancel}
	s.brush.Handle(cancel, nil)
	s.lasso.Handle(cancel, nil)
}

// Sync aligns the active tool with an external selection. It reports
// whether the overlay changed.
func (s *Selector) Sync(shape Shape, m Mapper) bool {
	if shape == nil {
		shape = None{}
	}
	if s.tool == ToolLasso {
		return s.lasso.Sync(shape, m)
	}
	return s.brush.Sync(shape, m)
}

// Deselect clears the tool and emits a clear event.
func (s *Selector) Deselect() {
	s.brush.Clear()
	s.lasso.Clear()
	if s.dispatch != nil {
		s.dispatch.Dispatch(Event{Kind: EventClear, Tool: s.tool, Layout: s.layout})
	}
}

// Overlay returns what the active tool currently shows.
func (s *Selector) Overlay() Overlay {
	o := Overlay{Tool: s.tool}
	if s.tool == ToolLasso {
		o.Polygon = s.lasso.Polygon()
		o.Path = s.lasso.Path()
		return o
	}
	o.Extent = s.brush.Extent()
	return o
}
