package selection

import "github.com/thehyve/single-cell-explorer/internal/transform"

// Phase is the stage of a selection gesture.
type Phase int

const (
	GestureStart Phase = iota
	GestureMove
	GestureEnd
	GestureCancel
)

// Gesture is one pointer step of a selection gesture in pixel
// coordinates. Synthetic gestures come from programs, not the user.
type Gesture struct {
	Phase     Phase
	Pos       transform.Vec2
	Synthetic bool
}

// Tool is a selection tool.
type Tool int

const (
	ToolBrush Tool = iota
	ToolLasso
)

func (t Tool) String() string {
	if t == ToolLasso {
		return "lasso"
	}
	return "brush"
}

// ParseTool parses "brush" or "lasso".
func ParseTool(s string) (Tool, bool) {
	switch s {
	case "brush":
		return ToolBrush, true
	case "lasso":
		return ToolLasso, true
	}
	return 0, false
}

// Mode decides whether pointer input drives the camera or the tool.
type Mode int

const (
	ModeSelect Mode = iota
	ModeZoom
)

func (m Mode) String() string {
	if m == ModeZoom {
		return "zoom"
	}
	return "select"
}

// ParseMode parses "select" or "zoom".
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "select":
		return ModeSelect, true
	case "zoom":
		return ModeZoom, true
	}
	return 0, false
}

// EventKind is the kind of event a tool emits.
type EventKind int

const (
	EventStart EventKind = iota
	EventChange
	EventCommit
	EventClear
	// EventCancel reports a discarded gesture. It does not change the
	// selection.
	EventCancel
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventChange:
		return "change"
	case EventCommit:
		return "commit"
	case EventClear:
		return "clear"
	case EventCancel:
		return "cancel"
	}
	return "unknown"
}

// RectPayload is a brush selection. Northwest and Southeast are kept in
// data space so the rectangle can be replayed exactly.
type RectPayload struct {
	MinX      float64        `json:"minX"`
	MinY      float64        `json:"minY"`
	MaxX      float64        `json:"maxX"`
	MaxY      float64        `json:"maxY"`
	Northwest transform.Vec2 `json:"northwest"`
	Southeast transform.Vec2 `json:"southeast"`
}

// Event is emitted by a tool. Rect is set for brush change and commit
// events, Polygon for lasso commits.
type Event struct {
	Kind    EventKind
	Tool    Tool
	Layout  string
	Rect    *RectPayload
	Polygon []transform.Vec2
}

// Shape returns the selection shape an event establishes. ok is false
// for events that leave the selection alone.
func (e Event) Shape() (s Shape, ok bool) {
	switch e.Kind {
	case EventChange, EventCommit:
		if e.Rect != nil {
			return Rectangle{Northwest: e.Rect.Northwest, Southeast: e.Rect.Southeast}, true
		}
		if e.Polygon != nil {
			return Polygon{Vertices: e.Polygon}, true
		}
	case EventClear:
		return None{}, true
	}
	return nil, false
}

// Dispatcher receives tool events.
type Dispatcher interface {
	Dispatch(Event)
}

// DispatchFunc adapts a function to Dispatcher.
type DispatchFunc func(Event)

// Dispatch calls f(ev).
func (f DispatchFunc) Dispatch(ev Event) { f(ev) }

// Mapper converts between pixels and data space for the current view.
type Mapper interface {
	Viewport() transform.Viewport
	ScreenToData(pt transform.Vec2) (transform.Vec2, error)
	DataToScreen(pt transform.Vec2) (transform.Vec2, error)
}

// ViewMapper binds a pipeline to a camera.
type ViewMapper struct {
	Pipeline *transform.Pipeline
	Camera   *transform.Camera
}

func (m ViewMapper) Viewport() transform.Viewport {
	if m.Pipeline == nil {
		return transform.Viewport{}
	}
	return m.Pipeline.Viewport()
}

func (m ViewMapper) ScreenToData(pt transform.Vec2) (transform.Vec2, error) {
	if m.Pipeline == nil {
		return transform.Vec2{}, transform.ErrViewportNotReady
	}
	return m.Pipeline.ScreenToData(pt, m.Camera)
}

func (m ViewMapper) DataToScreen(pt transform.Vec2) (transform.Vec2, error) {
	if m.Pipeline == nil {
		return transform.Vec2{}, transform.ErrViewportNotReady
	}
	return m.Pipeline.DataToScreen(pt, m.Camera)
}
