package transform

import "math"

const (
	// MinZoom and MaxZoom bound the camera scale. Within this range the
	// view transform is always invertible.
	MinZoom = 0.5
	MaxZoom = 12.0

	wheelSpeed = 0.0025
)

// PointerKind identifies a pointer event.
type PointerKind int

const (
	PointerDown PointerKind = iota
	PointerMove
	PointerUp
	PointerWheel
	PointerDoubleClick
	PointerCancel
)

func (k PointerKind) String() string {
	switch k {
	case PointerDown:
		return "down"
	case PointerMove:
		return "move"
	case PointerUp:
		return "up"
	case PointerWheel:
		return "wheel"
	case PointerDoubleClick:
		return "dblclick"
	case PointerCancel:
		return "cancel"
	}
	return "unknown"
}

// ParsePointerKind parses the String form of a PointerKind.
func ParsePointerKind(s string) (PointerKind, bool) {
	for k := PointerDown; k <= PointerCancel; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// PointerEvent is a pointer event in pixel coordinates. Synthetic events
// are generated by programs rather than by the user.
type PointerEvent struct {
	Kind      PointerKind
	X, Y      float64
	DeltaY    float64
	Synthetic bool
}

// Pos returns the event position.
func (e PointerEvent) Pos() Vec2 { return Vec2{e.X, e.Y} }

// CameraMode is the camera's interaction state.
type CameraMode int

const (
	CameraIdle CameraMode = iota
	CameraPanning
)

// Camera is a 2D pan and zoom camera.
type Camera struct {
	pan  Vec2
	zoom float64
	mode CameraMode
	last Vec2
}

// NewCamera returns a camera at the identity view.
func NewCamera() *Camera {
	return &Camera{zoom: 1}
}

// View returns the camera transform T(pan)·S(zoom).
func (c *Camera) View() Mat3 {
	return FromTranslation(c.pan).Scale(Vec2{c.zoom, c.zoom})
}

// InvView returns the inverse of View.
func (c *Camera) InvView() Mat3 {
	return FromScaling(Vec2{1 / c.zoom, 1 / c.zoom}).Translate(Vec2{-c.pan[0], -c.pan[1]})
}

// Distance is the reciprocal of the zoom scale.
func (c *Camera) Distance() float64 { return 1 / c.zoom }

// Pan returns the pan offset.
func (c *Camera) Pan() Vec2 { return c.pan }

// Zoom returns the zoom scale.
func (c *Camera) Zoom() float64 { return c.zoom }

// Mode returns the interaction mode.
func (c *Camera) Mode() CameraMode { return c.mode }

// Reset restores the identity view.
func (c *Camera) Reset() {
	c.pan = Vec2{}
	c.zoom = 1
	c.mode = CameraIdle
}

// PanBy moves the camera by a delta in view space.
func (c *Camera) PanBy(delta Vec2) bool {
	before := c.pan
	c.pan = Vec2{c.pan[0] + delta[0], c.pan[1] + delta[1]}
	c.clampPan()
	return c.pan != before
}

// ZoomAt scales the view by factor, keeping the view-space point at
// fixed on screen.
func (c *Camera) ZoomAt(factor float64, at Vec2) bool {
	zoom := clamp(c.zoom*factor, MinZoom, MaxZoom)
	if zoom == c.zoom {
		return false
	}
	p := Vec2{(at[0] - c.pan[0]) / c.zoom, (at[1] - c.pan[1]) / c.zoom}
	c.zoom = zoom
	c.pan = Vec2{at[0] - zoom*p[0], at[1] - zoom*p[1]}
	c.clampPan()
	return true
}

// SetView sets pan and zoom directly, clamping both to their bounds.
func (c *Camera) SetView(pan Vec2, zoom float64) {
	c.zoom = clamp(zoom, MinZoom, MaxZoom)
	c.pan = pan
	c.clampPan()
}

// HandleEvent applies a pointer event. It returns true when the view
// changed and the canvas needs repainting.
func (c *Camera) HandleEvent(ev PointerEvent, projection Mat3, vp Viewport) bool {
	if !vp.Ready() {
		return false
	}
	projInv, ok := projection.Invert()
	if !ok {
		return false
	}
	w := float64(vp.Width)
	h := float64(vp.Height)

	switch ev.Kind {
	case PointerDown:
		c.mode = CameraPanning
		c.last = ev.Pos()
		return false
	case PointerMove:
		if c.mode != CameraPanning {
			return false
		}
		ndc := Vec2{2 * (ev.X - c.last[0]) / w, -2 * (ev.Y - c.last[1]) / h}
		c.last = ev.Pos()
		return c.PanBy(projInv.ApplyLinear(ndc))
	case PointerUp, PointerCancel:
		c.mode = CameraIdle
		return false
	case PointerWheel:
		ndc := Vec2{2*ev.X/w - 1, 2*(1-ev.Y/h) - 1}
		return c.ZoomAt(math.Exp(-ev.DeltaY*wheelSpeed), projInv.Apply(ndc))
	case PointerDoubleClick:
		changed := c.pan != (Vec2{}) || c.zoom != 1
		c.Reset()
		return changed
	}
	return false
}

// clampPan keeps the layout center within one zoomed unit of the origin.
func (c *Camera) clampPan() {
	c.pan[0] = clamp(c.pan[0], -c.zoom, c.zoom)
	c.pan[1] = clamp(c.pan[1], -c.zoom, c.zoom)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
