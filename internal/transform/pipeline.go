package transform

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrViewportNotReady is returned when the viewport has no size yet.
	ErrViewportNotReady = errors.New("viewport not initialized")
	// ErrViewportTooSmall is returned when the viewport leaves no room
	// between the tool gutters.
	ErrViewportTooSmall = errors.New("viewport too small")
)

const (
	// FractionToUse is the fraction of the minimum dimension the layout fills.
	FractionToUse = 0.95
	// TopGutterPx is reserved above the plot for tools.
	TopGutterPx = 32
	// BottomGutterPx is reserved below the plot for tools.
	BottomGutterPx = 32
)

// Viewport is the drawing surface size in pixels.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Ready reports whether the viewport has a non-zero size.
func (v Viewport) Ready() bool {
	return v.Width > 0 && v.Height > 0
}

// MinDimension returns min(width, height).
func (v Viewport) MinDimension() int {
	if v.Width < v.Height {
		return v.Width
	}
	return v.Height
}

var (
	modelTF    Mat3
	modelInvTF Mat3
)

func init() {
	// Data arrives in a [0,1] range, and we operate elsewhere in [-1,1].
	modelTF = FromScaling(Vec2{2, 2}).Translate(Vec2{-0.5, -0.5})
	inv, ok := modelTF.Invert()
	if !ok {
		panic("transform: model transform is singular")
	}
	modelInvTF = inv
}

// Model returns the fixed data-to-renderer transform.
func Model() Mat3 { return modelTF }

// ModelInverse returns the inverse of Model.
func ModelInverse() Mat3 { return modelInvTF }

// Projection returns the viewport-fit transform. Content is scaled
// uniformly to fit inside the top and bottom gutters and recentered
// between them.
func Projection(vp Viewport) (Mat3, error) {
	if !vp.Ready() {
		return Mat3{}, ErrViewportNotReady
	}
	w := float64(vp.Width)
	h := float64(vp.Height)
	heightMinusGutter := h - TopGutterPx - BottomGutterPx
	minDim := math.Min(w, heightMinusGutter)
	if minDim <= 0 {
		return Mat3{}, fmt.Errorf("%w: %dx%d", ErrViewportTooSmall, vp.Width, vp.Height)
	}
	aspect := Vec2{
		FractionToUse * minDim / w,
		FractionToUse * minDim / h,
	}
	m := FromTranslation(Vec2{0, (BottomGutterPx - TopGutterPx) / h / aspect[1]})
	return m.Scale(aspect), nil
}

// ScreenToData maps a pixel coordinate to data space.
func ScreenToData(px, py float64, vp Viewport, cam *Camera, projection, modelInv Mat3) (Vec2, error) {
	if !vp.Ready() {
		return Vec2{}, ErrViewportNotReady
	}
	projInv, ok := projection.Invert()
	if !ok {
		return Vec2{}, fmt.Errorf("%w: singular projection", ErrViewportNotReady)
	}
	xy := Vec2{
		2*px/float64(vp.Width) - 1,
		2*(1-py/float64(vp.Height)) - 1,
	}
	xy = projInv.Apply(xy)
	xy = cam.InvView().Apply(xy)
	return modelInv.Apply(xy), nil
}

// DataToScreen maps a data-space point to pixel coordinates. It is the
// inverse of ScreenToData, rounded to whole pixels.
func DataToScreen(p Vec2, vp Viewport, cam *Camera, projection, model Mat3) (Vec2, error) {
	if !vp.Ready() {
		return Vec2{}, ErrViewportNotReady
	}
	xy := model.Apply(p)
	xy = cam.View().Apply(xy)
	xy = projection.Apply(xy)
	w := float64(vp.Width)
	h := float64(vp.Height)
	return Vec2{
		roundHalfUp((xy[0] + 1) * w / 2),
		roundHalfUp(-((xy[1]+1)/2 - 1) * h),
	}, nil
}

// roundHalfUp rounds .5 towards positive infinity.
func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}

// Pipeline binds a viewport to its projection and the cached model
// transforms.
type Pipeline struct {
	viewport   Viewport
	projection Mat3
	projInv    Mat3
}

// NewPipeline builds the transform pipeline for a viewport.
func NewPipeline(vp Viewport) (*Pipeline, error) {
	projection, err := Projection(vp)
	if err != nil {
		return nil, err
	}
	projInv, ok := projection.Invert()
	if !ok {
		return nil, fmt.Errorf("%w: singular projection", ErrViewportTooSmall)
	}
	return &Pipeline{viewport: vp, projection: projection, projInv: projInv}, nil
}

// Viewport returns the viewport the pipeline was built for.
func (p *Pipeline) Viewport() Viewport { return p.viewport }

// Projection returns the projection transform.
func (p *Pipeline) Projection() Mat3 { return p.projection }

// ProjectionInverse returns the inverse projection transform.
func (p *Pipeline) ProjectionInverse() Mat3 { return p.projInv }

// ProjView returns projection·view, the matrix handed to the draw call.
func (p *Pipeline) ProjView(cam *Camera) Mat3 {
	return p.projection.Multiply(cam.View())
}

// ScreenToData maps a pixel coordinate to data space.
func (p *Pipeline) ScreenToData(pt Vec2, cam *Camera) (Vec2, error) {
	return ScreenToData(pt[0], pt[1], p.viewport, cam, p.projection, modelInvTF)
}

// DataToScreen maps a data-space point to whole pixel coordinates.
func (p *Pipeline) DataToScreen(pt Vec2, cam *Camera) (Vec2, error) {
	return DataToScreen(pt, p.viewport, cam, p.projection, modelTF)
}

// NDC converts a pixel coordinate to normalized device coordinates.
func (p *Pipeline) NDC(pt Vec2) Vec2 {
	return Vec2{
		2*pt[0]/float64(p.viewport.Width) - 1,
		2*(1-pt[1]/float64(p.viewport.Height)) - 1,
	}
}
