package transform

import (
	"errors"
	"math"
	"testing"
)

var testViewports = []Viewport{
	{Width: 800, Height: 600},
	{Width: 600, Height: 800},
	{Width: 1920, Height: 1080},
	{Width: 333, Height: 97},
	{Width: 1, Height: 65},
}

func testCameras() []*Camera {
	zoomed := NewCamera()
	zoomed.SetView(Vec2{0.3, -0.2}, 3.5)
	wide := NewCamera()
	wide.SetView(Vec2{-0.1, 0.4}, MinZoom)
	deep := NewCamera()
	deep.SetView(Vec2{4, -5}, MaxZoom)
	return []*Camera{NewCamera(), zoomed, wide, deep}
}

func TestModelInverse(t *testing.T) {
	for _, cam := range testCameras() {
		got := Model().Multiply(ModelInverse())
		if !got.ApproxEqual(Identity(), 1e-12) {
			t.Fatalf("model·modelInverse != identity at zoom %v: %v", cam.Zoom(), got)
		}
	}

	corners := []struct {
		in   Vec2
		want Vec2
	}{
		{Vec2{0, 0}, Vec2{-1, -1}},
		{Vec2{1, 1}, Vec2{1, 1}},
		{Vec2{0.5, 0.5}, Vec2{0, 0}},
	}
	for _, c := range corners {
		if got := Model().Apply(c.in); got != c.want {
			t.Errorf("Model().Apply(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestProjection_NotReady(t *testing.T) {
	for _, vp := range []Viewport{{0, 0}, {0, 600}, {800, 0}, {-1, 10}} {
		if _, err := Projection(vp); !errors.Is(err, ErrViewportNotReady) {
			t.Errorf("Projection(%v) error = %v, want ErrViewportNotReady", vp, err)
		}
		if _, err := NewPipeline(vp); err == nil {
			t.Errorf("NewPipeline(%v) succeeded, want error", vp)
		}
	}

	if _, err := Projection(Viewport{Width: 800, Height: 64}); !errors.Is(err, ErrViewportTooSmall) {
		t.Errorf("expected ErrViewportTooSmall, got %v", err)
	}
}

func TestProjection_Scale(t *testing.T) {
	vp := Viewport{Width: 800, Height: 600}
	m, err := Projection(vp)
	if err != nil {
		t.Fatalf("Projection: %v", err)
	}
	minDim := math.Min(800, 600-64)
	wantX := 0.95 * minDim / 800
	wantY := 0.95 * minDim / 600
	if math.Abs(m[0]-wantX) > 1e-12 || math.Abs(m[4]-wantY) > 1e-12 {
		t.Fatalf("unexpected scale: got (%v, %v), want (%v, %v)", m[0], m[4], wantX, wantY)
	}
	// Equal gutters: no vertical recentering.
	if m[7] != 0 {
		t.Fatalf("expected zero vertical translation, got %v", m[7])
	}
}

func TestPipeline_ExactInverse(t *testing.T) {
	for _, vp := range testViewports {
		p, err := NewPipeline(vp)
		if err != nil {
			t.Fatalf("NewPipeline(%v): %v", vp, err)
		}
		for _, cam := range testCameras() {
			forward := p.ProjView(cam).Multiply(Model())
			inverse := ModelInverse().Multiply(cam.InvView()).Multiply(p.ProjectionInverse())
			if got := forward.Multiply(inverse); !got.ApproxEqual(Identity(), 1e-9) {
				t.Errorf("vp=%v zoom=%v: forward·inverse = %v", vp, cam.Zoom(), got)
			}
		}
	}
}

func TestPipeline_RoundTrip(t *testing.T) {
	for _, vp := range testViewports {
		p, err := NewPipeline(vp)
		if err != nil {
			t.Fatalf("NewPipeline(%v): %v", vp, err)
		}
		minDim := math.Min(float64(vp.Width), float64(vp.Height)-TopGutterPx-BottomGutterPx)
		for _, cam := range testCameras() {
			// Rounding to whole pixels costs at most half a pixel per axis.
			pxPerUnit := cam.Zoom() * FractionToUse * minDim
			tol := 0.5/pxPerUnit + 1e-9

			for i := 0; i <= 10; i++ {
				for j := 0; j <= 10; j++ {
					pt := Vec2{float64(i) / 10, float64(j) / 10}
					s, err := p.DataToScreen(pt, cam)
					if err != nil {
						t.Fatalf("DataToScreen: %v", err)
					}
					back, err := p.ScreenToData(s, cam)
					if err != nil {
						t.Fatalf("ScreenToData: %v", err)
					}
					if math.Abs(back[0]-pt[0]) > tol || math.Abs(back[1]-pt[1]) > tol {
						t.Fatalf("vp=%v zoom=%v: %v -> %v -> %v (tol %g)", vp, cam.Zoom(), pt, s, back, tol)
					}
				}
			}
		}
	}
}

func TestDataToScreen_Center(t *testing.T) {
	vp := Viewport{Width: 800, Height: 600}
	p, err := NewPipeline(vp)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	got, err := p.DataToScreen(Vec2{0.5, 0.5}, NewCamera())
	if err != nil {
		t.Fatalf("DataToScreen: %v", err)
	}
	if got != (Vec2{400, 300}) {
		t.Fatalf("center maps to %v, want [400 300]", got)
	}

	// Larger data y is higher on screen.
	top, _ := p.DataToScreen(Vec2{0.5, 1}, NewCamera())
	if top[1] >= got[1] {
		t.Fatalf("expected y=1 above center, got %v", top)
	}
}

func TestScreenToData_NotReady(t *testing.T) {
	if _, err := ScreenToData(1, 1, Viewport{}, NewCamera(), Identity(), ModelInverse()); !errors.Is(err, ErrViewportNotReady) {
		t.Fatalf("expected ErrViewportNotReady, got %v", err)
	}
	if _, err := DataToScreen(Vec2{}, Viewport{}, NewCamera(), Identity(), Model()); !errors.Is(err, ErrViewportNotReady) {
		t.Fatalf("expected ErrViewportNotReady, got %v", err)
	}
}

func TestRoundHalfUp(t *testing.T) {
	cases := map[float64]float64{
		0.5:  1,
		1.49: 1,
		-0.5: 0,
		-1.5: -1,
		2.51: 3,
	}
	for in, want := range cases {
		if got := roundHalfUp(in); got != want {
			t.Errorf("roundHalfUp(%v) = %v, want %v", in, got, want)
		}
	}
}
