// Package selection turns pointer gestures into data-space selection
// shapes. It holds the brush and lasso state machines, the selector that
// switches between them, and the store that applies committed shapes to
// a crossfilter.
package selection

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/thehyve/single-cell-explorer/internal/transform"
)

// Shape is the active selection in data space: None, Rectangle or Polygon.
type Shape interface {
	Contains(x, y float64) bool
	Kind() string
	isShape()
}

// None selects everything.
type None struct{}

// Rectangle is an axis-aligned selection. Northwest holds (minX, maxY)
// and Southeast holds (maxX, minY).
type Rectangle struct {
	Northwest transform.Vec2 `json:"northwest"`
	Southeast transform.Vec2 `json:"southeast"`
}

// Polygon is a closed free-form selection.
type Polygon struct {
	Vertices []transform.Vec2 `json:"vertices"`
}

func (None) isShape()      {}
func (Rectangle) isShape() {}
func (Polygon) isShape()   {}

func (None) Kind() string      { return "none" }
func (Rectangle) Kind() string { return "rectangle" }
func (Polygon) Kind() string   { return "polygon" }

// Contains always reports true.
func (None) Contains(x, y float64) bool { return true }

// Contains reports whether (x, y) lies inside r, edges included.
func (r Rectangle) Contains(x, y float64) bool {
	return x >= r.Northwest[0] && x <= r.Southeast[0] &&
		y >= r.Southeast[1] && y <= r.Northwest[1]
}

// Contains reports whether (x, y) lies inside p using the even-odd rule.
func (p Polygon) Contains(x, y float64) bool {
	v := p.Vertices
	n := len(v)
	if n < 3 {
		return false
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := v[i][0], v[i][1]
		xj, yj := v[j][0], v[j][1]
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// Area returns the absolute planar area of a closed vertex ring.
func Area(vertices []transform.Vec2) float64 {
	n := len(vertices)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		a := vertices[i]
		b := vertices[(i+1)%n]
		sum += a[0]*b[1] - b[0]*a[1]
	}
	return math.Abs(sum) / 2
}

type shapeJSON struct {
	Type      string           `json:"type"`
	Northwest *transform.Vec2  `json:"northwest,omitempty"`
	Southeast *transform.Vec2  `json:"southeast,omitempty"`
	Vertices  []transform.Vec2 `json:"vertices,omitempty"`
}

// MarshalShape encodes a shape with a type tag.
func MarshalShape(s Shape) ([]byte, error) {
	switch s := s.(type) {
	case nil, None:
		return json.Marshal(shapeJSON{Type: "none"})
	case Rectangle:
		return json.Marshal(shapeJSON{Type: s.Kind(), Northwest: &s.Northwest, Southeast: &s.Southeast})
	case Polygon:
		return json.Marshal(shapeJSON{Type: s.Kind(), Vertices: s.Vertices})
	}
	return nil, fmt.Errorf("unknown shape %T", s)
}

// UnmarshalShape decodes the output of MarshalShape.
func UnmarshalShape(data []byte) (Shape, error) {
	var raw shapeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode shape: %w", err)
	}
	switch raw.Type {
	case "none", "":
		return None{}, nil
	case "rectangle":
		if raw.Northwest == nil || raw.Southeast == nil {
			return nil, fmt.Errorf("rectangle requires northwest and southeast")
		}
		return Rectangle{Northwest: *raw.Northwest, Southeast: *raw.Southeast}, nil
	case "polygon":
		if len(raw.Vertices) < 3 {
			return nil, fmt.Errorf("polygon requires at least 3 vertices, got %d", len(raw.Vertices))
		}
		return Polygon{Vertices: raw.Vertices}, nil
	}
	return nil, fmt.Errorf("unknown shape type %q", raw.Type)
}
