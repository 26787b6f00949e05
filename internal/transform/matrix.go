// Package transform implements the 2D coordinate pipeline that maps
// per-cell layout coordinates to screen pixels and back.
//
// Three transforms control all point painting:
//   - model: data space [0,1]² to the centered renderer space [-1,1]²
//   - view: the camera (pan and zoom)
//   - projection: viewport fit, accounting for the tool gutters
//
// Rendering composes projection·view·model; hit testing applies the
// inverses in the opposite order to normalized device coordinates.
package transform

import "math"

// Vec2 is a 2D point or vector.
type Vec2 [2]float64

// X returns the first component.
func (v Vec2) X() float64 { return v[0] }

// Y returns the second component.
func (v Vec2) Y() float64 { return v[1] }

// Mat3 is a 3x3 matrix stored in column-major order, the layout GPU
// uniforms expect:
//
//	| m[0] m[3] m[6] |
//	| m[1] m[4] m[7] |
//	| m[2] m[5] m[8] |
type Mat3 [9]float64

// Identity returns the identity matrix.
func Identity() Mat3 {
	return Mat3{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}
}

// FromTranslation returns a translation matrix.
func FromTranslation(v Vec2) Mat3 {
	return Mat3{
		1, 0, 0,
		0, 1, 0,
		v[0], v[1], 1,
	}
}

// FromScaling returns a scaling matrix.
func FromScaling(v Vec2) Mat3 {
	return Mat3{
		v[0], 0, 0,
		0, v[1], 0,
		0, 0, 1,
	}
}

// Multiply returns m·o.
func (m Mat3) Multiply(o Mat3) Mat3 {
	var out Mat3
	for col := 0; col < 3; col++ {
		for row := 0; row < 3; row++ {
			var sum float64
			for k := 0; k < 3; k++ {
				sum += m[k*3+row] * o[col*3+k]
			}
			out[col*3+row] = sum
		}
	}
	return out
}

// Translate returns m·T(v).
func (m Mat3) Translate(v Vec2) Mat3 {
	return m.Multiply(FromTranslation(v))
}

// Scale returns m·S(v).
func (m Mat3) Scale(v Vec2) Mat3 {
	return m.Multiply(FromScaling(v))
}

// Determinant returns the determinant of m.
func (m Mat3) Determinant() float64 {
	a00, a01, a02 := m[0], m[1], m[2]
	a10, a11, a12 := m[3], m[4], m[5]
	a20, a21, a22 := m[6], m[7], m[8]
	return a00*(a22*a11-a12*a21) +
		a01*(-a22*a10+a12*a20) +
		a02*(a21*a10-a11*a20)
}

// Invert returns the inverse of m. ok is false when m is singular.
func (m Mat3) Invert() (inv Mat3, ok bool) {
	a00, a01, a02 := m[0], m[1], m[2]
	a10, a11, a12 := m[3], m[4], m[5]
	a20, a21, a22 := m[6], m[7], m[8]

	b01 := a22*a11 - a12*a21
	b11 := -a22*a10 + a12*a20
	b21 := a21*a10 - a11*a20

	det := a00*b01 + a01*b11 + a02*b21
	if det == 0 || math.IsNaN(det) || math.IsInf(det, 0) {
		return Mat3{}, false
	}
	det = 1 / det

	inv[0] = b01 * det
	inv[1] = (-a22*a01 + a02*a21) * det
	inv[2] = (a12*a01 - a02*a11) * det
	inv[3] = b11 * det
	inv[4] = (a22*a00 - a02*a20) * det
	inv[5] = (-a12*a00 + a02*a10) * det
	inv[6] = b21 * det
	inv[7] = (-a21*a00 + a01*a20) * det
	inv[8] = (a11*a00 - a01*a10) * det
	return inv, true
}

// Apply transforms a point by m, treating it as (x, y, 1).
func (m Mat3) Apply(p Vec2) Vec2 {
	return Vec2{
		m[0]*p[0] + m[3]*p[1] + m[6],
		m[1]*p[0] + m[4]*p[1] + m[7],
	}
}

// ApplyLinear transforms a direction by the linear part of m only.
func (m Mat3) ApplyLinear(v Vec2) Vec2 {
	return Vec2{
		m[0]*v[0] + m[3]*v[1],
		m[1]*v[0] + m[4]*v[1],
	}
}

// Float32 returns m as a float32 array for upload as a shader uniform.
func (m Mat3) Float32() [9]float32 {
	var out [9]float32
	for i, v := range m {
		out[i] = float32(v)
	}
	return out
}

// ApproxEqual reports whether every element of m and o differs by at most eps.
func (m Mat3) ApproxEqual(o Mat3, eps float64) bool {
	for i := range m {
		if math.Abs(m[i]-o[i]) > eps {
			return false
		}
	}
	return true
}
