// Package render decides when point buffers are uploaded and the canvas
// redrawn, and provides a software surface built on fogleman/gg.
package render

import (
	"github.com/thehyve/single-cell-explorer/internal/transform"
)

// Buffer is a per-point attribute buffer held by a Surface.
type Buffer interface {
	// Upload replaces the buffer contents. dimension is the number of
	// floats per point.
	Upload(data []float32, dimension int)
}

// Surface is a drawing target for the point cloud.
type Surface interface {
	// Ready reports whether the surface exists and has a size.
	Ready() bool
	NewBuffer() Buffer
	Clear(rgba [4]float32, depth float64)
	Draw(p DrawParams) error
}

// DrawParams parameterizes one draw call.
type DrawParams struct {
	Position Buffer
	Color    Buffer
	Flag     Buffer
	Count    int
	// ProjView maps model-space positions to device coordinates.
	ProjView             transform.Mat3
	MinViewportDimension int
	// Distance is the reciprocal camera zoom.
	Distance float64
}

// MemBuffer keeps uploaded data in memory.
type MemBuffer struct {
	data      []float32
	dimension int
	uploads   int
}

// Upload replaces the buffer contents.
func (b *MemBuffer) Upload(data []float32, dimension int) {
	b.data = data
	b.dimension = dimension
	b.uploads++
}

// Data returns the uploaded values.
func (b *MemBuffer) Data() []float32 { return b.data }

// Dimension returns the number of floats per point.
func (b *MemBuffer) Dimension() int { return b.dimension }

// Uploads returns how many times the buffer was uploaded.
func (b *MemBuffer) Uploads() int { return b.uploads }
