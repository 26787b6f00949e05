package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"sync"

	"github.com/fogleman/gg"
	"github.com/thehyve/single-cell-explorer/internal/flags"
	"github.com/thehyve/single-cell-explorer/internal/selection"
	"github.com/thehyve/single-cell-explorer/internal/transform"
)

// ErrForeignBuffer is returned when a draw call references buffers made
// by another surface.
var ErrForeignBuffer = errors.New("buffer not created by this surface")

var (
	unselectedRGB = [3]float64{0.85, 0.85, 0.85}
	nanRGB        = [3]float64{0.55, 0.55, 0.55}
)

// RasterSurface draws points into an in-memory image with fogleman/gg.
// It is safe for concurrent use.
type RasterSurface struct {
	mu         sync.Mutex
	width      int
	height     int
	pointScale float64
	dc         *gg.Context
	bufferPool sync.Pool
}

// NewRasterSurface returns a surface of the given size. pointScale
// multiplies the computed point radius; zero means 1.
func NewRasterSurface(width, height int, pointScale float64) *RasterSurface {
	if pointScale <= 0 {
		pointScale = 1
	}
	s := &RasterSurface{
		pointScale: pointScale,
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 64*1024))
			},
		},
	}
	s.Resize(width, height)
	return s
}

// Resize changes the surface size. A non-positive size leaves the surface
// not ready.
func (s *RasterSurface) Resize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if width == s.width && height == s.height && s.dc != nil {
		return
	}
	s.width, s.height = width, height
	s.dc = nil
	if width > 0 && height > 0 {
		s.dc = gg.NewContext(width, height)
	}
}

// Ready reports whether the surface has a size.
func (s *RasterSurface) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dc != nil
}

// NewBuffer returns an in-memory buffer.
func (s *RasterSurface) NewBuffer() Buffer { return &MemBuffer{} }

// Clear fills the surface with a color. Depth is ignored; points are
// ordered by flag instead.
func (s *RasterSurface) Clear(rgba [4]float32, depth float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dc == nil {
		return
	}
	s.dc.SetRGBA(float64(rgba[0]), float64(rgba[1]), float64(rgba[2]), float64(rgba[3]))
	s.dc.Clear()
}

// Draw paints the points. Unselected points go first, then selected,
// then highlighted, so that the interesting ones stay on top.
func (s *RasterSurface) Draw(p DrawParams) error {
	pos, ok1 := p.Position.(*MemBuffer)
	col, ok2 := p.Color.(*MemBuffer)
	flg, ok3 := p.Flag.(*MemBuffer)
	if !ok1 || !ok2 || !ok3 {
		return ErrForeignBuffer
	}
	n := p.Count
	if len(pos.data) < 2*n || len(col.data) < 3*n || len(flg.data) < n {
		return fmt.Errorf("draw %d points: buffers hold %d positions, %d colors, %d flags",
			n, len(pos.data)/2, len(col.data)/3, len(flg.data))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dc == nil {
		return nil
	}
	w := float64(s.width)
	h := float64(s.height)
	radius := s.pointScale * pointRadius(n, p.MinViewportDimension, p.Distance)

	for pass := 0; pass < 3; pass++ {
		for i := 0; i < n; i++ {
			selected, highlight, nan := flags.Decode(flg.data[i])
			switch {
			case pass == 0 && (selected || highlight):
				continue
			case pass == 1 && (!selected || highlight):
				continue
			case pass == 2 && !highlight:
				continue
			}

			xy := p.ProjView.Apply([2]float64{float64(pos.data[2*i]), float64(pos.data[2*i+1])})
			px := (xy[0] + 1) * w / 2
			py := (1 - xy[1]) * h / 2
			r := radius
			if highlight {
				r *= 2
			}
			if px < -r || px > w+r || py < -r || py > h+r {
				continue
			}

			rgb := [3]float64{float64(col.data[3*i]), float64(col.data[3*i+1]), float64(col.data[3*i+2])}
			switch {
			case nan:
				rgb = nanRGB
			case !selected:
				rgb = unselectedRGB
			}
			s.dc.SetRGB(rgb[0], rgb[1], rgb[2])
			s.dc.DrawCircle(px, py, r)
			s.dc.Fill()
		}
	}
	return nil
}

// DrawOverlay strokes the brush extent or the lasso outline over the
// points. Coordinates are screen pixels.
func (s *RasterSurface) DrawOverlay(o selection.Overlay) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dc == nil {
		return
	}
	s.dc.SetRGBA(0.2, 0.2, 0.2, 0.9)
	s.dc.SetLineWidth(1)
	switch {
	case o.Extent != nil:
		tl, br := o.Extent[0], o.Extent[1]
		s.dc.DrawRectangle(tl[0], tl[1], br[0]-tl[0], br[1]-tl[1])
		s.dc.Stroke()
	case len(o.Path) > 1:
		strokePath(s.dc, o.Path, false)
	case len(o.Polygon) > 2:
		strokePath(s.dc, o.Polygon, true)
	}
}

func strokePath(dc *gg.Context, pts []transform.Vec2, closed bool) {
	dc.MoveTo(pts[0][0], pts[0][1])
	for _, p := range pts[1:] {
		dc.LineTo(p[0], p[1])
	}
	if closed {
		dc.ClosePath()
	}
	dc.Stroke()
}

// Image returns a copy of the current frame.
func (s *RasterSurface) Image() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dc == nil {
		return nil
	}
	src := s.dc.Image()
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.(*image.RGBA).Pix)
	return dst
}

// PNG encodes the current frame.
func (s *RasterSurface) PNG() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dc == nil {
		return nil, errors.New("surface not ready")
	}
	return s.encodeContext(s.dc)
}

func (s *RasterSurface) encodeContext(dc *gg.Context) ([]byte, error) {
	buf := s.bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		s.bufferPool.Put(buf)
	}()

	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(buf, dc.Image()); err != nil {
		return nil, err
	}

	// Copy buffer contents (buffer will be reused)
	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}

// pointRadius shrinks points as the cloud grows and grows them as the
// camera zooms in.
func pointRadius(n, minViewportDimension int, distance float64) float64 {
	if distance <= 0 {
		distance = 1
	}
	density := math.Log10(float64(n) + 10)
	base := float64(minViewportDimension) / (150 * density)
	base = math.Max(0.5, math.Min(base, 4))
	return base / math.Sqrt(distance)
}
