package tui

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/thehyve/single-cell-explorer/internal/flags"
	"github.com/thehyve/single-cell-explorer/internal/render"
	"github.com/thehyve/single-cell-explorer/internal/selection"
	"github.com/thehyve/single-cell-explorer/internal/transform"
)

// Each terminal cell holds a 2x4 grid of braille dots.
const (
	dotsX = 2
	dotsY = 4
)

var dotBits = [dotsX][dotsY]uint8{
	{0x01, 0x02, 0x04, 0x40},
	{0x08, 0x10, 0x20, 0x80},
}

// Cell draw ranks; a cell shows the color of its highest-ranked point.
const (
	rankEmpty = iota
	rankUnselected
	rankSelected
	rankHighlight
)

type brailleCell struct {
	mask    uint8
	overlay uint8
	rank    int
	color   string
}

// BrailleSurface draws points as braille dots. Its pixel space is the dot
// grid: two dots per column and four per row.
type BrailleSurface struct {
	mu    sync.Mutex
	cols  int
	rows  int
	cells []brailleCell
}

// NewBrailleSurface returns a surface of cols x rows cells.
func NewBrailleSurface(cols, rows int) *BrailleSurface {
	s := &BrailleSurface{}
	s.resizeCells(cols, rows)
	return s
}

// Resize takes a size in dots, as handed to the graph viewport.
func (s *BrailleSurface) Resize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resizeCells(width/dotsX, height/dotsY)
}

func (s *BrailleSurface) resizeCells(cols, rows int) {
	if cols < 0 {
		cols = 0
	}
	if rows < 0 {
		rows = 0
	}
	s.cols, s.rows = cols, rows
	s.cells = make([]brailleCell, cols*rows)
}

// Ready reports whether the surface has any cells.
func (s *BrailleSurface) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cols > 0 && s.rows > 0
}

// NewBuffer returns an in-memory buffer.
func (s *BrailleSurface) NewBuffer() render.Buffer { return &render.MemBuffer{} }

// Clear empties every cell. Color and depth are ignored: the terminal
// background shows through.
func (s *BrailleSurface) Clear(rgba [4]float32, depth float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.cells {
		s.cells[i] = brailleCell{}
	}
}

// Draw sets one dot per point, and a 2x2 block for highlighted points.
func (s *BrailleSurface) Draw(p render.DrawParams) error {
	pos, ok1 := p.Position.(*render.MemBuffer)
	col, ok2 := p.Color.(*render.MemBuffer)
	flg, ok3 := p.Flag.(*render.MemBuffer)
	if !ok1 || !ok2 || !ok3 {
		return render.ErrForeignBuffer
	}
	positions, colors, pointFlags := pos.Data(), col.Data(), flg.Data()
	n := p.Count
	if len(positions) < 2*n || len(colors) < 3*n || len(pointFlags) < n {
		return fmt.Errorf("draw %d points: short buffers", n)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	w := float64(s.cols * dotsX)
	h := float64(s.rows * dotsY)
	for i := 0; i < n; i++ {
		selected, highlight, nan := flags.Decode(pointFlags[i])
		xy := p.ProjView.Apply(transform.Vec2{float64(positions[2*i]), float64(positions[2*i+1])})
		dx := int(math.Floor((xy[0] + 1) * w / 2))
		dy := int(math.Floor((1 - xy[1]) * h / 2))

		rank := rankUnselected
		switch {
		case highlight:
			rank = rankHighlight
		case selected:
			rank = rankSelected
		}
		color := hexColor(colors[3*i : 3*i+3])
		switch {
		case nan:
			color = nanHex
		case !selected:
			color = unselectedHex
		}

		s.setDot(dx, dy, rank, color)
		if highlight {
			s.setDot(dx+1, dy, rank, color)
			s.setDot(dx, dy+1, rank, color)
			s.setDot(dx+1, dy+1, rank, color)
		}
	}
	return nil
}

func (s *BrailleSurface) cell(dx, dy int) *brailleCell {
	if dx < 0 || dy < 0 {
		return nil
	}
	cx, cy := dx/dotsX, dy/dotsY
	if cx >= s.cols || cy >= s.rows {
		return nil
	}
	return &s.cells[cy*s.cols+cx]
}

func (s *BrailleSurface) setDot(dx, dy, rank int, color string) {
	c := s.cell(dx, dy)
	if c == nil {
		return
	}
	c.mask |= dotBits[dx%dotsX][dy%dotsY]
	if rank >= c.rank {
		c.rank = rank
		c.color = color
	}
}

// DrawOverlay traces the brush extent or the lasso outline.
func (s *BrailleSurface) DrawOverlay(o selection.Overlay) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case o.Extent != nil:
		tl, br := o.Extent[0], o.Extent[1]
		corners := []transform.Vec2{tl, {br[0], tl[1]}, br, {tl[0], br[1]}}
		s.tracePath(corners, true)
	case len(o.Path) > 1:
		s.tracePath(o.Path, false)
	case len(o.Polygon) > 2:
		s.tracePath(o.Polygon, true)
	}
}

func (s *BrailleSurface) tracePath(pts []transform.Vec2, closed bool) {
	for i := 1; i < len(pts); i++ {
		s.traceLine(pts[i-1], pts[i])
	}
	if closed {
		s.traceLine(pts[len(pts)-1], pts[0])
	}
}

// traceLine draws a line on the dot grid using Bresenham.
func (s *BrailleSurface) traceLine(a, b transform.Vec2) {
	x0, y0 := int(math.Floor(a[0])), int(math.Floor(a[1]))
	x1, y1 := int(math.Floor(b[0])), int(math.Floor(b[1]))
	dx := abs(x1 - x0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -abs(y1 - y0)
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		if c := s.cell(x0, y0); c != nil {
			c.overlay |= dotBits[x0%dotsX][y0%dotsY]
		}
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

// Lines renders the cells as styled rows of braille characters.
func (s *BrailleSurface) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, s.rows)
	for y := 0; y < s.rows; y++ {
		var sb strings.Builder
		var run strings.Builder
		runColor := ""
		flush := func() {
			if run.Len() == 0 {
				return
			}
			if runColor == "" {
				sb.WriteString(run.String())
			} else {
				sb.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(runColor)).Render(run.String()))
			}
			run.Reset()
		}
		for x := 0; x < s.cols; x++ {
			c := s.cells[y*s.cols+x]
			r, color := ' ', ""
			switch {
			case c.overlay != 0:
				r, color = rune(0x2800+int(c.mask|c.overlay)), overlayHex
			case c.mask != 0:
				r, color = rune(0x2800+int(c.mask)), c.color
			}
			if color != runColor {
				flush()
				runColor = color
			}
			run.WriteRune(r)
		}
		flush()
		out[y] = sb.String()
	}
	return out
}

// Dots returns the number of dots set, overlay excluded.
func (s *BrailleSurface) Dots() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.cells {
		for m := c.mask; m != 0; m &= m - 1 {
			n++
		}
	}
	return n
}

func hexColor(rgb []float32) string {
	return fmt.Sprintf("#%02x%02x%02x", channel(rgb[0]), channel(rgb[1]), channel(rgb[2]))
}

func channel(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(v*255 + 0.5)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
