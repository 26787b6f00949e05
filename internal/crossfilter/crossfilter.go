// Package crossfilter tracks which cells are currently selected.
package crossfilter

// Region is a data-space area that can test point membership.
type Region interface {
	Contains(x, y float64) bool
}

// Crossfilter is the per-cell selection state. Every mutation bumps the
// generation counter, which render passes use to detect change.
type Crossfilter struct {
	selected   []bool
	count      int
	generation uint64
}

// New returns a crossfilter over n cells with everything selected.
func New(n int) *Crossfilter {
	cf := &Crossfilter{selected: make([]bool, n)}
	cf.SelectAll()
	return cf
}

// Size returns the number of cells.
func (cf *Crossfilter) Size() int { return len(cf.selected) }

// CountSelected returns the number of selected cells.
func (cf *Crossfilter) CountSelected() int { return cf.count }

// Generation returns a counter that changes whenever the selection does.
func (cf *Crossfilter) Generation() uint64 { return cf.generation }

// IsSelected reports whether cell i is selected.
func (cf *Crossfilter) IsSelected(i int) bool { return cf.selected[i] }

// FillByIsSelected writes selectedValue or unselectedValue for every
// cell into dst, allocating when dst is too short, and returns it.
func (cf *Crossfilter) FillByIsSelected(dst []float32, selectedValue, unselectedValue float32) []float32 {
	if len(dst) < len(cf.selected) {
		dst = make([]float32, len(cf.selected))
	}
	for i, sel := range cf.selected {
		if sel {
			dst[i] = selectedValue
		} else {
			dst[i] = unselectedValue
		}
	}
	return dst[:len(cf.selected)]
}

// SelectAll selects every cell.
func (cf *Crossfilter) SelectAll() {
	for i := range cf.selected {
		cf.selected[i] = true
	}
	cf.count = len(cf.selected)
	cf.generation++
}

// SelectWithin selects exactly the cells whose (x, y) lies in r.
func (cf *Crossfilter) SelectWithin(r Region, x, y []float32) {
	n := len(cf.selected)
	if len(x) < n {
		n = len(x)
	}
	if len(y) < n {
		n = len(y)
	}
	cf.count = 0
	for i := range cf.selected {
		sel := i < n && r.Contains(float64(x[i]), float64(y[i]))
		cf.selected[i] = sel
		if sel {
			cf.count++
		}
	}
	cf.generation++
}

// SelectedIndices returns the selected cells in ascending order.
func (cf *Crossfilter) SelectedIndices() []int {
	out := make([]int, 0, cf.count)
	for i, sel := range cf.selected {
		if sel {
			out = append(out, i)
		}
	}
	return out
}
