package render

import (
	"github.com/thehyve/single-cell-explorer/internal/data/frame"
	"github.com/thehyve/single-cell-explorer/pkg/colormap"
)

// ColorTable returns three floats per point coloring n points by col.
// Numeric columns use scale over their finite range, categorical columns
// use the categorical palette, and a nil column paints everything in the
// default color. Missing and non-finite values get the default color.
func ColorTable(n int, col *frame.Column, scale colormap.Colormap) []float32 {
	out := make([]float32, 3*n)
	def := colormap.RGB(colormap.Default)
	for i := 0; i < n; i++ {
		copy(out[3*i:], def[:])
	}
	if col == nil {
		return out
	}
	if scale == nil {
		scale = colormap.Viridis
	}
	m := min(n, col.Len())

	if col.IsNumeric() {
		lo, hi, ok := col.FiniteRange()
		if !ok {
			return out
		}
		span := float64(hi - lo)
		for i := 0; i < m; i++ {
			v := float64(col.Numbers[i])
			if v != v || v < float64(lo) || v > float64(hi) {
				continue
			}
			t := 0.5
			if span > 0 {
				t = (v - float64(lo)) / span
			}
			rgb := colormap.RGB(scale.At(t))
			copy(out[3*i:], rgb[:])
		}
		return out
	}

	for i := 0; i < m; i++ {
		code := col.Codes[i]
		if code < 0 {
			continue
		}
		rgb := colormap.RGB(colormap.Categorical.AtIndex(int(code)))
		copy(out[3*i:], rgb[:])
	}
	return out
}
