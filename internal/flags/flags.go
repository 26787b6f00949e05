// Package flags computes the per-point render flags.
//
// Each point carries one float32 that is the sum of three independent
// contributions. The contributions are distinct powers of two, so each of
// the eight on/off combinations sums to a different value and the
// renderer can decode them by threshold.
package flags

import (
	"math"

	"github.com/thehyve/single-cell-explorer/internal/cache"
	"github.com/thehyve/single-cell-explorer/internal/data/frame"
)

const (
	FlagSelected   float32 = 1
	FlagBackground float32 = 2 // not-a-number color value
	FlagHighlight  float32 = 4
)

// Selectable is the part of a crossfilter the encoder needs.
type Selectable interface {
	Size() int
	FillByIsSelected(dst []float32, selectedValue, unselectedValue float32) []float32
}

// SelectedFlags returns FlagSelected for every index isSelected accepts.
func SelectedFlags(n int, isSelected func(int) bool) []float32 {
	out := make([]float32, n)
	for i := range out {
		if isSelected(i) {
			out[i] = FlagSelected
		}
	}
	return out
}

// SelectedFlagsFrom fills selection flags from a crossfilter.
func SelectedFlagsFrom(cf Selectable) []float32 {
	return cf.FillByIsSelected(make([]float32, cf.Size()), FlagSelected, 0)
}

// HighlightFlags returns FlagHighlight where col equals label. A nil
// column highlights nothing. Missing categorical values never match.
func HighlightFlags(n int, col *frame.Column, label string) []float32 {
	out := make([]float32, n)
	if col == nil {
		return out
	}
	m := min(n, col.Len())
	if col.IsNumeric() {
		for i := 0; i < m; i++ {
			if col.ValueString(i) == label {
				out[i] = FlagHighlight
			}
		}
		return out
	}
	for i := 0; i < m; i++ {
		if v, ok := col.Label(i); ok && v == label {
			out[i] = FlagHighlight
		}
	}
	return out
}

// NaNFlags returns FlagBackground where a numeric color value is NaN or
// infinite. Categorical columns never set the flag.
func NaNFlags(n int, col *frame.Column) []float32 {
	out := make([]float32, n)
	if !col.IsNumeric() {
		return out
	}
	m := min(n, col.Len())
	for i := 0; i < m; i++ {
		v := float64(col.Numbers[i])
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out[i] = FlagBackground
		}
	}
	return out
}

// Combined returns the element-wise sum of the flag vectors.
func Combined(selected, highlight, nan []float32) []float32 {
	out := make([]float32, len(selected))
	for i := range out {
		out[i] = selected[i]
		if i < len(highlight) {
			out[i] += highlight[i]
		}
		if i < len(nan) {
			out[i] += nan[i]
		}
	}
	return out
}

// Decode splits a combined flag value back into its contributions.
func Decode(f float32) (selected, highlight, nan bool) {
	if f >= FlagHighlight {
		highlight = true
		f -= FlagHighlight
	}
	if f >= FlagBackground {
		nan = true
		f -= FlagBackground
	}
	selected = f >= FlagSelected
	return selected, highlight, nan
}

// Input identifies one flag computation. Columns are compared by
// identity; data sources return a new column whenever contents change.
type Input struct {
	Points     int
	Generation uint64
	Color      *frame.Column
	Highlight  *frame.Column
	Label      string
}

// Encoder memoizes flag vectors by Input so that an unchanged input
// yields the very same slice.
type Encoder struct {
	memo *cache.Memo[Input, []float32]
}

// NewEncoder returns an encoder remembering up to size results.
func NewEncoder(size int) (*Encoder, error) {
	memo, err := cache.NewMemo[Input, []float32](size)
	if err != nil {
		return nil, err
	}
	return &Encoder{memo: memo}, nil
}

// Flags returns the combined flags for in. cf must reflect in.Generation.
func (e *Encoder) Flags(cf Selectable, in Input) []float32 {
	return e.memo.Get(in, func() []float32 {
		n := in.Points
		var selected []float32
		if cf != nil && cf.Size() == n {
			selected = SelectedFlagsFrom(cf)
		} else {
			selected = SelectedFlags(n, func(int) bool { return true })
		}
		return Combined(selected, HighlightFlags(n, in.Highlight, in.Label), NaNFlags(n, in.Color))
	})
}
