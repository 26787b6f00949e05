package flags

import (
	"math"
	"testing"

	"github.com/thehyve/single-cell-explorer/internal/crossfilter"
	"github.com/thehyve/single-cell-explorer/internal/data/frame"
)

func TestCombinationsAreDistinct(t *testing.T) {
	seen := make(map[float32][3]bool)
	for mask := 0; mask < 8; mask++ {
		sel, hl, nan := mask&1 != 0, mask&2 != 0, mask&4 != 0
		var s, h, n float32
		if sel {
			s = FlagSelected
		}
		if hl {
			h = FlagHighlight
		}
		if nan {
			n = FlagBackground
		}
		sum := Combined([]float32{s}, []float32{h}, []float32{n})[0]
		if prev, ok := seen[sum]; ok {
			t.Fatalf("sum %v aliases %v and %v", sum, prev, [3]bool{sel, hl, nan})
		}
		seen[sum] = [3]bool{sel, hl, nan}

		gs, gh, gn := Decode(sum)
		if gs != sel || gh != hl || gn != nan {
			t.Errorf("Decode(%v) = %v %v %v, want %v %v %v", sum, gs, gh, gn, sel, hl, nan)
		}
	}
	if len(seen) != 8 {
		t.Fatalf("expected 8 distinct sums, got %d", len(seen))
	}
}

func TestSelectedFlags(t *testing.T) {
	got := SelectedFlags(4, func(i int) bool { return i%2 == 0 })
	want := []float32{FlagSelected, 0, FlagSelected, 0}
	assertFlags(t, got, want)

	cf := crossfilter.New(4)
	selectCells(cf, 1, 3)
	assertFlags(t, SelectedFlagsFrom(cf), []float32{0, FlagSelected, 0, FlagSelected})
}

func TestHighlightFlags(t *testing.T) {
	t.Run("nilColumn", func(t *testing.T) {
		assertFlags(t, HighlightFlags(3, nil, "B"), []float32{0, 0, 0})
	})

	t.Run("categorical", func(t *testing.T) {
		col := frame.NewCategorical("cell_type", []int32{0, 1, -1, 1}, []string{"T", "B"})
		assertFlags(t, HighlightFlags(4, col, "B"), []float32{0, FlagHighlight, 0, FlagHighlight})
		// Missing values never match, not even the empty label.
		assertFlags(t, HighlightFlags(4, col, ""), []float32{0, 0, 0, 0})
	})

	t.Run("numeric", func(t *testing.T) {
		col := frame.NewNumeric("n_genes", []float32{1.5, 2, 1.5})
		assertFlags(t, HighlightFlags(3, col, "1.5"), []float32{FlagHighlight, 0, FlagHighlight})
	})
}

func TestNaNFlags(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))
	ninf := float32(math.Inf(-1))

	col := frame.NewNumeric("score", []float32{1, nan, inf, ninf, 0})
	assertFlags(t, NaNFlags(5, col), []float32{0, FlagBackground, FlagBackground, FlagBackground, 0})

	assertFlags(t, NaNFlags(2, nil), []float32{0, 0})

	cat := frame.NewCategorical("louvain", []int32{-1, 0}, []string{"1"})
	assertFlags(t, NaNFlags(2, cat), []float32{0, 0})
}

func TestEncoder_Memoizes(t *testing.T) {
	enc, err := NewEncoder(4)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	cf := crossfilter.New(3)
	color := frame.NewNumeric("score", []float32{1, float32(math.NaN()), 3})
	highlight := frame.NewCategorical("cell_type", []int32{0, 0, 1}, []string{"T", "B"})

	in := Input{Points: 3, Generation: cf.Generation(), Color: color, Highlight: highlight, Label: "B"}
	a := enc.Flags(cf, in)
	b := enc.Flags(cf, in)
	if &a[0] != &b[0] {
		t.Fatal("expected identical slice for identical input")
	}
	assertFlags(t, a, []float32{FlagSelected, FlagSelected + FlagBackground, FlagSelected + FlagHighlight})

	selectCells(cf, 0)
	in.Generation = cf.Generation()
	c := enc.Flags(cf, in)
	if &a[0] == &c[0] {
		t.Fatal("expected a new slice after the selection changed")
	}
	assertFlags(t, c, []float32{FlagSelected, FlagBackground, FlagHighlight})
}

type cellSet map[int]bool

func (s cellSet) Contains(x, _ float64) bool { return s[int(x)] }

// selectCells selects exactly the given cells by placing cell i at x = i.
func selectCells(cf *crossfilter.Crossfilter, cells ...int) {
	set := make(cellSet, len(cells))
	for _, c := range cells {
		set[c] = true
	}
	x := make([]float32, cf.Size())
	for i := range x {
		x[i] = float32(i)
	}
	cf.SelectWithin(set, x, make([]float32, cf.Size()))
}

func assertFlags(t *testing.T, got, want []float32) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("flags[%d] = %v, want %v (got %v)", i, got[i], want[i], got)
		}
	}
}
