package crossfilter

import (
	"reflect"
	"testing"
)

type halfPlane struct{ minX float64 }

func (h halfPlane) Contains(x, _ float64) bool { return x >= h.minX }

func TestCrossfilter(t *testing.T) {
	cf := New(4)
	if cf.Size() != 4 || cf.CountSelected() != 4 {
		t.Fatalf("expected all 4 selected, got %d/%d", cf.CountSelected(), cf.Size())
	}
	gen := cf.Generation()

	x := []float32{0.1, 0.6, 0.4, 0.9}
	y := []float32{0, 0, 0, 0}
	cf.SelectWithin(halfPlane{minX: 0.5}, x, y)
	if cf.CountSelected() != 2 {
		t.Fatalf("expected 2 selected, got %d", cf.CountSelected())
	}
	if cf.Generation() == gen {
		t.Fatal("expected generation to change")
	}
	if got := cf.SelectedIndices(); !reflect.DeepEqual(got, []int{1, 3}) {
		t.Fatalf("SelectedIndices = %v", got)
	}

	got := cf.FillByIsSelected(nil, 1, 0)
	if !reflect.DeepEqual(got, []float32{0, 1, 0, 1}) {
		t.Fatalf("FillByIsSelected = %v", got)
	}

	// Cells past the end of short coordinate slices are never selected.
	cf.SelectWithin(halfPlane{minX: 0}, x[:1], y)
	if cf.CountSelected() != 1 || !cf.IsSelected(0) {
		t.Fatalf("short coordinates: count=%d", cf.CountSelected())
	}

	cf.SelectAll()
	if cf.CountSelected() != 4 {
		t.Fatalf("SelectAll: count=%d", cf.CountSelected())
	}
}
