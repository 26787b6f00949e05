// Package frame holds typed per-cell columns as returned by a data source.
package frame

import (
	"fmt"
	"math"
	"strconv"
)

// Kind is the storage type of a column.
type Kind int

const (
	KindNumeric Kind = iota
	KindCategorical
)

func (k Kind) String() string {
	if k == KindCategorical {
		return "categorical"
	}
	return "numeric"
}

// Column is one per-cell column. Numeric columns store float32 values;
// categorical columns store codes into Categories, with negative codes
// marking missing values.
type Column struct {
	Name       string
	Kind       Kind
	Numbers    []float32
	Codes      []int32
	Categories []string
}

// NewNumeric returns a numeric column.
func NewNumeric(name string, values []float32) *Column {
	return &Column{Name: name, Kind: KindNumeric, Numbers: values}
}

// NewCategorical returns a categorical column.
func NewCategorical(name string, codes []int32, categories []string) *Column {
	return &Column{Name: name, Kind: KindCategorical, Codes: codes, Categories: categories}
}

// Len returns the number of rows.
func (c *Column) Len() int {
	if c == nil {
		return 0
	}
	if c.Kind == KindCategorical {
		return len(c.Codes)
	}
	return len(c.Numbers)
}

// IsNumeric reports whether the column holds numbers.
func (c *Column) IsNumeric() bool {
	return c != nil && c.Kind == KindNumeric
}

// Label returns the category label of row i. ok is false for numeric
// columns and missing values.
func (c *Column) Label(i int) (string, bool) {
	if c == nil || c.Kind != KindCategorical {
		return "", false
	}
	code := c.Codes[i]
	if code < 0 || int(code) >= len(c.Categories) {
		return "", false
	}
	return c.Categories[code], true
}

// ValueString renders row i the way labels are written: the category
// label, or the shortest decimal form of a number.
func (c *Column) ValueString(i int) string {
	if c.Kind == KindCategorical {
		label, _ := c.Label(i)
		return label
	}
	return strconv.FormatFloat(float64(c.Numbers[i]), 'g', -1, 32)
}

// FiniteRange returns the min and max over finite numeric values. ok is
// false when there are none.
func (c *Column) FiniteRange() (lo, hi float32, ok bool) {
	if !c.IsNumeric() {
		return 0, 0, false
	}
	for _, v := range c.Numbers {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		if !ok {
			lo, hi, ok = v, v, true
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi, ok
}

// Frame is an ordered set of equal-length columns.
type Frame struct {
	columns []*Column
	index   map[string]int
}

// New builds a frame, rejecting columns of mismatched length or
// duplicate names.
func New(columns ...*Column) (*Frame, error) {
	f := &Frame{index: make(map[string]int, len(columns))}
	for i, c := range columns {
		if c == nil {
			return nil, fmt.Errorf("column %d is nil", i)
		}
		if _, dup := f.index[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		if i > 0 && c.Len() != columns[0].Len() {
			return nil, fmt.Errorf("column %q has %d rows, want %d", c.Name, c.Len(), columns[0].Len())
		}
		f.index[c.Name] = i
		f.columns = append(f.columns, c)
	}
	return f, nil
}

// Col returns the named column or nil.
func (f *Frame) Col(name string) *Column {
	if f == nil {
		return nil
	}
	i, ok := f.index[name]
	if !ok {
		return nil
	}
	return f.columns[i]
}

// ICol returns the i-th column or nil.
func (f *Frame) ICol(i int) *Column {
	if f == nil || i < 0 || i >= len(f.columns) {
		return nil
	}
	return f.columns[i]
}

// NumCols returns the number of columns.
func (f *Frame) NumCols() int {
	if f == nil {
		return 0
	}
	return len(f.columns)
}

// NumRows returns the number of rows.
func (f *Frame) NumRows() int {
	if f == nil || len(f.columns) == 0 {
		return 0
	}
	return f.columns[0].Len()
}

// Names returns the column names in order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.columns))
	for i, c := range f.columns {
		names[i] = c.Name
	}
	return names
}
