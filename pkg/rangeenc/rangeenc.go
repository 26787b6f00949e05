// Package rangeenc packs index lists into the compact "range" form used
// to transmit selections: runs of consecutive indices become [min, max]
// pairs, everything else is sent as bare indices.
//
//	[1, 2, 3, 4, 10, 11, 14] -> [[1, 4], [10, 11], 14]   (minRunLength 2)
//	[1, 2, 3, 4, 10, 11, 14] -> [[1, 4], 10, 11, 14]     (minRunLength 3)
//	[5, 7, 8]                -> [[5, 5], [7, 8]]         (minRunLength 1)
package rangeenc

import (
	"encoding/json"
	"fmt"
	"sort"
)

// DefaultMinRunLength is the shortest run encoded as a range.
const DefaultMinRunLength = 3

// Entry is either a single index or a closed run [Min, Max]. A run may
// cover one index when the minimum run length is 1.
type Entry struct {
	Min int
	Max int

	run bool
}

// Single returns an entry for one index.
func Single(i int) Entry { return Entry{Min: i, Max: i} }

// Run returns an entry for the closed interval [lo, hi].
func Run(lo, hi int) Entry { return Entry{Min: lo, Max: hi, run: true} }

// IsRange reports whether the entry is a run rather than a bare index.
func (e Entry) IsRange() bool { return e.run }

// Len returns the number of indices the entry covers.
func (e Entry) Len() int { return e.Max - e.Min + 1 }

// MarshalJSON renders a single index as a number and a run as [min, max].
func (e Entry) MarshalJSON() ([]byte, error) {
	if !e.IsRange() {
		return json.Marshal(e.Min)
	}
	return json.Marshal([2]int{e.Min, e.Max})
}

// UnmarshalJSON accepts either a number or a two-element array.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*e = Single(n)
		return nil
	}
	var pair [2]int
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("range entry must be an index or [min, max]: %w", err)
	}
	if pair[1] < pair[0] {
		return fmt.Errorf("invalid range [%d, %d]", pair[0], pair[1])
	}
	*e = Run(pair[0], pair[1])
	return nil
}

// Encode packs indices. Values must be unique and non-negative; they need
// not be sorted unless sorted is true, in which case the input is trusted
// to be ascending. The input slice is never modified.
func Encode(indices []int, minRunLength int, sorted bool) []Entry {
	if len(indices) == 0 {
		return []Entry{}
	}
	if minRunLength < 1 {
		minRunLength = 1
	}
	if !sorted {
		indices = append([]int(nil), indices...)
		sort.Ints(indices)
	}

	result := make([]Entry, 0, len(indices))
	i := 0
	for i < len(indices) {
		begin := indices[i]
		current := begin
		i++
		for i < len(indices) && indices[i] == current+1 {
			current = indices[i]
			i++
		}

		if current-begin+1 >= minRunLength {
			result = append(result, Run(begin, current))
			continue
		}
		for j := begin; j <= current; j++ {
			result = append(result, Single(j))
		}
	}
	return result
}

// Decode expands entries back into ascending indices.
func Decode(entries []Entry) []int {
	n := 0
	for _, e := range entries {
		n += e.Len()
	}
	out := make([]int, 0, n)
	for _, e := range entries {
		for j := e.Min; j <= e.Max; j++ {
			out = append(out, j)
		}
	}
	return out
}
