package lookup

import (
	"errors"
	"sort"
)

// Errors returned by lookup functions.
var (
	ErrNoData = errors.New("no data available")
)

// AsOfIndex returns, for every target timestamp, the index of the last
// source timestamp at or before it, or -1 when none precedes it.
// Both slices must be sorted ascending.
func AsOfIndex(targets, source []int64) []int {
	out := make([]int, len(targets))
	j := -1
	for i, t := range targets {
		for j+1 < len(source) && source[j+1] <= t {
			j++
		}
		out[i] = j
	}
	return out
}

// At returns the index of the closest timestamp at or before target.
// If no timestamp precedes target, returns the first index.
// Returns ErrNoData if the slice is empty.
func At(target int64, timestamps []int64) (int, error) {
	if len(timestamps) == 0 {
		return 0, ErrNoData
	}

	i := sort.Search(len(timestamps), func(k int) bool { return timestamps[k] > target })
	if i == 0 {
		return 0, nil
	}
	return i - 1, nil
}
