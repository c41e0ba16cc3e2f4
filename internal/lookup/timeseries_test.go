package lookup

import (
	"testing"
)

func TestAt_EmptySlice(t *testing.T) {
	_, err := At(1000, nil)
	if err != ErrNoData {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestAt_ExactMatch(t *testing.T) {
	ts := []int64{1000, 2000, 3000}

	i, err := At(2000, ts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if i != 1 {
		t.Errorf("expected index 1, got %d", i)
	}
}

func TestAt_BeforeTarget(t *testing.T) {
	ts := []int64{1000, 2000, 3000}

	// Target 2500 should resolve to 2000
	i, _ := At(2500, ts)
	if i != 1 {
		t.Errorf("expected index 1, got %d", i)
	}
}

func TestAt_BeforeFirst(t *testing.T) {
	ts := []int64{1000, 2000}

	// No timestamp before target, use first available
	i, _ := At(500, ts)
	if i != 0 {
		t.Errorf("expected index 0, got %d", i)
	}
}

func TestAsOfIndex(t *testing.T) {
	targets := []int64{0, 60, 120, 180, 240, 300}
	source := []int64{60, 200, 240}

	got := AsOfIndex(targets, source)
	want := []int{-1, 0, 0, 0, 2, 2}

	for i := range want {
		if got[i] != want[i] {
			t.Errorf("target %d: expected %d, got %d", targets[i], want[i], got[i])
		}
	}
}

func TestAsOfIndex_EmptySource(t *testing.T) {
	got := AsOfIndex([]int64{1, 2}, nil)
	if got[0] != -1 || got[1] != -1 {
		t.Errorf("expected all -1, got %v", got)
	}
}
