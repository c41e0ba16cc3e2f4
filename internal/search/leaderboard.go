package search

import (
	"errors"
	"sort"

	"formula-lab/internal/domain"
	"formula-lab/internal/storage"
)

// Rank sorts results by score descending. Equal scores keep their input order.
func Rank(results []*domain.TrialResult) []*domain.TrialResult {
	out := make([]*domain.TrialResult, len(results))
	copy(out, results)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Top returns at most n results from an already ranked slice.
func Top(ranked []*domain.TrialResult, n int) []*domain.TrialResult {
	if n < 0 || n >= len(ranked) {
		return ranked
	}
	return ranked[:n]
}

// MergeLeaderboard merges result sets keyed by (formula_id, params_hash).
// For duplicate keys the higher score wins and fine_tune wins ties. The
// merged board is ranked and truncated to size.
func MergeLeaderboard(size int, sets ...[]*domain.TrialResult) []*domain.TrialResult {
	byKey := make(map[string]*domain.TrialResult)
	var order []string
	for _, set := range sets {
		for _, r := range set {
			if r == nil {
				continue
			}
			k := r.Key()
			cur, ok := byKey[k]
			if !ok {
				byKey[k] = r
				order = append(order, k)
				continue
			}
			if r.Score > cur.Score || (r.Score == cur.Score && r.Origin == domain.OriginFineTune && cur.Origin != domain.OriginFineTune) {
				byKey[k] = r
			}
		}
	}

	merged := make([]*domain.TrialResult, 0, len(order))
	for _, k := range order {
		merged = append(merged, byKey[k])
	}
	return Top(Rank(merged), size)
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
