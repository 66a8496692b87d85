package collection

import (
	"sort"
	"time"
)

// Filters and sorts below run on the merged sequence only, so every
// predicate sees the same unified view. All of them return a new slice.

func Filter[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// FieldEquals builds a predicate matching items whose field equals want.
func FieldEquals[T any, V comparable](field func(T) V, want V) func(T) bool {
	return func(item T) bool {
		return field(item) == want
	}
}

// SortByRecency orders newest first. Ties keep their merged order.
func SortByRecency[T any](items []T, at func(T) time.Time) []T {
	out := append([]T(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		return at(out[i]).After(at(out[j]))
	})
	return out
}

// SortByScore orders highest score first. Ties keep their merged order.
func SortByScore[T any](items []T, score func(T) float64) []T {
	out := append([]T(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		return score(out[i]) > score(out[j])
	})
	return out
}
