// Package collection builds the list a screen renders from the canonical
// server collection and the locally originated items that have not yet
// round-tripped through the server.
package collection

import (
	"sort"
	"time"
)

// Identifiable is anything with a stable id, unique within a collection.
type Identifiable interface {
	GetId() string
}

// IDSet is a membership set of item ids.
type IDSet map[string]struct{}

func NewIDSet[T Identifiable](items []T) IDSet {
	set := make(IDSet, len(items))
	for _, item := range items {
		set[item.GetId()] = struct{}{}
	}
	return set
}

func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Merge returns local (in the given order, most recent first) followed by
// canonical, keeping the first occurrence of every id so a local copy wins
// over the canonical copy of the same item. Inputs are never modified.
func Merge[T Identifiable](canonical, local []T) []T {
	merged := make([]T, 0, len(local)+len(canonical))
	seen := make(IDSet, len(local)+len(canonical))

	for _, source := range [2][]T{local, canonical} {
		for _, item := range source {
			id := item.GetId()
			if seen.Has(id) {
				continue
			}
			seen[id] = struct{}{}
			merged = append(merged, item)
		}
	}
	return merged
}

// IsLocallyOriginated is used for "new" badging only.
func IsLocallyOriginated[T Identifiable](item T, local IDSet) bool {
	return local.Has(item.GetId())
}

// AppendLocal adds incoming locally originated items to an existing local
// list. Items without an id are dropped, ids already present keep their
// existing copy, and the result is ordered newest first.
func AppendLocal[T Identifiable](existing, incoming []T, at func(T) time.Time) []T {
	out := make([]T, 0, len(existing)+len(incoming))
	seen := make(IDSet, len(existing)+len(incoming))

	for _, source := range [2][]T{existing, incoming} {
		for _, item := range source {
			id := item.GetId()
			if id == "" || seen.Has(id) {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, item)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return at(out[i]).After(at(out[j]))
	})
	return out
}
