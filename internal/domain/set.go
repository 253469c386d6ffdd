package domain

import "sort"

// FeatureSet is a set of feature ids.
type FeatureSet map[int]struct{}

func NewFeatureSet(ids ...int) FeatureSet {
	s := make(FeatureSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s FeatureSet) Add(id int)      { s[id] = struct{}{} }
func (s FeatureSet) Has(id int) bool { _, ok := s[id]; return ok }
func (s FeatureSet) Len() int        { return len(s) }

func (s FeatureSet) Clone() FeatureSet {
	out := make(FeatureSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Intersect iterates the smaller set and probes the larger, so the cost is
// bounded by the smaller set's size.
func (s FeatureSet) Intersect(other FeatureSet) FeatureSet {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	out := make(FeatureSet)
	for id := range small {
		if _, ok := large[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}

func (s FeatureSet) Union(other FeatureSet) FeatureSet {
	out := make(FeatureSet, len(s)+len(other))
	for id := range s {
		out[id] = struct{}{}
	}
	for id := range other {
		out[id] = struct{}{}
	}
	return out
}

// Minus returns the members of s not present in other.
func (s FeatureSet) Minus(other FeatureSet) FeatureSet {
	out := make(FeatureSet)
	for id := range s {
		if _, ok := other[id]; !ok {
			out[id] = struct{}{}
		}
	}
	return out
}

func (s FeatureSet) Equal(other FeatureSet) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if _, ok := other[id]; !ok {
			return false
		}
	}
	return true
}

// Sorted returns the member ids in ascending order. Every place that needs
// a stable iteration order (labels, signatures, shuffles) goes through here
// so unordered map iteration never leaks into output.
func (s FeatureSet) Sorted() []int {
	ids := make([]int, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
