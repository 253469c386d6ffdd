package domain

import (
	"reflect"
	"testing"
)

func TestIntersectIteratesSmallerSet(t *testing.T) {
	small := NewFeatureSet(2, 4, 6)
	large := NewFeatureSet(1, 2, 3, 4, 5, 7, 9, 11)

	got := small.Intersect(large)
	want := NewFeatureSet(2, 4)
	if !got.Equal(want) {
		t.Fatalf("Intersect = %v, want %v", got.Sorted(), want.Sorted())
	}

	// Order of operands must not matter.
	if !large.Intersect(small).Equal(want) {
		t.Fatalf("Intersect is not symmetric")
	}
}

func TestIntersectDisjoint(t *testing.T) {
	a := NewFeatureSet(1, 2)
	b := NewFeatureSet(3, 4)
	if got := a.Intersect(b); got.Len() != 0 {
		t.Fatalf("disjoint Intersect = %v, want empty", got.Sorted())
	}
}

func TestMinusAndUnion(t *testing.T) {
	a := NewFeatureSet(1, 2, 3, 4)
	b := NewFeatureSet(3, 4, 5)

	if got := a.Minus(b); !got.Equal(NewFeatureSet(1, 2)) {
		t.Fatalf("Minus = %v, want [1 2]", got.Sorted())
	}
	if got := a.Union(b); !got.Equal(NewFeatureSet(1, 2, 3, 4, 5)) {
		t.Fatalf("Union = %v, want [1 2 3 4 5]", got.Sorted())
	}
}

func TestCloneIsIndependent(t *testing.T) {
	a := NewFeatureSet(1, 2)
	b := a.Clone()
	b.Add(3)
	if a.Has(3) {
		t.Fatalf("mutating a clone leaked into the original")
	}
}

func TestSortedIsAscending(t *testing.T) {
	s := NewFeatureSet(9, 1, 5, 3)
	if got, want := s.Sorted(), []int{1, 3, 5, 9}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Sorted = %v, want %v", got, want)
	}
}

func TestPairKeyIsCanonical(t *testing.T) {
	if got := PairKey(7, 3); got != "3-7" {
		t.Fatalf("PairKey(7,3) = %q, want %q", got, "3-7")
	}
	if PairKey(3, 7) != PairKey(7, 3) {
		t.Fatalf("PairKey must be order-independent")
	}
}
