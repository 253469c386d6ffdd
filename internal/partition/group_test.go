package partition

import (
	"errors"
	"testing"

	"featlab/internal/domain"
	"featlab/internal/universe"
)

// testUniverse builds five features where feature 5 has no value for the
// "interp" metric and therefore never lands in a bin.
func testUniverse(t *testing.T) *universe.Universe {
	t.Helper()
	u := universe.New([]domain.Feature{
		{ID: 1, Label: "curly brace depth"},
		{ID: 2, Label: "python keywords"},
		{ID: 3, Label: "sentiment negation"},
		{ID: 4, Label: "url fragments"},
		{ID: 5, Label: "unscored"},
	})
	u.SetColumn("interp", map[int]float64{1: 0.1, 2: 0.2, 3: 0.6, 4: 0.9})
	return u
}

func TestBuildGroupsSingleThreshold(t *testing.T) {
	u := testUniverse(t)

	groups, err := BuildGroups(u, "interp", []float64{0.5})
	if err != nil {
		t.Fatalf("BuildGroups failed: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if !groups[0].Features.Equal(domain.NewFeatureSet(1, 2)) {
		t.Fatalf("low bin = %v, want [1 2]", groups[0].Features.Sorted())
	}
	if !groups[1].Features.Equal(domain.NewFeatureSet(3, 4)) {
		t.Fatalf("high bin = %v, want [3 4]", groups[1].Features.Sorted())
	}
}

func TestBuildGroupsExcludesMissingValues(t *testing.T) {
	u := testUniverse(t)

	groups, err := BuildGroups(u, "interp", []float64{0.5})
	if err != nil {
		t.Fatalf("BuildGroups failed: %v", err)
	}
	for _, g := range groups {
		if g.Features.Has(5) {
			t.Fatalf("feature 5 has no metric value but appears in bin %d", g.Index)
		}
	}
}

func TestBuildGroupsThresholdValueGoesUp(t *testing.T) {
	u := universe.New([]domain.Feature{{ID: 1}})
	u.SetColumn("m", map[int]float64{1: 0.5})

	groups, err := BuildGroups(u, "m", []float64{0.5})
	if err != nil {
		t.Fatalf("BuildGroups failed: %v", err)
	}
	// A value exactly on the threshold belongs to the upper bin.
	if !groups[1].Features.Has(1) {
		t.Fatalf("value equal to threshold landed in bin 0, want bin 1")
	}
}

func TestBuildGroupsNoThresholds(t *testing.T) {
	u := testUniverse(t)

	groups, err := BuildGroups(u, "interp", nil)
	if err != nil {
		t.Fatalf("BuildGroups failed: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}
	if groups[0].Label != "all" {
		t.Fatalf("label = %q, want %q", groups[0].Label, "all")
	}
	if groups[0].Features.Len() != 4 {
		t.Fatalf("got %d features, want 4 (feature 5 has no value)", groups[0].Features.Len())
	}
}

func TestBuildGroupsRejectsUnorderedThresholds(t *testing.T) {
	u := testUniverse(t)

	for _, thresholds := range [][]float64{
		{0.5, 0.3},
		{0.3, 0.3},
	} {
		_, err := BuildGroups(u, "interp", thresholds)
		if !errors.Is(err, domain.ErrInvalidThresholdOrder) {
			t.Fatalf("thresholds %v: err = %v, want ErrInvalidThresholdOrder", thresholds, err)
		}
	}
}

func TestBinLabels(t *testing.T) {
	thresholds := []float64{0.3, 0.6}
	tests := []struct {
		idx  int
		want string
	}{
		{0, "< 0.30"},
		{1, "0.30 – 0.60"},
		{2, "≥ 0.60"},
	}
	for _, tt := range tests {
		if got := binLabel(thresholds, tt.idx); got != tt.want {
			t.Fatalf("binLabel(%d) = %q, want %q", tt.idx, got, tt.want)
		}
	}
}
