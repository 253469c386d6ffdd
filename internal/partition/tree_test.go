package partition

import (
	"errors"
	"testing"

	"featlab/internal/domain"
	"featlab/internal/universe"
)

// twoStageUniverse has a density metric splitting {1,2,3} from {4,5,6} and
// an interp metric splitting odd from even ids inside each half.
func twoStageUniverse(t *testing.T) *universe.Universe {
	t.Helper()
	u := universe.New([]domain.Feature{
		{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}, {ID: 5}, {ID: 6},
	})
	u.SetColumn("density", map[int]float64{1: 0.01, 2: 0.02, 3: 0.03, 4: 0.9, 5: 0.8, 6: 0.7})
	u.SetColumn("interp", map[int]float64{1: 0.9, 2: 0.1, 3: 0.9, 4: 0.1, 5: 0.9, 6: 0.1})
	return u
}

func twoStages() []domain.StageDefinition {
	return []domain.StageDefinition{
		{Metric: "density", Thresholds: []float64{0.5}},
		{Metric: "interp", Thresholds: []float64{0.5}},
	}
}

func TestBuildTwoStageTree(t *testing.T) {
	u := twoStageUniverse(t)
	tree, err := Build(u, twoStages(), u.IDs())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// root + 2 density bins + 2 interp bins under each.
	if got, want := len(tree.Nodes), 7; got != want {
		t.Fatalf("got %d nodes, want %d", got, want)
	}
	if tree.SingleNode {
		t.Fatalf("SingleNode set on a split tree")
	}
	if tree.TruncatedAt != -1 {
		t.Fatalf("TruncatedAt = %d, want -1", tree.TruncatedAt)
	}

	low, err := tree.Node("root/s0b0")
	if err != nil {
		t.Fatalf("low-density node missing: %v", err)
	}
	if !low.Features.Equal(domain.NewFeatureSet(1, 2, 3)) {
		t.Fatalf("low-density node = %v, want [1 2 3]", low.Features.Sorted())
	}

	lowHighInterp, err := tree.Node("root/s0b0/s1b1")
	if err != nil {
		t.Fatalf("nested node missing: %v", err)
	}
	if !lowHighInterp.Features.Equal(domain.NewFeatureSet(1, 3)) {
		t.Fatalf("nested node = %v, want [1 3]", lowHighInterp.Features.Sorted())
	}
}

func TestBuildChildrenPartitionTheParent(t *testing.T) {
	u := twoStageUniverse(t)
	tree, err := Build(u, twoStages(), u.IDs())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	for id, node := range tree.Nodes {
		if len(node.Children) == 0 {
			continue
		}
		union := make(domain.FeatureSet)
		for _, cid := range node.Children {
			child := tree.Nodes[cid]
			for fid := range child.Features {
				if union.Has(fid) {
					t.Fatalf("feature %d appears in two children of %s", fid, id)
				}
				union.Add(fid)
			}
			// Subset invariant: every child is contained in its parent.
			for fid := range child.Features {
				if !node.Features.Has(fid) {
					t.Fatalf("child %s contains %d not in parent %s", cid, fid, id)
				}
			}
		}
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	u := twoStageUniverse(t)

	a, err := Build(u, twoStages(), u.IDs())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	b, err := Build(u, twoStages(), u.IDs())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(a.Nodes) != len(b.Nodes) {
		t.Fatalf("node counts differ: %d vs %d", len(a.Nodes), len(b.Nodes))
	}
	for id, na := range a.Nodes {
		nb, ok := b.Nodes[id]
		if !ok {
			t.Fatalf("node %s missing from second build", id)
		}
		if !na.Features.Equal(nb.Features) {
			t.Fatalf("node %s features differ between builds", id)
		}
	}
}

func TestBuildPrunesEmptyBranches(t *testing.T) {
	u := universe.New([]domain.Feature{{ID: 1}, {ID: 2}})
	u.SetColumn("m", map[int]float64{1: 0.1, 2: 0.2})

	tree, err := Build(u, []domain.StageDefinition{{Metric: "m", Thresholds: []float64{0.5}}}, u.IDs())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	// Both features fall below the threshold; the upper bin must not exist.
	if _, err := tree.Node("root/s0b1"); !errors.Is(err, domain.ErrNodeNotFound) {
		t.Fatalf("empty bin was materialized, err = %v", err)
	}
	if _, err := tree.Node("root/s0b0"); err != nil {
		t.Fatalf("populated bin missing: %v", err)
	}
}

func TestBuildStopsOnEmptyLevel(t *testing.T) {
	u := universe.New([]domain.Feature{{ID: 1}, {ID: 2}})
	u.SetColumn("known", map[int]float64{1: 0.1, 2: 0.9})
	// No feature has a value for "ghost", so the second level is empty.

	stages := []domain.StageDefinition{
		{Metric: "ghost", Thresholds: []float64{0.5}},
		{Metric: "known", Thresholds: []float64{0.5}},
	}
	tree, err := Build(u, stages, u.IDs())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if tree.TruncatedAt != 0 {
		t.Fatalf("TruncatedAt = %d, want 0", tree.TruncatedAt)
	}
	if len(tree.Nodes) != 1 {
		t.Fatalf("got %d nodes, want root only", len(tree.Nodes))
	}
	if !tree.SingleNode {
		t.Fatalf("SingleNode not set on a root-only tree")
	}
}

func TestBuildNoStages(t *testing.T) {
	u := twoStageUniverse(t)
	tree, err := Build(u, nil, u.IDs())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !tree.SingleNode {
		t.Fatalf("SingleNode not set with zero stages")
	}
	if tree.Root.Features.Len() != 6 {
		t.Fatalf("root features = %d, want 6", tree.Root.Features.Len())
	}
}

func TestBuildValidatesAllStagesUpFront(t *testing.T) {
	u := twoStageUniverse(t)
	stages := []domain.StageDefinition{
		{Metric: "density", Thresholds: []float64{0.5}},
		{Metric: "interp", Thresholds: []float64{0.9, 0.1}},
	}
	if _, err := Build(u, stages, u.IDs()); !errors.Is(err, domain.ErrInvalidThresholdOrder) {
		t.Fatalf("err = %v, want ErrInvalidThresholdOrder", err)
	}
}

func TestSegmentFeatures(t *testing.T) {
	u := twoStageUniverse(t)
	tree, err := Build(u, twoStages(), u.IDs())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// A split node's segment is the union of its children.
	set, err := tree.SegmentFeatures("root/s0b0")
	if err != nil {
		t.Fatalf("SegmentFeatures failed: %v", err)
	}
	if !set.Equal(domain.NewFeatureSet(1, 2, 3)) {
		t.Fatalf("split segment = %v, want [1 2 3]", set.Sorted())
	}

	// A leaf's segment is its own set.
	set, err = tree.SegmentFeatures("root/s0b0/s1b1")
	if err != nil {
		t.Fatalf("SegmentFeatures failed: %v", err)
	}
	if !set.Equal(domain.NewFeatureSet(1, 3)) {
		t.Fatalf("leaf segment = %v, want [1 3]", set.Sorted())
	}

	if _, err := tree.SegmentFeatures("root/s9b9"); !errors.Is(err, domain.ErrNodeNotFound) {
		t.Fatalf("err = %v, want ErrNodeNotFound", err)
	}
}

func TestLeavesAreDeterministic(t *testing.T) {
	u := twoStageUniverse(t)
	tree, err := Build(u, twoStages(), u.IDs())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	first := tree.Leaves()
	if len(first) != 4 {
		t.Fatalf("got %d leaves, want 4", len(first))
	}
	for i := 0; i < 10; i++ {
		again := tree.Leaves()
		for j := range first {
			if first[j] != again[j] {
				t.Fatalf("leaf order changed between calls: %v vs %v", first, again)
			}
		}
	}
}
