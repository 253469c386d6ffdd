package partition

import (
	"fmt"
	"log"

	"featlab/internal/domain"
	"featlab/internal/universe"
)

// Node is one segment of the partition tree. Metric and Thresholds describe
// how this node's children are cut (empty for nodes past the last stage);
// RangeLabel and BinIndex describe the bin the node itself sits in.
type Node struct {
	ID         string
	ParentID   string
	Metric     string
	Thresholds []float64
	Depth      int
	BinIndex   int
	RangeLabel string
	Children   []string
	Features   domain.FeatureSet
}

// FeatureCount is always derived from the set, never stored separately.
func (n *Node) FeatureCount() int { return n.Features.Len() }

// Tree is the full partition of the filtered universe. SingleNode flags the
// root-only case so callers can special-case rendering instead of feeding
// degenerate geometry to a layout algorithm. TruncatedAt is the stage index
// at which construction stopped because an entire level came up empty, or
// -1 when every stage produced nodes.
type Tree struct {
	Root        *Node
	Nodes       map[string]*Node
	Stages      []domain.StageDefinition
	SingleNode  bool
	TruncatedAt int
}

const rootID = "root"

// childID is a deterministic function of (parent, stage, bin), so the same
// configuration always yields the same ids and a rebin that recreates a bin
// recreates its id.
func childID(parentID string, stage, bin int) string {
	return fmt.Sprintf("%s/s%db%d", parentID, stage, bin)
}

// Build constructs the partition tree breadth-first from the ordered stage
// definitions. Level d+1 is made by intersecting every level-d node with
// every bin of stage d's metric group; empty intersections are pruned, not
// materialized. All thresholds are validated before any node is created.
func Build(u *universe.Universe, stages []domain.StageDefinition, rootFeatures domain.FeatureSet) (*Tree, error) {
	for _, st := range stages {
		if err := ValidateThresholds(st.Thresholds); err != nil {
			return nil, fmt.Errorf("stage metric %s: %w", st.Metric, err)
		}
	}

	root := &Node{
		ID:         rootID,
		Depth:      0,
		RangeLabel: "all features",
		Features:   rootFeatures.Clone(),
	}
	if len(stages) > 0 {
		root.Metric = stages[0].Metric
		root.Thresholds = append([]float64(nil), stages[0].Thresholds...)
	}

	t := &Tree{
		Root:        root,
		Nodes:       map[string]*Node{root.ID: root},
		Stages:      stages,
		TruncatedAt: -1,
	}

	parents := []*Node{root}
	for depth := 0; depth < len(stages); depth++ {
		children, err := t.buildLevel(u, parents, depth)
		if err != nil {
			return nil, err
		}
		if len(children) == 0 {
			// Non-fatal: later stages cannot produce anything either, so
			// construction stops here and the caller sees the partial tree.
			log.Printf("warning: empty partition at stage %d metric=%s, stopping tree construction", depth, stages[depth].Metric)
			t.TruncatedAt = depth
			break
		}
		parents = children
	}

	t.SingleNode = len(t.Nodes) == 1
	return t, nil
}

// buildLevel splits each parent by its own metric and thresholds (they can
// differ after a rebin) and registers the non-empty children.
func (t *Tree) buildLevel(u *universe.Universe, parents []*Node, depth int) ([]*Node, error) {
	var children []*Node
	groupCache := make(map[string][]Group)

	for _, parent := range parents {
		if parent.Metric == "" {
			continue
		}
		key := groupKey(parent.Metric, parent.Thresholds)
		groups, ok := groupCache[key]
		if !ok {
			var err error
			groups, err = BuildGroups(u, parent.Metric, parent.Thresholds)
			if err != nil {
				return nil, err
			}
			groupCache[key] = groups
		}

		for _, g := range groups {
			features := parent.Features.Intersect(g.Features)
			if features.Len() == 0 {
				continue
			}
			child := &Node{
				ID:         childID(parent.ID, depth, g.Index),
				ParentID:   parent.ID,
				Depth:      depth + 1,
				BinIndex:   g.Index,
				RangeLabel: g.Label,
				Features:   features,
			}
			if depth+1 < len(t.Stages) {
				child.Metric = t.Stages[depth+1].Metric
				child.Thresholds = append([]float64(nil), t.Stages[depth+1].Thresholds...)
			}
			parent.Children = append(parent.Children, child.ID)
			t.Nodes[child.ID] = child
			children = append(children, child)
		}
	}
	return children, nil
}

func groupKey(metric string, thresholds []float64) string {
	key := metric
	for _, v := range thresholds {
		key += fmt.Sprintf("|%.12g", v)
	}
	return key
}

// Node resolves an id, returning ErrNodeNotFound for ids of bins that no
// longer exist. Stale ids are a normal condition after a rebin, not a bug.
func (t *Tree) Node(id string) (*Node, error) {
	n, ok := t.Nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, id)
	}
	return n, nil
}

// Leaves returns the ids of all nodes without children, in deterministic
// (depth-first, bin-ordered) order.
func (t *Tree) Leaves() []string {
	var out []string
	var walk func(n *Node)
	walk = func(n *Node) {
		if len(n.Children) == 0 {
			out = append(out, n.ID)
			return
		}
		for _, id := range n.Children {
			walk(t.Nodes[id])
		}
	}
	walk(t.Root)
	return out
}

// SegmentFeatures returns the union of the node's children's feature sets,
// or the node's own set when it has no children. Count scoping for a split
// node works over this union.
func (t *Tree) SegmentFeatures(id string) (domain.FeatureSet, error) {
	n, err := t.Node(id)
	if err != nil {
		return nil, err
	}
	if len(n.Children) == 0 {
		return n.Features.Clone(), nil
	}
	out := make(domain.FeatureSet)
	for _, cid := range n.Children {
		for fid := range t.Nodes[cid].Features {
			out[fid] = struct{}{}
		}
	}
	return out, nil
}
