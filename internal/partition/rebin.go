package partition

import (
	"fmt"
	"log"

	"featlab/internal/universe"
)

// Rebin replaces one node's thresholds and rebuilds only that node's
// descendants. Everything outside the subtree, siblings and ancestors
// included, is left untouched: the node's own feature set does not change
// when its children are re-cut. Applying the same thresholds twice yields
// an identical subtree, ids included.
func (t *Tree) Rebin(u *universe.Universe, nodeID string, thresholds []float64) error {
	node, err := t.Node(nodeID)
	if err != nil {
		return err
	}
	if node.Metric == "" {
		return fmt.Errorf("node %s has no split metric", nodeID)
	}
	// Validate before touching the tree; a bad threshold list must leave
	// the previous consistent state in place.
	if err := ValidateThresholds(thresholds); err != nil {
		return fmt.Errorf("rebin %s metric %s: %w", nodeID, node.Metric, err)
	}

	t.dropDescendants(node)
	node.Thresholds = append([]float64(nil), thresholds...)

	parents := []*Node{node}
	for depth := node.Depth; depth < len(t.Stages); depth++ {
		children, err := t.buildLevel(u, parents, depth)
		if err != nil {
			return err
		}
		if len(children) == 0 {
			if depth == node.Depth {
				log.Printf("warning: empty partition under %s after rebin metric=%s", nodeID, node.Metric)
			}
			break
		}
		parents = children
	}

	t.SingleNode = len(t.Nodes) == 1
	return nil
}

// dropDescendants removes the node's whole subtree from the index and
// clears its child list.
func (t *Tree) dropDescendants(node *Node) {
	var drop func(id string)
	drop = func(id string) {
		child, ok := t.Nodes[id]
		if !ok {
			return
		}
		for _, cid := range child.Children {
			drop(cid)
		}
		delete(t.Nodes, id)
	}
	for _, cid := range node.Children {
		drop(cid)
	}
	node.Children = nil
}
