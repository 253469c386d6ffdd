package session

import (
	"fmt"
	"time"

	"featlab/internal/domain"
	"featlab/internal/selection"
)

// Commit is the immutable snapshot of a stage's final state, captured when
// the stage is finalized. It is the frozen input to the next stage's
// training assembly and the data source when the user revisits a completed
// stage.
type Commit struct {
	Stage       domain.Stage
	Features    domain.FeatureSet
	Entries     map[string]domain.Entry
	CommittedAt time.Time
}

// SelectedIDs returns the committed feature ids in the given state,
// optionally filtered by source (SourceNone matches any), sorted.
func (c *Commit) SelectedIDs(state domain.State, source domain.Source) []int {
	out := make(domain.FeatureSet)
	for id := range c.Features {
		e := c.Entries[selection.FeatureKey(id)]
		if e.State != state {
			continue
		}
		if source != domain.SourceNone && e.Source != source {
			continue
		}
		out.Add(id)
	}
	return out.Sorted()
}

// UnsetIDs returns the committed feature ids with no decision, sorted.
func (c *Commit) UnsetIDs() []int {
	out := make(domain.FeatureSet)
	for id := range c.Features {
		if c.Entries[selection.FeatureKey(id)].State == domain.Unset {
			out.Add(id)
		}
	}
	return out.Sorted()
}

// Summary is a short human-readable digest used for logs and notifications.
func (c *Commit) Summary() string {
	states := map[domain.State]int{}
	for id := range c.Features {
		states[c.Entries[selection.FeatureKey(id)].State]++
	}
	return fmt.Sprintf("stage=%s features=%d selected=%d rejected=%d categorized=%d unset=%d",
		c.Stage, c.Features.Len(), states[domain.Selected], states[domain.Rejected],
		states[domain.Categorized], states[domain.Unset])
}
