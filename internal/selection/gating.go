package selection

// GatingConfig holds the label minimums that enable bulk actions. These are
// policy knobs, not invariants; they come from configuration.
type GatingConfig struct {
	// SortMinPerClass is the minimum manual labels per class (selected and
	// rejected) before similarity sort is offered on a two-state stage.
	SortMinPerClass int `yaml:"sort_min_per_class"`
	// AutoTagMinPerClass is the minimum manual labels per class before
	// automatic tagging is offered on a two-state stage.
	AutoTagMinPerClass int `yaml:"auto_tag_min_per_class"`
	// CauseSortMinPerCategory is the minimum manual labels each category
	// needs (all categories present) before cause-stage sort is offered.
	CauseSortMinPerCategory int `yaml:"cause_sort_min_per_category"`
	// CauseAutoTagCategories and CauseAutoTagMinPerCategory gate cause-stage
	// automatic tagging: at least that many categories with at least that
	// many manual labels each.
	CauseAutoTagCategories     int `yaml:"cause_auto_tag_categories"`
	CauseAutoTagMinPerCategory int `yaml:"cause_auto_tag_min_per_category"`
}

func DefaultGating() GatingConfig {
	return GatingConfig{
		SortMinPerClass:            1,
		AutoTagMinPerClass:         5,
		CauseSortMinPerCategory:    1,
		CauseAutoTagCategories:     2,
		CauseAutoTagMinPerCategory: 3,
	}
}

// CanSortBySimilarity reports whether a two-state stage has enough manual
// labels on both sides to train a similarity sort.
func (g GatingConfig) CanSortBySimilarity(c Counts) bool {
	return c.Confirmed >= g.SortMinPerClass && c.RejectedManual >= g.SortMinPerClass
}

// CanAutoTag reports whether a two-state stage has enough manual labels per
// class to run automatic tagging.
func (g GatingConfig) CanAutoTag(c Counts) bool {
	return c.Confirmed >= g.AutoTagMinPerClass && c.RejectedManual >= g.AutoTagMinPerClass
}

// CanSortByCause requires every category to be present with the configured
// manual minimum.
func (g GatingConfig) CanSortByCause(c CauseCounts) bool {
	if len(c.Manual) == 0 {
		return false
	}
	for _, n := range c.Manual {
		if n < g.CauseSortMinPerCategory {
			return false
		}
	}
	return true
}

// CanAutoTagCause requires at least CauseAutoTagCategories categories with
// at least CauseAutoTagMinPerCategory manual labels each.
func (g GatingConfig) CanAutoTagCause(c CauseCounts) bool {
	ready := 0
	for _, n := range c.Manual {
		if n >= g.CauseAutoTagMinPerCategory {
			ready++
		}
	}
	return ready >= g.CauseAutoTagCategories
}
