package selection

import "featlab/internal/domain"

// Counts are the derived per-bucket totals for a two-state stage. Bucket
// names follow the UI's vocabulary: confirmed is manual-selected, expanded
// is auto-selected, unsure is everything still unset.
type Counts struct {
	Confirmed      int `json:"confirmed"`
	Expanded       int `json:"expanded"`
	RejectedManual int `json:"rejected_manual"`
	RejectedAuto   int `json:"rejected_auto"`
	Unsure         int `json:"unsure"`
}

// CountsFor derives two-state bucket totals, optionally restricted to a
// candidate key list (nil means every key the caller supplies is in scope).
// Derived on every read, never stored.
func CountsFor(s *Store, candidates []string) Counts {
	var c Counts
	for _, key := range candidates {
		e := s.Get(key)
		switch {
		case e.State == domain.Selected && e.Source == domain.SourceManual:
			c.Confirmed++
		case e.State == domain.Selected && e.Source == domain.SourceAuto:
			c.Expanded++
		case e.State == domain.Rejected && e.Source == domain.SourceManual:
			c.RejectedManual++
		case e.State == domain.Rejected && e.Source == domain.SourceAuto:
			c.RejectedAuto++
		default:
			c.Unsure++
		}
	}
	return c
}

// CauseCounts are the derived per-category totals for the cause stage.
// Manual holds manual-only counts per category (the gate inputs), Auto the
// classifier-assigned counts, Unsure the unset remainder.
type CauseCounts struct {
	Manual map[string]int `json:"manual"`
	Auto   map[string]int `json:"auto"`
	Unsure int            `json:"unsure"`
}

// CauseCountsFor derives cause-stage totals over the candidate keys for the
// configured category names. Entries carrying a category outside the
// configured set count as unsure.
func CauseCountsFor(s *Store, candidates []string, categories []string) CauseCounts {
	known := make(map[string]bool, len(categories))
	c := CauseCounts{
		Manual: make(map[string]int, len(categories)),
		Auto:   make(map[string]int, len(categories)),
	}
	for _, name := range categories {
		known[name] = true
		c.Manual[name] = 0
		c.Auto[name] = 0
	}
	for _, key := range candidates {
		e := s.Get(key)
		if e.State != domain.Categorized || !known[e.Category] {
			c.Unsure++
			continue
		}
		if e.Source == domain.SourceManual {
			c.Manual[e.Category]++
		} else {
			c.Auto[e.Category]++
		}
	}
	return c
}
