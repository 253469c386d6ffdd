// Package partition builds and maintains the threshold-defined partition
// tree: metric bins, the level-by-level intersection tree, and in-place
// subtree rebinning when a threshold moves.
package partition

import (
	"fmt"
	"sort"

	"featlab/internal/domain"
	"featlab/internal/universe"
)

// Group is one threshold-defined bin of a metric: an ordered interval with
// the feature ids whose value falls inside it. Immutable once built for a
// given (metric, thresholds) pair.
type Group struct {
	Index    int
	Label    string
	Features domain.FeatureSet
}

// BuildGroups partitions the universe by one metric into len(thresholds)+1
// ordered bins: [-inf,t1), [t1,t2), ..., [tk,+inf]. Features with no defined
// value for the metric are excluded from every bin. With no thresholds a
// single bin holds every feature that has a value.
func BuildGroups(u *universe.Universe, metric string, thresholds []float64) ([]Group, error) {
	if err := ValidateThresholds(thresholds); err != nil {
		return nil, fmt.Errorf("metric %s: %w", metric, err)
	}

	groups := make([]Group, len(thresholds)+1)
	for i := range groups {
		groups[i] = Group{
			Index:    i,
			Label:    binLabel(thresholds, i),
			Features: make(domain.FeatureSet),
		}
	}

	for id, v := range u.Column(metric) {
		// Number of thresholds <= v is the bin index: v < t1 lands in 0,
		// v == t1 in 1, v >= tk in the last bin.
		idx := sort.Search(len(thresholds), func(i int) bool { return thresholds[i] > v })
		groups[idx].Features.Add(id)
	}
	return groups, nil
}

// ValidateThresholds rejects threshold lists that are not strictly
// ascending, before any state is touched.
func ValidateThresholds(thresholds []float64) error {
	for i := 1; i < len(thresholds); i++ {
		if thresholds[i] <= thresholds[i-1] {
			return fmt.Errorf("%w: %.4f then %.4f at position %d",
				domain.ErrInvalidThresholdOrder, thresholds[i-1], thresholds[i], i)
		}
	}
	return nil
}

func binLabel(thresholds []float64, idx int) string {
	if len(thresholds) == 0 {
		return "all"
	}
	switch {
	case idx == 0:
		return fmt.Sprintf("< %.2f", thresholds[0])
	case idx == len(thresholds):
		return fmt.Sprintf("≥ %.2f", thresholds[len(thresholds)-1])
	default:
		return fmt.Sprintf("%.2f – %.2f", thresholds[idx-1], thresholds[idx])
	}
}
