// Package domain holds the shared value types of the labeling engine:
// feature records, feature-id sets, stage and selection enums, and the
// error taxonomy.
package domain

import "fmt"

// Feature is one unit of the model being interpreted. Metric values live
// on the universe, keyed by metric name, so that stage definitions can
// reference metrics the record type does not know about.
type Feature struct {
	ID    int
	Label string
}

// StageDefinition describes one level of the partition tree: the metric to
// bin by and the ascending threshold values that cut it.
type StageDefinition struct {
	Metric     string    `yaml:"metric"`
	Thresholds []float64 `yaml:"thresholds"`
}

// PairKey returns the canonical key for a feature pair, smaller id first,
// so (3,7) and (7,3) address the same entry.
func PairKey(a, b int) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("%d-%d", a, b)
}
