// Package universe holds the feature universe: the full table of feature
// records and their per-metric values, loaded once per session from the
// extraction pipeline's sqlite output and cached behind an explicit cache
// service.
package universe

import (
	"math"

	"featlab/internal/domain"
)

// Universe is the immutable table the partition engine runs against.
// Metric columns are sparse: a feature missing from a column has no defined
// value for that metric and is excluded from every bin built over it.
type Universe struct {
	features []domain.Feature
	byID     map[int]domain.Feature
	columns  map[string]map[int]float64
}

func New(features []domain.Feature) *Universe {
	u := &Universe{
		features: features,
		byID:     make(map[int]domain.Feature, len(features)),
		columns:  make(map[string]map[int]float64),
	}
	for _, f := range features {
		u.byID[f.ID] = f
	}
	return u
}

func (u *Universe) Size() int { return len(u.features) }

func (u *Universe) Feature(id int) (domain.Feature, bool) {
	f, ok := u.byID[id]
	return f, ok
}

func (u *Universe) Features() []domain.Feature { return u.features }

// IDs returns the full feature-id set, freshly allocated.
func (u *Universe) IDs() domain.FeatureSet {
	s := make(domain.FeatureSet, len(u.features))
	for _, f := range u.features {
		s[f.ID] = struct{}{}
	}
	return s
}

// Value returns a feature's value for a metric, reporting false when the
// feature has no defined value.
func (u *Universe) Value(metric string, id int) (float64, bool) {
	col, ok := u.columns[metric]
	if !ok {
		return 0, false
	}
	v, ok := col[id]
	return v, ok
}

// Column returns the full value map for a metric. Callers must not mutate it.
func (u *Universe) Column(metric string) map[int]float64 {
	return u.columns[metric]
}

// SetColumn installs or replaces a metric column. NaN values are dropped at
// this boundary so bins never have to re-check. The orchestrator uses this
// to register synthetic score metrics after a classification pass.
func (u *Universe) SetColumn(metric string, values map[int]float64) {
	col := make(map[int]float64, len(values))
	for id, v := range values {
		if math.IsNaN(v) {
			continue
		}
		col[id] = v
	}
	u.columns[metric] = col
}

// HasMetric reports whether any feature has a value for the metric.
func (u *Universe) HasMetric(metric string) bool {
	return len(u.columns[metric]) > 0
}
