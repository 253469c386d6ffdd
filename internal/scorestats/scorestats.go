// Package scorestats summarizes classifier score distributions for the
// threshold slider: summary statistics, quantiles and a fixed-width
// histogram over the returned decision margins.
package scorestats

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

type Summary struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	P25    float64 `json:"p25"`
	Median float64 `json:"median"`
	P75    float64 `json:"p75"`
}

// Summarize computes distribution statistics over a score map. An empty map
// yields a zero Summary.
func Summarize(scores map[int]float64) Summary {
	if len(scores) == 0 {
		return Summary{}
	}
	xs := make([]float64, 0, len(scores))
	for _, v := range scores {
		xs = append(xs, v)
	}
	sort.Float64s(xs)

	return Summary{
		Count:  len(xs),
		Min:    xs[0],
		Max:    xs[len(xs)-1],
		Mean:   stat.Mean(xs, nil),
		StdDev: stat.StdDev(xs, nil),
		P25:    stat.Quantile(0.25, stat.Empirical, xs, nil),
		Median: stat.Quantile(0.5, stat.Empirical, xs, nil),
		P75:    stat.Quantile(0.75, stat.Empirical, xs, nil),
	}
}

// Histogram bins the scores into the given number of equal-width bins over
// [min, max]. Returns bin edges (len bins+1) and counts (len bins). The top
// edge is inclusive so the maximum lands in the last bin.
func Histogram(scores map[int]float64, bins int) ([]float64, []int) {
	if len(scores) == 0 || bins <= 0 {
		return nil, nil
	}
	s := Summarize(scores)
	width := (s.Max - s.Min) / float64(bins)

	edges := make([]float64, bins+1)
	for i := range edges {
		edges[i] = s.Min + float64(i)*width
	}
	edges[bins] = s.Max

	counts := make([]int, bins)
	for _, v := range scores {
		idx := bins - 1
		if width > 0 {
			idx = int((v - s.Min) / width)
			if idx >= bins {
				idx = bins - 1
			}
		}
		counts[idx]++
	}
	return edges, counts
}
