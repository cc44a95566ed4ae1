package report

import "slices"

// RatingSummary aggregates the per-task mean ratings of a run.
type RatingSummary struct {
	// Rated is the number of tasks with at least one numeric rating.
	Rated  int     `json:"rated" yaml:"rated"`
	Mean   float64 `json:"mean" yaml:"mean"`
	Median float64 `json:"median" yaml:"median"`
	Min    float64 `json:"min" yaml:"min"`
	Max    float64 `json:"max" yaml:"max"`
}

// summarize returns nil when no task has a numeric rating.
func summarize(results []TaskResult) *RatingSummary {
	scores := make([]float64, 0, len(results))
	for _, tr := range results {
		if tr.MeanRating != nil {
			scores = append(scores, *tr.MeanRating)
		}
	}
	if len(scores) == 0 {
		return nil
	}

	var sum float64
	for _, s := range scores {
		sum += s
	}
	slices.Sort(scores)

	return &RatingSummary{
		Rated:  len(scores),
		Mean:   sum / float64(len(scores)),
		Median: median(scores),
		Min:    scores[0],
		Max:    scores[len(scores)-1],
	}
}

// median expects sorted, non-empty input. Even counts average the two
// middle values.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
