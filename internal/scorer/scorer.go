// Package scorer implements the rank-voting severity score: a real-valued
// feature vector is compared against seven percentile thresholds of its
// own distribution, and each element's score is how many of those
// thresholds it clears.
package scorer

import (
	"errors"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ErrDegenerateCluster is the condition Score recovers from locally by
// returning an all-zero vector instead of a percentile ranking; callers
// that want to log the condition can compare a cluster's size against
// MinClusterSize themselves and wrap this sentinel.
var ErrDegenerateCluster = errors.New("scorer: cluster below minimum size for percentile scoring")

// Thresholds are the seven percentiles voted on, expressed as quantile
// fractions in [0, 1].
var Thresholds = []float64{0.50, 0.60, 0.70, 0.80, 0.90, 0.95, 0.99}

// MinClusterSize is the smallest cluster for which percentile thresholds
// are considered meaningful; clusters below this size score zero
// everywhere rather than producing a degenerate ranking.
const MinClusterSize = 3

// Score computes the vote-count severity for each element of x: s[i] is
// the number of the seven percentile thresholds of x's own distribution
// that x[i] strictly exceeds, so s[i] ranges over {0, ..., 7}. Clusters
// smaller than MinClusterSize return an all-zero vector.
func Score(x []float64) []int {
	n := len(x)
	out := make([]int, n)
	if n < MinClusterSize {
		return out
	}

	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)

	taus := make([]float64, len(Thresholds))
	for i, p := range Thresholds {
		taus[i] = stat.Quantile(p, stat.LinInterp, sorted, nil)
	}

	for i, v := range x {
		count := 0
		for _, tau := range taus {
			if v > tau {
				count++
			}
		}
		out[i] = count
	}
	return out
}

// Expand extends a cluster-local score vector (length g, aligned to
// dayIdx) to a full-length D vector, leaving every day outside the
// cluster at 0.
func Expand(scores []int, dayIdx []int, d int) []int {
	out := make([]int, d)
	for i, day := range dayIdx {
		out[day] = scores[i]
	}
	return out
}
