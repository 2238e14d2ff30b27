// Package segment provides a time-window segmentation stand-in for the
// externally produced CART regression-tree split that the core pipeline
// treats as an authoritative input. It partitions a day into
// variance-homogeneous buckets by a greedy variance-reduction split, the
// same shape of decision a regression tree makes, without depending on a
// learned model.
package segment

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// Window is one row of the externally produced time-window table: a
// labelled observation range within a day. From and To are "HH:MM"
// boundaries and Observations is the window's length in samples; the
// pipeline parses To (and, after the first window, From) to place its
// ranges.
type Window struct {
	From         string
	To           string
	Observations int
}

// Options configures the split.
type Options struct {
	// SamplesPerDay is p.
	SamplesPerDay int
	// MinIntervalHours is the minimum width, in hours, a resulting
	// window may have.
	MinIntervalHours float64
	// MaxWindows caps the number of windows the split may produce.
	MaxWindows int
}

// Split builds a representative day's profile (the element-wise mean of
// dayProfiles, each of which must have exactly SamplesPerDay entries; no
// resampling is done) and recursively splits it at the cut
// point reducing the combined variance of the two halves the most, down to
// MinIntervalHours-wide leaves or MaxWindows windows, whichever comes
// first. The result is returned in chronological order.
func Split(dayProfiles [][]float64, opt Options) ([]Window, error) {
	if len(dayProfiles) == 0 {
		return nil, fmt.Errorf("segment: need at least one day profile")
	}
	p := opt.SamplesPerDay
	if p <= 0 {
		return nil, fmt.Errorf("segment: SamplesPerDay must be positive, got %d", p)
	}
	for i, d := range dayProfiles {
		if len(d) != p {
			return nil, fmt.Errorf("segment: day profile %d has length %d, want %d", i, len(d), p)
		}
	}
	if opt.MinIntervalHours <= 0 {
		opt.MinIntervalHours = 1
	}
	if opt.MaxWindows <= 0 {
		opt.MaxWindows = 24
	}

	mean := make([]float64, p)
	for _, d := range dayProfiles {
		for i, v := range d {
			mean[i] += v
		}
	}
	for i := range mean {
		mean[i] /= float64(len(dayProfiles))
	}

	minObs := int(opt.MinIntervalHours * float64(p) / 24)
	if minObs < 1 {
		minObs = 1
	}

	ranges := recursiveSplit(mean, 0, p, minObs, opt.MaxWindows)
	windows := make([]Window, len(ranges))
	for i, r := range ranges {
		windows[i] = Window{
			From:         hhmm(r.start, p),
			To:           hhmm(r.end, p),
			Observations: r.end - r.start,
		}
	}
	return windows, nil
}

type cut struct{ start, end int }

// recursiveSplit greedily bisects [start, end) at the index minimising the
// pooled variance of the two halves, stopping when the range is at most
// 2*minObs long, when no cut reduces the variance, or when the leaf budget
// is exhausted.
func recursiveSplit(profile []float64, start, end, minObs, maxLeaves int) []cut {
	if maxLeaves <= 1 || end-start <= 2*minObs {
		return []cut{{start, end}}
	}

	bestScore := -1.0
	bestSplit := -1
	for split := start + minObs; split <= end-minObs; split++ {
		left := profile[start:split]
		right := profile[split:end]
		reduction := stat.Variance(profile[start:end], nil)*float64(end-start) -
			stat.Variance(left, nil)*float64(len(left)) -
			stat.Variance(right, nil)*float64(len(right))
		if reduction > bestScore {
			bestScore = reduction
			bestSplit = split
		}
	}
	if bestSplit < 0 || bestScore <= 0 {
		return []cut{{start, end}}
	}

	leftBudget := maxLeaves / 2
	if leftBudget < 1 {
		leftBudget = 1
	}
	rightBudget := maxLeaves - leftBudget
	left := recursiveSplit(profile, start, bestSplit, minObs, leftBudget)
	right := recursiveSplit(profile, bestSplit, end, minObs, rightBudget)
	return append(left, right...)
}

func hhmm(obsIdx, p int) string {
	hoursPerObs := 24.0 / float64(p)
	totalMinutes := int(float64(obsIdx) * hoursPerObs * 60)
	return fmt.Sprintf("%02d:%02d", totalMinutes/60, totalMinutes%60)
}
