// Package cluster provides a day-clustering stand-in for the externally
// produced cluster mask that the core pipeline treats as an authoritative
// input. Days are grouped by single-linkage agglomeration over a
// correlation-distance matrix between the daily shape vectors the caller
// supplies; this package does not resample them.
package cluster

import (
	"container/heap"
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// Mask is a D x g boolean table: Mask[d][j] is true iff day d belongs to
// cluster j. Every row sums to exactly one true entry.
type Mask [][]bool

// DayIndices returns, for cluster j, the sorted list of day indices
// assigned to it.
func (m Mask) DayIndices(j int) []int {
	var out []int
	for d, row := range m {
		if j < len(row) && row[j] {
			out = append(out, d)
		}
	}
	return out
}

// NumClusters returns g, the number of columns of the mask.
func (m Mask) NumClusters() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

// Agglomerate clusters D days, each described by a shape vector of a
// common length (the CLI passes each day's raw load curve), into
// exactly target clusters by single-linkage agglomeration over
// correlation distance (1 - Pearson correlation). Returns a Mask with one
// true entry per row.
func Agglomerate(shapes [][]float64, target int) (Mask, error) {
	d := len(shapes)
	if d == 0 {
		return nil, fmt.Errorf("cluster: need at least one day shape")
	}
	if target <= 0 || target > d {
		return nil, fmt.Errorf("cluster: target cluster count %d must be in [1, %d]", target, d)
	}

	members := make([][]int, d)
	for i := range members {
		members[i] = []int{i}
	}
	alive := make([]bool, d)
	for i := range alive {
		alive[i] = true
	}

	dist := correlationDistanceMatrix(shapes)

	pq := &pairHeap{}
	heap.Init(pq)
	for i := 0; i < d; i++ {
		for j := i + 1; j < d; j++ {
			heap.Push(pq, pair{i: i, j: j, dist: dist[i][j]})
		}
	}

	numClusters := d
	for numClusters > target && pq.Len() > 0 {
		top := heap.Pop(pq).(pair)
		if !alive[top.i] || !alive[top.j] {
			continue // stale entry, one side already merged away
		}

		// Merge j into i; recompute single-linkage distances from the
		// merged cluster to every other surviving cluster and push them.
		members[top.i] = append(members[top.i], members[top.j]...)
		alive[top.j] = false
		numClusters--

		for k := 0; k < d; k++ {
			if k == top.i || !alive[k] {
				continue
			}
			best := singleLinkage(members[top.i], members[k], dist)
			heap.Push(pq, pair{i: min(top.i, k), j: max(top.i, k), dist: best})
		}
	}

	// Collect the surviving clusters in ascending representative-index
	// order so cluster labelling is deterministic.
	var reps []int
	for i := 0; i < d; i++ {
		if alive[i] {
			reps = append(reps, i)
		}
	}

	mask := make(Mask, d)
	for i := range mask {
		mask[i] = make([]bool, len(reps))
	}
	for j, rep := range reps {
		for _, day := range members[rep] {
			mask[day][j] = true
		}
	}
	return mask, nil
}

func singleLinkage(a, b []int, dist [][]float64) float64 {
	best := dist[a[0]][b[0]]
	for _, i := range a {
		for _, j := range b {
			if dist[i][j] < best {
				best = dist[i][j]
			}
		}
	}
	return best
}

func correlationDistanceMatrix(shapes [][]float64) [][]float64 {
	d := len(shapes)
	out := make([][]float64, d)
	for i := range out {
		out[i] = make([]float64, d)
	}
	for i := 0; i < d; i++ {
		for j := i + 1; j < d; j++ {
			corr := stat.Correlation(shapes[i], shapes[j], nil)
			dist := 1 - corr
			out[i][j] = dist
			out[j][i] = dist
		}
	}
	return out
}

type pair struct {
	i, j int
	dist float64
}

// pairHeap is a binary min-heap over candidate merges ordered by distance,
// the same container/heap recipe the teacher uses for its own k-nearest
// distance bookkeeping.
type pairHeap []pair

func (h pairHeap) Len() int            { return len(h) }
func (h pairHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h pairHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *pairHeap) Push(x interface{}) { *h = append(*h, x.(pair)) }
func (h *pairHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
