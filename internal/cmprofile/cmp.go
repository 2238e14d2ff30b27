// Package cmprofile implements the contextual matrix profile consumer (L3)
// and the anytime calculator (M1) that drives it.
package cmprofile

import (
	"math"

	"github.com/rchiosa/cmp-anomaly/internal/contextmgr"
)

// CMP is the dense K x K contextual matrix profile: for every pair of
// contexts (u, v) it holds the minimum distance seen so far between any
// subsequence of u and any subsequence of v, plus the pair of subsequence
// indices achieving that minimum. Entries that have never been improved
// hold +Inf / -1, matching the data model in the specification; NaN is
// introduced only by Export.
type CMP struct {
	K       int
	MinDist [][]float64
	ArgRow  [][]int
	ArgCol  [][]int
}

// NewCMP allocates a K x K contextual matrix profile with all entries
// unset (+Inf distance, (-1, -1) argmin).
func NewCMP(k int) *CMP {
	c := &CMP{
		K:       k,
		MinDist: make([][]float64, k),
		ArgRow:  make([][]int, k),
		ArgCol:  make([][]int, k),
	}
	for u := 0; u < k; u++ {
		c.MinDist[u] = make([]float64, k)
		c.ArgRow[u] = make([]int, k)
		c.ArgCol[u] = make([]int, k)
		for v := 0; v < k; v++ {
			c.MinDist[u][v] = math.Inf(1)
			c.ArgRow[u][v] = -1
			c.ArgCol[u][v] = -1
		}
	}
	return c
}

// Export returns a copy of MinDist with the diagonal replaced by NaN, the
// documented export-boundary representation of the trivial self-match.
func (c *CMP) Export() [][]float64 {
	out := make([][]float64, c.K)
	for u := 0; u < c.K; u++ {
		out[u] = append([]float64(nil), c.MinDist[u]...)
		out[u][u] = math.NaN()
	}
	return out
}

// Clone performs a deep copy. RunParallel does not use it: each parallel
// worker starts from a fresh NewCMP shadow.
func (c *CMP) Clone() *CMP {
	clone := NewCMP(c.K)
	for u := 0; u < c.K; u++ {
		copy(clone.MinDist[u], c.MinDist[u])
		copy(clone.ArgRow[u], c.ArgRow[u])
		copy(clone.ArgCol[u], c.ArgCol[u])
	}
	return clone
}

// mergeFrom folds other into c with an element-wise minimum, keeping c's
// own entry on ties so that, when shadow matrices are merged in visit
// order, the first column index to have produced a given minimum wins.
func (c *CMP) mergeFrom(other *CMP) {
	for u := 0; u < c.K; u++ {
		for v := 0; v < c.K; v++ {
			if other.MinDist[u][v] < c.MinDist[u][v] {
				c.MinDist[u][v] = other.MinDist[u][v]
				c.ArgRow[u][v] = other.ArgRow[u][v]
				c.ArgCol[u][v] = other.ArgCol[u][v]
			}
		}
	}
}

// Consumer folds raw distance columns into a CMP. It owns the CMP for the
// duration of a calculator run; on completion, ownership transfers to the
// caller as a read-only view.
type Consumer struct {
	ctx *contextmgr.Manager
	cmp *CMP
}

// NewConsumer allocates a Consumer and its backing CMP for the given
// context manager.
func NewConsumer(ctx *contextmgr.Manager) *Consumer {
	return &Consumer{
		ctx: ctx,
		cmp: NewCMP(ctx.NumContexts()),
	}
}

// CMP returns the consumer's current (possibly partial) matrix. The
// returned value is a live view: further ConsumeColumn calls mutate it.
func (c *Consumer) CMP() *CMP {
	return c.cmp
}

// ConsumeColumn folds one raw distance column d = DM[:, col] into the CMP.
// If col does not belong to any context, the column is discarded. The
// update is mirrored into the transposed cell so that a single column
// visit keeps the matrix symmetric without requiring every column to be
// visited from both "sides".
func (c *Consumer) ConsumeColumn(col int, d []float64) {
	v, ok := c.ctx.ContextOfCol(col)
	if !ok {
		return
	}

	for u, rng := range c.ctx.Ranges() {
		best := math.Inf(1)
		bestR := -1
		for r := rng.Start; r < rng.End; r++ {
			if r == col {
				continue // trivial self-match
			}
			if d[r] < best {
				best = d[r]
				bestR = r
			}
		}
		if bestR == -1 {
			continue // context has no candidate distinct from col
		}

		if best < c.cmp.MinDist[u][v] {
			c.cmp.MinDist[u][v] = best
			c.cmp.ArgRow[u][v] = bestR
			c.cmp.ArgCol[u][v] = col
		}
		if best < c.cmp.MinDist[v][u] {
			c.cmp.MinDist[v][u] = best
			c.cmp.ArgRow[v][u] = col
			c.cmp.ArgCol[v][u] = bestR
		}
	}
}
