// Package distance implements the anytime streaming distance-matrix
// calculator: given a query length m, it produces one column of the full
// pairwise non-normalised Euclidean distance matrix between all length-m
// subsequences of a series, on demand, using an incremental sliding
// dot-product (Mueen's MASS recipe, STOMP-style column update).
package distance

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/fourier"
)

// ErrSubsequenceTooShort is wrapped into the error Prepare returns when the
// requested query length falls below the minimum of 4 or exceeds the
// series length.
var ErrSubsequenceTooShort = errors.New("distance: invalid subsequence length")

// Generator produces columns of the conceptual N_sub x N_sub distance
// matrix DM[r, c] = || S[r:r+m) - S[c:c+m) ||_2 for a fixed series S and
// subsequence length m. It is stateful with respect to the last computed
// column: adjacent columns are updated incrementally in O(N_sub); any other
// request triggers a full O(N_sub log N_sub) recompute via FFT
// cross-correlation.
type Generator struct {
	series []float64
	m      int
	numSub int

	ss   []float64    // rolling sum of squares, ss[i] = sum_{k=0..m-1} S[i+k]^2
	fft  *fourier.FFT
	sFFT []complex128 // cached FFT of the full series, reused across full recomputes

	qt      []float64 // QT[lastCol][r] for all r
	lastCol int       // -1 before the first column is computed
}

// Prepare builds a Generator for series S and subsequence length m. Returns
// a configuration error if m < 4 or m > len(S).
func Prepare(s []float64, m int) (*Generator, error) {
	n := len(s)
	if m < 4 {
		return nil, fmt.Errorf("%w: query length %d must be at least 4", ErrSubsequenceTooShort, m)
	}
	if m > n {
		return nil, fmt.Errorf("%w: query length %d must not exceed series length %d", ErrSubsequenceTooShort, m, n)
	}

	fft := fourier.NewFFT(n)
	g := &Generator{
		series:  s,
		m:       m,
		numSub:  n - m + 1,
		ss:      rollingSumSquares(s, m),
		fft:     fft,
		sFFT:    fft.Coefficients(nil, s),
		lastCol: -1,
	}
	return g, nil
}

// NumSub returns N_sub = n - m + 1, the number of subsequences.
func (g *Generator) NumSub() int {
	return g.numSub
}

// rollingSumSquares computes ss[i] = sum_{k=0..m-1} s[i+k]^2 for every
// valid i in O(n) via a cumulative-sum difference, mirroring the teacher's
// two-pass movstd accumulator.
func rollingSumSquares(s []float64, m int) []float64 {
	n := len(s)
	csqr := make([]float64, n+1)
	for i := 0; i < n; i++ {
		csqr[i+1] = csqr[i] + s[i]*s[i]
	}
	out := make([]float64, n-m+1)
	for i := range out {
		out[i] = csqr[i+m] - csqr[i]
	}
	return out
}

// Column returns d where d[r] = || S[r:r+m) - S[c:c+m) ||_2 for all valid
// r. Requesting the column adjacent to the last one computed is O(N_sub);
// any other column triggers a full recompute.
func (g *Generator) Column(c int) ([]float64, error) {
	if c < 0 || c >= g.numSub {
		return nil, fmt.Errorf("distance: column %d out of range [0, %d)", c, g.numSub)
	}

	switch {
	case g.lastCol == -1 || c != g.lastCol+1:
		g.qt = g.crossCorrelate(c)
	default:
		g.stompUpdate(c)
	}
	g.lastCol = c

	d := make([]float64, g.numSub)
	ssc := g.ss[c]
	for r := 0; r < g.numSub; r++ {
		v := g.ss[r] + ssc - 2*g.qt[r]
		if v < 0 {
			v = 0
		}
		d[r] = math.Sqrt(v)
	}
	return d, nil
}

// crossCorrelate computes QT[c][r] = sum_{k=0..m-1} S[r+k]*S[c+k] for all r
// via a single FFT convolution, the teacher's crossCorrelate recipe applied
// to a self-join with no z-normalisation.
func (g *Generator) crossCorrelate(c int) []float64 {
	n := len(g.series)
	query := g.series[c : c+g.m]

	qpad := make([]float64, n)
	for i := 0; i < len(query); i++ {
		qpad[i] = query[g.m-i-1]
	}
	qf := g.fft.Coefficients(nil, qpad)

	for i := range qf {
		qf[i] = g.sFFT[i] * qf[i]
	}

	dot := g.fft.Sequence(nil, qf)
	out := make([]float64, g.numSub)
	for i := range out {
		out[i] = dot[g.m-1+i] / float64(n)
	}
	return out
}

// stompUpdate advances the cached dot-product vector from column c-1 to
// column c in place using Mueen's sliding update:
//
//	QT[c+1][r+1] = QT[c][r] - S[r]*S[c] + S[r+m]*S[c+m]
//
// QT[c+1][0] has no predecessor and is recomputed directly.
func (g *Generator) stompUpdate(c int) {
	s := g.series
	m := g.m
	prevCol := c - 1

	next := make([]float64, g.numSub)
	for r := g.numSub - 1; r > 0; r-- {
		next[r] = g.qt[r-1] - s[r-1]*s[prevCol] + s[r-1+m]*s[prevCol+m]
	}

	var dot0 float64
	for k := 0; k < m; k++ {
		dot0 += s[k] * s[c+k]
	}
	next[0] = dot0

	g.qt = next
}
