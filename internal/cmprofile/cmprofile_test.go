package cmprofile

import (
	"context"
	"math"
	"testing"

	"github.com/rchiosa/cmp-anomaly/internal/contextmgr"
	"github.com/rchiosa/cmp-anomaly/internal/distance"
)

func twoDayConstantFixture(t *testing.T) (*contextmgr.Manager, *distance.Generator) {
	t.Helper()
	s := make([]float64, 20)
	for i := range s {
		s[i] = 10
	}
	gen, err := distance.Prepare(s, 4)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	numSub := gen.NumSub() // 17
	half := numSub / 2
	ctx, err := contextmgr.New([]contextmgr.Range{
		{Start: 0, End: half},
		{Start: half, End: numSub},
	}, numSub)
	if err != nil {
		t.Fatalf("contextmgr.New: %v", err)
	}
	return ctx, gen
}

// TestConstantSeriesCMPIsZeroOffDiagonal is the S1 scenario: a perfectly
// constant series yields a zero distance everywhere, so both off-diagonal
// entries of a 2x2 CMP must be zero and the exported diagonal must be NaN.
func TestConstantSeriesCMPIsZeroOffDiagonal(t *testing.T) {
	ctxMgr, gen := twoDayConstantFixture(t)
	consumer := NewConsumer(ctxMgr)
	calc, err := NewCalculator(gen.NumSub(), Sequential, 0)
	if err != nil {
		t.Fatalf("NewCalculator: %v", err)
	}
	srcIdx := calc.AddSource(gen)
	calc.AddConsumer(srcIdx, consumer)

	if err := calc.Run(context.Background(), -1); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !calc.Done() {
		t.Fatal("expected calculator to be done after unbounded run")
	}

	exported := consumer.CMP().Export()
	if !math.IsNaN(exported[0][0]) || !math.IsNaN(exported[1][1]) {
		t.Errorf("expected diagonal NaN, got %v %v", exported[0][0], exported[1][1])
	}
	if math.Abs(exported[0][1]) > 1e-9 || math.Abs(exported[1][0]) > 1e-9 {
		t.Errorf("expected off-diagonal 0, got %v %v", exported[0][1], exported[1][0])
	}
}

// TestCMPIsSymmetric checks property 4: after every column has been
// visited, CMP[u][v] == CMP[v][u] for every pair, and the argmin indices
// are the swap of one another.
func TestCMPIsSymmetric(t *testing.T) {
	s := []float64{2, 4, 1, 8, 5, 3, 9, 6, 2, 7, 4, 1, 9, 0, 3, 8, 5, 2, 6, 7}
	gen, err := distance.Prepare(s, 4)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	numSub := gen.NumSub()
	third := numSub / 3
	ctxMgr, err := contextmgr.New([]contextmgr.Range{
		{Start: 0, End: third},
		{Start: third, End: 2 * third},
		{Start: 2 * third, End: numSub},
	}, numSub)
	if err != nil {
		t.Fatalf("contextmgr.New: %v", err)
	}

	consumer := NewConsumer(ctxMgr)
	calc, err := NewCalculator(numSub, Sequential, 0)
	if err != nil {
		t.Fatalf("NewCalculator: %v", err)
	}
	srcIdx := calc.AddSource(gen)
	calc.AddConsumer(srcIdx, consumer)
	if err := calc.Run(context.Background(), -1); err != nil {
		t.Fatalf("Run: %v", err)
	}

	cmp := consumer.CMP()
	for u := 0; u < cmp.K; u++ {
		for v := 0; v < cmp.K; v++ {
			if math.Abs(cmp.MinDist[u][v]-cmp.MinDist[v][u]) > 1e-9 {
				t.Errorf("CMP[%d][%d]=%v != CMP[%d][%d]=%v", u, v, cmp.MinDist[u][v], v, u, cmp.MinDist[v][u])
			}
			if u == v {
				continue
			}
			if cmp.ArgRow[u][v] != cmp.ArgCol[v][u] || cmp.ArgCol[u][v] != cmp.ArgRow[v][u] {
				t.Errorf("argmin(%d,%d)=(%d,%d) is not the swap of argmin(%d,%d)=(%d,%d)",
					u, v, cmp.ArgRow[u][v], cmp.ArgCol[u][v],
					v, u, cmp.ArgRow[v][u], cmp.ArgCol[v][u])
			}
		}
	}
}

// TestResumableRunMatchesOneShot checks that feeding the budget in several
// small calls produces the same final CMP as a single unbounded call.
func TestResumableRunMatchesOneShot(t *testing.T) {
	s := []float64{3, 1, 4, 1, 5, 9, 2, 6, 5, 3, 5, 8, 9, 7, 9, 3}
	m := 4

	build := func() (*contextmgr.Manager, *distance.Generator) {
		gen, err := distance.Prepare(s, m)
		if err != nil {
			t.Fatalf("Prepare: %v", err)
		}
		numSub := gen.NumSub()
		ctxMgr, err := contextmgr.New([]contextmgr.Range{
			{Start: 0, End: numSub / 2},
			{Start: numSub / 2, End: numSub},
		}, numSub)
		if err != nil {
			t.Fatalf("contextmgr.New: %v", err)
		}
		return ctxMgr, gen
	}

	ctxMgrA, genA := build()
	consumerA := NewConsumer(ctxMgrA)
	calcA, _ := NewCalculator(genA.NumSub(), Sequential, 0)
	srcA := calcA.AddSource(genA)
	calcA.AddConsumer(srcA, consumerA)
	if err := calcA.Run(context.Background(), -1); err != nil {
		t.Fatalf("Run: %v", err)
	}

	ctxMgrB, genB := build()
	consumerB := NewConsumer(ctxMgrB)
	calcB, _ := NewCalculator(genB.NumSub(), Sequential, 0)
	srcB := calcB.AddSource(genB)
	calcB.AddConsumer(srcB, consumerB)
	for !calcB.Done() {
		if err := calcB.Run(context.Background(), 3); err != nil {
			t.Fatalf("Run (budgeted): %v", err)
		}
	}

	cmpA, cmpB := consumerA.CMP(), consumerB.CMP()
	for u := 0; u < cmpA.K; u++ {
		for v := 0; v < cmpA.K; v++ {
			if math.Abs(cmpA.MinDist[u][v]-cmpB.MinDist[u][v]) > 1e-9 {
				t.Errorf("CMP[%d][%d]: one-shot=%v budgeted=%v", u, v, cmpA.MinDist[u][v], cmpB.MinDist[u][v])
			}
		}
	}
}

// TestRunParallelMatchesSequential checks that splitting the visit order
// across goroutines and merging shadow matrices reproduces the sequential
// single-threaded result exactly, including the tie-break.
func TestRunParallelMatchesSequential(t *testing.T) {
	s := []float64{5, 2, 8, 1, 9, 4, 6, 3, 7, 0, 5, 2, 8, 1, 9, 4, 6, 3, 7, 0}
	m := 4

	buildCtx := func() *contextmgr.Manager {
		gen, err := distance.Prepare(s, m)
		if err != nil {
			t.Fatalf("Prepare: %v", err)
		}
		numSub := gen.NumSub()
		ctxMgr, err := contextmgr.New([]contextmgr.Range{
			{Start: 0, End: numSub / 2},
			{Start: numSub / 2, End: numSub},
		}, numSub)
		if err != nil {
			t.Fatalf("contextmgr.New: %v", err)
		}
		return ctxMgr
	}

	seqCtx := buildCtx()
	seqGen, _ := distance.Prepare(s, m)
	seqConsumer := NewConsumer(seqCtx)
	seqCalc, _ := NewCalculator(seqGen.NumSub(), Sequential, 0)
	seqSrc := seqCalc.AddSource(seqGen)
	seqCalc.AddConsumer(seqSrc, seqConsumer)
	if err := seqCalc.Run(context.Background(), -1); err != nil {
		t.Fatalf("Run: %v", err)
	}

	parCtx := buildCtx()
	order := make([]int, seqGen.NumSub())
	for i := range order {
		order[i] = i
	}
	base := NewCMP(parCtx.NumContexts())
	// 17 columns in batches of 3 make 6 batches, one generator each.
	gens := make([]DistanceSource, 0, 6)
	for i := 0; i < 6; i++ {
		g, err := distance.Prepare(s, m)
		if err != nil {
			t.Fatalf("Prepare: %v", err)
		}
		gens = append(gens, g)
	}
	if err := RunParallel(context.Background(), gens, parCtx, base, order, 3); err != nil {
		t.Fatalf("RunParallel: %v", err)
	}

	seqCMP := seqConsumer.CMP()
	for u := 0; u < base.K; u++ {
		for v := 0; v < base.K; v++ {
			if math.Abs(base.MinDist[u][v]-seqCMP.MinDist[u][v]) > 1e-9 {
				t.Errorf("CMP[%d][%d]: parallel=%v sequential=%v", u, v, base.MinDist[u][v], seqCMP.MinDist[u][v])
			}
			if base.ArgRow[u][v] != seqCMP.ArgRow[u][v] || base.ArgCol[u][v] != seqCMP.ArgCol[u][v] {
				t.Errorf("argmin[%d][%d]: parallel=(%d,%d) sequential=(%d,%d)",
					u, v, base.ArgRow[u][v], base.ArgCol[u][v], seqCMP.ArgRow[u][v], seqCMP.ArgCol[u][v])
			}
		}
	}
}

// TestConsumeColumnDiscardsColumnsOutsideAnyContext checks that a column
// with no owning context (a gap left uncovered by the context partition)
// is silently ignored.
func TestConsumeColumnDiscardsColumnsOutsideAnyContext(t *testing.T) {
	s := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	gen, err := distance.Prepare(s, 4)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	numSub := gen.NumSub()
	// Leave a gap in the middle uncovered.
	ctxMgr, err := contextmgr.New([]contextmgr.Range{
		{Start: 0, End: 1},
		{Start: numSub - 1, End: numSub},
	}, numSub)
	if err != nil {
		t.Fatalf("contextmgr.New: %v", err)
	}
	consumer := NewConsumer(ctxMgr)
	for c := 0; c < numSub; c++ {
		d, err := gen.Column(c)
		if err != nil {
			t.Fatalf("Column(%d): %v", c, err)
		}
		consumer.ConsumeColumn(c, d)
	}
	cmp := consumer.CMP()
	if cmp.K != 2 {
		t.Fatalf("expected 2 contexts, got %d", cmp.K)
	}
	// Both contexts are singletons with no in-context distinct neighbour,
	// but they should still have been compared against each other.
	if math.IsInf(cmp.MinDist[0][1], 1) {
		t.Error("expected context 0 and context 1 to have been compared")
	}
	// Subsequences 0 and 6 are {1,2,3,4} and {7,8,9,10}: distance 12. Had
	// the gap columns 1..5 been folded in, the entry would have dropped to 2.
	if math.Abs(cmp.MinDist[0][1]-12) > 1e-9 || math.Abs(cmp.MinDist[1][0]-12) > 1e-9 {
		t.Errorf("expected only in-context columns to count (12), got %v %v", cmp.MinDist[0][1], cmp.MinDist[1][0])
	}
}
