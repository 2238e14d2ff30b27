package cmprofile

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/rchiosa/cmp-anomaly/internal/contextmgr"
)

// DistanceSource produces one column of a conceptual distance matrix at a
// time. *distance.Generator satisfies this.
type DistanceSource interface {
	Column(c int) ([]float64, error)
	NumSub() int
}

// ColumnSink receives a raw distance column along with the column index
// that produced it. *Consumer satisfies this.
type ColumnSink interface {
	ConsumeColumn(col int, d []float64)
}

// ColumnOrder selects the order in which the calculator visits columns.
type ColumnOrder int

const (
	// Sequential visits columns 0, 1, 2, ... N_sub-1.
	Sequential ColumnOrder = iota
	// SeededRandom visits a fixed pseudo-random permutation of the
	// columns, reproducible given the same seed.
	SeededRandom
)

type subscription struct {
	sourceIdx int
	sink      ColumnSink
}

// Calculator is the anytime driver: it feeds distance columns to one or
// more consumers in a fixed, resumable order, stopping after a caller-given
// budget of columns and picking back up on the next call. The core
// pipeline wires exactly one generator to one consumer, but the calculator
// itself supports fan-out to several of each, mirroring the batch-dispatch
// shape the contextual profile is built on.
type Calculator struct {
	sources []DistanceSource
	subs    []subscription

	numSub int
	order  []int
	cursor int
}

// NewCalculator builds a Calculator over a domain of numSub column indices,
// precomputing the visit order. seed is only consulted for SeededRandom.
func NewCalculator(numSub int, order ColumnOrder, seed int64) (*Calculator, error) {
	if numSub <= 0 {
		return nil, fmt.Errorf("cmprofile: numSub must be positive, got %d", numSub)
	}

	visit := make([]int, numSub)
	for i := range visit {
		visit[i] = i
	}
	if order == SeededRandom {
		rng := rand.New(rand.NewSource(seed))
		rng.Shuffle(numSub, func(i, j int) { visit[i], visit[j] = visit[j], visit[i] })
	}

	return &Calculator{
		numSub: numSub,
		order:  visit,
	}, nil
}

// AddSource registers a distance source and returns its index, to be used
// with AddConsumer.
func (c *Calculator) AddSource(s DistanceSource) int {
	c.sources = append(c.sources, s)
	return len(c.sources) - 1
}

// AddConsumer subscribes sink to the column stream produced by the source
// at sourceIdx.
func (c *Calculator) AddConsumer(sourceIdx int, sink ColumnSink) {
	c.subs = append(c.subs, subscription{sourceIdx: sourceIdx, sink: sink})
}

// Done reports whether every column index has been fed to every consumer.
func (c *Calculator) Done() bool {
	return c.cursor >= c.numSub
}

// Progress returns (columns visited, total columns).
func (c *Calculator) Progress() (int, int) {
	return c.cursor, c.numSub
}

// Run visits up to budget columns (budget <= 0 means unlimited: run to
// completion), feeding each to every subscribed consumer in the
// calculator's fixed visit order. Run is resumable: a later call continues
// from where the previous one left off. It returns ctx.Err() if the
// context is cancelled between columns.
func (c *Calculator) Run(ctx context.Context, budget int) error {
	remaining := budget
	for !c.Done() {
		if budget > 0 && remaining <= 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		col := c.order[c.cursor]
		for _, sub := range c.subs {
			d, err := c.sources[sub.sourceIdx].Column(col)
			if err != nil {
				return fmt.Errorf("cmprofile: column %d from source %d: %w", col, sub.sourceIdx, err)
			}
			sub.sink.ConsumeColumn(col, d)
		}

		c.cursor++
		remaining--
	}
	return nil
}

// RunParallel is the parallel counterpart to Run for the single
// generator/single consumer case. A distance.Generator is stateful (it
// caches the last column for the incremental update) and so is not safe to
// share across goroutines; callers therefore supply one independent
// DistanceSource per batch (for example, several distance.Generator
// instances built over the same series) via gens, matching 1:1 with the
// batches RunParallel slices out of order. Each batch computes against its
// own shadow CMP in a goroutine; once every batch completes, the shadows
// are merged into base with an element-wise minimum in batch order, so
// ties are resolved in favour of the earliest column to have produced a
// given minimum — the same tie-break the sequential path gives.
func RunParallel(ctx context.Context, gens []DistanceSource, ctxMgr *contextmgr.Manager, base *CMP, order []int, batchSize int) error {
	if batchSize <= 0 {
		return fmt.Errorf("cmprofile: batchSize must be positive, got %d", batchSize)
	}

	var batches [][]int
	for i := 0; i < len(order); i += batchSize {
		end := i + batchSize
		if end > len(order) {
			end = len(order)
		}
		batches = append(batches, order[i:end])
	}
	if len(gens) < len(batches) {
		return fmt.Errorf("cmprofile: need %d independent distance sources for %d batches, got %d", len(batches), len(batches), len(gens))
	}

	results := make([]*CMP, len(batches))
	errs := make([]error, len(batches))

	var wg sync.WaitGroup
	for bi, cols := range batches {
		wg.Add(1)
		go func(bi int, cols []int) {
			defer wg.Done()
			shadow := NewCMP(base.K)
			consumer := &Consumer{ctx: ctxMgr, cmp: shadow}
			gen := gens[bi]
			for _, col := range cols {
				select {
				case <-ctx.Done():
					errs[bi] = ctx.Err()
					return
				default:
				}
				d, err := gen.Column(col)
				if err != nil {
					errs[bi] = fmt.Errorf("cmprofile: column %d: %w", col, err)
					return
				}
				consumer.ConsumeColumn(col, d)
			}
			results[bi] = shadow
		}(bi, cols)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	for _, shadow := range results {
		base.mergeFrom(shadow)
	}
	return nil
}
