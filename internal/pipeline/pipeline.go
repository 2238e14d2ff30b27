// Package pipeline wires the context manager, distance generator, CMP
// consumer, anytime calculator, feature extractors, and rank-voting scorer
// into the end-to-end per-window, per-cluster anomaly detection run.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/rchiosa/cmp-anomaly/internal/cluster"
	"github.com/rchiosa/cmp-anomaly/internal/cmprofile"
	"github.com/rchiosa/cmp-anomaly/internal/contextmgr"
	"github.com/rchiosa/cmp-anomaly/internal/distance"
	"github.com/rchiosa/cmp-anomaly/internal/features"
	"github.com/rchiosa/cmp-anomaly/internal/scorer"
	"github.com/rchiosa/cmp-anomaly/internal/segment"
	"github.com/rchiosa/cmp-anomaly/internal/series"
)

// Options configures a Driver run. Zero-valued fields fall back to the
// documented defaults.
type Options struct {
	// ContextHours is m_ctx, the context length in hours. Default 1.
	ContextHours float64
	// SeverityThreshold is the minimum combined_severity (cmp_score +
	// energy_score) for a day to be reported. Default 6, the Open
	// Question resolution: exposed as a parameter rather than a fixed
	// magic number.
	SeverityThreshold int
	// MaxAnomaliesPerGroup caps how many anomalies are reported per
	// (window, cluster) pair. Default 10.
	MaxAnomaliesPerGroup int
	// StartDate, if non-zero, labels day d as StartDate+d days in the
	// output; otherwise days are labelled "day-<d>".
	StartDate time.Time
	// ExcludedDays, if non-nil, must have length D; a true entry removes
	// that day from every cluster's scoring (e.g. a holiday calendar
	// filter applied upstream by the CLI), without altering the context
	// partition or CMP computation itself.
	ExcludedDays []bool
	// Parallelism, if > 1, computes each window's CMP with that many
	// concurrent batches via cmprofile.RunParallel instead of a single
	// sequential pass.
	Parallelism int
	// ExportCMP, if true, includes each window's exported (NaN-diagonal)
	// CMP matrix in the result, keyed by window index.
	ExportCMP bool
	// Logger receives one progress line per window. A nil Logger is
	// replaced with a no-op logger.
	Logger *zerolog.Logger
}

var nopLogger = zerolog.Nop()

func (o Options) withDefaults() Options {
	if o.ContextHours <= 0 {
		o.ContextHours = 1
	}
	if o.SeverityThreshold <= 0 {
		o.SeverityThreshold = 6
	}
	if o.MaxAnomaliesPerGroup <= 0 {
		o.MaxAnomaliesPerGroup = 10
	}
	if o.Logger == nil {
		o.Logger = &nopLogger
	}
	return o
}

// AnomalyRecord is one row of the output anomaly table.
type AnomalyRecord struct {
	Day               int
	Date              string
	ClusterID         int
	WindowID          int
	CMPScore          int
	EnergyScore       int
	TemperatureScore  int
	CombinedSeverity  int
	RankWithinGroup   int
	EnergyAbsoluteDev float64
	EnergyRelativeDev float64
	TemperatureZScore float64
}

// ContextDescriptor is one row of the contexts_table output.
type ContextDescriptor struct {
	WindowID     int
	From         string
	To           string
	ContextLabel string
	Observations int
}

// Result is everything a Driver run produces.
type Result struct {
	Anomalies   []AnomalyRecord
	Contexts    []ContextDescriptor
	CMPByWindow map[int][][]float64
}

// Driver runs the full pipeline over a fixed series, window table, and
// cluster mask.
type Driver struct {
	opts Options
}

// NewDriver builds a Driver with opts, applying documented defaults to any
// zero-valued field.
func NewDriver(opts Options) *Driver {
	return &Driver{opts: opts.withDefaults()}
}

// Run executes every window in windows against s and mask, returning the
// aggregated anomaly table, contexts table, and (if requested) the
// per-window CMP export.
func (d *Driver) Run(ctx context.Context, s *series.Series, windows []segment.Window, mask cluster.Mask) (*Result, error) {
	if len(windows) == 0 {
		return nil, fmt.Errorf("pipeline: window table must not be empty")
	}
	if len(mask) != s.Days() {
		return nil, fmt.Errorf("pipeline: cluster mask has %d rows, want %d (one per day)", len(mask), s.Days())
	}
	if d.opts.ExcludedDays != nil && len(d.opts.ExcludedDays) != s.Days() {
		return nil, fmt.Errorf("pipeline: ExcludedDays has %d entries, want %d", len(d.opts.ExcludedDays), s.Days())
	}

	result := &Result{}
	if d.opts.ExportCMP {
		result.CMPByWindow = make(map[int][][]float64)
	}

	for k, w := range windows {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		geom, err := deriveGeometry(k, w.From, w.To, w.Observations, d.opts.ContextHours, s.SamplesPerDay)
		if err != nil {
			return nil, err
		}

		ranges := make([]contextmgr.Range, s.Days())
		for dayIdx := 0; dayIdx < s.Days(); dayIdx++ {
			base := dayIdx * s.SamplesPerDay
			ranges[dayIdx] = contextmgr.Range{Start: base + geom.ctxStart, End: base + geom.ctxEnd}
		}
		ctxMgr, err := contextmgr.New(ranges, s.Len()-geom.m+1)
		if err != nil {
			return nil, fmt.Errorf("pipeline: window %d: %w", k, err)
		}

		gen, err := distance.Prepare(s.Values, geom.m)
		if err != nil {
			return nil, fmt.Errorf("pipeline: window %d: %w", k, err)
		}

		consumer := cmprofile.NewConsumer(ctxMgr)
		if d.opts.Parallelism > 1 {
			order := make([]int, gen.NumSub())
			for i := range order {
				order[i] = i
			}
			gens := make([]cmprofile.DistanceSource, d.opts.Parallelism)
			for i := range gens {
				g, err := distance.Prepare(s.Values, geom.m)
				if err != nil {
					return nil, fmt.Errorf("pipeline: window %d: %w", k, err)
				}
				gens[i] = g
			}
			batchSize := (len(order) + d.opts.Parallelism - 1) / d.opts.Parallelism
			if batchSize < 1 {
				batchSize = 1
			}
			if err := cmprofile.RunParallel(ctx, gens, ctxMgr, consumer.CMP(), order, batchSize); err != nil {
				return nil, fmt.Errorf("pipeline: window %d: %w", k, err)
			}
		} else {
			calc, err := cmprofile.NewCalculator(gen.NumSub(), cmprofile.Sequential, 0)
			if err != nil {
				return nil, fmt.Errorf("pipeline: window %d: %w", k, err)
			}
			srcIdx := calc.AddSource(gen)
			calc.AddConsumer(srcIdx, consumer)
			if err := calc.Run(ctx, -1); err != nil {
				return nil, fmt.Errorf("pipeline: window %d: %w", k, err)
			}
		}

		d.opts.Logger.Debug().
			Int("window", k).
			Int("contexts", ctxMgr.NumContexts()).
			Int("query_length", geom.m).
			Msg("window CMP computed")

		full := consumer.CMP().MinDist
		if d.opts.ExportCMP {
			result.CMPByWindow[k] = consumer.CMP().Export()
		}

		contextLabel := fmt.Sprintf("[%d,%d)", geom.ctxStart, geom.ctxEnd)
		result.Contexts = append(result.Contexts, ContextDescriptor{
			WindowID:     k,
			From:         w.From,
			To:           w.To,
			ContextLabel: contextLabel,
			Observations: w.Observations,
		})

		records, err := d.scoreWindow(k, s, mask, full, geom)
		if err != nil {
			return nil, fmt.Errorf("pipeline: window %d: %w", k, err)
		}
		result.Anomalies = append(result.Anomalies, records...)
	}

	return result, nil
}

func (d *Driver) scoreWindow(windowID int, s *series.Series, mask cluster.Mask, full [][]float64, geom windowGeometry) ([]AnomalyRecord, error) {
	var out []AnomalyRecord

	for j := 0; j < mask.NumClusters(); j++ {
		dayIdx := mask.DayIndices(j)
		if d.opts.ExcludedDays != nil {
			filtered := dayIdx[:0:0]
			for _, day := range dayIdx {
				if !d.opts.ExcludedDays[day] {
					filtered = append(filtered, day)
				}
			}
			dayIdx = filtered
		}
		if len(dayIdx) == 0 {
			continue
		}
		if len(dayIdx) < scorer.MinClusterSize {
			d.opts.Logger.Warn().
				Int("window", windowID).
				Int("cluster", j).
				Int("size", len(dayIdx)).
				Err(scorer.ErrDegenerateCluster).
				Msg("cluster too small for percentile scoring, reporting zero severity")
		}

		cs, err := features.NewClusterSlice(full, dayIdx)
		if err != nil {
			return nil, fmt.Errorf("cluster %d: %w", j, err)
		}
		cmpVec := features.VectorADCMP(cs)
		energyVec := features.VectorADEnergy(s, dayIdx, geom.winStart, geom.winEnd)
		tempVec := features.VectorADTemperature(s, dayIdx, geom.winStart, geom.winEnd)

		cmpScore := scorer.Score(cmpVec)
		energyScore := scorer.Score(energyVec)
		tempScore := scorer.Score(tempVec)

		energyAbs := features.EnergyAbsoluteDeviation(energyVec)
		energyRel := features.EnergyRelativeDeviationPct(energyVec)
		tempZ := features.TemperatureZScore(tempVec)

		type candidate struct {
			pos      int
			day      int
			combined int
		}
		var candidates []candidate
		for i, day := range dayIdx {
			combined := cmpScore[i] + energyScore[i]
			if combined < d.opts.SeverityThreshold {
				continue
			}
			candidates = append(candidates, candidate{pos: i, day: day, combined: combined})
		}

		sort.SliceStable(candidates, func(a, b int) bool {
			if candidates[a].combined != candidates[b].combined {
				return candidates[a].combined > candidates[b].combined
			}
			return candidates[a].day < candidates[b].day
		})
		if len(candidates) > d.opts.MaxAnomaliesPerGroup {
			candidates = candidates[:d.opts.MaxAnomaliesPerGroup]
		}

		for rank, c := range candidates {
			out = append(out, AnomalyRecord{
				Day:               c.day,
				Date:              d.dateLabel(c.day),
				ClusterID:         j,
				WindowID:          windowID,
				CMPScore:          cmpScore[c.pos],
				EnergyScore:       energyScore[c.pos],
				TemperatureScore:  tempScore[c.pos],
				CombinedSeverity:  c.combined,
				RankWithinGroup:   rank + 1,
				EnergyAbsoluteDev: energyAbs[c.pos],
				EnergyRelativeDev: energyRel[c.pos],
				TemperatureZScore: tempZ[c.pos],
			})
		}
	}
	return out, nil
}

func (d *Driver) dateLabel(day int) string {
	if d.opts.StartDate.IsZero() {
		return fmt.Sprintf("day-%d", day)
	}
	return d.opts.StartDate.AddDate(0, 0, day).Format("2006-01-02")
}
