// Package features derives per-day real-valued diagnostic vectors from a
// cluster-restricted contextual matrix profile slice, a raw series, and a
// time window, for consumption by the rank-voting scorer.
package features

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/rchiosa/cmp-anomaly/internal/series"
)

// ClusterSlice is the g_j x g_j symmetric sub-matrix of the full contextual
// matrix profile restricted to one cluster's day indices, with +Inf already
// folded to 0 (the "no comparison ever beat this" boundary case, not a
// missing value).
type ClusterSlice struct {
	DayIdx []int
	Values [][]float64
}

// NewClusterSlice extracts the rows/columns of full (a K x K CMP matrix,
// K == number of contexts == number of days for a per-day context layout)
// indexed by dayIdx, replacing any +Inf with 0.
func NewClusterSlice(full [][]float64, dayIdx []int) (*ClusterSlice, error) {
	g := len(dayIdx)
	if g == 0 {
		return nil, fmt.Errorf("features: cluster must contain at least one day")
	}
	vals := make([][]float64, g)
	for i, du := range dayIdx {
		if du < 0 || du >= len(full) {
			return nil, fmt.Errorf("features: day index %d out of range [0, %d)", du, len(full))
		}
		row := make([]float64, g)
		for j, dv := range dayIdx {
			v := full[du][dv]
			if math.IsInf(v, 1) {
				v = 0
			}
			row[j] = v
		}
		vals[i] = row
	}
	return &ClusterSlice{DayIdx: append([]int(nil), dayIdx...), Values: vals}, nil
}

// VectorADCMP returns, for each day in the cluster, the minimum of its row
// in the slice excluding the diagonal: the distance to that day's nearest
// same-cluster match in the active context.
func VectorADCMP(cs *ClusterSlice) []float64 {
	g := len(cs.DayIdx)
	out := make([]float64, g)
	for i := 0; i < g; i++ {
		if g == 1 {
			out[i] = 0
			continue
		}
		row := make([]float64, 0, g-1)
		for j := 0; j < g; j++ {
			if j == i {
				continue
			}
			row = append(row, cs.Values[i][j])
		}
		out[i] = floats.Min(row)
	}
	return out
}

// VectorADEnergy returns, for each day in the cluster, the cumulative
// energy (plain sum of the series) over [winStart, winEnd) of that day's
// observations.
func VectorADEnergy(s *series.Series, dayIdx []int, winStart, winEnd int) []float64 {
	out := make([]float64, len(dayIdx))
	for i, d := range dayIdx {
		out[i] = floats.Sum(s.Window(d, winStart, winEnd))
	}
	return out
}

// VectorADTemperature returns, for each day in the cluster, the mean
// temperature over [winStart, winEnd) of that day's observations. A series
// with no temperature channel yields an all-zero vector rather than a
// nil-slice panic; TemperatureZScore's zero-variance guard then keeps the
// diagnostic score at zero downstream.
func VectorADTemperature(s *series.Series, dayIdx []int, winStart, winEnd int) []float64 {
	out := make([]float64, len(dayIdx))
	if s.Temperature == nil {
		return out
	}
	for i, d := range dayIdx {
		out[i] = stat.Mean(s.TemperatureWindow(d, winStart, winEnd), nil)
	}
	return out
}

// EnergyAbsoluteDeviation returns, for each day, its energy minus the
// cluster's mean energy. Recovered from the original implementation's
// vector_ad_energy_absolute; rides along as a diagnostic field and never
// feeds the combined severity score.
func EnergyAbsoluteDeviation(energy []float64) []float64 {
	mean := stat.Mean(energy, nil)
	out := make([]float64, len(energy))
	for i, e := range energy {
		out[i] = e - mean
	}
	return out
}

// EnergyRelativeDeviationPct is EnergyAbsoluteDeviation expressed as a
// percentage of the cluster mean energy (vector_ad_energy_relative in the
// original). If the cluster mean is zero, every day's relative deviation
// is reported as zero rather than dividing by zero.
func EnergyRelativeDeviationPct(energy []float64) []float64 {
	mean := stat.Mean(energy, nil)
	out := make([]float64, len(energy))
	if mean == 0 {
		return out
	}
	for i, e := range energy {
		out[i] = 100 * (e - mean) / mean
	}
	return out
}

// TemperatureZScore standardises each day's mean temperature against the
// cluster's own mean and standard deviation. A diagnostic dropped by the
// spec's distillation but present in the original implementation; zero
// variance (e.g. a single-day cluster) yields an all-zero vector.
func TemperatureZScore(temperature []float64) []float64 {
	mean, std := stat.MeanStdDev(temperature, nil)
	out := make([]float64, len(temperature))
	// A single value has an undefined (NaN) sample standard deviation.
	if std == 0 || math.IsNaN(std) {
		return out
	}
	for i, v := range temperature {
		out[i] = (v - mean) / std
	}
	return out
}
