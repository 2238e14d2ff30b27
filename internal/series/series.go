// Package series holds the read-only inputs to the contextual matrix
// profile engine: the value series under analysis and its aligned
// temperature channel, both sampled at a fixed number of observations per
// day.
package series

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
)

// ErrNaNInSeries is wrapped into the error New returns when a value or
// temperature reading is NaN or infinite; the series must be gap-filled
// upstream before reaching this package.
var ErrNaNInSeries = errors.New("series: non-finite value")

// Series is an equally-spaced univariate time series together with an
// optional aligned temperature channel. Both slices are read-only for the
// duration of a run.
type Series struct {
	Values        []float64 // the variable under analysis
	Temperature   []float64 // aligned exogenous channel, may be nil
	SamplesPerDay int       // p, samples per day, e.g. 96 for 15-minute data
}

// New validates and returns a Series. Values must be a non-zero multiple of
// SamplesPerDay and free of NaN/Inf; Temperature, if present, must have the
// same length as Values.
func New(values, temperature []float64, samplesPerDay int) (*Series, error) {
	if samplesPerDay <= 0 {
		return nil, fmt.Errorf("series: samples per day must be positive, got %d", samplesPerDay)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("series: values must not be empty")
	}
	if len(values)%samplesPerDay != 0 {
		return nil, fmt.Errorf("series: length %d is not a multiple of samples-per-day %d", len(values), samplesPerDay)
	}
	if temperature != nil && len(temperature) != len(values) {
		return nil, fmt.Errorf("series: temperature length %d does not match values length %d", len(temperature), len(values))
	}
	if err := checkFinite(values, "value"); err != nil {
		return nil, err
	}
	if temperature != nil {
		if err := checkFinite(temperature, "temperature"); err != nil {
			return nil, err
		}
	}

	return &Series{
		Values:        values,
		Temperature:   temperature,
		SamplesPerDay: samplesPerDay,
	}, nil
}

func checkFinite(vals []float64, label string) error {
	for i, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s at index %d; series must be gap-filled upstream", ErrNaNInSeries, label, i)
		}
	}
	return nil
}

// Len returns the number of observations, n.
func (s *Series) Len() int {
	return len(s.Values)
}

// Days returns D, the number of full days covered by the series.
func (s *Series) Days() int {
	return len(s.Values) / s.SamplesPerDay
}

// Day returns the slice of values for day d, in [0, Days()).
func (s *Series) Day(d int) []float64 {
	start := d * s.SamplesPerDay
	return s.Values[start : start+s.SamplesPerDay]
}

// Window returns the sub-slice of day d's values spanning observation
// offsets [start, end) within the day.
func (s *Series) Window(d, start, end int) []float64 {
	base := d * s.SamplesPerDay
	return s.Values[base+start : base+end]
}

// TemperatureWindow mirrors Window over the temperature channel.
func (s *Series) TemperatureWindow(d, start, end int) []float64 {
	base := d * s.SamplesPerDay
	return s.Temperature[base+start : base+end]
}

// LoadCSV reads a header-first CSV of one row per observation and builds a
// Series for the named variable column, optionally pairing it with a
// temperature column. Columns are matched by header name; rows are read in
// file order, which must already be chronological and gap-free.
func LoadCSV(r io.Reader, variable, temperatureColumn string, samplesPerDay int) (*Series, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("series: reading CSV header: %w", err)
	}

	varIdx, err := columnIndex(header, variable)
	if err != nil {
		return nil, err
	}
	tempIdx := -1
	if temperatureColumn != "" {
		tempIdx, err = columnIndex(header, temperatureColumn)
		if err != nil {
			return nil, err
		}
	}

	var values, temperature []float64
	row := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("series: reading CSV row %d: %w", row, err)
		}

		v, err := strconv.ParseFloat(rec[varIdx], 64)
		if err != nil {
			return nil, fmt.Errorf("series: row %d column %q: %w", row, variable, err)
		}
		values = append(values, v)

		if tempIdx >= 0 {
			t, err := strconv.ParseFloat(rec[tempIdx], 64)
			if err != nil {
				return nil, fmt.Errorf("series: row %d column %q: %w", row, temperatureColumn, err)
			}
			temperature = append(temperature, t)
		}
		row++
	}

	return New(values, temperature, samplesPerDay)
}

func columnIndex(header []string, name string) (int, error) {
	for i, h := range header {
		if h == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("series: column %q not found in CSV header", name)
}
