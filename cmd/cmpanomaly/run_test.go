package main

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestContextsPathFor(t *testing.T) {
	got := contextsPathFor("out/anomalies.csv")
	want := "out/anomalies_contexts.csv"
	if got != want {
		t.Errorf("contextsPathFor = %q, want %q", got, want)
	}
}

func TestDayLabelsWithoutStartDate(t *testing.T) {
	labels := dayLabels(3, time.Time{})
	want := []string{"day-0", "day-1", "day-2"}
	for i, w := range want {
		if labels[i] != w {
			t.Errorf("labels[%d] = %q, want %q", i, labels[i], w)
		}
	}
}

func TestDayLabelsWithStartDate(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	labels := dayLabels(2, start)
	want := []string{"2026-01-01", "2026-01-02"}
	for i, w := range want {
		if labels[i] != w {
			t.Errorf("labels[%d] = %q, want %q", i, labels[i], w)
		}
	}
}

// buildFixtureCSV writes a minimal quarter-hourly CSV with a planted spike
// on day 3, 10 days total, 96 samples/day.
func buildFixtureCSV(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.csv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"timestamp", "power"}); err != nil {
		t.Fatalf("write header: %v", err)
	}
	const p = 96
	const days = 10
	for d := 0; d < days; d++ {
		for i := 0; i < p; i++ {
			v := 100.0
			if d == 3 && i >= 30 && i < 50 {
				v = 500.0
			}
			ts := time.Date(2026, 1, 1+d, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * 15 * time.Minute)
			row := []string{ts.Format(time.RFC3339), strconv.FormatFloat(v, 'f', -1, 64)}
			if err := w.Write(row); err != nil {
				t.Fatalf("write row: %v", err)
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		t.Fatalf("flush fixture: %v", err)
	}
	return path
}

func TestRunPipelineEndToEnd(t *testing.T) {
	input := buildFixtureCSV(t)
	outDir := t.TempDir()

	logger := zerolog.Nop()
	flags := runFlags{
		input:             input,
		variable:          "power",
		output:            filepath.Join(outDir, "anomalies.csv"),
		severityThreshold: 6,
		contextHours:      1,
		parallelism:       1,
		samplesPerDay:     96,
		clusters:          1,
		minIntervalHours:  1,
		maxWindows:        4,
		startDate:         "2026-01-01",
	}

	if err := runPipeline(context.Background(), flags, &logger); err != nil {
		t.Fatalf("runPipeline: %v", err)
	}

	if _, err := os.Stat(flags.output); err != nil {
		t.Errorf("expected anomaly table at %s: %v", flags.output, err)
	}
	if _, err := os.Stat(contextsPathFor(flags.output)); err != nil {
		t.Errorf("expected contexts table: %v", err)
	}
}

func TestRunPipelineRejectsMissingInput(t *testing.T) {
	logger := zerolog.Nop()
	flags := runFlags{
		input:         filepath.Join(t.TempDir(), "missing.csv"),
		variable:      "power",
		output:        filepath.Join(t.TempDir(), "out.csv"),
		samplesPerDay: 96,
		clusters:      1,
	}
	if err := runPipeline(context.Background(), flags, &logger); err == nil {
		t.Error("expected error for missing input file")
	}
}
