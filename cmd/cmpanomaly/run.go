package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/rchiosa/cmp-anomaly/internal/cluster"
	"github.com/rchiosa/cmp-anomaly/internal/holidays"
	"github.com/rchiosa/cmp-anomaly/internal/pipeline"
	"github.com/rchiosa/cmp-anomaly/internal/report"
	"github.com/rchiosa/cmp-anomaly/internal/segment"
	"github.com/rchiosa/cmp-anomaly/internal/series"
)

// runPipeline reads flags.input, runs segmentation, clustering, and the
// pipeline driver in sequence, and writes the resulting tables (and,
// optionally, per-window heatmaps) to disk.
func runPipeline(ctx context.Context, flags runFlags, logger *zerolog.Logger) error {
	f, err := os.Open(flags.input)
	if err != nil {
		return fmt.Errorf("cmpanomaly: opening %s: %w", flags.input, err)
	}
	defer f.Close()

	s, err := series.LoadCSV(f, flags.variable, flags.temperature, flags.samplesPerDay)
	if err != nil {
		return fmt.Errorf("cmpanomaly: loading series: %w", err)
	}
	logger.Info().Int("days", s.Days()).Int("samples_per_day", s.SamplesPerDay).Msg("series loaded")

	dayProfiles := make([][]float64, s.Days())
	for d := range dayProfiles {
		dayProfiles[d] = s.Day(d)
	}

	windows, err := segment.Split(dayProfiles, segment.Options{
		SamplesPerDay:    s.SamplesPerDay,
		MinIntervalHours: flags.minIntervalHours,
		MaxWindows:       flags.maxWindows,
	})
	if err != nil {
		return fmt.Errorf("cmpanomaly: deriving window table: %w", err)
	}
	logger.Info().Int("windows", len(windows)).Msg("window table derived")

	target := flags.clusters
	if target > s.Days() {
		target = s.Days()
	}
	mask, err := cluster.Agglomerate(dayProfiles, target)
	if err != nil {
		return fmt.Errorf("cmpanomaly: clustering days: %w", err)
	}
	logger.Info().Int("clusters", mask.NumClusters()).Msg("day clusters derived")

	opts := pipeline.Options{
		ContextHours:      flags.contextHours,
		SeverityThreshold: flags.severityThreshold,
		Parallelism:       flags.parallelism,
		ExportCMP:         flags.heatmapDir != "",
		Logger:            logger,
	}

	var startDate time.Time
	if flags.startDate != "" {
		startDate, err = time.Parse("2006-01-02", flags.startDate)
		if err != nil {
			return fmt.Errorf("cmpanomaly: parsing --start-date: %w", err)
		}
		opts.StartDate = startDate
	}

	if flags.excludeHolidays {
		var cal holidays.Calendar = holidays.FixedDateCalendar{}
		if startDate.IsZero() {
			return fmt.Errorf("cmpanomaly: --exclude-holidays requires --start-date")
		}
		excluded := make([]bool, s.Days())
		for d := range excluded {
			excluded[d] = cal.IsHoliday(startDate.AddDate(0, 0, d), flags.country)
		}
		opts.ExcludedDays = excluded
	}

	driver := pipeline.NewDriver(opts)
	result, err := driver.Run(ctx, s, windows, mask)
	if err != nil {
		return fmt.Errorf("cmpanomaly: running pipeline: %w", err)
	}
	logger.Info().Int("anomalies", len(result.Anomalies)).Msg("pipeline run complete")

	if err := writeAnomalies(flags.output, result.Anomalies); err != nil {
		return err
	}

	contextsPath := flags.contextsOutput
	if contextsPath == "" {
		contextsPath = contextsPathFor(flags.output)
	}
	if err := writeContexts(contextsPath, result.Contexts); err != nil {
		return err
	}

	if flags.heatmapDir != "" {
		if err := os.MkdirAll(flags.heatmapDir, 0o755); err != nil {
			return fmt.Errorf("cmpanomaly: creating heatmap directory: %w", err)
		}
		labels := dayLabels(s.Days(), startDate)
		for k, cmp := range result.CMPByWindow {
			path := filepath.Join(flags.heatmapDir, fmt.Sprintf("window-%d.png", k))
			if err := report.WriteCMPHeatmap(cmp, labels, path); err != nil {
				return fmt.Errorf("cmpanomaly: writing heatmap for window %d: %w", k, err)
			}
		}
	}

	return nil
}

func contextsPathFor(anomaliesPath string) string {
	ext := filepath.Ext(anomaliesPath)
	base := anomaliesPath[:len(anomaliesPath)-len(ext)]
	return base + "_contexts" + ext
}

func dayLabels(days int, startDate time.Time) []string {
	labels := make([]string, days)
	for d := range labels {
		if startDate.IsZero() {
			labels[d] = fmt.Sprintf("day-%d", d)
		} else {
			labels[d] = startDate.AddDate(0, 0, d).Format("2006-01-02")
		}
	}
	return labels
}

func writeAnomalies(path string, rows []pipeline.AnomalyRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cmpanomaly: creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{
		"day", "date", "cluster_id", "window_id", "cmp_score", "energy_score",
		"temperature_score", "combined_severity", "rank_within_group",
		"energy_absolute_deviation", "energy_relative_deviation_pct", "temperature_zscore",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("cmpanomaly: writing %s: %w", path, err)
	}
	for _, r := range rows {
		record := []string{
			strconv.Itoa(r.Day),
			r.Date,
			strconv.Itoa(r.ClusterID),
			strconv.Itoa(r.WindowID),
			strconv.Itoa(r.CMPScore),
			strconv.Itoa(r.EnergyScore),
			strconv.Itoa(r.TemperatureScore),
			strconv.Itoa(r.CombinedSeverity),
			strconv.Itoa(r.RankWithinGroup),
			strconv.FormatFloat(r.EnergyAbsoluteDev, 'f', -1, 64),
			strconv.FormatFloat(r.EnergyRelativeDev, 'f', -1, 64),
			strconv.FormatFloat(r.TemperatureZScore, 'f', -1, 64),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("cmpanomaly: writing %s: %w", path, err)
		}
	}
	return nil
}

func writeContexts(path string, rows []pipeline.ContextDescriptor) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cmpanomaly: creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"window_id", "from", "to", "context_label", "observations"}); err != nil {
		return fmt.Errorf("cmpanomaly: writing %s: %w", path, err)
	}
	for _, r := range rows {
		record := []string{
			strconv.Itoa(r.WindowID),
			r.From,
			r.To,
			r.ContextLabel,
			strconv.Itoa(r.Observations),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("cmpanomaly: writing %s: %w", path, err)
		}
	}
	return nil
}
