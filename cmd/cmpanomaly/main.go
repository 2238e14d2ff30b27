// Command cmpanomaly runs the contextual matrix profile anomaly pipeline
// over a CSV series and writes the resulting anomaly table, contexts
// table, and optional CMP heatmaps.
package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	log.Logger = logger

	cmd := newRootCmd(&logger)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		logger.Error().Err(err).Msg("cmpanomaly failed")
		os.Exit(1)
	}
}

func newRootCmd(logger *zerolog.Logger) *cobra.Command {
	var flags runFlags

	root := &cobra.Command{
		Use:   "cmpanomaly",
		Short: "Detect anomalous days in a quarter-hourly series via the contextual matrix profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), flags, logger)
		},
	}

	f := root.Flags()
	f.StringVar(&flags.input, "input", "", "Path to the input CSV (required)")
	f.StringVar(&flags.variable, "variable", "", "Name of the value column to analyse (required)")
	f.StringVar(&flags.temperature, "temperature", "", "Name of the temperature column, if present")
	f.StringVar(&flags.output, "output", "anomalies.csv", "Path to write the anomaly table")
	f.StringVar(&flags.contextsOutput, "contexts-output", "", "Path to write the contexts table (default: next to --output)")
	f.StringVar(&flags.heatmapDir, "heatmap-dir", "", "Directory to write one PNG CMP heatmap per window (omit to skip)")
	f.StringVar(&flags.country, "country", "", "ISO country code passed to the holiday calendar")
	f.BoolVar(&flags.excludeHolidays, "exclude-holidays", false, "Exclude New Year's Day and Christmas from scoring")
	f.IntVar(&flags.severityThreshold, "severity-threshold", 6, "Minimum combined severity for a day to be reported")
	f.Float64Var(&flags.contextHours, "context-hours", 1, "m_ctx, the context length in hours")
	f.IntVar(&flags.parallelism, "parallelism", 1, "Concurrent batches per window's CMP computation")
	f.IntVar(&flags.samplesPerDay, "samples-per-day", 96, "Observations per day, p")
	f.IntVar(&flags.clusters, "clusters", 4, "Target number of day clusters, g")
	f.Float64Var(&flags.minIntervalHours, "min-interval-hours", 1, "Minimum window width produced by segmentation")
	f.IntVar(&flags.maxWindows, "max-windows", 24, "Maximum number of windows produced by segmentation")
	f.StringVar(&flags.startDate, "start-date", "", "ISO date (YYYY-MM-DD) of day 0, used to label reported days")

	root.MarkFlagRequired("input")
	root.MarkFlagRequired("variable")

	return root
}

type runFlags struct {
	input             string
	variable          string
	temperature       string
	output            string
	contextsOutput    string
	heatmapDir        string
	country           string
	excludeHolidays   bool
	severityThreshold int
	contextHours      float64
	parallelism       int
	samplesPerDay     int
	clusters          int
	minIntervalHours  float64
	maxWindows        int
	startDate         string
}
