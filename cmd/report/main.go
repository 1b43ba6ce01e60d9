// Package main renders a stored backtest run as markdown or JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"candle-bin-lab/internal/analysis"
	"candle-bin-lab/internal/config"
	"candle-bin-lab/internal/logging"
	"candle-bin-lab/internal/pipeline"
	"candle-bin-lab/internal/reporting"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (defaults when empty)")
	runID := flag.String("run", "", "Run ID (latest run of the symbol when empty)")
	symbol := flag.String("symbol", "", "Symbol (overrides symbol)")
	format := flag.String("format", "markdown", "Output format: markdown or json")
	analysisPath := flag.String("analysis", "", "Feature analysis report JSON to attach")
	out := flag.String("out", "", "Output file (stdout when empty)")
	tradesCSV := flag.String("trades-csv", "", "Also write the trade ledger as CSV to this file")
	flag.Parse()

	if *format != "markdown" && *format != "json" {
		fmt.Fprintf(os.Stderr, "Error: unknown format %q\n", *format)
		os.Exit(1)
	}

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *symbol != "" {
		cfg.Symbol = *symbol
	}

	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	ctx := context.Background()

	stores, cleanup, err := pipeline.OpenStores(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open stores")
	}
	defer cleanup()

	gen := reporting.NewGenerator(stores.Runs, stores.Trades).WithAssessments(stores.Assessments)
	if *analysisPath != "" {
		f, err := os.Open(*analysisPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("open analysis report")
		}
		rep, err := analysis.LoadReport(f)
		f.Close()
		if err != nil {
			logger.Fatal().Err(err).Msg("load analysis report")
		}
		gen = gen.WithAnalysis(rep)
	}

	var rep *reporting.Report
	if *runID != "" {
		rep, err = gen.Generate(ctx, *runID)
	} else {
		rep, err = gen.GenerateLatest(ctx, cfg.Symbol)
	}
	if err != nil {
		logger.Fatal().Err(err).Str("run", *runID).Str("symbol", cfg.Symbol).Msg("generate report")
	}

	var body []byte
	switch *format {
	case "json":
		body, err = json.MarshalIndent(rep, "", "  ")
		if err != nil {
			logger.Fatal().Err(err).Msg("encode report")
		}
		body = append(body, '\n')
	default:
		body = []byte(reporting.RenderMarkdown(rep))
	}

	if *out == "" {
		os.Stdout.Write(body)
	} else {
		if err := writeFile(*out, body); err != nil {
			logger.Fatal().Err(err).Msg("write report")
		}
		logger.Info().Str("path", *out).Str("run_id", rep.Run.RunID).Msg("report written")
	}

	if *tradesCSV != "" {
		if err := writeFile(*tradesCSV, []byte(reporting.RenderTradesCSV(rep.Trades))); err != nil {
			logger.Fatal().Err(err).Msg("write trades csv")
		}
		logger.Info().Str("path", *tradesCSV).Int("trades", len(rep.Trades)).Msg("trades written")
	}
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}
