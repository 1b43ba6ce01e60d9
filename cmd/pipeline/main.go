// Package main runs the bin analysis, scoring, backtest and assessment once
// over a feature CSV and writes the artefacts to the output directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"candle-bin-lab/internal/analysis"
	"candle-bin-lab/internal/assessment"
	"candle-bin-lab/internal/config"
	"candle-bin-lab/internal/dataset"
	"candle-bin-lab/internal/logging"
	"candle-bin-lab/internal/pipeline"
	"candle-bin-lab/internal/reporting"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (defaults when empty)")
	dataPath := flag.String("data", "", "Feature CSV (overrides data_path)")
	symbol := flag.String("symbol", "", "Symbol (overrides symbol)")
	outputDir := flag.String("output-dir", "", "Output directory (overrides output_dir)")
	reportPath := flag.String("report", "", "Score against a saved feature analysis report instead of analysing")
	buy := flag.Float64("buy", 0, "Buy threshold override")
	sell := flag.Float64("sell", 0, "Sell threshold override")
	leverage := flag.Float64("leverage", 0, "Leverage override")
	persist := flag.Bool("persist", false, "Persist results to the configured stores")
	printLedger := flag.Bool("print-ledger", false, "Print the trade ledger")
	lang := flag.String("lang", "", "Language tag for the assessment text (overrides assessment.language)")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *dataPath != "" {
		cfg.DataPath = *dataPath
	}
	if *symbol != "" {
		cfg.Symbol = *symbol
	}
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}
	if *lang != "" {
		cfg.Assessment.Language = *lang
	}
	// Only flags given on the command line override, so an explicit 0 works.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "buy":
			cfg.Backtest.BuyThreshold = *buy
		case "sell":
			cfg.Backtest.SellThreshold = *sell
		case "leverage":
			cfg.Backtest.Leverage = *leverage
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Warn().Str("signal", sig.String()).Msg("cancelling pipeline")
		cancel()
	}()

	if err := run(ctx, cfg, logger, *reportPath, *persist, *printLedger); err != nil {
		logger.Error().Err(err).Msg("pipeline failed")
		closer.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger, reportPath string, persist, printLedger bool) error {
	series, err := dataset.LoadFile(cfg.DataPath, cfg.Symbol)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	logger.Info().
		Str("symbol", series.Symbol).
		Int("bars", len(series.Bars)).
		Int("features", len(series.Features)).
		Msg("dataset loaded")

	p, err := pipeline.New(cfg, logger)
	if err != nil {
		return err
	}

	if persist {
		stores, cleanup, err := pipeline.OpenStores(ctx, cfg.Storage, logger)
		if err != nil {
			return fmt.Errorf("open stores: %w", err)
		}
		defer cleanup()
		p = p.WithStores(stores)
	}

	var res *pipeline.Result
	if reportPath != "" {
		f, err := os.Open(reportPath)
		if err != nil {
			return fmt.Errorf("open report: %w", err)
		}
		rep, err := analysis.LoadReport(f)
		f.Close()
		if err != nil {
			return err
		}
		res, err = p.RunWithReport(ctx, series, rep)
		if err != nil {
			return err
		}
	} else {
		res, err = p.Run(ctx, series)
		if err != nil {
			return err
		}
	}

	written, err := p.WriteOutputs(cfg.OutputDir, res)
	if err != nil {
		return err
	}
	for _, path := range written {
		logger.Info().Str("path", path).Msg("written")
	}

	fmt.Println("=== Backtest ===")
	fmt.Printf("Run:        %s\n", res.Run.RunID)
	fmt.Printf("Thresholds: buy=%.2f sell=%.2f leverage=%.1fx\n",
		res.Run.BuyThreshold, res.Run.SellThreshold, res.Run.Leverage)
	fmt.Printf("Trades:     %d (win rate %.2f%%)\n", res.Run.TotalTrades, res.Run.WinRate*100)
	fmt.Printf("Return:     %.4f (final equity %.4f)\n", res.Run.TotalReturn, res.Run.FinalEquity)
	fmt.Printf("Sharpe:     %.4f, max drawdown %.4f\n", res.Run.SharpeRatio, res.Run.MaxDrawdown)

	if printLedger {
		fmt.Println()
		fmt.Print(reporting.RenderLedger(res.Backtest.Trades, res.Run.Summary))
	}

	if res.Assessment != nil {
		tag, err := language.Parse(cfg.Assessment.Language)
		if err != nil {
			logger.Warn().Err(err).Str("language", cfg.Assessment.Language).Msg("unknown language, using English")
			tag = language.English
		}
		fmt.Println()
		fmt.Print(assessment.RenderText(*res.Assessment, tag))
	}

	return nil
}
