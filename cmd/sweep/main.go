// Package main scores a feature CSV once and backtests every buy/sell
// threshold pair of the configured grid.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"candle-bin-lab/internal/backtest"
	"candle-bin-lab/internal/config"
	"candle-bin-lab/internal/dataset"
	"candle-bin-lab/internal/logging"
	"candle-bin-lab/internal/pipeline"
	"candle-bin-lab/internal/reporting"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (defaults when empty)")
	dataPath := flag.String("data", "", "Feature CSV (overrides data_path)")
	outputDir := flag.String("output-dir", "", "Output directory (overrides output_dir)")
	top := flag.Int("top", 0, "Number of best pairs to print (overrides sweep.top)")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *dataPath != "" {
		cfg.DataPath = *dataPath
	}
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}
	if *top > 0 {
		cfg.Sweep.Top = *top
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
		<-sigCh
		logger.Warn().Msg("cancelling sweep")
		cancel()
	}()

	series, err := dataset.LoadFile(cfg.DataPath, cfg.Symbol)
	if err != nil {
		logger.Fatal().Err(err).Msg("load dataset")
	}

	p, err := pipeline.New(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("create pipeline")
	}
	res, err := p.Run(ctx, series)
	if err != nil {
		logger.Fatal().Err(err).Msg("score series")
	}

	results, err := backtest.Sweep(ctx, series.Symbol, res.Scores.Bars, cfg.SweepGrid(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("sweep")
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		logger.Fatal().Err(err).Msg("create output dir")
	}
	path := filepath.Join(cfg.OutputDir, "threshold_sweep.csv")
	if err := os.WriteFile(path, []byte(reporting.RenderSweepCSV(results)), 0644); err != nil {
		logger.Fatal().Err(err).Msg("write sweep csv")
	}
	logger.Info().Str("path", path).Int("pairs", len(results)).Msg("written")

	n := cfg.Sweep.Top
	if n > len(results) {
		n = len(results)
	}
	fmt.Printf("=== Top %d threshold pairs by total return ===\n", n)
	fmt.Printf("%6s %6s %7s %9s %10s %8s %8s\n", "buy", "sell", "trades", "win_rate", "return", "sharpe", "max_dd")
	for _, r := range results[:n] {
		fmt.Printf("%6.2f %6.2f %7d %8.2f%% %10.4f %8.4f %8.4f\n",
			r.BuyThreshold, r.SellThreshold, r.Summary.TotalTrades, r.Summary.WinRate*100,
			r.Summary.TotalReturn, r.Summary.SharpeRatio, r.Summary.MaxDrawdown)
	}
}
