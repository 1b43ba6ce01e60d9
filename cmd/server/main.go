// Package main runs the scheduled service:
// - Pipeline (scheduled): reload the feature CSV, analyse, score, backtest, assess
// - Delivery: Redis cache, Kafka topic and WebSocket stream
// - HTTP API: assessments, runs, trades, reports, /metrics and /status
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"candle-bin-lab/internal/api"
	"candle-bin-lab/internal/assessment"
	"candle-bin-lab/internal/cache"
	"candle-bin-lab/internal/config"
	"candle-bin-lab/internal/dataset"
	"candle-bin-lab/internal/domain"
	"candle-bin-lab/internal/logging"
	"candle-bin-lab/internal/notify"
	"candle-bin-lab/internal/observability"
	"candle-bin-lab/internal/pipeline"
	"candle-bin-lab/internal/stream"
)

// Server holds all components of the service.
type Server struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	logger   zerolog.Logger

	// State
	mu              sync.Mutex
	started         time.Time
	lastPipelineRun time.Time
	lastRunID       string
	lastError       string
	pipelineRuns    int
	pipelineRunning bool
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to YAML config (defaults when empty)")
	dataPath := flag.String("data", "", "Feature CSV (overrides data_path)")
	interval := flag.Duration("interval", 0, "Pipeline run interval (overrides server.interval)")
	port := flag.Int("port", 0, "HTTP port (overrides server.port)")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *dataPath != "" {
		cfg.DataPath = *dataPath
	}
	if *interval > 0 {
		cfg.Server.Interval = *interval
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := pipeline.OpenStores(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create stores")
	}
	defer cleanup()

	var cacheStore cache.Store = cache.NewMemoryCache()
	if cfg.Redis.Enabled {
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rc.Close()
		cacheStore = rc
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("using redis cache")
	}
	signals := cache.NewSignalCache(cacheStore, cfg.Redis.TTL)

	metrics := observability.NewMetrics("", nil)

	hub := stream.NewHub(logger)
	go hub.Run(ctx)

	sinks := []notify.Sink{hub}
	if cfg.Kafka.Enabled {
		tag, err := language.Parse(cfg.Assessment.Language)
		if err != nil {
			tag = language.English
		}
		kp, err := notify.NewKafkaPublisher(notify.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			WriteTimeout: cfg.Kafka.WriteTimeout,
		}, notify.WithRenderer(func(a domain.Assessment) string {
			return assessment.RenderText(a, tag)
		}))
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create kafka publisher")
		}
		defer kp.Close()
		sinks = append(sinks, kp)
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("publishing to kafka")
	}

	p, err := pipeline.New(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create pipeline")
	}
	p = p.WithStores(stores).
		WithCache(signals).
		WithPublisher(notify.NewFanout(logger, metrics, sinks...)).
		WithMetrics(metrics)

	server := &Server{
		cfg:      cfg,
		pipeline: p,
		logger:   logger,
		started:  time.Now(),
	}

	handler := api.NewHandler(logger, cfg.Symbol, stores.Runs, stores.Trades, stores.Assessments).
		WithScoredBars(stores.ScoredBars).
		WithCache(signals).
		WithStatus(server.status)
	httpServer := api.NewServer(handler, logger,
		api.WithPort(cfg.Server.Port),
		api.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		api.WithMetrics(observability.Handler()),
		api.WithStream(hub),
	)

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("initiating graceful shutdown")
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Warn().Str("signal", sig.String()).Msg("second signal, forcing immediate shutdown")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn().Msg("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	httpServer.Start()

	err = server.runScheduler(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	if serr := httpServer.Stop(shutdownCtx); serr != nil {
		logger.Error().Err(serr).Msg("http shutdown")
	}
	shutdownCancel()

	done <- err
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("server error")
	}

	logger.Info().Msg("shutdown complete")
}

// runScheduler runs the pipeline immediately, then on every tick.
func (s *Server) runScheduler(ctx context.Context) error {
	s.logger.Info().Dur("interval", s.cfg.Server.Interval).Msg("starting pipeline scheduler")

	s.runPipeline(ctx)

	ticker := time.NewTicker(s.cfg.Server.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runPipeline(ctx)
		}
	}
}

// runPipeline reloads the dataset and runs the pipeline once.
// Failures are logged; the next tick retries.
func (s *Server) runPipeline(ctx context.Context) {
	s.mu.Lock()
	if s.pipelineRunning {
		s.mu.Unlock()
		s.logger.Warn().Msg("pipeline already running, skipping")
		return
	}
	s.pipelineRunning = true
	s.mu.Unlock()

	var (
		runID  string
		runErr error
	)
	defer func() {
		s.mu.Lock()
		s.pipelineRunning = false
		s.lastPipelineRun = time.Now()
		s.pipelineRuns++
		if runErr != nil {
			s.lastError = runErr.Error()
		} else {
			s.lastError = ""
			s.lastRunID = runID
		}
		s.mu.Unlock()
	}()

	start := time.Now()
	series, err := dataset.LoadFile(s.cfg.DataPath, s.cfg.Symbol)
	if err != nil {
		runErr = fmt.Errorf("load dataset: %w", err)
		s.logger.Error().Err(runErr).Msg("pipeline failed")
		return
	}

	res, err := s.pipeline.Run(ctx, series)
	if err != nil {
		runErr = err
		s.logger.Error().Err(err).Msg("pipeline failed")
		return
	}
	runID = res.Run.RunID

	if _, err := s.pipeline.WriteOutputs(s.cfg.OutputDir, res); err != nil {
		s.logger.Warn().Err(err).Str("dir", s.cfg.OutputDir).Msg("failed to write outputs")
	}

	s.logger.Info().
		Str("run_id", runID).
		Int("bars", len(series.Bars)).
		Int("trades", res.Run.TotalTrades).
		Bool("new_assessment", res.NewAssessment).
		Dur("took", time.Since(start)).
		Msg("pipeline completed")
}

// StatusResponse is the JSON payload of /status.
type StatusResponse struct {
	Status          string    `json:"status"`
	Symbol          string    `json:"symbol"`
	Uptime          string    `json:"uptime"`
	Started         time.Time `json:"started"`
	LastPipelineRun time.Time `json:"last_pipeline_run,omitempty"`
	LastRunID       string    `json:"last_run_id,omitempty"`
	LastError       string    `json:"last_error,omitempty"`
	PipelineRuns    int       `json:"pipeline_runs"`
	PipelineRunning bool      `json:"pipeline_running"`
	Interval        string    `json:"interval"`
}

func (s *Server) status() any {
	s.mu.Lock()
	defer s.mu.Unlock()

	return StatusResponse{
		Status:          "running",
		Symbol:          s.cfg.Symbol,
		Uptime:          time.Since(s.started).Round(time.Second).String(),
		Started:         s.started,
		LastPipelineRun: s.lastPipelineRun,
		LastRunID:       s.lastRunID,
		LastError:       s.lastError,
		PipelineRuns:    s.pipelineRuns,
		PipelineRunning: s.pipelineRunning,
		Interval:        s.cfg.Server.Interval.String(),
	}
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, strings.TrimSpace(value))
		}
	}
}
