// Package config loads the YAML configuration shared by all commands.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"candle-bin-lab/internal/analysis"
	"candle-bin-lab/internal/assessment"
	"candle-bin-lab/internal/backtest"
	"candle-bin-lab/internal/binning"
	"candle-bin-lab/internal/logging"
)

// Config is the full application configuration.
type Config struct {
	Symbol     string           `yaml:"symbol" default:"BTCUSDT" validate:"required"`
	DataPath   string           `yaml:"data_path" default:"data/cleaned_features.csv" validate:"required"`
	OutputDir  string           `yaml:"output_dir" default:"data" validate:"required"`
	Logging    logging.Config   `yaml:"logging"`
	Binning    BinningConfig    `yaml:"binning"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Backtest   BacktestConfig   `yaml:"backtest"`
	Sweep      SweepConfig      `yaml:"sweep"`
	Assessment AssessmentConfig `yaml:"assessment"`
	Storage    StorageConfig    `yaml:"storage"`
	Redis      RedisConfig      `yaml:"redis"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Server     ServerConfig     `yaml:"server"`
}

// BinningConfig configures the binning stage.
type BinningConfig struct {
	WindowSize      int    `yaml:"window_size" default:"12" validate:"gte=1"`
	QuantileBins    int    `yaml:"quantile_bins" default:"5" validate:"gte=1"`
	FallbackBins    int    `yaml:"fallback_bins" default:"4" validate:"gte=1"`
	CyclicalFeature string `yaml:"cyclical_feature" default:"Weekday"`
	CyclicalBins    int    `yaml:"cyclical_bins" default:"7" validate:"gte=1"`
	Mode            string `yaml:"mode" default:"window" validate:"oneof=window global"`
}

// AnalysisConfig configures the bin performance analysis.
type AnalysisConfig struct {
	Horizon             int  `yaml:"horizon" default:"12" validate:"gte=1"`
	TopN                int  `yaml:"top_n" default:"8" validate:"gte=1"`
	ClipHorizonToWindow bool `yaml:"clip_horizon_to_window"`
	ReportPrecision     int  `yaml:"report_precision" default:"4" validate:"gte=-1,lte=12"`
	Workers             int  `yaml:"workers" validate:"gte=0"`
}

// BacktestConfig configures the simulator.
type BacktestConfig struct {
	BuyThreshold  float64 `yaml:"buy_threshold" default:"0.5"`
	SellThreshold float64 `yaml:"sell_threshold" default:"0.5"`
	Leverage      float64 `yaml:"leverage" default:"1.0" validate:"gt=0"`
	Monthly       bool    `yaml:"monthly" default:"true"`
}

// SweepConfig configures the threshold grid.
type SweepConfig struct {
	Min       float64 `yaml:"min" default:"-3"`
	Max       float64 `yaml:"max" default:"3" validate:"gtefield=Min"`
	Step      float64 `yaml:"step" default:"0.25" validate:"gt=0"`
	Workers   int     `yaml:"workers" default:"4" validate:"gte=0"`
	Top       int     `yaml:"top" default:"10" validate:"gte=1"`
	Inclusive bool    `yaml:"inclusive" default:"true"`
}

// AssessmentConfig configures the latest-bar assessment.
type AssessmentConfig struct {
	OffsetHours     int     `yaml:"offset_hours" default:"8" validate:"gte=-12,lte=14"`
	StrongThreshold float64 `yaml:"strong_threshold" default:"0.75"`
	Threshold       float64 `yaml:"threshold" default:"0.5" validate:"ltefield=StrongThreshold"`
	Language        string  `yaml:"language" default:"en"`
}

// StorageConfig selects persistence backends.
type StorageConfig struct {
	Driver        string `yaml:"driver" default:"memory" validate:"oneof=memory postgres"`
	PostgresDSN   string `yaml:"postgres_dsn" validate:"required_if=Driver postgres"`
	ClickHouseDSN string `yaml:"clickhouse_dsn"`
	Migrate       bool   `yaml:"migrate" default:"true"`
}

// RedisConfig configures the assessment/report cache.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr" default:"localhost:6379" validate:"required_if=Enabled true"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db" validate:"gte=0"`
	TTL      time.Duration `yaml:"ttl" default:"24h"`
	Prefix   string        `yaml:"prefix" default:"candle-bin-lab"`
}

// KafkaConfig configures the assessment publisher.
type KafkaConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers" validate:"required_if=Enabled true"`
	Topic        string        `yaml:"topic" default:"trading-assessments" validate:"required_if=Enabled true"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
}

// ServerConfig configures cmd/server.
type ServerConfig struct {
	Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
	Interval        time.Duration `yaml:"interval" default:"4h" validate:"gt=0"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"15s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
}

var validate = validator.New()

// Default returns the configuration with every default applied.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML over the defaults and validates the result.
// Keys absent from the document keep their defaults, so an explicit zero
// (for example buy_threshold: 0) is preserved.
func Parse(b []byte) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML (or defaults when path is empty) and
// overrides it with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	var (
		c   *Config
		err error
	)
	if path == "" {
		c, err = Default()
	} else {
		c, err = Load(path)
	}
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SYMBOL"); v != "" {
		c.Symbol = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Storage.Driver = "postgres"
		c.Storage.PostgresDSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		c.Storage.ClickHouseDSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Enabled = true
		c.Redis.Addr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Enabled = true
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	return validate.Struct(c)
}

// BinningEngine returns the binning stage configuration.
func (c *Config) BinningEngine() binning.Config {
	return binning.Config{
		WindowSize:      c.Binning.WindowSize,
		QuantileBins:    c.Binning.QuantileBins,
		FallbackBins:    c.Binning.FallbackBins,
		CyclicalFeature: c.Binning.CyclicalFeature,
		CyclicalBins:    c.Binning.CyclicalBins,
		Mode:            binning.Mode(c.Binning.Mode),
	}
}

// Analyzer returns the analysis stage configuration.
func (c *Config) Analyzer() analysis.Config {
	return analysis.Config{
		Horizon:             c.Analysis.Horizon,
		TopN:                c.Analysis.TopN,
		ClipHorizonToWindow: c.Analysis.ClipHorizonToWindow,
		ReportPrecision:     c.Analysis.ReportPrecision,
		Workers:             c.Analysis.Workers,
	}
}

// Simulator returns the backtest configuration.
func (c *Config) Simulator() backtest.Config {
	return backtest.Config{
		BuyThreshold:  c.Backtest.BuyThreshold,
		SellThreshold: c.Backtest.SellThreshold,
		Leverage:      c.Backtest.Leverage,
		Monthly:       c.Backtest.Monthly,
	}
}

// SweepGrid returns the sweep configuration.
func (c *Config) SweepGrid() backtest.SweepConfig {
	return backtest.SweepConfig{
		Min:       c.Sweep.Min,
		Max:       c.Sweep.Max,
		Step:      c.Sweep.Step,
		Leverage:  c.Backtest.Leverage,
		Workers:   c.Sweep.Workers,
		Inclusive: c.Sweep.Inclusive,
	}
}

// AssessmentBuilder returns the assessment configuration.
func (c *Config) AssessmentBuilder() assessment.Config {
	return assessment.Config{
		OffsetHours:     c.Assessment.OffsetHours,
		StrongThreshold: c.Assessment.StrongThreshold,
		Threshold:       c.Assessment.Threshold,
	}
}
