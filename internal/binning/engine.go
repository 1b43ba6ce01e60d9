// Package binning discretizes every column of a series into per-window ordinal bins.
package binning

import (
	"fmt"

	"github.com/rs/zerolog"

	"candle-bin-lab/internal/domain"
)

// Mode selects the binning unit.
type Mode string

// Binning modes.
const (
	// ModeWindow bins each consecutive block of WindowSize bars independently.
	// Bin ids are relative to their block.
	ModeWindow Mode = "window"
	// ModeGlobal bins the whole series as one block, so a bin id means the same
	// value range on every bar.
	ModeGlobal Mode = "global"
)

// Config controls the BinningEngine.
type Config struct {
	WindowSize      int
	QuantileBins    int
	FallbackBins    int
	CyclicalFeature string
	CyclicalBins    int
	Mode            Mode
}

// DefaultConfig returns the default binning configuration.
func DefaultConfig() Config {
	return Config{
		WindowSize:      12,
		QuantileBins:    5,
		FallbackBins:    4,
		CyclicalFeature: "Weekday",
		CyclicalBins:    7,
		Mode:            ModeWindow,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.WindowSize < 1 {
		return fmt.Errorf("window size must be >= 1, got %d", c.WindowSize)
	}
	if c.QuantileBins < 1 || c.FallbackBins < 1 || c.CyclicalBins < 1 {
		return fmt.Errorf("bin counts must be >= 1 (quantile=%d fallback=%d cyclical=%d)",
			c.QuantileBins, c.FallbackBins, c.CyclicalBins)
	}
	if c.Mode != ModeWindow && c.Mode != ModeGlobal {
		return fmt.Errorf("unknown binning mode %q", c.Mode)
	}
	return nil
}

// Stats counts what happened during a binning pass.
type Stats struct {
	Windows           int
	Columns           int
	DegenerateBlocks  int // quantile edges collapsed, equal-width fallback used
	EmptyBlocks       int // no non-missing value in the block
	CategoricalBlocks int
}

// Engine is the BinningEngine.
type Engine struct {
	cfg    Config
	logger zerolog.Logger
}

// NewEngine creates a BinningEngine.
func NewEngine(cfg Config, logger zerolog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg:    cfg,
		logger: logger.With().Str("stage", "binning").Logger(),
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Bin discretizes every column of the series. Timestamp and OHLCV are carried
// through unchanged; each source column yields one "<name>_binned" column.
// Degenerate blocks never fail; they fall back to equal-width bins.
func (e *Engine) Bin(series *domain.Series) (*domain.BinnedSeries, Stats) {
	n := series.Len()
	window := e.cfg.WindowSize
	if e.cfg.Mode == ModeGlobal && n > 0 {
		window = n
	}

	columns := series.Columns()
	out := &domain.BinnedSeries{
		Symbol:     series.Symbol,
		Bars:       series.Bars,
		Columns:    make([]domain.BinnedColumn, 0, len(columns)),
		WindowSize: window,
	}

	var stats Stats
	stats.Columns = len(columns)
	for start := 0; start < n; start += window {
		stats.Windows++
	}

	for _, col := range columns {
		labels := make([]domain.BinLabel, n)
		for start := 0; start < n; start += window {
			end := start + window
			if end > n {
				end = n
			}
			e.binBlock(col, start, end, labels[start:end], &stats)
		}
		out.Columns = append(out.Columns, domain.BinnedColumn{
			Name:   domain.BinnedColumnName(col.Name),
			Source: col.Name,
			Labels: labels,
		})
	}

	e.logger.Debug().
		Int("bars", n).
		Int("columns", stats.Columns).
		Int("windows", stats.Windows).
		Int("degenerate_blocks", stats.DegenerateBlocks).
		Int("empty_blocks", stats.EmptyBlocks).
		Msg("binning complete")

	return out, stats
}

// binBlock writes the labels of col[start:end] into dst.
func (e *Engine) binBlock(col domain.Feature, start, end int, dst []domain.BinLabel, stats *Stats) {
	if !col.IsNumeric() {
		stats.CategoricalBlocks++
		for i, v := range col.Categorical[start:end] {
			dst[i] = domain.BinLabel(v)
		}
		return
	}

	values := col.Numeric[start:end]
	var bins []int
	switch {
	case col.Name == e.cfg.CyclicalFeature:
		bins = EqualWidth(values, e.cfg.CyclicalBins)
	default:
		var ok bool
		bins, ok = Quantile(values, e.cfg.QuantileBins)
		if !ok {
			bins = EqualWidth(values, e.cfg.FallbackBins)
			if hasValue(values) {
				stats.DegenerateBlocks++
			}
		}
	}

	if !hasValue(values) {
		stats.EmptyBlocks++
	}

	for i, b := range bins {
		if b < 0 {
			dst[i] = domain.NoBin
			continue
		}
		dst[i] = domain.OrdinalBin(b)
	}
}
