package domain

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// ErrInvalidSeries is returned when an input series is structurally unusable.
var ErrInvalidSeries = errors.New("invalid series")

// Base column names of the input table.
const (
	ColumnTimestamp = "Date"
	ColumnOpen      = "open"
	ColumnHigh      = "high"
	ColumnLow       = "low"
	ColumnClose     = "close"
	ColumnVolume    = "volume"
)

// Bar is one OHLCV record at a fixed interval.
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Feature is one derived indicator column aligned with Series.Bars.
// Numeric features use NaN for missing values; categorical features use "".
type Feature struct {
	Name        string
	Numeric     []float64
	Categorical []string
}

// IsNumeric reports whether the feature carries numeric values.
func (f Feature) IsNumeric() bool {
	return f.Categorical == nil
}

// Len returns the number of values in the feature column.
func (f Feature) Len() int {
	if f.IsNumeric() {
		return len(f.Numeric)
	}
	return len(f.Categorical)
}

// NumericFeature builds a numeric feature column.
func NumericFeature(name string, values []float64) Feature {
	return Feature{Name: name, Numeric: values}
}

// CategoricalFeature builds a categorical feature column.
func CategoricalFeature(name string, values []string) Feature {
	return Feature{Name: name, Categorical: values}
}

// Series is the input table: time-ordered bars plus derived indicator columns.
type Series struct {
	Symbol   string
	Bars     []Bar
	Features []Feature
}

// Len returns the number of bars.
func (s *Series) Len() int {
	return len(s.Bars)
}

// Start returns the first bar timestamp, zero if empty.
func (s *Series) Start() time.Time {
	if len(s.Bars) == 0 {
		return time.Time{}
	}
	return s.Bars[0].Timestamp
}

// End returns the last bar timestamp, zero if empty.
func (s *Series) End() time.Time {
	if len(s.Bars) == 0 {
		return time.Time{}
	}
	return s.Bars[len(s.Bars)-1].Timestamp
}

// Columns returns every binnable column in table order: OHLCV first, then features.
func (s *Series) Columns() []Feature {
	n := len(s.Bars)
	open := make([]float64, n)
	high := make([]float64, n)
	low := make([]float64, n)
	closes := make([]float64, n)
	volume := make([]float64, n)
	for i, b := range s.Bars {
		open[i] = b.Open
		high[i] = b.High
		low[i] = b.Low
		closes[i] = b.Close
		volume[i] = b.Volume
	}

	cols := make([]Feature, 0, 5+len(s.Features))
	cols = append(cols,
		NumericFeature(ColumnOpen, open),
		NumericFeature(ColumnHigh, high),
		NumericFeature(ColumnLow, low),
		NumericFeature(ColumnClose, closes),
		NumericFeature(ColumnVolume, volume),
	)
	return append(cols, s.Features...)
}

// Validate checks the structural invariants the pipeline depends on:
// strictly increasing timestamps, finite positive OHLC, aligned feature columns
// and unique feature names.
func (s *Series) Validate() error {
	if len(s.Bars) == 0 {
		return fmt.Errorf("%w: no bars", ErrInvalidSeries)
	}

	for i, b := range s.Bars {
		if b.Timestamp.IsZero() {
			return fmt.Errorf("%w: bar %d has no timestamp", ErrInvalidSeries, i)
		}
		if i > 0 && !b.Timestamp.After(s.Bars[i-1].Timestamp) {
			return fmt.Errorf("%w: timestamps not strictly increasing at bar %d (%s <= %s)",
				ErrInvalidSeries, i, b.Timestamp.Format(time.RFC3339), s.Bars[i-1].Timestamp.Format(time.RFC3339))
		}
		for _, p := range []struct {
			name  string
			value float64
		}{
			{ColumnOpen, b.Open},
			{ColumnHigh, b.High},
			{ColumnLow, b.Low},
			{ColumnClose, b.Close},
		} {
			if math.IsNaN(p.value) || math.IsInf(p.value, 0) || p.value <= 0 {
				return fmt.Errorf("%w: bar %d has invalid %s %v", ErrInvalidSeries, i, p.name, p.value)
			}
		}
	}

	seen := map[string]struct{}{
		ColumnTimestamp: {},
		ColumnOpen:      {},
		ColumnHigh:      {},
		ColumnLow:       {},
		ColumnClose:     {},
		ColumnVolume:    {},
	}
	for _, f := range s.Features {
		if f.Name == "" {
			return fmt.Errorf("%w: feature without name", ErrInvalidSeries)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("%w: duplicate column %q", ErrInvalidSeries, f.Name)
		}
		seen[f.Name] = struct{}{}
		if f.Len() != len(s.Bars) {
			return fmt.Errorf("%w: feature %q has %d values for %d bars", ErrInvalidSeries, f.Name, f.Len(), len(s.Bars))
		}
	}

	return nil
}

// BarRecord is a persisted bar with its numeric indicator values.
type BarRecord struct {
	Symbol string
	Bar
	Features map[string]float64
}

// Records flattens the series into persistable bar records.
// Categorical features are not persisted.
func (s *Series) Records() []*BarRecord {
	out := make([]*BarRecord, len(s.Bars))
	for i, b := range s.Bars {
		rec := &BarRecord{Symbol: s.Symbol, Bar: b, Features: make(map[string]float64)}
		for _, f := range s.Features {
			if f.IsNumeric() && !math.IsNaN(f.Numeric[i]) {
				rec.Features[f.Name] = f.Numeric[i]
			}
		}
		out[i] = rec
	}
	return out
}

// SeriesFromRecords rebuilds a series from records ordered by timestamp.
// A feature absent from a record becomes NaN at that bar.
func SeriesFromRecords(symbol string, records []*BarRecord) *Series {
	s := &Series{Symbol: symbol, Bars: make([]Bar, len(records))}

	var names []string
	index := make(map[string]int)
	for _, r := range records {
		for name := range r.Features {
			if _, ok := index[name]; !ok {
				index[name] = 0
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	for i, name := range names {
		index[name] = i
		values := make([]float64, len(records))
		for j := range values {
			values[j] = math.NaN()
		}
		s.Features = append(s.Features, NumericFeature(name, values))
	}

	for i, r := range records {
		s.Bars[i] = r.Bar
		for name, v := range r.Features {
			s.Features[index[name]].Numeric[i] = v
		}
	}
	return s
}
