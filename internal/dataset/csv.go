// Package dataset loads the candle + indicator table from CSV.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"candle-bin-lab/internal/domain"
)

// ErrMissingColumn is returned when a required column is absent.
var ErrMissingColumn = errors.New("missing column")

// timestampAliases are accepted names for the timestamp column, in priority order.
var timestampAliases = []string{domain.ColumnTimestamp, "date", "timestamp", "time", "open_time"}

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// LoadFile loads a series from a CSV file.
func LoadFile(path, symbol string) (*domain.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return Load(f, symbol)
}

// Load reads a CSV table with a timestamp column, open/high/low/close/volume
// and any number of indicator columns. An indicator column is numeric when
// every non-empty cell parses as a float; otherwise it is categorical.
// UTF-8 and UTF-16 input with a byte order mark are both accepted.
func Load(r io.Reader, symbol string) (*domain.Series, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	cr := csv.NewReader(decoded)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.Trim(header[i], `"`))
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[h] = i
	}

	tsCol := -1
	for _, alias := range timestampAliases {
		if i, ok := index[alias]; ok {
			tsCol = i
			break
		}
	}
	if tsCol < 0 {
		return nil, fmt.Errorf("%w %q: %w", ErrMissingColumn, domain.ColumnTimestamp, domain.ErrInvalidSeries)
	}

	base := []string{domain.ColumnOpen, domain.ColumnHigh, domain.ColumnLow, domain.ColumnClose, domain.ColumnVolume}
	baseCols := make([]int, len(base))
	for i, name := range base {
		col, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("%w %q: %w", ErrMissingColumn, name, domain.ErrInvalidSeries)
		}
		baseCols[i] = col
	}

	skip := map[int]bool{tsCol: true}
	for _, c := range baseCols {
		skip[c] = true
	}
	var featureCols []int
	for i := range header {
		if !skip[i] && header[i] != "" && header[i] != "Unnamed: 0" {
			featureCols = append(featureCols, i)
		}
	}

	raw := make([][]string, len(featureCols))
	var bars []domain.Bar
	row := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", row, err)
		}

		ts, err := parseTime(rec[tsCol])
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", domain.ErrInvalidSeries, row, err)
		}
		vals := make([]float64, len(baseCols))
		for i, c := range baseCols {
			v, err := parseFloat(rec[c])
			if err != nil {
				return nil, fmt.Errorf("%w: row %d column %s: %v", domain.ErrInvalidSeries, row, base[i], err)
			}
			vals[i] = v
		}
		bars = append(bars, domain.Bar{
			Timestamp: ts,
			Open:      vals[0],
			High:      vals[1],
			Low:       vals[2],
			Close:     vals[3],
			Volume:    vals[4],
		})
		for i, c := range featureCols {
			raw[i] = append(raw[i], strings.TrimSpace(rec[c]))
		}
	}

	series := &domain.Series{Symbol: symbol, Bars: bars}
	for i, c := range featureCols {
		series.Features = append(series.Features, column(header[c], raw[i]))
	}
	return series, nil
}

func column(name string, cells []string) domain.Feature {
	values := make([]float64, len(cells))
	for i, cell := range cells {
		v, err := parseFloat(cell)
		if err != nil {
			return domain.CategoricalFeature(name, cells)
		}
		values[i] = v
	}
	return domain.NumericFeature(name, values)
}

// parseFloat returns NaN for empty and NaN cells.
func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "null", "none":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// parseTime accepts the common layouts plus unix seconds or milliseconds.
// Times without a zone are UTC.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e11 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
