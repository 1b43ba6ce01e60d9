package domain

import (
	"sort"
	"strconv"
)

// BinnedSuffix marks a column as a bin label column.
const BinnedSuffix = "_binned"

// BinLabel is the bin a value fell into within its window.
// Numeric bins are ordinals ("0".."k-1"); categorical bins carry the raw value.
type BinLabel string

// NoBin marks a missing value (no bin assigned).
const NoBin BinLabel = ""

// OrdinalBin returns the label for ordinal bin i.
func OrdinalBin(i int) BinLabel {
	return BinLabel(strconv.Itoa(i))
}

// Missing reports whether the label marks a missing value.
func (l BinLabel) Missing() bool {
	return l == NoBin
}

// String returns the label as used in report keys.
func (l BinLabel) String() string {
	return string(l)
}

// BinnedColumnName returns the bin column name for a source column.
func BinnedColumnName(source string) string {
	return source + BinnedSuffix
}

// BinnedColumn holds the bin labels of one source column.
type BinnedColumn struct {
	Name   string // e.g. "RSI_14_binned"
	Source string // e.g. "RSI_14"
	Labels []BinLabel
}

// BinnedSeries is the BinningEngine output: original bars plus one label column per source column.
type BinnedSeries struct {
	Symbol     string
	Bars       []Bar
	Columns    []BinnedColumn
	WindowSize int
}

// Column returns the binned column with the given name.
func (b *BinnedSeries) Column(name string) (BinnedColumn, bool) {
	for _, c := range b.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return BinnedColumn{}, false
}

// ColumnNames returns the binned column names in table order.
func (b *BinnedSeries) ColumnNames() []string {
	names := make([]string, len(b.Columns))
	for i, c := range b.Columns {
		names[i] = c.Name
	}
	return names
}

// SortLabels orders labels numerically when every label is an integer,
// lexically otherwise.
func SortLabels(labels []BinLabel) {
	numeric := true
	for _, l := range labels {
		if _, err := strconv.Atoi(string(l)); err != nil {
			numeric = false
			break
		}
	}
	sort.Slice(labels, func(i, j int) bool {
		if numeric {
			a, _ := strconv.Atoi(string(labels[i]))
			b, _ := strconv.Atoi(string(labels[j]))
			return a < b
		}
		return labels[i] < labels[j]
	})
}
