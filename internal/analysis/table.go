package analysis

import (
	"fmt"
	"sort"

	"candle-bin-lab/internal/domain"
)

// SkippedFeature records a report feature left out of a Table.
type SkippedFeature struct {
	Feature string
	Err     error
}

// Table is the validated statistics lookup consumed by the score calculator.
// Features whose report entry is malformed are skipped, never fatal.
type Table struct {
	stats    map[domain.StatKey]domain.BinStats
	features []domain.FeatureRanking
	Skipped  []SkippedFeature
}

// NewTable validates every report feature and indexes the usable ones.
func NewTable(rep *Report) *Table {
	t := &Table{stats: make(map[domain.StatKey]domain.BinStats)}
	seen := make(map[string]bool)

	for i := range rep.TopFeatures {
		fr := &rep.TopFeatures[i]
		if err := validate.Struct(fr); err != nil {
			t.skip(fr.FeatureName, err)
			continue
		}
		if seen[fr.FeatureName] {
			t.skip(fr.FeatureName, fmt.Errorf("duplicate feature"))
			continue
		}
		seen[fr.FeatureName] = true

		for _, target := range domain.Targets {
			for bin, s := range fr.Analysis(target) {
				t.stats[domain.StatKey{Feature: fr.FeatureName, Bin: domain.BinLabel(bin), Target: target}] = s
			}
		}
		t.features = append(t.features, domain.FeatureRanking{
			Feature:         fr.FeatureName,
			PredictionScore: fr.PredictionScore,
			Rank:            fr.Rank,
		})
	}

	sort.SliceStable(t.features, func(i, j int) bool {
		if t.features[i].Rank != t.features[j].Rank {
			return t.features[i].Rank < t.features[j].Rank
		}
		return t.features[i].Feature < t.features[j].Feature
	})
	return t
}

func (t *Table) skip(feature string, err error) {
	t.Skipped = append(t.Skipped, SkippedFeature{
		Feature: feature,
		Err:     fmt.Errorf("%w: feature %q: %v", ErrMalformedReport, feature, err),
	})
}

// Table builds the lookup table from the result's own report.
func (r *Result) Table() *Table {
	return NewTable(r.Report())
}

// Features returns the usable ranked features in rank order.
func (t *Table) Features() []domain.FeatureRanking {
	return t.features
}

// Lookup returns the statistics for a feature bin and target.
func (t *Table) Lookup(feature string, bin domain.BinLabel, target domain.Target) (domain.BinStats, bool) {
	s, ok := t.stats[domain.StatKey{Feature: feature, Bin: bin, Target: target}]
	return s, ok
}

// Len returns the number of (feature, bin, target) entries.
func (t *Table) Len() int {
	return len(t.stats)
}
