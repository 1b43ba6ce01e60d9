package pipeline

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"candle-bin-lab/internal/assessment"
	"candle-bin-lab/internal/reporting"
)

// Output file names written by WriteOutputs.
const (
	FileAnalysisReport = "feature_analysis_report.json"
	FileBinnedFeatures = "binned_features.csv"
	FileScores         = "trading_signals_with_scores.csv"
	FileTrades         = "backtest_trades.csv"
	FileMonthly        = "backtest_monthly.csv"
	FileBacktestReport = "BACKTEST_REPORT.md"
	FileAssessment     = "latest_trading_assessment.json"
)

// Report builds the backtest report of res without going through the stores.
func (p *Pipeline) Report(res *Result) *reporting.Report {
	rep := &reporting.Report{
		GeneratedAt: p.clock(),
		Run:         res.Run,
		Monthly:     res.Backtest.Monthly,
		Trades:      res.Backtest.Trades,
		Assessment:  res.Assessment,
	}
	if res.Report != nil {
		rep.TopFeatures = reporting.FeatureRows(res.Report)
	}
	return rep
}

// WriteOutputs writes every artefact of res into dir and returns the written paths.
func (p *Pipeline) WriteOutputs(dir string, res *Result) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	var written []string
	write := func(name string, data []byte) error {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		written = append(written, path)
		return nil
	}

	if res.Analysis != nil {
		var buf bytes.Buffer
		if err := res.Report.WriteJSON(&buf); err != nil {
			return written, err
		}
		if err := write(FileAnalysisReport, buf.Bytes()); err != nil {
			return written, err
		}
	}

	if err := write(FileBinnedFeatures, []byte(reporting.RenderBinnedCSV(res.Binned))); err != nil {
		return written, err
	}
	if err := write(FileScores, []byte(reporting.RenderScoresCSV(res.Scores.Bars))); err != nil {
		return written, err
	}
	if err := write(FileTrades, []byte(reporting.RenderTradesCSV(res.Backtest.Trades))); err != nil {
		return written, err
	}
	if len(res.Backtest.Monthly) > 0 {
		if err := write(FileMonthly, []byte(reporting.RenderMonthlyCSV(res.Backtest.Monthly))); err != nil {
			return written, err
		}
	}
	if err := write(FileBacktestReport, []byte(reporting.RenderMarkdown(p.Report(res)))); err != nil {
		return written, err
	}

	if res.Assessment != nil {
		var buf bytes.Buffer
		if err := assessment.WriteJSON(&buf, *res.Assessment); err != nil {
			return written, err
		}
		if err := write(FileAssessment, buf.Bytes()); err != nil {
			return written, err
		}
	}

	return written, nil
}
