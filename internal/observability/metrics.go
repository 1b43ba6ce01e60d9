// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline stage names used as metric labels.
const (
	StageBinning    = "binning"
	StageAnalysis   = "analysis"
	StageScoring    = "scoring"
	StageBacktest   = "backtest"
	StageAssessment = "assessment"
	StagePersist    = "persist"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Pipeline metrics
	PipelineRunsTotal *prometheus.CounterVec
	StageDuration     *prometheus.HistogramVec
	BarsScored        prometheus.Counter
	TradesSimulated   prometheus.Counter
	ReportsGenerated  prometheus.Counter

	// Data quality metrics
	DegenerateBlocks *prometheus.CounterVec
	Votes            *prometheus.CounterVec
	SkippedFeatures  prometheus.Counter

	// Signal metrics
	LatestBuyScore    prometheus.Gauge
	LatestSellScore   prometheus.Gauge
	Recommendations   *prometheus.CounterVec
	AssessmentsPushed *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulPipeline prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered on reg.
// A nil reg uses the Prometheus default registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "candle_bin_lab"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		PipelineRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by status",
		}, []string{"status"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"stage"}),
		BarsScored: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "bars_scored_total",
			Help:      "Total number of bars scored",
		}),
		TradesSimulated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "trades_simulated_total",
			Help:      "Total number of trades simulated",
		}),
		ReportsGenerated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "reports_generated_total",
			Help:      "Total number of analysis reports generated",
		}),

		DegenerateBlocks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "binning",
			Name:      "blocks_total",
			Help:      "Column blocks that did not get quantile bins, by kind",
		}, []string{"kind"}),
		Votes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "votes_total",
			Help:      "Feature votes by side and outcome",
		}, []string{"side", "status"}),
		SkippedFeatures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "skipped_features_total",
			Help:      "Report features rejected while building the statistics table",
		}),

		LatestBuyScore: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "signal",
			Name:      "latest_buy_score",
			Help:      "Buy score of the latest bar",
		}),
		LatestSellScore: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "signal",
			Name:      "latest_sell_score",
			Help:      "Sell score of the latest bar",
		}),
		Recommendations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signal",
			Name:      "recommendations_total",
			Help:      "Assessments produced by recommendation",
		}, []string{"recommendation"}),
		AssessmentsPushed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signal",
			Name:      "assessments_pushed_total",
			Help:      "Assessments delivered by sink and status",
		}, []string{"sink", "status"}),

		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastSuccessfulPipeline: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_pipeline_timestamp",
			Help:      "Unix timestamp of last successful pipeline run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveStage records how long a stage took since start.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// RecordPipelineRun counts a finished run; success also stamps the health gauge.
func (m *Metrics) RecordPipelineRun(err error) {
	if err != nil {
		m.PipelineRunsTotal.WithLabelValues("failure").Inc()
		return
	}
	m.PipelineRunsTotal.WithLabelValues("success").Inc()
	m.LastSuccessfulPipeline.SetToCurrentTime()
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, start time.Time, err error) {
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(time.Since(start).Seconds())
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordPush counts one assessment delivery attempt.
func (m *Metrics) RecordPush(sink string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.AssessmentsPushed.WithLabelValues(sink, status).Inc()
}
