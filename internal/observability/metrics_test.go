package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordPipelineRun(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.RecordPipelineRun(nil)
	m.RecordPipelineRun(nil)
	m.RecordPipelineRun(errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PipelineRunsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PipelineRunsTotal.WithLabelValues("failure")))
	assert.Greater(t, testutil.ToFloat64(m.LastSuccessfulPipeline), 0.0)
}

func TestRecordPush(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.RecordPush("kafka", nil)
	m.RecordPush("kafka", errors.New("broker down"))
	m.RecordPush("websocket", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AssessmentsPushed.WithLabelValues("kafka", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AssessmentsPushed.WithLabelValues("kafka", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AssessmentsPushed.WithLabelValues("websocket", "ok")))
}

func TestObserveStage(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.ObserveStage(StageBinning, time.Now())
	m.RecordDBQuery("postgres", "insert_run", time.Now(), errors.New("x"))

	assert.Equal(t, 1, testutil.CollectAndCount(m.StageDuration))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DBQueryErrors.WithLabelValues("postgres", "insert_run")))
}
