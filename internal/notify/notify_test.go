package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candle-bin-lab/internal/domain"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func testAssessment() domain.Assessment {
	return domain.Assessment{
		Symbol:         "BTCUSDT",
		BarTime:        time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
		Recommendation: domain.RecommendSell,
		Intent:         domain.IntentCloseLong,
	}
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	now := time.Date(2024, 6, 1, 8, 0, 5, 0, time.UTC)
	p := newKafkaPublisher(w, "assessments",
		WithClock(func() time.Time { return now }),
		WithRenderer(func(a domain.Assessment) string { return "rec: " + string(a.Recommendation) }),
	)

	require.NoError(t, p.Publish(context.Background(), testAssessment()))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "BTCUSDT", string(msg.Key))
	assert.Equal(t, "recommendation", msg.Headers[0].Key)
	assert.Equal(t, "SELL", string(msg.Headers[0].Value))
	assert.Equal(t, "CLOSE_LONG", string(msg.Headers[1].Value))

	var env Envelope
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.Equal(t, EnvelopeType, env.Type)
	assert.True(t, now.Equal(env.PublishedAt))
	assert.Equal(t, "rec: SELL", env.Text)
	assert.Equal(t, domain.RecommendSell, env.Assessment.Recommendation)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := newKafkaPublisher(&fakeWriter{err: errors.New("leader not available")}, "assessments")

	err := p.Publish(context.Background(), testAssessment())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assessments")
}

func TestNewKafkaPublisher_Validation(t *testing.T) {
	_, err := NewKafkaPublisher(KafkaConfig{Topic: "x"})
	assert.Error(t, err)

	_, err = NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}})
	assert.Error(t, err)
}

type fakeSink struct {
	name string
	err  error
	got  []domain.Assessment
}

func (s *fakeSink) Name() string { return s.name }

func (s *fakeSink) Publish(_ context.Context, a domain.Assessment) error {
	s.got = append(s.got, a)
	return s.err
}

type fakeRecorder struct {
	pushes map[string]int
	errors map[string]int
}

func (r *fakeRecorder) RecordPush(sink string, err error) {
	r.pushes[sink]++
	if err != nil {
		r.errors[sink]++
	}
}

func TestFanout_ContinuesPastFailingSink(t *testing.T) {
	bad := &fakeSink{name: "kafka", err: errors.New("down")}
	good := &fakeSink{name: "websocket"}
	rec := &fakeRecorder{pushes: map[string]int{}, errors: map[string]int{}}

	f := NewFanout(zerolog.Nop(), rec, bad, good)
	err := f.Publish(context.Background(), testAssessment())

	require.Error(t, err)
	assert.Len(t, bad.got, 1)
	assert.Len(t, good.got, 1)
	assert.Equal(t, 1, rec.pushes["websocket"])
	assert.Equal(t, 1, rec.errors["kafka"])
	assert.Zero(t, rec.errors["websocket"])
}
