// Package notify delivers assessments to downstream consumers.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"candle-bin-lab/internal/domain"
)

// Sink receives every new assessment.
type Sink interface {
	Name() string
	Publish(ctx context.Context, a domain.Assessment) error
}

// Envelope is the wire format of a published assessment.
type Envelope struct {
	Type        string            `json:"type"`
	PublishedAt time.Time         `json:"published_at"`
	Assessment  domain.Assessment `json:"assessment"`
	Text        string            `json:"text,omitempty"`
}

// EnvelopeType tags assessment messages.
const EnvelopeType = "assessment"

// Recorder observes delivery outcomes. observability.Metrics satisfies it.
type Recorder interface {
	RecordPush(sink string, err error)
}

// Fanout publishes to every sink. One failing sink does not stop the others.
type Fanout struct {
	sinks    []Sink
	recorder Recorder
	logger   zerolog.Logger
}

// NewFanout builds a fanout over sinks. recorder may be nil.
func NewFanout(logger zerolog.Logger, recorder Recorder, sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks, recorder: recorder, logger: logger}
}

// Publish delivers a to every sink and joins their errors.
func (f *Fanout) Publish(ctx context.Context, a domain.Assessment) error {
	var errs []error
	for _, s := range f.sinks {
		err := s.Publish(ctx, a)
		if f.recorder != nil {
			f.recorder.RecordPush(s.Name(), err)
		}
		if err != nil {
			f.logger.Warn().Err(err).Str("sink", s.Name()).Str("symbol", a.Symbol).Msg("publish assessment failed")
			errs = append(errs, err)
			continue
		}
		f.logger.Debug().Str("sink", s.Name()).Str("recommendation", string(a.Recommendation)).Msg("assessment published")
	}
	return errors.Join(errs...)
}
