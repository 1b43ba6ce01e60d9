package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"candle-bin-lab/internal/domain"
)

// KafkaConfig configures the Kafka writer.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
	MaxAttempts  int
}

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes assessment envelopes keyed by symbol,
// so one symbol's assessments stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	render func(domain.Assessment) string
	now    func() time.Time
}

// KafkaOption configures a KafkaPublisher.
type KafkaOption func(*KafkaPublisher)

// WithRenderer attaches a human-readable text body to each envelope.
func WithRenderer(render func(domain.Assessment) string) KafkaOption {
	return func(p *KafkaPublisher) { p.render = render }
}

// WithClock sets the clock stamped on envelopes.
func WithClock(now func() time.Time) KafkaOption {
	return func(p *KafkaPublisher) { p.now = now }
}

// NewKafkaPublisher creates a publisher writing to cfg.Topic.
func NewKafkaPublisher(cfg KafkaConfig, opts ...KafkaOption) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            cfg.MaxAttempts,
		WriteTimeout:           cfg.WriteTimeout,
		AllowAutoTopicCreation: true,
	}
	return newKafkaPublisher(w, cfg.Topic, opts...), nil
}

func newKafkaPublisher(w messageWriter, topic string, opts ...KafkaOption) *KafkaPublisher {
	p := &KafkaPublisher{writer: w, topic: topic, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name identifies the sink in metrics.
func (p *KafkaPublisher) Name() string {
	return "kafka"
}

// Publish writes one envelope and waits for broker acknowledgement.
func (p *KafkaPublisher) Publish(ctx context.Context, a domain.Assessment) error {
	env := Envelope{Type: EnvelopeType, PublishedAt: p.now().UTC(), Assessment: a}
	if p.render != nil {
		env.Text = p.render(a)
	}

	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal assessment: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(a.Symbol),
		Value: value,
		Time:  env.PublishedAt,
		Headers: []kafka.Header{
			{Key: "recommendation", Value: []byte(a.Recommendation)},
			{Key: "order_intent", Value: []byte(a.Intent)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
