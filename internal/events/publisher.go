// Package events publishes reconciled transcript segments to downstream
// consumers over Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"live-transcription-engine/internal/observability/metrics"
	"live-transcription-engine/internal/schema"
)

// Publisher publishes transcript events to separate Kafka topics for partial
// and committed segments. When disabled it logs events instead of writing.
type Publisher struct {
	writerPartial   *kafka.Writer
	writerCommitted *kafka.Writer
	principal       string
	topicPartial    string
	topicCommitted  string
	enabled         bool
	validator       *schema.Validator
	metrics         *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers        []string
	TopicPartial   string
	TopicCommitted string
	Principal      string
	Enabled        bool
}

// New creates a Kafka event publisher with separate topics for partial and
// committed transcripts.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics
	v := schema.New()

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{enabled: false, validator: v, metrics: m}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:      cfg.Principal,
			topicPartial:   cfg.TopicPartial,
			topicCommitted: cfg.TopicCommitted,
			enabled:        false,
			validator:      v,
			metrics:        m,
		}
	}

	// Longer dial timeouts cover slow DNS resolution in Kubernetes.
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
			Transport:    transport,
		}
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicPartial", cfg.TopicPartial).
		Str("topicCommitted", cfg.TopicCommitted).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerPartial:   newWriter(cfg.TopicPartial),
		writerCommitted: newWriter(cfg.TopicCommitted),
		principal:       cfg.Principal,
		topicPartial:    cfg.TopicPartial,
		topicCommitted:  cfg.TopicCommitted,
		enabled:         true,
		validator:       v,
		metrics:         m,
	}
}

// PublishPartial publishes a partial transcript event keyed by session.
func (p *Publisher) PublishPartial(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.writerPartial, p.topicPartial, "partial", key, event)
}

// PublishCommitted publishes a committed transcript event keyed by session.
func (p *Publisher) PublishCommitted(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.writerCommitted, p.topicCommitted, "committed", key, event)
}

func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	if err := p.validator.Validate(event); err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Event failed validation")
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(topic)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerPartial != nil {
		if e := p.writerPartial.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing partial writer")
			err = e
		}
	}
	if p.writerCommitted != nil {
		if e := p.writerCommitted.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing committed writer")
			err = e
		}
	}
	return err
}
