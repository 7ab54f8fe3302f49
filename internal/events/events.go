// Package events publishes pipeline lifecycle events to Kafka so
// downstream consumers can react to completed analysis runs.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/KangBTC/blockchain-AI-Analyzer/internal/metrics"
)

// RunCompleted is emitted once per finished pipeline run.
type RunCompleted struct {
	RunID        string    `json:"runId"`
	Address      string    `json:"address"`
	Chains       string    `json:"chains"`
	Transactions int       `json:"transactions"`
	Analyzed     int       `json:"analyzed"`
	CompletedAt  time.Time `json:"completedAt"`
}

// Publisher emits run events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	PublishRunCompleted(ctx context.Context, evt RunCompleted) error
	Close() error
}

// KafkaPublisher writes events to a single topic keyed by address so
// events for one address stay ordered within a partition.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) (*KafkaPublisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return &KafkaPublisher{
		producer: producer,
		topic:    topic,
		logger:   logger.With("component", "events"),
	}, nil
}

func (p *KafkaPublisher) PublishRunCompleted(ctx context.Context, evt RunCompleted) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal run event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(evt.Address),
		Value: sarama.ByteEncoder(payload),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		metrics.EventsPublished.WithLabelValues("error").Inc()
		return fmt.Errorf("publish run event: %w", err)
	}
	metrics.EventsPublished.WithLabelValues("ok").Inc()

	p.logger.Debug("run event published",
		"runId", evt.RunID,
		"partition", partition,
		"offset", offset,
	)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// NopPublisher discards events. Used when no brokers are configured.
type NopPublisher struct{}

func NewNop() NopPublisher { return NopPublisher{} }

func (NopPublisher) PublishRunCompleted(context.Context, RunCompleted) error { return nil }

func (NopPublisher) Close() error { return nil }
