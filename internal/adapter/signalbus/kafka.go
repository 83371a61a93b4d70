// Package signalbus publishes emitted signals onto a Kafka-compatible
// event topic, grounded on the teacher's redpanda producer but
// simplified: signal publication is fire-and-forget telemetry, not a
// job queue, so it drops the transactional/exactly-once machinery the
// teacher's job producer needs.
package signalbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/peter0524/service-fabric/internal/domain"
)

// Bus publishes a Signal onto its service's topic. Publish failures are
// logged by the caller, never retried in-line: a dropped publish costs
// an analytics event, not the signal itself, which is always durable in
// the worker's in-memory ring regardless of bus availability.
type Bus interface {
	Publish(ctx context.Context, kind domain.ServiceKind, sig domain.Signal) error
	Close() error
}

// KafkaBus implements Bus over twmb/franz-go.
type KafkaBus struct {
	client *kgo.Client
	logger *slog.Logger
}

// NewKafkaBus connects to brokers. Returns an error if no brokers are
// configured or the client cannot be constructed; callers should treat
// an empty brokers list as "no signal bus configured" and skip
// construction entirely rather than calling this with nil.
func NewKafkaBus(brokers []string, logger *slog.Logger) (*KafkaBus, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no seed brokers provided")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequestRetries(5),
		kgo.ProducerBatchMaxBytes(1000000),
	)
	if err != nil {
		return nil, fmt.Errorf("signal bus client: %w", err)
	}
	return &KafkaBus{client: client, logger: logger}, nil
}

// Topic returns the topic name a ServiceKind's signals are published to.
func Topic(kind domain.ServiceKind) string {
	return "signals." + string(kind)
}

// Publish encodes sig as JSON and produces it synchronously, waiting for
// the broker's result, keyed by ticker so that a ticker's signals stay
// ordered within a partition.
func (b *KafkaBus) Publish(ctx context.Context, kind domain.ServiceKind, sig domain.Signal) error {
	value, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}

	record := &kgo.Record{
		Topic: Topic(kind),
		Key:   []byte(sig.StockCode),
		Value: value,
	}

	result := b.client.ProduceSync(ctx, record)
	if err := result.FirstErr(); err != nil {
		return fmt.Errorf("produce signal: %w", err)
	}
	return nil
}

// Close releases the underlying Kafka client.
func (b *KafkaBus) Close() error {
	if b.client != nil {
		b.client.Close()
	}
	return nil
}

// NoopBus discards every signal. Used when KAFKA_BROKERS is unset so
// the worker can treat Bus as always non-nil.
type NoopBus struct{}

func (NoopBus) Publish(context.Context, domain.ServiceKind, domain.Signal) error { return nil }
func (NoopBus) Close() error                                                    { return nil }
