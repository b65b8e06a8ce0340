package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher fans settlement events out to Kafka, one writer per topic. A nil
// *Publisher is valid and drops everything, so callers never branch on
// whether eventing is configured.
type Publisher struct {
	writers map[string]*kafka.Writer
	logger  *zap.Logger
}

// NewPublisher creates writers for every lifecycle topic against the given
// broker list.
func NewPublisher(brokers string, logger *zap.Logger) *Publisher {
	topics := []string{
		TopicMarketCreated,
		TopicBetPlaced,
		TopicMarketResolved,
		TopicWinningsClaimed,
		TopicMarketClosed,
	}
	writers := make(map[string]*kafka.Writer, len(topics))
	for _, topic := range topics {
		writers[topic] = &kafka.Writer{
			Addr:                   kafka.TCP(brokers),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		}
	}
	return &Publisher{writers: writers, logger: logger}
}

// Publish sends one JSON-encoded event, keyed for per-market ordering.
// Failures are logged, not returned: the ledger has already committed and an
// event hiccup must not fail the operation.
func (p *Publisher) Publish(ctx context.Context, topic, key string, payload any) {
	if p == nil {
		return
	}
	w, ok := p.writers[topic]
	if !ok {
		p.logger.Warn("unknown event topic", zap.String("topic", topic))
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("event marshal failed", zap.String("topic", topic), zap.Error(err))
		return
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: raw,
		Time:  time.Now(),
	}
	if err := w.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("event publish failed",
			zap.String("topic", topic),
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

// Close shuts down every writer.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	var firstErr error
	for topic, w := range p.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("events.Close %s: %w", topic, err)
		}
	}
	return firstErr
}

// MarketKeyFor builds the per-market ordering key.
func MarketKeyFor(marketID uint64) string {
	return fmt.Sprintf("market-%d", marketID)
}
