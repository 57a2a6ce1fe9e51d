// Package mirror publishes every chat transcript event to a Kafka topic, so
// conversations can be archived or analyzed outside the client.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/FlowDeck/FlowDeck/internal/bus"
	"github.com/FlowDeck/FlowDeck/internal/config"
)

const writeTimeout = 10 * time.Second

// writer is the producer surface used by the mirror. Satisfied by
// *kafka.Writer.
type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Mirror forwards transcript events to Kafka. Delivery is best effort: a
// failed write is logged and dropped, never retried, and never blocks the
// chat turn beyond the write timeout.
type Mirror struct {
	w writer
}

// New creates a mirror producing to the configured topic, or nil when
// mirroring is disabled or unconfigured.
func New(cfg config.MirrorConfig) *Mirror {
	if !cfg.Enabled || len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil
	}
	return &Mirror{w: &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}}
}

// Attach subscribes the mirror to transcript events. Safe on a nil mirror.
func (m *Mirror) Attach(b *bus.Bus) {
	if m == nil {
		return
	}
	b.SubscribeTranscript(func(ev bus.TranscriptEvent) {
		if err := m.publish(ev); err != nil {
			slog.Warn("mirror: transcript write failed", "thread_id", ev.ThreadID, "error", err)
		}
	})
}

// publish writes one event, keyed by thread id so a thread's messages land
// on one partition in order.
func (m *Mirror) publish(ev bus.TranscriptEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return m.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.ThreadID),
		Value: value,
		Time:  ev.Timestamp,
	})
}

// Close flushes and closes the underlying producer. Safe on a nil mirror.
func (m *Mirror) Close() error {
	if m == nil {
		return nil
	}
	return m.w.Close()
}
