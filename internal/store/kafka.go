package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/xtxerr/heatwatch/internal/errors"
	"github.com/xtxerr/heatwatch/internal/loader"
	"github.com/xtxerr/heatwatch/internal/reading"
)

// messageWriter is the part of *kafka.Writer the store uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes each record as a JSON message keyed by its id, so
// log-compacted topics keep one copy of a retried record.
type Kafka struct {
	w      messageWriter
	topic  string
	sensor string
}

// NewKafka creates a Kafka store. Brokers are dialed lazily on the first
// write.
func NewKafka(cfg loader.KafkaConfig, sensor string) *Kafka {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    1,
		MaxAttempts:  1,
	}

	log.Info("kafka store configured", "brokers", cfg.Brokers, "topic", cfg.Topic)

	return &Kafka{w: w, topic: cfg.Topic, sensor: sensor}
}

// Write publishes rec.
func (k *Kafka) Write(ctx context.Context, rec reading.Record) error {
	rec = rec.WithID(k.sensor)

	b, err := json.Marshal(rec)
	if err != nil {
		return errors.NewStoreFailure(errors.StoreRejected, fmt.Errorf("encode record: %w", err))
	}

	msg := kafka.Message{
		Key:   []byte(rec.ID),
		Value: b,
		Time:  time.UnixMilli(rec.TimestampMs),
	}

	return classify(ctx, "publish", k.w.WriteMessages(ctx, msg))
}

// Close flushes and closes the writer.
func (k *Kafka) Close() error {
	return k.w.Close()
}
