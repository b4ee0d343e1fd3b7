/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaMirrorConfig configures the optional Kafka export of flushed batches.
type KafkaMirrorConfig struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string

	// Topic is the topic flushed audit batches are exported to.
	Topic string

	// BatchTimeout is the maximum time the client buffers messages.
	// Default: 1s.
	BatchTimeout time.Duration

	// RequiredAcks determines the acknowledgment level.
	// -1: all replicas, 0: none, 1: leader only. Default: -1.
	RequiredAcks int
}

// KafkaMirror forwards already-durable audit batches to a Kafka topic for
// compliance streaming. It sits behind the BatchMirror interface: a mirror
// failure is logged by the writer and never affects the store path.
type KafkaMirror struct {
	writer *kafka.Writer
	logger *zap.Logger
	mu     sync.Mutex
	closed bool

	messagesWritten atomic.Int64
	messagesFailed  atomic.Int64
	batchesSent     atomic.Int64
}

// NewKafkaMirror creates a KafkaMirror.
func NewKafkaMirror(cfg KafkaMirrorConfig, logger *zap.Logger) (*KafkaMirror, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("Kafka topic is required")
	}

	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = time.Second
	}
	requiredAcks := cfg.RequiredAcks
	if requiredAcks == 0 {
		requiredAcks = -1
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		BatchTimeout:           batchTimeout,
		RequiredAcks:           kafka.RequiredAcks(requiredAcks),
		Compression:            kafka.Snappy,
		AllowAutoTopicCreation: false,
	}

	mirror := &KafkaMirror{
		writer: writer,
		logger: logger.Named("kafka-mirror"),
	}

	mirror.logger.Info("Kafka audit mirror created",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic))

	return mirror, nil
}

// WriteBatch exports one flushed batch as individual messages keyed by
// entity, so per-entity ordering survives partitioning. Records that fail to
// serialize are skipped; the rest of the batch still goes out.
func (m *KafkaMirror) WriteBatch(ctx context.Context, records []*Record) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("kafka mirror is closed")
	}
	m.mu.Unlock()

	if len(records) == 0 {
		return nil
	}

	messages := make([]kafka.Message, 0, len(records))
	for _, record := range records {
		value, err := json.Marshal(record)
		if err != nil {
			m.logger.Warn("failed to marshal audit record, skipping",
				zap.String("entity", record.EntityName),
				zap.String("entity_id", record.EntityID),
				zap.Error(err))
			continue
		}

		messages = append(messages, kafka.Message{
			Key:   []byte(record.EntityName + CompositeKeyDelimiter + record.EntityID),
			Value: value,
			Headers: []kafka.Header{
				{Key: "record-id", Value: []byte(strconv.FormatUint(record.ID, 10))},
				{Key: "action", Value: []byte(record.Action)},
				{Key: "timestamp", Value: []byte(record.Timestamp.Format(time.RFC3339))},
			},
		})
	}

	if len(messages) == 0 {
		return nil
	}

	if err := m.writer.WriteMessages(ctx, messages...); err != nil {
		m.messagesFailed.Add(int64(len(messages)))
		return fmt.Errorf("write audit batch to Kafka (%s): %w", classifyKafkaError(err), err)
	}

	m.messagesWritten.Add(int64(len(messages)))
	m.batchesSent.Add(1)
	return nil
}

// Close closes the Kafka writer.
func (m *KafkaMirror) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	m.logger.Info("closing Kafka audit mirror",
		zap.Int64("messages_written", m.messagesWritten.Load()),
		zap.Int64("messages_failed", m.messagesFailed.Load()),
		zap.Int64("batches_sent", m.batchesSent.Load()))

	if err := m.writer.Close(); err != nil {
		return fmt.Errorf("close Kafka writer: %w", err)
	}
	return nil
}

// Name returns the mirror identifier.
func (m *KafkaMirror) Name() string {
	return "kafka"
}

// MessageStats returns export counters for monitoring.
func (m *KafkaMirror) MessageStats() (written, failed, batches int64) {
	return m.messagesWritten.Load(), m.messagesFailed.Load(), m.batchesSent.Load()
}

// classifyKafkaError categorizes Kafka errors for logging.
func classifyKafkaError(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "timeout"
		}
		return "network"
	}

	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host"):
		return "network"
	case strings.Contains(errStr, "broker") || strings.Contains(errStr, "leader"):
		return "broker"
	case strings.Contains(errStr, "topic"):
		return "topic"
	default:
		return "other"
	}
}
