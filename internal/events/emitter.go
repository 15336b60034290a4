package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/aristath/riskgovernor/internal/domain"
)

// RiskEmitter pushes escalated risk events to downstream consumers.
type RiskEmitter interface {
	EmitRiskEvent(ctx context.Context, e domain.RiskEvent) error
	Channel() string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEmitter publishes risk events as JSON, keyed by asset.
type KafkaEmitter struct {
	writer messageWriter
	topic  string
	log    zerolog.Logger
}

// NewKafkaEmitter creates an emitter writing to topic on brokers.
func NewKafkaEmitter(brokers []string, topic string, log zerolog.Logger) (*KafkaEmitter, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic is required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  1,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
		BatchTimeout: 10 * time.Millisecond,
	}
	return newKafkaEmitter(writer, topic, log), nil
}

func newKafkaEmitter(w messageWriter, topic string, log zerolog.Logger) *KafkaEmitter {
	return &KafkaEmitter{
		writer: w,
		topic:  topic,
		log:    log.With().Str("emitter", "kafka").Str("topic", topic).Logger(),
	}
}

// Channel implements RiskEmitter.
func (k *KafkaEmitter) Channel() string {
	return "kafka"
}

// EmitRiskEvent implements RiskEmitter.
func (k *KafkaEmitter) EmitRiskEvent(ctx context.Context, e domain.RiskEvent) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal value: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(e.Asset),
		Value: value,
		Time:  time.Now(),
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write risk event: %w", err)
	}
	k.log.Debug().Str("case_id", e.CaseID).Str("asset", e.Asset).Msg("Risk event emitted")
	return nil
}

// Close flushes and closes the writer.
func (k *KafkaEmitter) Close() error {
	return k.writer.Close()
}

// LogEmitter logs risk events and republishes them on the bus. It is used
// when no brokers are configured.
type LogEmitter struct {
	bus *Bus
	log zerolog.Logger
}

// NewLogEmitter creates a log-only emitter. bus may be nil.
func NewLogEmitter(bus *Bus, log zerolog.Logger) *LogEmitter {
	return &LogEmitter{bus: bus, log: log.With().Str("emitter", "log").Logger()}
}

// Channel implements RiskEmitter.
func (l *LogEmitter) Channel() string {
	return "log"
}

// EmitRiskEvent implements RiskEmitter.
func (l *LogEmitter) EmitRiskEvent(_ context.Context, e domain.RiskEvent) error {
	l.log.Warn().
		Str("case_id", e.CaseID).
		Str("asset", e.Asset).
		Str("event_type", string(e.EventType)).
		Float64("severity", e.Severity).
		Msg("Risk event")
	if l.bus != nil {
		l.bus.Publish("risk_emitter", &RiskEscalatedData{Event: e})
	}
	return nil
}
