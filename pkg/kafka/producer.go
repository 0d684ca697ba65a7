package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Producer publishes change notifications to a Kafka topic
type Producer struct {
	writer messageWriter
	logger ectologger.Logger
	topic  string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return newProducer(writer, cfg.Topic, logger)
}

func newProducer(writer messageWriter, topic string, logger ectologger.Logger) *Producer {
	return &Producer{
		writer: writer,
		logger: logger,
		topic:  topic,
	}
}

func (p *Producer) Name() string {
	return "kafka"
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// Publish writes the events as one batch. Messages are keyed by natural key
// so every change to one entity lands on the same partition in order.
func (p *Producer) Publish(ctx context.Context, batch []*events.EntityEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.Publish")
	defer span.End()

	if len(batch) == 0 {
		return nil
	}

	messages := make([]kafka.Message, 0, len(batch))
	for _, event := range batch {
		msg, err := p.toMessage(event)
		if err != nil {
			return err
		}
		messages = append(messages, msg)
	}

	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"batch_size": len(batch),
			"topic":      p.topic,
		}).Error("Failed to publish entity events batch")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"batch_size": len(batch),
		"topic":      p.topic,
	}).Debug("Published entity events batch")

	return nil
}

func (p *Producer) toMessage(event *events.EntityEvent) (kafka.Message, error) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}

	headers := []kafka.Header{
		{Key: "event_type", Value: []byte(event.EventType)},
		{Key: "entity_type", Value: []byte(event.EntityType)},
		{Key: "schema_version", Value: []byte(events.SchemaVersion)},
	}
	if event.TraceParent != "" {
		headers = append(headers, kafka.Header{Key: "traceparent", Value: []byte(event.TraceParent)})
	}

	return kafka.Message{
		Topic:   p.topic,
		Key:     []byte(event.EntityType + ":" + event.EntityKey),
		Value:   data,
		Headers: headers,
		Time:    event.Timestamp,
	}, nil
}
