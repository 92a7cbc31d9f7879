package kafka

import (
	"context"
	"crypto/tls"

	"github.com/rs/zerolog/log"
	kafkaGo "github.com/segmentio/kafka-go"

	"gitlab.com/paramountdax-exchange/genealogy_api/config"
	"gitlab.com/paramountdax-exchange/genealogy_api/model"
)

// KafkaProducer publishes messages on a single topic
type KafkaProducer struct {
	writer *kafkaGo.Writer
	topic  string
}

// NewKafkaProducer godoc
func NewKafkaProducer(cfg config.KafkaWriterConfig, brokers []string, useTLS bool, topic string) *KafkaProducer {
	writer := &kafkaGo.Writer{
		Addr:         kafkaGo.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkaGo.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchBytes:   cfg.BatchBytes,
		BatchTimeout: cfg.BatchTimeout,
		Async:        cfg.Async,
		RequiredAcks: kafkaGo.RequireOne,
	}
	if useTLS {
		writer.Transport = &kafkaGo.Transport{TLS: &tls.Config{MinVersion: tls.VersionTLS12}}
	}
	return &KafkaProducer{writer: writer, topic: topic}
}

// WriteMessages godoc
func (producer *KafkaProducer) WriteMessages(ctx context.Context, msgs ...kafkaGo.Message) error {
	return producer.writer.WriteMessages(ctx, msgs...)
}

// Close flushes pending messages and closes the writer
func (producer *KafkaProducer) Close() error {
	return producer.writer.Close()
}

// EventPublisher publishes the network events, keyed by member so the events of a member stay ordered
type EventPublisher struct {
	producer *KafkaProducer
}

// NewEventPublisher godoc
func NewEventPublisher(producer *KafkaProducer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// Publish godoc
func (publisher *EventPublisher) Publish(ctx context.Context, events ...*model.NetworkEvent) error {
	msgs := make([]kafkaGo.Message, 0, len(events))
	for _, event := range events {
		raw, err := event.ToBinary()
		if err != nil {
			log.Error().Err(err).Str("section", "kafka").Str("topic", publisher.producer.topic).Msg("Unable to encode network event")
			continue
		}
		msgs = append(msgs, kafkaGo.Message{Key: event.Key(), Value: raw})
	}
	if len(msgs) == 0 {
		return nil
	}
	return publisher.producer.WriteMessages(ctx, msgs...)
}

// Close godoc
func (publisher *EventPublisher) Close() error {
	return publisher.producer.Close()
}
