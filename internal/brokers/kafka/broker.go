package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"tiltakspenger-overgangsstonad/internal/brokers"
	"tiltakspenger-overgangsstonad/internal/common/errors"
	"tiltakspenger-overgangsstonad/internal/common/logging"
)

// Broker is a confluent-kafka-go backed rapid transport. Offsets are
// committed manually, one message at a time, after the handler succeeds.
type Broker struct {
	config   *Config
	producer *kafka.Producer
	consumer *kafka.Consumer
	name     string
	logger   logging.Logger
}

// NewBroker validates config and creates the producer. The consumer is
// created by Subscribe.
func NewBroker(config *Config) (*Broker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	producerConfig := kafka.ConfigMap{
		"acks":               "all",
		"linger.ms":          0,
		"enable.idempotence": true,
	}
	for k, v := range config.connectionConfig() {
		producerConfig[k] = v
	}

	producer, err := kafka.NewProducer(&producerConfig)
	if err != nil {
		return nil, errors.ConnectionError("failed to create Kafka producer", err)
	}

	return &Broker{
		config:   config,
		producer: producer,
		name:     "kafka",
		logger: logging.GetGlobalLogger().WithFields(
			logging.Field{Key: "broker", Value: "kafka"},
			logging.Field{Key: "connection", Value: config.GetConnectionString()},
		),
	}, nil
}

// Name returns the broker name.
func (b *Broker) Name() string {
	return b.name
}

// Publish produces message and waits for the delivery report.
func (b *Broker) Publish(ctx context.Context, message *brokers.Message) error {
	if b.producer == nil {
		return errors.ConnectionError("Kafka broker not connected", nil)
	}

	topic := message.Topic
	kafkaMsg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Value:     message.Body,
		Timestamp: message.Timestamp,
	}
	if message.Key != "" {
		kafkaMsg.Key = []byte(message.Key)
	}

	if len(message.Headers) > 0 {
		headers := make([]kafka.Header, 0, len(message.Headers))
		for key, value := range message.Headers {
			headers = append(headers, kafka.Header{
				Key:   key,
				Value: []byte(value),
			})
		}
		kafkaMsg.Headers = headers
	}

	deliveryChan := make(chan kafka.Event, 1)
	if err := b.producer.Produce(kafkaMsg, deliveryChan); err != nil {
		return errors.ConnectionError("failed to produce message", err)
	}

	select {
	case <-ctx.Done():
		return errors.TimeoutError("Kafka delivery", ctx.Err())
	case e := <-deliveryChan:
		m, ok := e.(*kafka.Message)
		if !ok {
			return errors.ConnectionError(fmt.Sprintf("unexpected delivery event %v", e), nil)
		}
		if m.TopicPartition.Error != nil {
			return errors.ConnectionError("delivery failed", m.TopicPartition.Error)
		}

		b.logger.Debug("Message delivered",
			logging.Field{Key: "topic", Value: *m.TopicPartition.Topic},
			logging.Field{Key: "partition", Value: m.TopicPartition.Partition},
			logging.Field{Key: "offset", Value: m.TopicPartition.Offset.String()},
		)
		return nil
	}
}

// Subscribe consumes topic until ctx is done or the consumer fails. A failed
// message is not committed. The consumer seeks back to it and reads it again
// after RedeliveryBackoff.
func (b *Broker) Subscribe(ctx context.Context, topic string, handler brokers.MessageHandler) error {
	if b.consumer != nil {
		return errors.InternalError("Kafka broker is already subscribed", nil)
	}

	consumerConfig := kafka.ConfigMap{
		"group.id":           b.config.GroupID,
		"auto.offset.reset":  b.config.ResetPolicy,
		"enable.auto.commit": false,
		"session.timeout.ms": int(b.config.SessionTimeout.Milliseconds()),
	}
	for k, v := range b.config.connectionConfig() {
		consumerConfig[k] = v
	}
	consumerConfig["client.id"] = b.config.ClientID + "-consumer"

	consumer, err := kafka.NewConsumer(&consumerConfig)
	if err != nil {
		return errors.ConnectionError("failed to create Kafka consumer", err)
	}
	b.consumer = consumer

	if err := consumer.SubscribeTopics([]string{topic}, nil); err != nil {
		return errors.ConnectionError(fmt.Sprintf("failed to subscribe to topic %s", topic), err)
	}

	b.logger.Info("Subscribed to topic",
		logging.Field{Key: "topic", Value: topic},
		logging.Field{Key: "group_id", Value: b.config.GroupID},
	)

	for {
		if ctx.Err() != nil {
			return nil
		}

		msg, err := consumer.ReadMessage(b.config.PollTimeout)
		if err != nil {
			if kafkaErr, ok := err.(kafka.Error); ok {
				if kafkaErr.Code() == kafka.ErrTimedOut {
					continue
				}
				if kafkaErr.IsFatal() {
					return errors.ConnectionError("fatal Kafka consumer error", kafkaErr)
				}
			}
			b.logger.Warn("Kafka consumer error", logging.Field{Key: "error", Value: err.Error()})
			continue
		}

		incoming := toIncoming(b, msg)
		if err := handler(ctx, incoming); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			b.logger.Warn("Handler failed, message will be redelivered", brokers.RedeliveryFields(incoming, err)...)
			if err := consumer.Seek(msg.TopicPartition, 0); err != nil {
				return errors.ConnectionError("failed to seek back to failed message", err)
			}
			if !brokers.AwaitRedelivery(ctx, b.config.RedeliveryBackoff) {
				return nil
			}
			continue
		}

		if _, err := consumer.CommitMessage(msg); err != nil {
			return errors.ConnectionError("failed to commit offset", err)
		}
	}
}

func toIncoming(b *Broker, msg *kafka.Message) *brokers.IncomingMessage {
	headers := make(map[string]string, len(msg.Headers))
	for _, header := range msg.Headers {
		headers[header.Key] = string(header.Value)
	}

	topic := ""
	if msg.TopicPartition.Topic != nil {
		topic = *msg.TopicPartition.Topic
	}

	return &brokers.IncomingMessage{
		ID:        fmt.Sprintf("%s-%d-%d", topic, msg.TopicPartition.Partition, msg.TopicPartition.Offset),
		Key:       string(msg.Key),
		Headers:   headers,
		Body:      msg.Value,
		Timestamp: msg.Timestamp,
		Topic:     topic,
		Partition: msg.TopicPartition.Partition,
		Offset:    int64(msg.TopicPartition.Offset),
		Source: brokers.BrokerInfo{
			Name: b.name,
			Type: b.config.GetType(),
			URL:  b.config.GetConnectionString(),
		},
	}
}

// Health checks that at least one broker answers a metadata request.
func (b *Broker) Health() error {
	if b.producer == nil {
		return errors.ConnectionError("Kafka producer not initialized", nil)
	}

	metadata, err := b.producer.GetMetadata(nil, false, int(b.config.Timeout.Milliseconds()))
	if err != nil {
		return errors.ConnectionError("failed to get Kafka metadata", err)
	}

	if len(metadata.Brokers) == 0 {
		return errors.ConnectionError("no Kafka brokers available", nil)
	}

	return nil
}

// Close flushes pending deliveries and closes producer and consumer.
func (b *Broker) Close() error {
	var errs []error

	if b.producer != nil {
		if remaining := b.producer.Flush(int((5 * time.Second).Milliseconds())); remaining > 0 {
			b.logger.Warn("Unflushed messages on close", logging.Field{Key: "count", Value: remaining})
		}
		b.producer.Close()
		b.producer = nil
	}

	if b.consumer != nil {
		if err := b.consumer.Close(); err != nil {
			errs = append(errs, err)
		}
		b.consumer = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing Kafka broker: %v", errs)
	}

	return nil
}
