// Package memory is an in-process broker used by tests and local runs
// without Kafka.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tiltakspenger-overgangsstonad/internal/brokers"
	"tiltakspenger-overgangsstonad/internal/common/errors"
	"tiltakspenger-overgangsstonad/internal/common/logging"
)

// Broker keeps published messages in memory and delivers messages queued
// with Send to the subscriber.
type Broker struct {
	mu        sync.Mutex
	published []*brokers.Message
	inbox     chan *brokers.IncomingMessage
	offset    int64
	closed    bool
	backoff   time.Duration
	logger    logging.Logger
}

// NewBroker creates a broker with room for size undelivered messages.
func NewBroker(size int) *Broker {
	if size <= 0 {
		size = 64
	}
	return &Broker{
		inbox:   make(chan *brokers.IncomingMessage, size),
		backoff: brokers.DefaultRedeliveryBackoff,
		logger:  logging.GetGlobalLogger().WithFields(logging.Field{Key: "broker", Value: "memory"}),
	}
}

// WithRedeliveryBackoff sets the pause before a failed message is handled again.
func (b *Broker) WithRedeliveryBackoff(backoff time.Duration) *Broker {
	b.backoff = backoff
	return b
}

// Name returns the broker name.
func (b *Broker) Name() string {
	return "memory"
}

// Publish stores a copy of message.
func (b *Broker) Publish(_ context.Context, message *brokers.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.ConnectionError("memory broker is closed", nil)
	}

	stored := *message
	stored.Body = append([]byte(nil), message.Body...)
	if stored.Timestamp.IsZero() {
		stored.Timestamp = time.Now()
	}
	b.published = append(b.published, &stored)
	return nil
}

// Send queues a message for the subscriber of topic. It fails when the
// inbox is full instead of blocking.
func (b *Broker) Send(topic, key string, body []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.ConnectionError("memory broker is closed", nil)
	}

	msg := &brokers.IncomingMessage{
		ID:        fmt.Sprintf("%s-0-%d", topic, b.offset),
		Key:       key,
		Body:      body,
		Timestamp: time.Now(),
		Topic:     topic,
		Offset:    b.offset,
		Source:    brokers.BrokerInfo{Name: "memory", Type: "memory"},
	}

	select {
	case b.inbox <- msg:
		b.offset++
		return nil
	default:
		return errors.ConnectionError("memory broker inbox is full", nil)
	}
}

// Subscribe delivers queued messages for topic until ctx is done or the
// broker is closed. A failed message is handled again until it succeeds.
func (b *Broker) Subscribe(ctx context.Context, topic string, handler brokers.MessageHandler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-b.inbox:
			if !ok {
				return nil
			}
			if msg.Topic != topic {
				continue
			}
			if !b.deliver(ctx, msg, handler) {
				return nil
			}
		}
	}
}

// deliver hands msg to handler until it succeeds. It returns false when
// ctx is done or the broker is closed first.
func (b *Broker) deliver(ctx context.Context, msg *brokers.IncomingMessage, handler brokers.MessageHandler) bool {
	for {
		err := handler(ctx, msg)
		if err == nil {
			return true
		}
		if ctx.Err() != nil || b.isClosed() {
			return false
		}
		b.logger.Warn("Handler failed, message will be redelivered", brokers.RedeliveryFields(msg, err)...)
		if !brokers.AwaitRedelivery(ctx, b.backoff) {
			return false
		}
	}
}

func (b *Broker) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Published returns the messages published so far.
func (b *Broker) Published() []*brokers.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]*brokers.Message, len(b.published))
	copy(out, b.published)
	return out
}

// Reset drops all published messages.
func (b *Broker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = nil
}

// Health reports an error once the broker is closed.
func (b *Broker) Health() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.ConnectionError("memory broker is closed", nil)
	}
	return nil
}

// Close stops delivery.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.inbox)
	}
	return nil
}
