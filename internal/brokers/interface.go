// Package brokers defines the message transport the rapid runs on.
package brokers

import (
	"context"
	"time"

	"tiltakspenger-overgangsstonad/internal/common/errors"
	"tiltakspenger-overgangsstonad/internal/common/logging"
)

// DefaultRedeliveryBackoff is the pause before a failed message is handled again.
const DefaultRedeliveryBackoff = 5 * time.Second

// Broker publishes to and consumes from a topic based message bus.
type Broker interface {
	Name() string
	Publish(ctx context.Context, message *Message) error
	// Subscribe consumes topic until ctx is cancelled or the transport
	// fails. A message is acknowledged only after handler returns nil. A
	// failed message is left unacknowledged and handled again after a
	// pause, so later messages wait behind it.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) error
	Health() error
	Close() error
}

// Message is an outgoing message. Key selects the partition.
type Message struct {
	Topic     string
	Key       string
	Headers   map[string]string
	Body      []byte
	Timestamp time.Time
}

// MessageHandler processes one incoming message.
type MessageHandler func(ctx context.Context, message *IncomingMessage) error

// IncomingMessage is a consumed message with its position on the topic.
type IncomingMessage struct {
	ID        string
	Key       string
	Headers   map[string]string
	Body      []byte
	Timestamp time.Time
	Topic     string
	Partition int32
	Offset    int64
	Source    BrokerInfo
}

// BrokerInfo identifies where a message came from.
type BrokerInfo struct {
	Name string
	Type string
	URL  string
}

// AwaitRedelivery pauses before a failed message is handled again. It
// returns false if ctx is done first.
func AwaitRedelivery(ctx context.Context, backoff time.Duration) bool {
	if backoff <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// RedeliveryFields describes a failed delivery for the general log. The
// error text and the key are left out since both can carry personal data.
func RedeliveryFields(msg *IncomingMessage, err error) []logging.Field {
	return []logging.Field{
		{Key: "topic", Value: msg.Topic},
		{Key: "partition", Value: msg.Partition},
		{Key: "offset", Value: msg.Offset},
		{Key: "error_type", Value: string(errors.GetType(err))},
		{Key: "status_code", Value: errors.StatusCode(err)},
	}
}
