// Package rapids connects rivers to a shared message topic. Every consumed
// message is offered to every registered river; rivers filter with rules and
// hand accepted packets to their listeners.
package rapids

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"tiltakspenger-overgangsstonad/internal/brokers"
	"tiltakspenger-overgangsstonad/internal/common/errors"
	"tiltakspenger-overgangsstonad/internal/common/logging"
	"tiltakspenger-overgangsstonad/internal/metrics"
)

const participationTimeLayout = "2006-01-02T15:04:05.000000"

// Config identifies the application on the rapid.
type Config struct {
	Topic    string
	AppName  string
	Instance string
	Image    string
}

// ParticipatingService is appended to every consumed message so a message's
// path across services can be traced.
type ParticipatingService struct {
	ID       string `json:"id"`
	Time     string `json:"time"`
	Service  string `json:"service"`
	Instance string `json:"instance"`
	Image    string `json:"image"`
}

// Rapid consumes the topic through a broker and fans messages out to rivers.
type Rapid struct {
	broker  brokers.Broker
	config  Config
	rivers  []*River
	metrics *metrics.Metrics
	now     func() time.Time
	logger  logging.Logger
}

// New creates a rapid on broker.
func New(broker brokers.Broker, config Config, m *metrics.Metrics) *Rapid {
	if config.Instance == "" {
		config.Instance = config.AppName
	}
	return &Rapid{
		broker:  broker,
		config:  config,
		metrics: m,
		now:     time.Now,
		logger: logging.GetGlobalLogger().WithFields(
			logging.Field{Key: "rapid", Value: config.Topic},
			logging.Field{Key: "app", Value: config.AppName},
		),
	}
}

// Register adds a river. Rivers register themselves through NewRiver.
func (r *Rapid) Register(river *River) {
	r.rivers = append(r.rivers, river)
}

// RapidName returns the topic name.
func (r *Rapid) RapidName() string {
	return r.config.Topic
}

// Start consumes until ctx is cancelled or a listener fails.
func (r *Rapid) Start(ctx context.Context) error {
	r.logger.Info("Starting rapid", logging.Field{Key: "rivers", Value: len(r.rivers)})
	return r.broker.Subscribe(ctx, r.config.Topic, r.HandleMessage)
}

// HandleMessage offers one consumed message to all rivers. Non-object
// payloads are skipped. The first listener error is returned.
func (r *Rapid) HandleMessage(ctx context.Context, msg *brokers.IncomingMessage) error {
	packet, err := ParsePacket(msg.Body)
	if err != nil {
		r.logger.Debug("Skipping message that is not a JSON object",
			logging.Field{Key: "message_id", Value: msg.ID})
		r.metrics.IncrementMessage(metrics.MessageInvalid)
		return nil
	}

	if err := r.markRead(packet); err != nil {
		return err
	}

	accepted := false
	for _, river := range r.rivers {
		ok, err := river.onPacket(ctx, packet, r)
		if err != nil {
			r.metrics.IncrementMessage(metrics.MessageFailed)
			return err
		}
		accepted = accepted || ok
	}

	if accepted {
		r.metrics.IncrementMessage(metrics.MessageAccepted)
	} else {
		r.metrics.IncrementMessage(metrics.MessageRejected)
	}
	return nil
}

func (r *Rapid) markRead(packet *Packet) error {
	readCount, _ := packet.Int(ReadCountKey)
	if err := packet.Set(ReadCountKey, readCount+1); err != nil {
		return err
	}

	var services []json.RawMessage
	if raw, ok := packet.Get(ParticipatingServicesKey); ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &services); err != nil {
			services = nil
		}
	}

	entry, err := json.Marshal(ParticipatingService{
		ID:       uuid.NewString(),
		Time:     r.now().Format(participationTimeLayout),
		Service:  r.config.AppName,
		Instance: r.config.Instance,
		Image:    r.config.Image,
	})
	if err != nil {
		return errors.InternalError("failed to encode participating service", err)
	}

	return packet.Set(ParticipatingServicesKey, append(services, entry))
}

// Publish sends message keyed by key on the rapid topic.
func (r *Rapid) Publish(ctx context.Context, key string, message []byte) error {
	return r.broker.Publish(ctx, &brokers.Message{
		Topic:     r.config.Topic,
		Key:       key,
		Body:      message,
		Timestamp: r.now(),
	})
}

// Health reports the broker's health.
func (r *Rapid) Health() error {
	return r.broker.Health()
}

// Close closes the broker.
func (r *Rapid) Close() error {
	return r.broker.Close()
}
