package rapids

import (
	"context"
	"strings"

	"tiltakspenger-overgangsstonad/internal/common/logging"
)

// MessageContext lets a listener publish back onto the rapid.
type MessageContext interface {
	Publish(ctx context.Context, key string, message []byte) error
	RapidName() string
}

// PacketListener handles packets that passed a river's rules. A returned
// error stops the rapid without acknowledging the message.
type PacketListener interface {
	OnPacket(ctx context.Context, packet *Packet, mc MessageContext) error
}

// PacketListenerFunc adapts a function to PacketListener.
type PacketListenerFunc func(ctx context.Context, packet *Packet, mc MessageContext) error

// OnPacket calls f.
func (f PacketListenerFunc) OnPacket(ctx context.Context, packet *Packet, mc MessageContext) error {
	return f(ctx, packet, mc)
}

// River filters the rapid for one kind of message.
type River struct {
	name      string
	rules     []Rule
	listeners []PacketListener
	logger    logging.Logger
}

// NewRiver creates a river and registers it on rapid.
func NewRiver(name string, rapid *Rapid) *River {
	r := &River{
		name:   name,
		logger: logging.GetGlobalLogger().WithFields(logging.Field{Key: "river", Value: name}),
	}
	rapid.Register(r)
	return r
}

// Validate appends rules. All must pass for a packet to reach the listeners.
func (r *River) Validate(rules ...Rule) *River {
	r.rules = append(r.rules, rules...)
	return r
}

// Register adds a listener.
func (r *River) Register(listener PacketListener) *River {
	r.listeners = append(r.listeners, listener)
	return r
}

// onPacket reports whether the packet was accepted.
func (r *River) onPacket(ctx context.Context, packet *Packet, mc MessageContext) (bool, error) {
	var problems []string
	for _, rule := range r.rules {
		if problem := rule(packet); problem != "" {
			problems = append(problems, problem)
		}
	}

	if len(problems) > 0 {
		r.logger.Debug("Packet rejected", logging.Field{Key: "problems", Value: strings.Join(problems, "; ")})
		return false, nil
	}

	for _, listener := range r.listeners {
		if err := listener.OnPacket(ctx, packet.Copy(), mc); err != nil {
			return true, err
		}
	}
	return true, nil
}
