package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"tiltakspenger-overgangsstonad/internal/brokers"
	"tiltakspenger-overgangsstonad/internal/brokers/memory"
	"tiltakspenger-overgangsstonad/internal/metrics"
	"tiltakspenger-overgangsstonad/internal/rapids"
)

// TestRapidTopic is the topic used by TestRapid.
const TestRapidTopic = "tpts.rapid.v1"

// TestRapid is a rapid on an in-memory broker. Messages sent with
// SendTestMessage are handled synchronously.
type TestRapid struct {
	*rapids.Rapid
	broker  *memory.Broker
	Metrics *metrics.Metrics
	offset  atomic.Int64
}

// NewTestRapid creates a rapid with its own metrics registry.
func NewTestRapid() *TestRapid {
	broker := memory.NewBroker(16)
	m := metrics.New(prometheus.NewRegistry())
	return &TestRapid{
		Rapid: rapids.New(broker, rapids.Config{
			Topic:    TestRapidTopic,
			AppName:  "tiltakspenger-overgangsstonad",
			Instance: "tiltakspenger-overgangsstonad",
			Image:    "ghcr.io/navikt/tiltakspenger-overgangsstonad",
		}, m),
		broker:  broker,
		Metrics: m,
	}
}

// SendTestMessage hands body to the rivers and returns the listener error, if any.
func (r *TestRapid) SendTestMessage(body string) error {
	offset := r.offset.Add(1) - 1
	return r.HandleMessage(context.Background(), &brokers.IncomingMessage{
		ID:     fmt.Sprintf("%s-0-%d", TestRapidTopic, offset),
		Body:   []byte(body),
		Topic:  TestRapidTopic,
		Offset: offset,
	})
}

// Inspector returns a view of what has been published.
func (r *TestRapid) Inspector() *Inspector {
	return &Inspector{messages: r.broker.Published()}
}

// Reset forgets published messages.
func (r *TestRapid) Reset() {
	r.broker.Reset()
}

// Inspector gives access to published messages.
type Inspector struct {
	messages []*brokers.Message
}

// Size returns the number of published messages.
func (i *Inspector) Size() int {
	return len(i.messages)
}

// Key returns the key of message n.
func (i *Inspector) Key(n int) string {
	return i.messages[n].Key
}

// Raw returns the body of message n.
func (i *Inspector) Raw(n int) []byte {
	return i.messages[n].Body
}

// Message decodes message n into a generic JSON object.
func (i *Inspector) Message(n int) map[string]interface{} {
	var out map[string]interface{}
	if err := json.Unmarshal(i.messages[n].Body, &out); err != nil {
		return nil
	}
	return out
}

// Field returns the raw JSON of key in message n.
func (i *Inspector) Field(n int, key string) json.RawMessage {
	packet, err := rapids.ParsePacket(i.messages[n].Body)
	if err != nil {
		return nil
	}
	raw, _ := packet.Get(key)
	return raw
}
