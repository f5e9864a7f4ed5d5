package rapids

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"tiltakspenger-overgangsstonad/internal/common/errors"
)

const (
	ReadCountKey             = "system_read_count"
	ParticipatingServicesKey = "system_participating_services"
)

// Packet is a rapid message: a JSON object whose top level fields can be
// read and replaced. Fields that are never touched are passed through as is.
type Packet struct {
	fields map[string]json.RawMessage
}

// ParsePacket parses body, which must be a JSON object.
func ParsePacket(body []byte) (*Packet, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, errors.ValidationError(fmt.Sprintf("message is not a JSON object: %v", err))
	}
	if fields == nil {
		return nil, errors.ValidationError("message is not a JSON object: null")
	}
	return &Packet{fields: fields}, nil
}

// Get returns the raw value of key.
func (p *Packet) Get(key string) (json.RawMessage, bool) {
	raw, ok := p.fields[key]
	return raw, ok
}

// Has reports whether key is present with a non-null value.
func (p *Packet) Has(key string) bool {
	raw, ok := p.fields[key]
	return ok && !isNull(raw)
}

// Text returns the value of key as text. Strings are unquoted, other
// scalars are returned as written, and missing or null values give "".
func (p *Packet) Text(key string) string {
	raw, ok := p.fields[key]
	if !ok || isNull(raw) {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}

// Strings returns the string elements of the array at key. Non-string
// elements are skipped.
func (p *Packet) Strings(key string) []string {
	raw, ok := p.fields[key]
	if !ok {
		return nil
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(raw, &elements); err != nil {
		return nil
	}

	out := make([]string, 0, len(elements))
	for _, element := range elements {
		var s string
		if err := json.Unmarshal(element, &s); err == nil {
			out = append(out, s)
		}
	}
	return out
}

// Int returns the integer at key.
func (p *Packet) Int(key string) (int, bool) {
	raw, ok := p.fields[key]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(string(bytes.TrimSpace(raw)))
	if err != nil {
		return 0, false
	}
	return n, true
}

// Set replaces key with the JSON encoding of value.
func (p *Packet) Set(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.InternalError(fmt.Sprintf("failed to encode %s", key), err)
	}
	p.fields[key] = raw
	return nil
}

// Copy returns a packet that can be modified without affecting p.
func (p *Packet) Copy() *Packet {
	fields := make(map[string]json.RawMessage, len(p.fields))
	for k, v := range p.fields {
		fields[k] = v
	}
	return &Packet{fields: fields}
}

// JSON encodes the packet.
func (p *Packet) JSON() ([]byte, error) {
	return json.Marshal(p.fields)
}

// String returns the packet as JSON, for logging.
func (p *Packet) String() string {
	body, err := p.JSON()
	if err != nil {
		return fmt.Sprintf("<invalid packet: %v>", err)
	}
	return string(body)
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
