package testutil

import (
	"encoding/json"
)

// BehovBuilder builds overgangsstønad need messages.
type BehovBuilder struct {
	fields map[string]interface{}
}

// NewBehovBuilder returns a builder for a complete, valid need.
func NewBehovBuilder() *BehovBuilder {
	return &BehovBuilder{
		fields: map[string]interface{}{
			"@behov":            []string{"overgangsstønad"},
			"@id":               "test",
			"@behovId":          "behovId",
			"ident":             "123",
			"fom":               "2025-01-01",
			"tom":               "2025-01-10",
			"@opprettet":        "2025-01-01T00:00:00",
			"system_read_count": 0,
			"system_participating_services": []map[string]string{{
				"id":       "test",
				"time":     "2025-01-01T00:00:00",
				"service":  "tiltakspenger-overgangsstønad",
				"instance": "tiltakspenger-overgangsstonad",
				"image":    "ghcr.io/navikt/tiltakspenger-overgangsstonad",
			}},
		},
	}
}

// WithBehov replaces the @behov list.
func (b *BehovBuilder) WithBehov(behov ...string) *BehovBuilder {
	b.fields["@behov"] = behov
	return b
}

// WithID sets @id.
func (b *BehovBuilder) WithID(id string) *BehovBuilder {
	b.fields["@id"] = id
	return b
}

// WithBehovID sets @behovId.
func (b *BehovBuilder) WithBehovID(id string) *BehovBuilder {
	b.fields["@behovId"] = id
	return b
}

// WithIdent sets ident.
func (b *BehovBuilder) WithIdent(ident string) *BehovBuilder {
	b.fields["ident"] = ident
	return b
}

// WithPeriod sets fom and tom.
func (b *BehovBuilder) WithPeriod(fom, tom string) *BehovBuilder {
	b.fields["fom"] = fom
	b.fields["tom"] = tom
	return b
}

// With sets any field, including nil for JSON null.
func (b *BehovBuilder) With(key string, value interface{}) *BehovBuilder {
	b.fields[key] = value
	return b
}

// Without removes a field.
func (b *BehovBuilder) Without(key string) *BehovBuilder {
	delete(b.fields, key)
	return b
}

// Build encodes the need.
func (b *BehovBuilder) Build() string {
	body, err := json.Marshal(b.fields)
	if err != nil {
		panic(err)
	}
	return string(body)
}
