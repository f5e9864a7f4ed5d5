package rapids

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePacket(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "object", body: `{"@id":"1"}`},
		{name: "empty object", body: `{}`},
		{name: "array", body: `[1,2]`, wantErr: true},
		{name: "string", body: `"hei"`, wantErr: true},
		{name: "null", body: `null`, wantErr: true},
		{name: "not json", body: `ikke json`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePacket([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestPacket_Accessors(t *testing.T) {
	packet, err := ParsePacket([]byte(`{
		"@behov": ["overgangsstønad", 3, "annet"],
		"ident": "12345678910",
		"count": 2,
		"flag": true,
		"nothing": null
	}`))
	require.NoError(t, err)

	assert.True(t, packet.Has("ident"))
	assert.False(t, packet.Has("nothing"))
	assert.False(t, packet.Has("missing"))

	assert.Equal(t, "12345678910", packet.Text("ident"))
	assert.Equal(t, "2", packet.Text("count"))
	assert.Equal(t, "true", packet.Text("flag"))
	assert.Equal(t, "", packet.Text("nothing"))

	assert.Equal(t, []string{"overgangsstønad", "annet"}, packet.Strings("@behov"))
	assert.Nil(t, packet.Strings("ident"))

	n, ok := packet.Int("count")
	assert.True(t, ok)
	assert.Equal(t, 2, n)
	_, ok = packet.Int("ident")
	assert.False(t, ok)
}

func TestPacket_SetAndCopy(t *testing.T) {
	packet, err := ParsePacket([]byte(`{"a":1,"keep":{"nested":[1,2]}}`))
	require.NoError(t, err)

	clone := packet.Copy()
	require.NoError(t, clone.Set("a", map[string]string{"b": "c"}))

	assert.Equal(t, "1", packet.Text("a"))

	body, err := clone.JSON()
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, map[string]interface{}{"b": "c"}, decoded["a"])
	assert.Equal(t, map[string]interface{}{"nested": []interface{}{1.0, 2.0}}, decoded["keep"])
	assert.JSONEq(t, string(body), clone.String())
}
