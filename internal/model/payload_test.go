package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadOf(t *testing.T) {
	assert.True(t, PayloadOf(nil).IsZero())
	assert.Equal(t, PayloadText, PayloadOf("plain").Kind())
	assert.Equal(t, "plain", PayloadOf("plain").Text())

	p := PayloadOf(ResponseInfo{Status: 200, Body: map[string]any{"status": "SUCCESS"}})
	require.Equal(t, PayloadStructured, p.Kind())
	status, ok := p.Field("status")
	require.True(t, ok)
	assert.Equal(t, float64(200), status)

	arr := PayloadOf([]int{1, 2})
	assert.Equal(t, PayloadText, arr.Kind())
	assert.Equal(t, "[1,2]", arr.Text())

	_, ok = TextPayload("x").Field("status")
	assert.False(t, ok)
}

func TestLogEntryJSON(t *testing.T) {
	entry := LogEntry{
		Level:   LevelWarn,
		Message: "Received response for JAN: 4981932123457",
		Details: TextPayload(`{"looks":"like json"}`),
		Data:    StructuredPayload(map[string]any{"jan": "4981932123457"}),
	}

	raw, err := json.Marshal(entry)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"request"`)
	assert.NotContains(t, string(raw), `"response"`)

	var got LogEntry
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, PayloadText, got.Details.Kind())
	assert.Equal(t, `{"looks":"like json"}`, got.Details.Text())
	assert.Equal(t, "4981932123457", got.Data.Fields()["jan"])
	assert.True(t, got.Request.IsZero())
}

func TestDecodeResponse(t *testing.T) {
	info, ok := DecodeResponse(ResponseInfo{Status: 503, Body: "maintenance"}.Payload())
	require.True(t, ok)
	assert.Equal(t, 503, info.Status)
	assert.Equal(t, "maintenance", info.Body)

	_, ok = DecodeResponse(TextPayload("nope"))
	assert.False(t, ok)
}

func TestBatchResultAdd(t *testing.T) {
	var r BatchResult
	r.Add(Outcome{Code: "a", Status: StatusSuccess})
	r.Add(Outcome{Code: "b", Status: StatusTimeout})
	r.Add(Outcome{Code: "c", Status: "PENDING"})
	assert.Equal(t, 1, r.Succeeded)
	assert.Equal(t, 2, r.Failed)
	assert.Len(t, r.Outcomes, 3)
}
