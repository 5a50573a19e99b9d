package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerceText(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{name: "nil", input: nil, expected: ""},
		{name: "plain string", input: "hello", expected: "hello"},
		{name: "integer float", input: float64(42), expected: "42"},
		{name: "fractional float", input: 2.5, expected: "2.5"},
		{name: "object with message", input: map[string]any{"message": "hi", "text": "no"}, expected: "hi"},
		{name: "object with text only", input: map[string]any{"text": "yo"}, expected: "yo"},
		{name: "object without text fields", input: map[string]any{"a": float64(1)}, expected: `{"a":1}`},
		{name: "list", input: []any{"a", "b"}, expected: `["a","b"]`},
		{name: "bool is not text", input: true, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CoerceText(tt.input))
		})
	}
}

func TestNormalizeMetadata(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected Metadata
	}{
		{name: "nil", input: nil, expected: Metadata{}},
		{name: "json string", input: `{"citations":["a"]}`, expected: Metadata{"citations": []any{"a"}}},
		{name: "broken json string", input: `{"citations":`, expected: Metadata{}},
		{name: "json list string", input: `[1,2]`, expected: Metadata{"items": []any{float64(1), float64(2)}}},
		{name: "list", input: []any{"x"}, expected: Metadata{"items": []any{"x"}}},
		{name: "object", input: map[string]any{"k": "v"}, expected: Metadata{"k": "v"}},
		{name: "number", input: float64(3), expected: Metadata{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeMetadata(tt.input))
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)

	assert.True(t, want.Equal(ParseTimestamp("2025-03-01T12:30:00Z")))
	assert.True(t, want.Equal(ParseTimestamp("2025-03-01T14:30:00+02:00")))
	assert.True(t, want.Equal(ParseTimestamp("2025-03-01 12:30:00")))
	assert.True(t, want.Equal(ParseTimestamp(float64(want.UnixMilli()))))
	assert.True(t, ParseTimestamp("yesterday-ish").IsZero())
	assert.True(t, ParseTimestamp(nil).IsZero())
}

func TestMessage_UnmarshalJSON(t *testing.T) {
	payload := `{
		"id": 17,
		"conversation_id": "conv-1",
		"sender_type": "link",
		"content": {"response": "hello there"},
		"metadata": "{\"citations\":[\"doc\"]}",
		"session_id": "",
		"created_at": "not-a-date"
	}`

	var msg Message
	require.NoError(t, json.Unmarshal([]byte(payload), &msg))

	assert.Equal(t, "17", msg.ID)
	assert.Equal(t, RoleAssistant, msg.Role)
	assert.Equal(t, "hello there", msg.Content)
	assert.Equal(t, []any{"doc"}, msg.Metadata["citations"])
	assert.Nil(t, msg.SessionID)
	assert.True(t, msg.CreatedAt.IsZero())
}

func TestMessage_JSONRoundTrip(t *testing.T) {
	session := "sess-1"
	orig := Message{
		ID:             "m-1",
		ConversationID: "conv-1",
		Role:           RoleUser,
		Content:        "hi",
		Metadata:       Metadata{"shareType": "event"},
		SessionID:      &session,
		CreatedAt:      time.Date(2025, 1, 2, 3, 4, 5, 6000, time.UTC),
	}

	b, err := json.Marshal(orig)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"sender_type":"user"`)

	var back Message
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, orig.ID, back.ID)
	assert.Equal(t, orig.Role, back.Role)
	assert.Equal(t, "sess-1", *back.SessionID)
	assert.True(t, orig.CreatedAt.Equal(back.CreatedAt))
}

func TestMessage_IsLocal(t *testing.T) {
	assert.True(t, Message{ID: "local-user-1-abc"}.IsLocal())
	assert.False(t, Message{ID: "srv-1"}.IsLocal())
	assert.False(t, Message{}.IsLocal())
}
