// Package model holds the canonical Link chat message and the small value
// types derived from it.
package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// LocalIDPrefix marks messages that exist only in the optimistic buffer.
const LocalIDPrefix = "local-"

// SenderType is the value stored in the sender_type column.
func (r Role) SenderType() string {
	if r == RoleAssistant {
		return "link"
	}
	return "user"
}

// RoleFromSenderType maps a stored sender_type back to a Role.
func RoleFromSenderType(senderType string) Role {
	switch strings.ToLower(strings.TrimSpace(senderType)) {
	case "link", "assistant", "ai", "bot":
		return RoleAssistant
	default:
		return RoleUser
	}
}

type Message struct {
	ID             string
	ConversationID string
	Role           Role
	SenderID       *string
	Content        string
	Metadata       Metadata
	SessionID      *string
	// CreatedAt is zero when the source timestamp was missing or malformed.
	CreatedAt time.Time
}

// IsLocal reports whether the message is an unconfirmed optimistic copy.
func (m Message) IsLocal() bool {
	return strings.HasPrefix(m.ID, LocalIDPrefix)
}

func (m Message) TrimmedContent() string {
	return strings.TrimSpace(m.Content)
}

// Clone returns a copy whose metadata map can be mutated independently.
func (m Message) Clone() Message {
	out := m
	if m.Metadata != nil {
		out.Metadata = make(Metadata, len(m.Metadata))
		for k, v := range m.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

type wireMessage struct {
	ID             string   `json:"id"`
	ConversationID string   `json:"conversation_id"`
	Role           Role     `json:"sender_role"`
	SenderType     string   `json:"sender_type"`
	SenderID       *string  `json:"sender_id"`
	Content        string   `json:"content"`
	Metadata       Metadata `json:"metadata"`
	SessionID      *string  `json:"session_id"`
	CreatedAt      *string  `json:"created_at"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	w := wireMessage{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           m.Role,
		SenderType:     m.Role.SenderType(),
		SenderID:       m.SenderID,
		Content:        m.Content,
		Metadata:       m.Metadata,
		SessionID:      m.SessionID,
	}
	if w.Metadata == nil {
		w.Metadata = Metadata{}
	}
	if !m.CreatedAt.IsZero() {
		ts := m.CreatedAt.UTC().Format(time.RFC3339Nano)
		w.CreatedAt = &ts
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts the loosely shaped rows the data store and realtime
// feed deliver. Ids and content are coerced to text, metadata is normalized
// and an unparseable created_at yields the zero time instead of an error.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID             any    `json:"id"`
		ConversationID any    `json:"conversation_id"`
		Role           string `json:"sender_role"`
		SenderType     string `json:"sender_type"`
		SenderID       any    `json:"sender_id"`
		Content        any    `json:"content"`
		Metadata       any    `json:"metadata"`
		SessionID      any    `json:"session_id"`
		CreatedAt      any    `json:"created_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	role := Role(strings.ToLower(raw.Role))
	if role != RoleUser && role != RoleAssistant {
		role = RoleFromSenderType(raw.SenderType)
	}

	*m = Message{
		ID:             CoerceText(raw.ID),
		ConversationID: CoerceText(raw.ConversationID),
		Role:           role,
		SenderID:       optionalText(raw.SenderID),
		Content:        CoerceText(raw.Content),
		Metadata:       NormalizeMetadata(raw.Metadata),
		SessionID:      optionalText(raw.SessionID),
		CreatedAt:      ParseTimestamp(raw.CreatedAt),
	}
	return nil
}

func optionalText(v any) *string {
	s := CoerceText(v)
	if s == "" {
		return nil
	}
	return &s
}

// StringPtr returns nil for the empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
