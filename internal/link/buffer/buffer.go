// Package buffer keeps the optimistic messages a chat has shown but the data
// store has not confirmed yet.
package buffer

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"bondedlink/internal/link/model"
)

// Scope fills the ownership fields of every message the buffer creates.
type Scope struct {
	ConversationID string
	UserID         string
	AssistantID    string
	SessionID      string
}

type AppendOptions struct {
	Metadata any
	// MessageType tags card messages; it is stored as metadata.shareType.
	MessageType string
}

type Option func(*Buffer)

func WithClock(now func() time.Time) Option {
	return func(b *Buffer) { b.now = now }
}

func WithSuffix(suffix func() string) Option {
	return func(b *Buffer) { b.suffix = suffix }
}

// Buffer is newest-first. It is safe for concurrent use.
type Buffer struct {
	mu     sync.Mutex
	scope  Scope
	items  []model.Message
	now    func() time.Time
	suffix func() string
}

func New(scope Scope, opts ...Option) *Buffer {
	b := &Buffer{
		scope:  scope,
		now:    func() time.Time { return time.Now().UTC() },
		suffix: randomSuffix,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
}

// Append builds a local message and puts it at the head of the buffer. It does
// no I/O and cannot fail.
func (b *Buffer) Append(content any, role model.Role, opts AppendOptions) model.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	meta := model.Metadata{}
	for k, v := range model.NormalizeMetadata(opts.Metadata) {
		meta[k] = v
	}
	if opts.MessageType != "" {
		meta["shareType"] = opts.MessageType
	}

	sender := b.scope.UserID
	if role == model.RoleAssistant {
		sender = b.scope.AssistantID
	}

	msg := model.Message{
		ID:             fmt.Sprintf("%s%s-%d-%s", model.LocalIDPrefix, role, now.UnixMilli(), b.suffix()),
		ConversationID: b.scope.ConversationID,
		Role:           role,
		SenderID:       model.StringPtr(sender),
		Content:        model.CoerceText(content),
		Metadata:       meta,
		SessionID:      model.StringPtr(b.scope.SessionID),
		CreatedAt:      now,
	}

	b.items = append([]model.Message{msg}, b.items...)
	return msg
}

// SetSession stamps messages created from now on with the given session id.
func (b *Buffer) SetSession(sessionID string) {
	b.mu.Lock()
	b.scope.SessionID = sessionID
	b.mu.Unlock()
}

func (b *Buffer) Clear() {
	b.mu.Lock()
	b.items = nil
	b.mu.Unlock()
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Snapshot returns a copy of the buffer, newest first.
func (b *Buffer) Snapshot() []model.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.Message, len(b.items))
	copy(out, b.items)
	return out
}

// Prune drops local messages that a server message now confirms: same role
// and the same non-empty trimmed content. It returns how many were removed.
func (b *Buffer) Prune(server []model.Message) int {
	confirmed := make(map[string]struct{}, len(server))
	for _, m := range server {
		if m.IsLocal() {
			continue
		}
		if c := m.TrimmedContent(); c != "" {
			confirmed[string(m.Role)+"\x00"+c] = struct{}{}
		}
	}
	if len(confirmed) == 0 {
		return 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.items[:0]
	removed := 0
	for _, m := range b.items {
		if _, ok := confirmed[string(m.Role)+"\x00"+m.TrimmedContent()]; ok {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	b.items = kept
	return removed
}
