// Package service runs one Link chat per signed-in user: optimistic messages,
// persistence, the AI backend round trip and the reconciled transcript.
package service

//go:generate mockgen -destination=mocks/mock_backend.go -package=mocks bondedlink/internal/link/service Backend,JournalWriter
//go:generate mockgen -destination=mocks/mock_link_repository.go -package=mocks bondedlink/internal/link/repository LinkRepository

import (
	"context"

	"bondedlink/internal/common"
	"bondedlink/internal/dbmongo"
	"bondedlink/internal/link/model"
	"bondedlink/internal/linkapi"
)

// Backend is the part of the Link AI API a chat drives.
type Backend interface {
	Query(ctx context.Context, req linkapi.AgentRequest) (map[string]any, error)
	CollectOutreach(ctx context.Context, req linkapi.CollectRequest) (map[string]any, error)
	ResolveConsent(ctx context.Context, req linkapi.ConsentRequest) (map[string]any, error)
	LearnStyle(ctx context.Context, userID, message string) error
}

type JournalWriter interface {
	InsertEntry(ctx context.Context, entry dbmongo.JournalEntry) error
}

// Hub delivers persisted messages to every open view of a conversation.
type Hub interface {
	Broadcast(msg model.Message)
	Listen(conversationID string) (<-chan model.Message, func())
}

// Chat is what the HTTP layer needs from an open conversation.
type Chat interface {
	Send(ctx context.Context, text string) (*SendResult, error)
	Transcript() View
	LoadMore(ctx context.Context) (View, error)
	Refresh(ctx context.Context) (View, error)
	CheckStatus(ctx context.Context) (*SendResult, error)
	ResolveConsent(ctx context.Context, runID, suggestedUserID string, approved bool) (*SendResult, error)
	Reset() View
}

// Opener hands out the caller's chat, opening it on first use.
type Opener interface {
	Chat(ctx context.Context, id common.Identity) (Chat, error)
}

// View is the reconciled transcript, newest first.
type View struct {
	Messages    []model.Message      `json:"messages"`
	Outreach    *model.OutreachState `json:"outreach"`
	ActiveRunID string               `json:"active_run_id,omitempty"`
	HasMore     bool                 `json:"has_more"`
}

// SendResult reports what one turn added. Degraded is set when the backend
// could not be reached and a notice was shown instead of a reply.
type SendResult struct {
	Appended      []model.Message `json:"appended"`
	PreferredName string          `json:"preferred_name,omitempty"`
	RunID         string          `json:"run_id,omitempty"`
	Degraded      bool            `json:"degraded"`
	View          View            `json:"view"`
}

var (
	ErrEmptyMessage     = common.NewInvalidInputError("message cannot be empty")
	ErrSendInFlight     = common.NewConflictError("a message is already being sent")
	ErrNoActiveOutreach = common.NewNotFoundError("no active outreach run")
	ErrConsentInFlight  = common.NewConflictError("this consent request is already being resolved")
)
