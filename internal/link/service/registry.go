package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"bondedlink/internal/common"
	"bondedlink/internal/config"
	"bondedlink/internal/link/buffer"
	"bondedlink/internal/link/model"
	"bondedlink/internal/link/repository"
	"bondedlink/internal/link/session"
	"bondedlink/internal/metrics"
)

const defaultPageSize = 50

// Registry keeps one Controller per user for the life of the process.
type Registry struct {
	mu    sync.Mutex
	chats map[string]*Controller

	// opening makes concurrent first opens for one user share a single build.
	opening singleflight.Group

	repo           repository.LinkRepository
	backend        Backend
	journal        JournalWriter
	hub            Hub
	logger         *zap.Logger
	metrics        *metrics.Metrics
	pageSize       int
	persistReplies bool
	now            func() time.Time
}

// NewRegistry accepts a nil journal or hub; the matching side effects are
// then skipped.
func NewRegistry(
	repo repository.LinkRepository,
	backend Backend,
	journal JournalWriter,
	hub Hub,
	logger *zap.Logger,
	m *metrics.Metrics,
	cfg *config.Config,
) *Registry {
	pageSize := cfg.Chat.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Registry{
		chats:          make(map[string]*Controller),
		repo:           repo,
		backend:        backend,
		journal:        journal,
		hub:            hub,
		logger:         logger,
		metrics:        m,
		pageSize:       pageSize,
		persistReplies: cfg.Chat.PersistReplies,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Open returns the user's controller, building it on first use. A later
// call refreshes the identity so the newest access token is forwarded.
// Concurrent first calls wait for one build and share its result.
func (r *Registry) Open(ctx context.Context, id common.Identity) (*Controller, error) {
	if id.UserID == "" {
		return nil, common.NewUnauthorizedError("missing user identity")
	}

	if c, ok := r.Get(id.UserID); ok {
		c.setIdentity(id)
		return c, nil
	}

	v, err, _ := r.opening.Do(id.UserID, func() (any, error) {
		if c, ok := r.Get(id.UserID); ok {
			return c, nil
		}
		c, err := r.build(ctx, id)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.chats[id.UserID] = c
		r.mu.Unlock()
		r.metrics.ChatOpened()
		return c, nil
	})
	if err != nil {
		return nil, err
	}

	c := v.(*Controller)
	c.setIdentity(id)
	return c, nil
}

func (r *Registry) Chat(ctx context.Context, id common.Identity) (Chat, error) {
	c, err := r.Open(ctx, id)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *Registry) Get(userID string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[userID]
	return c, ok
}

func (r *Registry) Close(userID string) {
	r.mu.Lock()
	c, ok := r.chats[userID]
	delete(r.chats, userID)
	r.mu.Unlock()

	if ok {
		c.Close()
		r.metrics.ChatClosed()
	}
}

func (r *Registry) CloseAll() {
	r.mu.Lock()
	chats := r.chats
	r.chats = make(map[string]*Controller)
	r.mu.Unlock()

	for _, c := range chats {
		c.Close()
		r.metrics.ChatClosed()
	}
}

func (r *Registry) build(ctx context.Context, id common.Identity) (*Controller, error) {
	log := r.logger.With(zap.String("user_id", id.UserID))

	convID, err := r.repo.GetOrCreateConversation(ctx, id.UserID, id.UniversityID)
	if err != nil {
		return nil, common.NewUnavailableError("could not open the Link conversation", err)
	}

	memory, err := r.repo.Memory(ctx, id.UserID)
	if err != nil {
		log.Warn("failed to load link memory", zap.Error(err))
	}

	tracker := session.NewTracker(r.repo, id.UserID, id.UniversityID, log)
	sessionID, err := tracker.GetOrCreate(ctx)
	if err != nil {
		log.Warn("failed to resolve link session", zap.Error(err))
	}

	assistantID, err := r.repo.LinkUserID(ctx, id.UniversityID)
	if err != nil {
		log.Warn("failed to load link profile", zap.Error(err))
	}

	c := &Controller{
		identity:       id,
		conversationID: convID,
		repo:           r.repo,
		backend:        r.backend,
		journal:        r.journal,
		hub:            r.hub,
		logger:         log.With(zap.String("conversation_id", convID)),
		metrics:        r.metrics,
		session:        tracker,
		buffer: buffer.New(buffer.Scope{
			ConversationID: convID,
			UserID:         id.UserID,
			AssistantID:    assistantID,
			SessionID:      sessionID,
		}),
		memory:         memory,
		live:           make(map[string]model.Message),
		pageSize:       r.pageSize,
		persistReplies: r.persistReplies,
		now:            r.now,
	}

	if err := c.loadFirstPage(ctx); err != nil {
		return nil, err
	}
	c.injectIntro(ctx)
	c.listen()
	return c, nil
}
