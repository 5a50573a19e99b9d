// Package session tracks the logical chat session id sent to the Link
// backend with every turn.
package session

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Store looks up and opens sessions. ActiveSessionID returns "" when the user
// has no open session.
type Store interface {
	ActiveSessionID(ctx context.Context, userID string) (string, error)
	CreateSession(ctx context.Context, userID, universityID string) (string, error)
}

// Tracker resolves one user's session id once and then keeps it. It does not
// lock against other processes, so two devices racing may each open a session.
type Tracker struct {
	mu           sync.Mutex
	store        Store
	userID       string
	universityID string
	id           string
	logger       *zap.Logger
}

func NewTracker(store Store, userID, universityID string, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		store:        store,
		userID:       userID,
		universityID: universityID,
		logger:       logger,
	}
}

// ID returns the current session id, or "" before one is known.
func (t *Tracker) ID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.id
}

// GetOrCreate returns the cached id, else the newest active session, else a
// freshly created one.
func (t *Tracker) GetOrCreate(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.id != "" {
		return t.id, nil
	}

	id, err := t.store.ActiveSessionID(ctx, t.userID)
	if err != nil {
		return "", fmt.Errorf("lookup active session: %w", err)
	}
	if id == "" {
		id, err = t.store.CreateSession(ctx, t.userID, t.universityID)
		if err != nil {
			return "", fmt.Errorf("create session: %w", err)
		}
		t.logger.Info("opened link session", zap.String("user_id", t.userID), zap.String("session_id", id))
	}
	t.id = id
	return id, nil
}

// Adopt records a session id the backend assigned. It only fills an empty id;
// once set the id does not change.
func (t *Tracker) Adopt(id string) bool {
	if id == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.id != "" {
		return false
	}
	t.id = id
	return true
}
