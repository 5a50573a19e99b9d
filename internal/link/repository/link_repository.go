package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bondedlink/internal/dbmysql"
	"bondedlink/internal/link/model"
)

const previewRunes = 100

// LinkRepository is the Link chat's view of the data store.
type LinkRepository interface {
	GetOrCreateConversation(ctx context.Context, userID, universityID string) (string, error)
	// InsertMessage assigns a server id and timestamp when the message has a
	// local or empty id, and updates the conversation preview.
	InsertMessage(ctx context.Context, msg *model.Message) error
	FetchPage(ctx context.Context, conversationID string, limit, offset int) ([]model.Message, error)

	ActiveSessionID(ctx context.Context, userID string) (string, error)
	CreateSession(ctx context.Context, userID, universityID string) (string, error)
	TouchSession(ctx context.Context, sessionID string, at time.Time) error

	Memory(ctx context.Context, userID string) (*model.Memory, error)
	SetPreferredName(ctx context.Context, userID, name string, at time.Time) error
	RecordInteraction(ctx context.Context, userID string, at time.Time) error

	LinkUserID(ctx context.Context, universityID string) (string, error)
}

type linkRepo struct {
	db  *gorm.DB
	now func() time.Time
}

func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &linkRepo{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (r *linkRepo) GetOrCreateConversation(ctx context.Context, userID, universityID string) (string, error) {
	if userID == "" {
		return "", errors.New("user ID is required")
	}

	conv := dbmysql.Conversation{
		ID:           uuid.NewString(),
		UserID:       userID,
		UniversityID: universityID,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&conv).Error
	if err != nil {
		return "", fmt.Errorf("create conversation: %w", err)
	}

	var existing dbmysql.Conversation
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&existing).Error; err != nil {
		return "", fmt.Errorf("load conversation: %w", err)
	}
	return existing.ID, nil
}

func (r *linkRepo) InsertMessage(ctx context.Context, msg *model.Message) error {
	if msg.ConversationID == "" {
		return errors.New("conversation ID cannot be empty")
	}
	if msg.ID == "" || msg.IsLocal() {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = r.now()
	}
	if msg.Metadata == nil {
		msg.Metadata = model.Metadata{}
	}

	meta, err := json.Marshal(msg.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	row := dbmysql.Message{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderType:     msg.Role.SenderType(),
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		Metadata:       string(meta),
		SessionID:      msg.SessionID,
		CreatedAt:      msg.CreatedAt.UTC(),
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		return tx.Model(&dbmysql.Conversation{}).
			Where("id = ?", msg.ConversationID).
			Updates(map[string]any{
				"last_message_at":      row.CreatedAt,
				"last_message_preview": preview(msg.Content),
				"updated_at":           r.now(),
			}).Error
	})
}

func preview(content string) string {
	if utf8.RuneCountInString(content) <= previewRunes {
		return content
	}
	return string([]rune(content)[:previewRunes])
}

// FetchPage returns one page of history, newest first.
func (r *linkRepo) FetchPage(ctx context.Context, conversationID string, limit, offset int) ([]model.Message, error) {
	if conversationID == "" {
		return nil, errors.New("conversation ID is required")
	}

	var rows []dbmysql.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}

	out := make([]model.Message, 0, len(rows))
	for _, row := range rows {
		out = append(out, toModel(row))
	}
	return out, nil
}

func toModel(row dbmysql.Message) model.Message {
	return model.Message{
		ID:             row.ID,
		ConversationID: row.ConversationID,
		Role:           model.RoleFromSenderType(row.SenderType),
		SenderID:       row.SenderID,
		Content:        row.Content,
		Metadata:       model.NormalizeMetadata(row.Metadata),
		SessionID:      row.SessionID,
		CreatedAt:      row.CreatedAt.UTC(),
	}
}

func (r *linkRepo) ActiveSessionID(ctx context.Context, userID string) (string, error) {
	var sess dbmysql.UserSession
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, dbmysql.SessionStatusActive).
		Order("started_at DESC").
		Limit(1).
		Take(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return sess.ID, nil
}

func (r *linkRepo) CreateSession(ctx context.Context, userID, universityID string) (string, error) {
	now := r.now()
	sess := dbmysql.UserSession{
		ID:           uuid.NewString(),
		UserID:       userID,
		UniversityID: universityID,
		Status:       dbmysql.SessionStatusActive,
		StartedAt:    now,
		LastActiveAt: now,
	}
	if err := r.db.WithContext(ctx).Create(&sess).Error; err != nil {
		return "", err
	}
	return sess.ID, nil
}

func (r *linkRepo) TouchSession(ctx context.Context, sessionID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&dbmysql.UserSession{}).
		Where("id = ?", sessionID).
		Update("last_active_at", at.UTC()).Error
}
