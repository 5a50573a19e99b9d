package dbmysql

import (
	"time"
)

// Conversation is a user's single thread with Link.
type Conversation struct {
	ID                 string `gorm:"primaryKey;size:36"`
	UserID             string `gorm:"uniqueIndex;size:36;not null"`
	UniversityID       string `gorm:"index;size:36"`
	LastMessageAt      *time.Time
	LastMessagePreview string `gorm:"size:400"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (Conversation) TableName() string { return "link_conversations" }
