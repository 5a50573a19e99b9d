package dbmysql

import (
	"time"
)

const SessionStatusActive = "active"

type UserSession struct {
	ID           string `gorm:"primaryKey;size:36"`
	UserID       string `gorm:"index:idx_link_sessions_user_status,priority:1;size:36;not null"`
	UniversityID string `gorm:"size:36"`
	Status       string `gorm:"index:idx_link_sessions_user_status,priority:2;size:16;not null"`
	StartedAt    time.Time
	LastActiveAt time.Time
	EndedAt      *time.Time
}

func (UserSession) TableName() string { return "link_user_sessions" }
