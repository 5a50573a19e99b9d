package dbmysql

import (
	"time"
)

// UserMemory is Link's long-lived record about a user. KnownPreferences is a
// JSON object; the chat owns the preferred_name keys inside it.
type UserMemory struct {
	UserID            string `gorm:"primaryKey;size:36"`
	KnownPreferences  string `gorm:"type:json"`
	TotalInteractions int    `gorm:"not null;default:0"`
	LastInteractionAt *time.Time
	UpdatedAt         time.Time
}

func (UserMemory) TableName() string { return "link_user_memory" }

// SystemProfile maps a university to the user id Link posts as.
type SystemProfile struct {
	UniversityID string `gorm:"primaryKey;size:36"`
	LinkUserID   string `gorm:"size:36;not null"`
	DisplayName  string `gorm:"size:100"`
}

func (SystemProfile) TableName() string { return "link_system_profile" }
