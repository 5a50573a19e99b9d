package dbmysql

import (
	"time"
)

type Message struct {
	ID             string    `gorm:"primaryKey;size:36"`
	ConversationID string    `gorm:"index:idx_link_messages_conv_created,priority:1;size:36;not null"`
	SenderType     string    `gorm:"size:16;not null"` // user, link
	SenderID       *string   `gorm:"size:36"`
	Content        string    `gorm:"type:text"`
	Metadata       string    `gorm:"type:json"`
	SessionID      *string   `gorm:"index;size:36"`
	CreatedAt      time.Time `gorm:"index:idx_link_messages_conv_created,priority:2"`
}

func (Message) TableName() string { return "link_messages" }
