package entities

import (
	"time"

	"github.com/deskline/queue-api/internal/domain/message"
)

// Message represents the database schema for conversation messages.
type Message struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	PublicID       string             `gorm:"type:varchar(64);uniqueIndex;not null"`
	OrganizationID string             `gorm:"type:varchar(64);not null;index:idx_message_org_conversation,priority:1"`
	ConversationID string             `gorm:"type:varchar(64);not null;index:idx_message_org_conversation,priority:2"`
	SenderType     message.SenderType `gorm:"type:varchar(20);not null"`
	SenderID       string             `gorm:"type:varchar(128)"`
	Body           string             `gorm:"type:text;not null"`
}

// TableName specifies the table name for Message.
func (Message) TableName() string {
	return "messages"
}

// ToDomain maps the row to the domain model.
func (e *Message) ToDomain() *message.Message {
	return &message.Message{
		ID:             e.PublicID,
		OrganizationID: e.OrganizationID,
		ConversationID: e.ConversationID,
		SenderType:     e.SenderType,
		SenderID:       e.SenderID,
		Body:           e.Body,
		CreatedAt:      e.CreatedAt,
	}
}
