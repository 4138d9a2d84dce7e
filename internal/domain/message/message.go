// Package message models the messages exchanged inside a conversation.
package message

import (
	"context"
	"time"
)

// SenderType identifies who wrote a message.
type SenderType string

const (
	SenderCustomer SenderType = "customer"
	SenderAgent    SenderType = "agent"
	SenderSystem   SenderType = "system"
)

// IsValid reports whether s is a known sender type.
func (s SenderType) IsValid() bool {
	return s == SenderCustomer || s == SenderAgent || s == SenderSystem
}

// Message is one entry in a conversation transcript.
type Message struct {
	ID             string
	OrganizationID string
	ConversationID string
	SenderType     SenderType
	SenderID       string
	Body           string
	CreatedAt      time.Time
}

// Repository stores messages scoped by organization.
type Repository interface {
	Append(ctx context.Context, m *Message) error
	ListByConversation(ctx context.Context, orgID, conversationID string, limit int) ([]*Message, error)
}
