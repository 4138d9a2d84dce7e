// Package intake turns inbound customer messages into queued conversations.
package intake

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/deskline/queue-api/internal/domain/conversation"
	"github.com/deskline/queue-api/internal/domain/message"
	"github.com/deskline/queue-api/internal/domain/tenant"
	"github.com/deskline/queue-api/internal/utils/platformerrors"
)

// InboundMessage is a customer message arriving on a channel.
type InboundMessage struct {
	ContactID   string
	ChannelType string
	QueueID     *string
	Priority    int
	Body        string
	Metadata    map[string]any
	ReceivedAt  time.Time
}

// Result reports what an inbound message did.
type Result struct {
	Conversation *conversation.Conversation
	Message      *message.Message
	// Created is true when the message opened a new conversation.
	Created bool
}

// Service routes inbound messages.
type Service struct {
	conversations conversation.Repository
	messages      message.Repository
	log           zerolog.Logger
}

func NewService(conversations conversation.Repository, messages message.Repository, log zerolog.Logger) *Service {
	return &Service{
		conversations: conversations,
		messages:      messages,
		log:           log.With().Str("component", "intake-service").Logger(),
	}
}

// Receive appends the message to the contact's open conversation on that
// channel, opening a waiting one first when none exists.
func (s *Service) Receive(ctx context.Context, caller tenant.Caller, in InboundMessage) (*Result, error) {
	if err := caller.Validate(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.ContactID) == "" || strings.TrimSpace(in.ChannelType) == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"contact_id and channel_type are required", nil, "intake-contact-required")
	}
	if strings.TrimSpace(in.Body) == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"message body is required", nil, "intake-body-required")
	}

	startedAt := in.ReceivedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}

	conv, created, err := s.conversations.Open(ctx, &conversation.Conversation{
		OrganizationID: caller.OrganizationID,
		QueueID:        in.QueueID,
		ContactID:      in.ContactID,
		ChannelType:    in.ChannelType,
		Priority:       in.Priority,
		StartedAt:      startedAt,
		Metadata:       in.Metadata,
	})
	if err != nil {
		return nil, err
	}

	msg := &message.Message{
		OrganizationID: caller.OrganizationID,
		ConversationID: conv.ID,
		SenderType:     message.SenderCustomer,
		SenderID:       in.ContactID,
		Body:           in.Body,
	}
	if err := s.messages.Append(ctx, msg); err != nil {
		return nil, err
	}

	if created {
		s.log.Info().
			Str("organization_id", caller.OrganizationID).
			Str("conversation_id", conv.ID).
			Str("channel", in.ChannelType).
			Int("priority", in.Priority).
			Msg("conversation queued")
	}
	return &Result{Conversation: conv, Message: msg, Created: created}, nil
}

// Reply appends an agent or system message to a conversation.
func (s *Service) Reply(ctx context.Context, caller tenant.Caller, conversationID string, sender message.SenderType, body string) (*message.Message, error) {
	if err := caller.Validate(ctx); err != nil {
		return nil, err
	}
	if sender == "" {
		sender = message.SenderAgent
	}
	msg := &message.Message{
		OrganizationID: caller.OrganizationID,
		ConversationID: conversationID,
		SenderType:     sender,
		SenderID:       caller.AgentID,
		Body:           body,
	}
	if err := s.messages.Append(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Transcript lists a conversation's messages oldest first.
func (s *Service) Transcript(ctx context.Context, caller tenant.Caller, conversationID string, limit int) ([]*message.Message, error) {
	if err := caller.Validate(ctx); err != nil {
		return nil, err
	}
	return s.messages.ListByConversation(ctx, caller.OrganizationID, conversationID, limit)
}
