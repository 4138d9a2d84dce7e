// Package notifying decorates repositories so that every successful
// mutation publishes a change event for its organization.
package notifying

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/deskline/queue-api/internal/domain/agent"
	"github.com/deskline/queue-api/internal/domain/conversation"
	"github.com/deskline/queue-api/internal/domain/events"
	"github.com/deskline/queue-api/internal/domain/message"
)

type emitter struct {
	pub events.Publisher
	log zerolog.Logger
}

// emit publishes after the write has committed. Delivery failures are
// logged only: subscribers fall back to polling.
func (e emitter) emit(ctx context.Context, orgID string, table events.Table, op events.Op, rowID, action string) {
	event := events.NewChangeEvent(orgID, table, op, rowID, action)
	if err := e.pub.Publish(context.WithoutCancel(ctx), event); err != nil {
		e.log.Warn().Err(err).
			Str("organization_id", orgID).
			Str("table", string(table)).
			Str("row_id", rowID).
			Str("action", action).
			Msg("change event not published")
	}
}

// ConversationRepository publishes conversation changes.
type ConversationRepository struct {
	conversation.Repository
	emitter
}

var _ conversation.Repository = (*ConversationRepository)(nil)

func NewConversationRepository(inner conversation.Repository, pub events.Publisher, log zerolog.Logger) *ConversationRepository {
	return &ConversationRepository{
		Repository: inner,
		emitter:    emitter{pub: pub, log: log.With().Str("component", "notifying-repository").Logger()},
	}
}

func (r *ConversationRepository) Open(ctx context.Context, c *conversation.Conversation) (*conversation.Conversation, bool, error) {
	result, created, err := r.Repository.Open(ctx, c)
	if err == nil && created {
		r.emit(ctx, result.OrganizationID, events.TableConversations, events.OpInsert, result.ID, "open")
	}
	return result, created, err
}

func (r *ConversationRepository) TryClaim(ctx context.Context, orgID, conversationID, agentID string) (bool, error) {
	return r.mutated(ctx, orgID, conversationID, "claim")(r.Repository.TryClaim(ctx, orgID, conversationID, agentID))
}

func (r *ConversationRepository) Transfer(ctx context.Context, orgID, conversationID, fromAgentID, toAgentID string) (bool, error) {
	return r.mutated(ctx, orgID, conversationID, "transfer")(r.Repository.Transfer(ctx, orgID, conversationID, fromAgentID, toAgentID))
}

func (r *ConversationRepository) Pause(ctx context.Context, orgID, conversationID, agentID string) (bool, error) {
	return r.mutated(ctx, orgID, conversationID, "pause")(r.Repository.Pause(ctx, orgID, conversationID, agentID))
}

func (r *ConversationRepository) Resume(ctx context.Context, orgID, conversationID, agentID string) (bool, error) {
	return r.mutated(ctx, orgID, conversationID, "resume")(r.Repository.Resume(ctx, orgID, conversationID, agentID))
}

func (r *ConversationRepository) Finish(ctx context.Context, orgID, conversationID string) (bool, error) {
	return r.mutated(ctx, orgID, conversationID, "finish")(r.Repository.Finish(ctx, orgID, conversationID))
}

func (r *ConversationRepository) mutated(ctx context.Context, orgID, conversationID, action string) func(bool, error) (bool, error) {
	return func(ok bool, err error) (bool, error) {
		if err == nil && ok {
			r.emit(ctx, orgID, events.TableConversations, events.OpUpdate, conversationID, action)
		}
		return ok, err
	}
}

// AgentRepository publishes agent profile changes.
type AgentRepository struct {
	agent.Repository
	emitter
}

var _ agent.Repository = (*AgentRepository)(nil)

func NewAgentRepository(inner agent.Repository, pub events.Publisher, log zerolog.Logger) *AgentRepository {
	return &AgentRepository{
		Repository: inner,
		emitter:    emitter{pub: pub, log: log.With().Str("component", "notifying-repository").Logger()},
	}
}

func (r *AgentRepository) Create(ctx context.Context, a *agent.Agent) error {
	if err := r.Repository.Create(ctx, a); err != nil {
		return err
	}
	r.emit(ctx, a.OrganizationID, events.TableAgentProfiles, events.OpInsert, a.ID, "create")
	return nil
}

func (r *AgentRepository) SetStatus(ctx context.Context, orgID, agentID string, status agent.Status) (bool, error) {
	changed, err := r.Repository.SetStatus(ctx, orgID, agentID, status)
	if err == nil && changed {
		r.emit(ctx, orgID, events.TableAgentProfiles, events.OpUpdate, agentID, "status")
	}
	return changed, err
}

// MessageRepository publishes new messages.
type MessageRepository struct {
	message.Repository
	emitter
}

var _ message.Repository = (*MessageRepository)(nil)

func NewMessageRepository(inner message.Repository, pub events.Publisher, log zerolog.Logger) *MessageRepository {
	return &MessageRepository{
		Repository: inner,
		emitter:    emitter{pub: pub, log: log.With().Str("component", "notifying-repository").Logger()},
	}
}

func (r *MessageRepository) Append(ctx context.Context, m *message.Message) error {
	if err := r.Repository.Append(ctx, m); err != nil {
		return err
	}
	r.emit(ctx, m.OrganizationID, events.TableMessages, events.OpInsert, m.ID, "append")
	return nil
}
