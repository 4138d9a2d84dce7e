package conversationrepo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/deskline/queue-api/internal/domain/conversation"
	"github.com/deskline/queue-api/internal/infrastructure/database/entities"
	"github.com/deskline/queue-api/internal/utils/platformerrors"
)

// agentInOrg guards every mutation that names an agent: the agent must
// exist in the caller's organization at the moment the update runs.
const agentInOrg = "EXISTS (SELECT 1 FROM agent_profiles ap WHERE ap.public_id = ? AND ap.organization_id = ?)"

// GormRepository persists conversations with GORM. Mutations are single
// conditional UPDATE statements; success is decided by the affected-row
// count alone.
type GormRepository struct {
	db  *gorm.DB
	now func() time.Time
}

var _ conversation.Repository = (*GormRepository)(nil)

// NewGormRepository constructs the repository.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Open creates a waiting conversation unless one is already open for the
// same contact and channel.
func (r *GormRepository) Open(ctx context.Context, c *conversation.Conversation) (*conversation.Conversation, bool, error) {
	if c == nil || strings.TrimSpace(c.OrganizationID) == "" || strings.TrimSpace(c.ContactID) == "" || strings.TrimSpace(c.ChannelType) == "" {
		return nil, false, validationError(ctx, "organization, contact and channel are required", "conv-open-invalid")
	}

	existing, err := r.findOpen(ctx, c.OrganizationID, c.ContactID, c.ChannelType)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.StartedAt.IsZero() {
		c.StartedAt = r.now()
	}
	c.Status = conversation.StatusWaiting
	c.AssignedAgentID = nil
	c.AssignedAt = nil
	c.FinishedAt = nil

	entity := entities.NewConversation(c)
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		// Lost the race against a concurrent open: the partial unique
		// index rejected us, so the winner's row is the answer.
		if existing, findErr := r.findOpen(ctx, c.OrganizationID, c.ContactID, c.ChannelType); findErr == nil && existing != nil {
			return existing, false, nil
		}
		return nil, false, databaseError(ctx, "failed to open conversation", err, "conv-open-db")
	}

	return entity.ToDomain(), true, nil
}

// Get returns a conversation of the organization. A conversation owned by
// another organization is a tenant violation, not a miss.
func (r *GormRepository) Get(ctx context.Context, orgID, conversationID string) (*conversation.Conversation, error) {
	if strings.TrimSpace(orgID) == "" || strings.TrimSpace(conversationID) == "" {
		return nil, validationError(ctx, "organization and conversation id are required", "conv-get-invalid")
	}

	var entity entities.Conversation
	err := r.db.WithContext(ctx).Where("public_id = ?", conversationID).Take(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError(ctx, "conversation not found", "conv-get-notfound")
	}
	if err != nil {
		return nil, databaseError(ctx, "failed to load conversation", err, "conv-get-db")
	}
	if entity.OrganizationID != orgID {
		return nil, tenantViolation(ctx, "conversation", conversationID, "conv-get-tenant")
	}
	return entity.ToDomain(), nil
}

// ListWaiting returns waiting conversations in queue order.
func (r *GormRepository) ListWaiting(ctx context.Context, orgID string, queueID *string) ([]*conversation.Conversation, error) {
	query := r.db.WithContext(ctx).
		Where("organization_id = ? AND status = ?", orgID, conversation.StatusWaiting)
	if queueID != nil {
		query = query.Where("queue_id = ?", *queueID)
	}
	return r.list(ctx, query.Order("priority DESC, started_at ASC, id ASC"), "conv-list-waiting-db")
}

// ListOpen returns every non-finished conversation of the organization.
func (r *GormRepository) ListOpen(ctx context.Context, orgID string) ([]*conversation.Conversation, error) {
	query := r.db.WithContext(ctx).
		Where("organization_id = ? AND status <> ?", orgID, conversation.StatusFinished).
		Order("id ASC")
	return r.list(ctx, query, "conv-list-open-db")
}

// ListHeld returns active and paused conversations, optionally for one agent.
func (r *GormRepository) ListHeld(ctx context.Context, orgID string, agentID *string) ([]*conversation.Conversation, error) {
	query := r.db.WithContext(ctx).
		Where("organization_id = ? AND status IN ?", orgID, conversation.HeldStatuses())
	if agentID != nil {
		query = query.Where("assigned_agent_id = ?", *agentID)
	}
	return r.list(ctx, query.Order("assigned_at ASC, id ASC"), "conv-list-held-db")
}

func (r *GormRepository) list(ctx context.Context, query *gorm.DB, code string) ([]*conversation.Conversation, error) {
	var rows []entities.Conversation
	if err := query.Find(&rows).Error; err != nil {
		return nil, databaseError(ctx, "failed to list conversations", err, code)
	}
	result := make([]*conversation.Conversation, 0, len(rows))
	for i := range rows {
		result = append(result, rows[i].ToDomain())
	}
	return result, nil
}

// TryClaim moves a waiting conversation to active for agentID.
func (r *GormRepository) TryClaim(ctx context.Context, orgID, conversationID, agentID string) (bool, error) {
	if err := requireIDs(ctx, "conv-claim-invalid", orgID, conversationID, agentID); err != nil {
		return false, err
	}

	now := r.now()
	res := r.db.WithContext(ctx).
		Model(&entities.Conversation{}).
		Where("public_id = ? AND organization_id = ? AND status = ?", conversationID, orgID, conversation.StatusWaiting).
		Where(agentInOrg, agentID, orgID).
		Updates(map[string]any{
			"status":            conversation.StatusActive,
			"assigned_agent_id": agentID,
			"assigned_at":       now,
			"updated_at":        now,
		})
	return r.outcome(ctx, res, orgID, conversationID, "conv-claim", agentID)
}

// Transfer hands a held conversation from one agent to another without
// passing through waiting.
func (r *GormRepository) Transfer(ctx context.Context, orgID, conversationID, fromAgentID, toAgentID string) (bool, error) {
	if err := requireIDs(ctx, "conv-transfer-invalid", orgID, conversationID, fromAgentID, toAgentID); err != nil {
		return false, err
	}
	if fromAgentID == toAgentID {
		return false, validationError(ctx, "cannot transfer a conversation to its current agent", "conv-transfer-same")
	}

	now := r.now()
	res := r.db.WithContext(ctx).
		Model(&entities.Conversation{}).
		Where("public_id = ? AND organization_id = ? AND status IN ? AND assigned_agent_id = ?",
			conversationID, orgID, conversation.HeldStatuses(), fromAgentID).
		Where(agentInOrg, toAgentID, orgID).
		Updates(map[string]any{
			"status":            conversation.StatusActive,
			"assigned_agent_id": toAgentID,
			"assigned_at":       now,
			"updated_at":        now,
		})
	return r.outcome(ctx, res, orgID, conversationID, "conv-transfer", toAgentID)
}

// Pause parks an active conversation; only its agent may do so.
func (r *GormRepository) Pause(ctx context.Context, orgID, conversationID, agentID string) (bool, error) {
	return r.ownerTransition(ctx, orgID, conversationID, agentID, conversation.SourcesOf(conversation.StatusPaused), conversation.StatusPaused, "conv-pause")
}

// Resume reactivates a paused conversation; only its agent may do so.
func (r *GormRepository) Resume(ctx context.Context, orgID, conversationID, agentID string) (bool, error) {
	return r.ownerTransition(ctx, orgID, conversationID, agentID, []conversation.Status{conversation.StatusPaused}, conversation.StatusActive, "conv-resume")
}

func (r *GormRepository) ownerTransition(ctx context.Context, orgID, conversationID, agentID string, from []conversation.Status, to conversation.Status, code string) (bool, error) {
	if err := requireIDs(ctx, code+"-invalid", orgID, conversationID, agentID); err != nil {
		return false, err
	}

	res := r.db.WithContext(ctx).
		Model(&entities.Conversation{}).
		Where("public_id = ? AND organization_id = ? AND status IN ? AND assigned_agent_id = ?",
			conversationID, orgID, from, agentID).
		Updates(map[string]any{
			"status":     to,
			"updated_at": r.now(),
		})
	return r.outcome(ctx, res, orgID, conversationID, code, agentID)
}

// Finish closes a held conversation. Finishing twice reports false.
func (r *GormRepository) Finish(ctx context.Context, orgID, conversationID string) (bool, error) {
	if err := requireIDs(ctx, "conv-finish-invalid", orgID, conversationID); err != nil {
		return false, err
	}

	now := r.now()
	res := r.db.WithContext(ctx).
		Model(&entities.Conversation{}).
		Where("public_id = ? AND organization_id = ? AND status IN ?", conversationID, orgID, conversation.SourcesOf(conversation.StatusFinished)).
		Updates(map[string]any{
			"status":      conversation.StatusFinished,
			"finished_at": now,
			"updated_at":  now,
		})
	return r.outcome(ctx, res, orgID, conversationID, "conv-finish")
}

// outcome turns an update result into the (applied, error) pair. When the
// guard matched nothing, a follow-up read tells a lost race (false) apart
// from a missing row or a row of another tenant (error). The read never
// decides success.
func (r *GormRepository) outcome(ctx context.Context, res *gorm.DB, orgID, conversationID, code string, agentIDs ...string) (bool, error) {
	if res.Error != nil {
		return false, databaseError(ctx, "conditional update failed", res.Error, code+"-db")
	}
	if res.RowsAffected == 1 {
		return true, nil
	}
	if res.RowsAffected > 1 {
		return false, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeInternal,
			"conditional update matched more than one row", nil, code+"-multi")
	}
	return false, r.classifyMiss(ctx, orgID, conversationID, code, agentIDs...)
}

func (r *GormRepository) classifyMiss(ctx context.Context, orgID, conversationID, code string, agentIDs ...string) error {
	var rows []entities.Conversation
	if err := r.db.WithContext(ctx).
		Select("organization_id").
		Where("public_id = ?", conversationID).
		Limit(1).
		Find(&rows).Error; err != nil {
		return databaseError(ctx, "failed to classify conditional update", err, code+"-classify")
	}
	if len(rows) == 0 {
		return notFoundError(ctx, "conversation not found", code+"-notfound")
	}
	if rows[0].OrganizationID != orgID {
		return tenantViolation(ctx, "conversation", conversationID, code+"-tenant")
	}

	for _, agentID := range agentIDs {
		var agents []entities.AgentProfile
		if err := r.db.WithContext(ctx).
			Select("organization_id").
			Where("public_id = ?", agentID).
			Limit(1).
			Find(&agents).Error; err != nil {
			return databaseError(ctx, "failed to classify conditional update", err, code+"-classify")
		}
		if len(agents) == 0 {
			return notFoundError(ctx, "agent not found", code+"-agent-notfound")
		}
		if agents[0].OrganizationID != orgID {
			return tenantViolation(ctx, "agent", agentID, code+"-agent-tenant")
		}
	}

	return nil
}

func (r *GormRepository) findOpen(ctx context.Context, orgID, contactID, channel string) (*conversation.Conversation, error) {
	var rows []entities.Conversation
	if err := r.db.WithContext(ctx).
		Where("organization_id = ? AND contact_id = ? AND channel_type = ? AND status <> ?",
			orgID, contactID, channel, conversation.StatusFinished).
		Order("id ASC").
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, databaseError(ctx, "failed to look up open conversation", err, "conv-open-lookup-db")
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].ToDomain(), nil
}
