package agentrepo

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/deskline/queue-api/internal/domain/agent"
	"github.com/deskline/queue-api/internal/infrastructure/database/entities"
	"github.com/deskline/queue-api/internal/utils/platformerrors"
)

// GormRepository persists agent profiles.
type GormRepository struct {
	db *gorm.DB
}

var _ agent.Repository = (*GormRepository)(nil)

// NewGormRepository constructs the repository.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// Create inserts an agent profile.
func (r *GormRepository) Create(ctx context.Context, a *agent.Agent) error {
	if a == nil || strings.TrimSpace(a.OrganizationID) == "" || strings.TrimSpace(a.DisplayName) == "" {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeValidation,
			"organization and display name are required", nil, "agent-create-invalid")
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = agent.StatusOffline
	}
	if !a.Status.IsValid() {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeValidation,
			"unknown agent status", nil, "agent-create-status")
	}

	entity := entities.NewAgentProfile(a)
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to create agent", err, "agent-create-db")
	}
	a.CreatedAt = entity.CreatedAt
	a.UpdatedAt = entity.UpdatedAt
	return nil
}

// Get returns an agent of the organization.
func (r *GormRepository) Get(ctx context.Context, orgID, agentID string) (*agent.Agent, error) {
	var entity entities.AgentProfile
	err := r.db.WithContext(ctx).Where("public_id = ?", agentID).Take(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
			"agent not found", err, "agent-get-notfound")
	}
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to load agent", err, "agent-get-db")
	}
	if entity.OrganizationID != orgID {
		return nil, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeForbidden,
			"agent belongs to another organization", nil, "agent-get-tenant", map[string]any{"agent_id": agentID})
	}
	return entity.ToDomain(), nil
}

// List returns the organization's agents ordered by display name.
func (r *GormRepository) List(ctx context.Context, orgID string, filter agent.ListFilter) ([]*agent.Agent, error) {
	query := r.db.WithContext(ctx).Where("organization_id = ?", orgID)
	if filter.TeamID != nil {
		query = query.Where("team_id = ?", *filter.TeamID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var rows []entities.AgentProfile
	if err := query.Order("display_name ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to list agents", err, "agent-list-db")
	}

	result := make([]*agent.Agent, 0, len(rows))
	for i := range rows {
		result = append(result, rows[i].ToDomain())
	}
	return result, nil
}

// SetStatus changes an agent's availability. It reports false when the
// agent already had that status.
func (r *GormRepository) SetStatus(ctx context.Context, orgID, agentID string, status agent.Status) (bool, error) {
	if !status.IsValid() {
		return false, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeValidation,
			"unknown agent status", nil, "agent-status-invalid")
	}

	res := r.db.WithContext(ctx).
		Model(&entities.AgentProfile{}).
		Where("public_id = ? AND organization_id = ? AND status <> ?", agentID, orgID, status).
		Updates(map[string]any{"status": status})
	if res.Error != nil {
		return false, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to update agent status", res.Error, "agent-status-db")
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	// Distinguish "unchanged" from a missing or foreign agent.
	if _, err := r.Get(ctx, orgID, agentID); err != nil {
		return false, err
	}
	return false, nil
}
