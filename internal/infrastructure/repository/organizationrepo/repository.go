// Package organizationrepo stores the tenant directory: organizations,
// teams and queue definitions.
package organizationrepo

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/deskline/queue-api/internal/domain/queue"
	"github.com/deskline/queue-api/internal/domain/tenant"
	"github.com/deskline/queue-api/internal/infrastructure/database/entities"
	"github.com/deskline/queue-api/internal/utils/platformerrors"
)

type GormRepository struct {
	db *gorm.DB
}

var (
	_ tenant.Directory = (*GormRepository)(nil)
	_ queue.Repository = (*GormRepository)(nil)
)

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) CreateOrganization(ctx context.Context, org *tenant.Organization) error {
	if org == nil || strings.TrimSpace(org.Name) == "" {
		return invalid(ctx, "organization name is required", "org-create-invalid")
	}
	if org.ID == "" {
		org.ID = uuid.NewString()
	}
	entity := &entities.Organization{PublicID: org.ID, Name: org.Name}
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return dbError(ctx, err, "failed to create organization", "org-create-db")
	}
	org.CreatedAt = entity.CreatedAt
	return nil
}

func (r *GormRepository) ListOrganizations(ctx context.Context) ([]*tenant.Organization, error) {
	var rows []entities.Organization
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, dbError(ctx, err, "failed to list organizations", "org-list-db")
	}
	result := make([]*tenant.Organization, 0, len(rows))
	for i := range rows {
		result = append(result, rows[i].ToDomain())
	}
	return result, nil
}

func (r *GormRepository) CreateTeam(ctx context.Context, team *tenant.Team) error {
	if team == nil || strings.TrimSpace(team.OrganizationID) == "" || strings.TrimSpace(team.Name) == "" {
		return invalid(ctx, "organization and team name are required", "team-create-invalid")
	}
	if err := r.requireOrganization(ctx, team.OrganizationID); err != nil {
		return err
	}
	if team.ID == "" {
		team.ID = uuid.NewString()
	}
	entity := &entities.Team{PublicID: team.ID, OrganizationID: team.OrganizationID, Name: team.Name}
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return dbError(ctx, err, "failed to create team", "team-create-db")
	}
	return nil
}

func (r *GormRepository) ListTeams(ctx context.Context, orgID string) ([]*tenant.Team, error) {
	var rows []entities.Team
	if err := r.db.WithContext(ctx).Where("organization_id = ?", orgID).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, dbError(ctx, err, "failed to list teams", "team-list-db")
	}
	result := make([]*tenant.Team, 0, len(rows))
	for i := range rows {
		result = append(result, rows[i].ToDomain())
	}
	return result, nil
}

// CreateQueue stores a queue definition. A team-owned queue must reference a
// team of the same organization.
func (r *GormRepository) CreateQueue(ctx context.Context, q *queue.Queue) error {
	if q == nil || strings.TrimSpace(q.OrganizationID) == "" || strings.TrimSpace(q.Name) == "" {
		return invalid(ctx, "organization and queue name are required", "queue-create-invalid")
	}
	if q.TeamID != nil {
		var team entities.Team
		err := r.db.WithContext(ctx).Where("public_id = ?", *q.TeamID).Take(&team).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
				"team not found", err, "queue-create-team")
		}
		if err != nil {
			return dbError(ctx, err, "failed to load team", "queue-create-team-db")
		}
		if team.OrganizationID != q.OrganizationID {
			return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeForbidden,
				"team belongs to another organization", nil, "queue-create-team-tenant")
		}
	}
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	entity := &entities.Queue{PublicID: q.ID, OrganizationID: q.OrganizationID, TeamID: q.TeamID, Name: q.Name}
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return dbError(ctx, err, "failed to create queue", "queue-create-db")
	}
	q.CreatedAt = entity.CreatedAt
	return nil
}

func (r *GormRepository) ListQueues(ctx context.Context, orgID string) ([]*queue.Queue, error) {
	var rows []entities.Queue
	if err := r.db.WithContext(ctx).Where("organization_id = ?", orgID).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, dbError(ctx, err, "failed to list queues", "queue-list-db")
	}
	result := make([]*queue.Queue, 0, len(rows))
	for i := range rows {
		result = append(result, rows[i].ToDomain())
	}
	return result, nil
}

func (r *GormRepository) requireOrganization(ctx context.Context, orgID string) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&entities.Organization{}).Where("public_id = ?", orgID).Count(&count).Error; err != nil {
		return dbError(ctx, err, "failed to load organization", "org-get-db")
	}
	if count == 0 {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
			"organization not found", nil, "org-get-notfound")
	}
	return nil
}

func invalid(ctx context.Context, msg, code string) error {
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeValidation, msg, nil, code)
}

func dbError(ctx context.Context, err error, msg, code string) error {
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, msg, err, code)
}
