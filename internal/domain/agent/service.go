package agent

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/deskline/queue-api/internal/domain/tenant"
	"github.com/deskline/queue-api/internal/utils/platformerrors"
)

// Service applies caller rules to agent profile changes.
type Service struct {
	repo Repository
	log  zerolog.Logger
}

func NewService(repo Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("component", "agent-service").Logger(),
	}
}

// Register adds an agent to the caller's organization. Managers may only
// register agents into their own team.
func (s *Service) Register(ctx context.Context, caller tenant.Caller, a *Agent) error {
	if err := caller.Validate(ctx); err != nil {
		return err
	}
	if caller.Role != tenant.RoleAdmin && caller.Role != tenant.RoleManager {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden,
			"only admins and managers register agents", nil, "agent-register-role")
	}
	if caller.Role == tenant.RoleManager {
		if a.TeamID == nil {
			team := caller.TeamID
			a.TeamID = &team
		}
		if *a.TeamID != caller.TeamID {
			return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden,
				"managers register agents into their own team", nil, "agent-register-team")
		}
	}
	a.OrganizationID = caller.OrganizationID
	if err := s.repo.Create(ctx, a); err != nil {
		return err
	}
	s.log.Info().Str("organization_id", a.OrganizationID).Str("agent_id", a.ID).Msg("agent registered")
	return nil
}

// List returns the caller's organization agents. Managers see their team.
func (s *Service) List(ctx context.Context, caller tenant.Caller, filter ListFilter) ([]*Agent, error) {
	if err := caller.Validate(ctx); err != nil {
		return nil, err
	}
	if caller.Role == tenant.RoleManager && filter.TeamID == nil {
		team := caller.TeamID
		filter.TeamID = &team
	}
	return s.repo.List(ctx, caller.OrganizationID, filter)
}

// SetStatus changes an agent's availability. Agents change their own; the
// other roles may change anyone's. It reports whether the status changed.
func (s *Service) SetStatus(ctx context.Context, caller tenant.Caller, agentID string, status Status) (bool, error) {
	if err := caller.Validate(ctx); err != nil {
		return false, err
	}
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		agentID = caller.AgentID
	}
	if agentID != caller.AgentID && !caller.CanActForOthers() {
		return false, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden,
			"agents may only change their own status", nil, "agent-status-other")
	}
	if !status.IsValid() {
		return false, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"unknown agent status", nil, "agent-status-invalid")
	}
	return s.repo.SetStatus(ctx, caller.OrganizationID, agentID, status)
}
