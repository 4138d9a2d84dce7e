package agent

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskline/queue-api/internal/domain/tenant"
	"github.com/deskline/queue-api/internal/utils/platformerrors"
)

type memoryRepository struct {
	agents  map[string]*Agent
	filters []ListFilter
}

func (m *memoryRepository) Create(_ context.Context, a *Agent) error {
	if a.ID == "" {
		a.ID = "agent-new"
	}
	m.agents[a.ID] = a
	return nil
}

func (m *memoryRepository) Get(_ context.Context, _, id string) (*Agent, error) {
	return m.agents[id], nil
}

func (m *memoryRepository) List(_ context.Context, _ string, filter ListFilter) ([]*Agent, error) {
	m.filters = append(m.filters, filter)
	return nil, nil
}

func (m *memoryRepository) SetStatus(_ context.Context, _, id string, status Status) (bool, error) {
	a, ok := m.agents[id]
	if !ok || a.Status == status {
		return false, nil
	}
	a.Status = status
	return true, nil
}

func TestRegisterRoles(t *testing.T) {
	repo := &memoryRepository{agents: map[string]*Agent{}}
	svc := NewService(repo, zerolog.Nop())
	ctx := context.Background()

	err := svc.Register(ctx, tenant.Caller{OrganizationID: "org-1", AgentID: "a", Role: tenant.RoleAgent}, &Agent{DisplayName: "x"})
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden))

	manager := tenant.Caller{OrganizationID: "org-1", TeamID: "team-1", Role: tenant.RoleManager}
	a := &Agent{DisplayName: "Ana"}
	require.NoError(t, svc.Register(ctx, manager, a))
	assert.Equal(t, "org-1", a.OrganizationID)
	require.NotNil(t, a.TeamID)
	assert.Equal(t, "team-1", *a.TeamID)

	other := "team-2"
	err = svc.Register(ctx, manager, &Agent{DisplayName: "Bo", TeamID: &other})
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden))
}

func TestListScopesManagersToTeam(t *testing.T) {
	repo := &memoryRepository{agents: map[string]*Agent{}}
	svc := NewService(repo, zerolog.Nop())

	_, err := svc.List(context.Background(), tenant.Caller{OrganizationID: "org-1", TeamID: "team-1", Role: tenant.RoleManager}, ListFilter{})
	require.NoError(t, err)
	_, err = svc.List(context.Background(), tenant.Caller{OrganizationID: "org-1", Role: tenant.RoleAdmin}, ListFilter{})
	require.NoError(t, err)

	require.Len(t, repo.filters, 2)
	require.NotNil(t, repo.filters[0].TeamID)
	assert.Equal(t, "team-1", *repo.filters[0].TeamID)
	assert.Nil(t, repo.filters[1].TeamID)
}

func TestSetStatus(t *testing.T) {
	repo := &memoryRepository{agents: map[string]*Agent{
		"agent-a": {ID: "agent-a", Status: StatusOffline},
		"agent-b": {ID: "agent-b", Status: StatusOffline},
	}}
	svc := NewService(repo, zerolog.Nop())
	ctx := context.Background()
	caller := tenant.Caller{OrganizationID: "org-1", AgentID: "agent-a", Role: tenant.RoleAgent}

	changed, err := svc.SetStatus(ctx, caller, "", StatusOnline)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = svc.SetStatus(ctx, caller, "agent-a", StatusOnline)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = svc.SetStatus(ctx, caller, "agent-b", StatusOnline)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden))

	_, err = svc.SetStatus(ctx, caller, "", Status("napping"))
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
}
