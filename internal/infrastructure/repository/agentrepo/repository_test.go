package agentrepo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskline/queue-api/internal/domain/agent"
	"github.com/deskline/queue-api/internal/infrastructure/database/dbtest"
	"github.com/deskline/queue-api/internal/infrastructure/repository/agentrepo"
	"github.com/deskline/queue-api/internal/utils/platformerrors"
)

func TestAgentLifecycle(t *testing.T) {
	repo := agentrepo.NewGormRepository(dbtest.Open(t))
	ctx := context.Background()
	team := "team-1"

	alice := &agent.Agent{OrganizationID: "org-1", DisplayName: "Alice", TeamID: &team, Status: agent.StatusOnline, MaxConcurrent: 3}
	bob := &agent.Agent{OrganizationID: "org-1", DisplayName: "Bob"}
	other := &agent.Agent{OrganizationID: "org-2", DisplayName: "Eve"}
	for _, a := range []*agent.Agent{alice, bob, other} {
		require.NoError(t, repo.Create(ctx, a))
		require.NotEmpty(t, a.ID)
	}

	got, err := repo.Get(ctx, "org-1", alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.DisplayName)
	assert.Equal(t, 3, got.MaxConcurrent)
	assert.True(t, got.InTeam("team-1"))

	_, err = repo.Get(ctx, "org-1", other.ID)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden))

	all, err := repo.List(ctx, "org-1", agent.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Alice", all[0].DisplayName)
	assert.Equal(t, agent.StatusOffline, all[1].Status)

	online := agent.StatusOnline
	onlineOnly, err := repo.List(ctx, "org-1", agent.ListFilter{Status: &online})
	require.NoError(t, err)
	assert.Len(t, onlineOnly, 1)

	changed, err := repo.SetStatus(ctx, "org-1", bob.ID, agent.StatusOnline)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.SetStatus(ctx, "org-1", bob.ID, agent.StatusOnline)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = repo.SetStatus(ctx, "org-1", other.ID, agent.StatusAway)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden))

	_, err = repo.SetStatus(ctx, "org-1", bob.ID, agent.Status("sleeping"))
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
}
