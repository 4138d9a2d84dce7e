package assignment_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskline/queue-api/internal/domain/agent"
	"github.com/deskline/queue-api/internal/domain/assignment"
	"github.com/deskline/queue-api/internal/domain/conversation"
	"github.com/deskline/queue-api/internal/domain/queue"
	"github.com/deskline/queue-api/internal/domain/tenant"
	"github.com/deskline/queue-api/internal/infrastructure/database/dbtest"
	"github.com/deskline/queue-api/internal/infrastructure/repository/agentrepo"
	"github.com/deskline/queue-api/internal/infrastructure/repository/conversationrepo"
	"github.com/deskline/queue-api/internal/infrastructure/repository/organizationrepo"
)

type env struct {
	conversations *conversationrepo.GormRepository
	agents        *agentrepo.GormRepository
	queues        *queue.Service
	coord         *assignment.Coordinator
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := dbtest.Open(t)
	e := &env{
		conversations: conversationrepo.NewGormRepository(db),
		agents:        agentrepo.NewGormRepository(db),
	}
	e.queues = queue.NewService(e.conversations, organizationrepo.NewGormRepository(db), e.agents)
	e.coord = assignment.NewCoordinator(e.conversations, e.queues, 5, nil, zerolog.Nop())
	return e
}

func (e *env) agent(t *testing.T, id string) tenant.Caller {
	t.Helper()
	require.NoError(t, e.agents.Create(context.Background(), &agent.Agent{
		ID: id, OrganizationID: "org-1", DisplayName: id, Status: agent.StatusOnline,
	}))
	return tenant.Caller{OrganizationID: "org-1", AgentID: id, Role: tenant.RoleAgent}
}

func (e *env) open(t *testing.T, contact string, priority int) *conversation.Conversation {
	t.Helper()
	c, _, err := e.conversations.Open(context.Background(), &conversation.Conversation{
		OrganizationID: "org-1", ContactID: contact, ChannelType: "chat", Priority: priority,
		StartedAt: time.Now().UTC().Add(-time.Minute),
	})
	require.NoError(t, err)
	return c
}

func TestTwoAgentsOneConversation(t *testing.T) {
	e := newEnv(t)
	a := e.agent(t, "agent-a")
	b := e.agent(t, "agent-b")
	c := e.agent(t, "agent-c")
	conv := e.open(t, "contact-1", 5)

	var wg sync.WaitGroup
	results := make([]*assignment.Attempt, 2)
	for i, caller := range []tenant.Caller{a, b} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			attempt, err := e.coord.AttendNext(context.Background(), caller, assignment.Options{})
			assert.NoError(t, err)
			results[i] = attempt
		}()
	}
	wg.Wait()

	var claimed, unavailable int
	for _, r := range results {
		require.NotNil(t, r)
		switch r.State {
		case assignment.StateClaimed:
			claimed++
			assert.Equal(t, conv.ID, r.Conversation.ID)
			assert.Equal(t, conversation.StatusActive, r.Conversation.Status)
		case assignment.StateUnavailable:
			unavailable++
		}
	}
	assert.Equal(t, 1, claimed)
	assert.Equal(t, 1, unavailable)

	view, err := e.queues.ViewFor(context.Background(), c, queue.Filter{})
	require.NoError(t, err)
	assert.Empty(t, view.Waiting)
}

func TestAttendNextTakesHighestPriorityFirst(t *testing.T) {
	e := newEnv(t)
	a := e.agent(t, "agent-a")
	e.open(t, "contact-1", 5)
	urgent := e.open(t, "contact-2", 9)

	attempt, err := e.coord.AttendNext(context.Background(), a, assignment.Options{})
	require.NoError(t, err)
	require.Equal(t, assignment.StateClaimed, attempt.State)
	assert.Equal(t, urgent.ID, attempt.Conversation.ID)
	assert.Equal(t, 1, attempt.Tries)
}

func TestFinishIsIdempotent(t *testing.T) {
	e := newEnv(t)
	a := e.agent(t, "agent-a")
	conv := e.open(t, "contact-1", 5)
	ctx := context.Background()

	ok, err := e.coord.Claim(ctx, a, conv.ID)
	require.NoError(t, err)
	require.True(t, ok)

	first, err := e.coord.Finish(ctx, a, conv.ID)
	require.NoError(t, err)
	second, err := e.coord.Finish(ctx, a, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, []bool{first, second})

	got, err := e.conversations.Get(ctx, "org-1", conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conversation.StatusFinished, got.Status)
}

func TestManagerTransferKeepsConversationHeld(t *testing.T) {
	e := newEnv(t)
	a := e.agent(t, "agent-a")
	e.agent(t, "agent-b")
	conv := e.open(t, "contact-1", 5)
	ctx := context.Background()

	ok, err := e.coord.Claim(ctx, a, conv.ID)
	require.NoError(t, err)
	require.True(t, ok)

	admin := tenant.Caller{OrganizationID: "org-1", Role: tenant.RoleAdmin}
	ok, err = e.coord.Transfer(ctx, admin, conv.ID, "agent-b")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := e.conversations.Get(ctx, "org-1", conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conversation.StatusActive, got.Status)
	require.NotNil(t, got.AssignedAgentID)
	assert.Equal(t, "agent-b", *got.AssignedAgentID)

	ok, err = e.coord.Transfer(ctx, a, conv.ID, "agent-b")
	require.NoError(t, err)
	assert.False(t, ok, "former holder can no longer transfer")

	_, err = e.coord.Transfer(ctx, a, conv.ID, "agent-a")
	assert.Error(t, err, "same-agent transfer")
}
