package assignment

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskline/queue-api/internal/domain/conversation"
	"github.com/deskline/queue-api/internal/domain/queue"
	"github.com/deskline/queue-api/internal/domain/tenant"
	"github.com/deskline/queue-api/internal/utils/platformerrors"
)

type mockRepository struct {
	conversation.Repository

	getFn      func(ctx context.Context, orgID, id string) (*conversation.Conversation, error)
	tryClaimFn func(ctx context.Context, orgID, id, agentID string) (bool, error)
	transferFn func(ctx context.Context, orgID, id, from, to string) (bool, error)
	finishFn   func(ctx context.Context, orgID, id string) (bool, error)
	pauseFn    func(ctx context.Context, orgID, id, agentID string) (bool, error)
	listHeldFn func(ctx context.Context, orgID string, agentID *string) ([]*conversation.Conversation, error)
}

func (m *mockRepository) Get(ctx context.Context, orgID, id string) (*conversation.Conversation, error) {
	if m.getFn == nil {
		return nil, errors.New("not loaded")
	}
	return m.getFn(ctx, orgID, id)
}

func (m *mockRepository) TryClaim(ctx context.Context, orgID, id, agentID string) (bool, error) {
	return m.tryClaimFn(ctx, orgID, id, agentID)
}

func (m *mockRepository) Transfer(ctx context.Context, orgID, id, from, to string) (bool, error) {
	return m.transferFn(ctx, orgID, id, from, to)
}

func (m *mockRepository) Finish(ctx context.Context, orgID, id string) (bool, error) {
	return m.finishFn(ctx, orgID, id)
}

func (m *mockRepository) Pause(ctx context.Context, orgID, id, agentID string) (bool, error) {
	return m.pauseFn(ctx, orgID, id, agentID)
}

func (m *mockRepository) ListHeld(ctx context.Context, orgID string, agentID *string) ([]*conversation.Conversation, error) {
	return m.listHeldFn(ctx, orgID, agentID)
}

type scriptedViewer struct {
	results []queue.Result
	err     error
	calls   int
}

func (v *scriptedViewer) ViewFor(context.Context, tenant.Caller, queue.Filter) (queue.Result, error) {
	if v.err != nil {
		return queue.Result{}, v.err
	}
	i := v.calls
	v.calls++
	if i >= len(v.results) {
		i = len(v.results) - 1
	}
	return v.results[i], nil
}

type countingRecorder struct {
	claims map[string]int
	tries  []int
}

func (r *countingRecorder) RecordClaim(operation, outcome string) {
	if r.claims == nil {
		r.claims = map[string]int{}
	}
	r.claims[operation+":"+outcome]++
}

func (r *countingRecorder) RecordAttendNext(tries int) {
	r.tries = append(r.tries, tries)
}

func waitingResult(ids ...string) queue.Result {
	r := queue.Result{OrganizationID: "org-1"}
	for i, id := range ids {
		r.Waiting = append(r.Waiting, queue.Item{
			Conversation: &conversation.Conversation{ID: id, OrganizationID: "org-1", Status: conversation.StatusWaiting},
			Position:     i + 1,
		})
	}
	return r
}

var agentCaller = tenant.Caller{OrganizationID: "org-1", AgentID: "agent-a", Role: tenant.RoleAgent}

func TestAttendNextRetriesWithFreshHead(t *testing.T) {
	var claimed []string
	repo := &mockRepository{
		tryClaimFn: func(_ context.Context, _, id, _ string) (bool, error) {
			claimed = append(claimed, id)
			return id == "c2", nil
		},
	}
	viewer := &scriptedViewer{results: []queue.Result{waitingResult("c1", "c2"), waitingResult("c2")}}
	rec := &countingRecorder{}
	coord := NewCoordinator(repo, viewer, 5, rec, zerolog.Nop())

	attempt, err := coord.AttendNext(context.Background(), agentCaller, Options{})
	require.NoError(t, err)
	assert.Equal(t, StateClaimed, attempt.State)
	assert.Equal(t, 2, attempt.Tries)
	require.NotNil(t, attempt.Conversation)
	assert.Equal(t, "c2", attempt.Conversation.ID)
	assert.Equal(t, conversation.StatusActive, attempt.Conversation.Status)
	assert.Equal(t, []string{"c1", "c2"}, claimed, "only the head of each read is claimed")
	assert.Equal(t, 1, rec.claims["attend_next:lost"])
	assert.Equal(t, 1, rec.claims["attend_next:won"])
	assert.Equal(t, []int{2}, rec.tries)
}

func TestAttendNextOutcomes(t *testing.T) {
	tests := []struct {
		name   string
		views  []queue.Result
		claim  func(id string) (bool, error)
		state  State
		reason Reason
		tries  int
	}{
		{
			name:   "empty queue",
			views:  []queue.Result{waitingResult()},
			state:  StateUnavailable,
			reason: ReasonNothingWaiting,
			tries:  1,
		},
		{
			name:   "lost then empty",
			views:  []queue.Result{waitingResult("c1"), waitingResult()},
			claim:  func(string) (bool, error) { return false, nil },
			state:  StateUnavailable,
			reason: ReasonTaken,
			tries:  2,
		},
		{
			name:   "every claim lost",
			views:  []queue.Result{waitingResult("c1")},
			claim:  func(string) (bool, error) { return false, nil },
			state:  StateUnavailable,
			reason: ReasonTaken,
			tries:  3,
		},
		{
			name:  "store failure",
			views: []queue.Result{waitingResult("c1")},
			claim: func(string) (bool, error) {
				return false, platformerrors.NewError(context.Background(), platformerrors.LayerRepository,
					platformerrors.ErrorTypeDatabaseError, "boom", nil, "test")
			},
			state: StateError,
			tries: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepository{tryClaimFn: func(_ context.Context, _, id, _ string) (bool, error) {
				return tt.claim(id)
			}}
			coord := NewCoordinator(repo, &scriptedViewer{results: tt.views}, 3, nil, zerolog.Nop())

			attempt, err := coord.AttendNext(context.Background(), agentCaller, Options{})
			assert.Equal(t, tt.state, attempt.State)
			assert.Equal(t, tt.reason, attempt.Reason)
			assert.Equal(t, tt.tries, attempt.Tries)
			assert.True(t, attempt.State.IsTerminal())
			if tt.state == StateError {
				require.Error(t, err)
				assert.Equal(t, err, attempt.Err)
			} else {
				require.NoError(t, err)
				assert.Nil(t, attempt.Conversation)
			}
		})
	}
}

func TestAttendNextViewFailure(t *testing.T) {
	coord := NewCoordinator(&mockRepository{}, &scriptedViewer{err: errors.New("db down")}, 3, nil, zerolog.Nop())

	attempt, err := coord.AttendNext(context.Background(), agentCaller, Options{})
	require.Error(t, err)
	assert.Equal(t, StateError, attempt.State)
	assert.Equal(t, 1, attempt.Tries)
}

func TestAttendNextRequiresAgent(t *testing.T) {
	coord := NewCoordinator(&mockRepository{}, &scriptedViewer{}, 3, nil, zerolog.Nop())

	admin := tenant.Caller{OrganizationID: "org-1", Role: tenant.RoleAdmin}
	attempt, err := coord.AttendNext(context.Background(), admin, Options{})
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
	assert.Equal(t, StateError, attempt.State)
	assert.Equal(t, 0, attempt.Tries)
}

func TestClaimSurvivesCallerCancellation(t *testing.T) {
	repo := &mockRepository{tryClaimFn: func(ctx context.Context, _, _, _ string) (bool, error) {
		return ctx.Err() == nil, nil
	}}
	coord := NewCoordinator(repo, &scriptedViewer{}, 3, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ok, err := coord.Claim(ctx, agentCaller, "c1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClaimForOtherAgent(t *testing.T) {
	var assignedTo string
	repo := &mockRepository{tryClaimFn: func(_ context.Context, _, _, agentID string) (bool, error) {
		assignedTo = agentID
		return true, nil
	}}
	coord := NewCoordinator(repo, &scriptedViewer{}, 3, nil, zerolog.Nop())
	ctx := context.Background()

	_, err := coord.ClaimFor(ctx, agentCaller, "c1", "agent-b")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden))
	assert.Empty(t, assignedTo)

	manager := tenant.Caller{OrganizationID: "org-1", TeamID: "team-1", Role: tenant.RoleManager}
	ok, err := coord.ClaimFor(ctx, manager, "c1", "agent-b")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "agent-b", assignedTo)

	_, err = coord.ClaimFor(ctx, manager, "c1", " ")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))

	_, err = coord.Claim(ctx, tenant.Caller{Role: tenant.RoleAgent, AgentID: "agent-a"}, "c1")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeUnauthorized))
}

func TestTransferExpectedHolder(t *testing.T) {
	holder := "agent-a"
	var gotFrom, gotTo string
	repo := &mockRepository{
		getFn: func(context.Context, string, string) (*conversation.Conversation, error) {
			return &conversation.Conversation{ID: "c1", Status: conversation.StatusPaused, AssignedAgentID: &holder}, nil
		},
		transferFn: func(_ context.Context, _, _, from, to string) (bool, error) {
			gotFrom, gotTo = from, to
			return true, nil
		},
	}
	coord := NewCoordinator(repo, &scriptedViewer{}, 3, nil, zerolog.Nop())
	ctx := context.Background()

	admin := tenant.Caller{OrganizationID: "org-1", Role: tenant.RoleAdmin}
	ok, err := coord.Transfer(ctx, admin, "c1", "agent-b")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "agent-a", gotFrom)
	assert.Equal(t, "agent-b", gotTo)

	bob := tenant.Caller{OrganizationID: "org-1", AgentID: "agent-b", Role: tenant.RoleAgent}
	ok, err = coord.Transfer(ctx, bob, "c1", "agent-c")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "agent-b", gotFrom, "agents transfer from themselves")

	_, err = coord.Transfer(ctx, admin, "c1", "agent-a")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))

	_, err = coord.Transfer(ctx, bob, "c1", "")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
}

func TestTransferOfUnheldConversationIsFalse(t *testing.T) {
	repo := &mockRepository{
		getFn: func(context.Context, string, string) (*conversation.Conversation, error) {
			return &conversation.Conversation{ID: "c1", Status: conversation.StatusWaiting}, nil
		},
		transferFn: func(context.Context, string, string, string, string) (bool, error) {
			t.Fatal("transfer must not run without a holder")
			return false, nil
		},
	}
	coord := NewCoordinator(repo, &scriptedViewer{}, 3, nil, zerolog.Nop())

	ok, err := coord.Transfer(context.Background(), tenant.Caller{OrganizationID: "org-1", Role: tenant.RoleAdmin}, "c1", "agent-b")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPauseRequiresHoldingAgent(t *testing.T) {
	repo := &mockRepository{pauseFn: func(_ context.Context, _, _, agentID string) (bool, error) {
		return agentID == "agent-a", nil
	}}
	coord := NewCoordinator(repo, &scriptedViewer{}, 3, nil, zerolog.Nop())
	ctx := context.Background()

	ok, err := coord.Pause(ctx, agentCaller, "c1")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = coord.Pause(ctx, tenant.Caller{OrganizationID: "org-1", Role: tenant.RoleAdmin}, "c1")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
}

func TestHeldByScopesAgents(t *testing.T) {
	var listed []string
	repo := &mockRepository{listHeldFn: func(_ context.Context, _ string, agentID *string) ([]*conversation.Conversation, error) {
		listed = append(listed, *agentID)
		return []*conversation.Conversation{{ID: "c1"}}, nil
	}}
	coord := NewCoordinator(repo, &scriptedViewer{}, 3, nil, zerolog.Nop())
	ctx := context.Background()

	items, err := coord.HeldBy(ctx, agentCaller, "")
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = coord.HeldBy(ctx, agentCaller, "agent-b")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden))

	admin := tenant.Caller{OrganizationID: "org-1", Role: tenant.RoleAdmin}
	_, err = coord.HeldBy(ctx, admin, "agent-b")
	require.NoError(t, err)

	assert.Equal(t, []string{"agent-a", "agent-b"}, listed)
}
