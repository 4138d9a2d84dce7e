package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskline/queue-api/internal/domain/agent"
	"github.com/deskline/queue-api/internal/domain/conversation"
	"github.com/deskline/queue-api/internal/domain/tenant"
)

func strPtr(s string) *string { return &s }

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func waiting(id string, seq uint, priority int, startedAt time.Time, queueID *string) *conversation.Conversation {
	return &conversation.Conversation{
		ID:             id,
		Sequence:       seq,
		OrganizationID: "org-1",
		QueueID:        queueID,
		Status:         conversation.StatusWaiting,
		Priority:       priority,
		StartedAt:      startedAt,
	}
}

func held(id string, seq uint, agentID string, status conversation.Status, queueID *string) *conversation.Conversation {
	assigned := t0.Add(time.Duration(seq) * time.Minute)
	return &conversation.Conversation{
		ID:              id,
		Sequence:        seq,
		OrganizationID:  "org-1",
		QueueID:         queueID,
		Status:          status,
		Priority:        1,
		AssignedAgentID: strPtr(agentID),
		StartedAt:       t0,
		AssignedAt:      &assigned,
	}
}

func ids(items []Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Conversation.ID)
	}
	return out
}

func TestViewFIFOWithinPriority(t *testing.T) {
	snap := &Snapshot{
		OrganizationID: "org-1",
		TakenAt:        t0.Add(time.Hour),
		Conversations: []*conversation.Conversation{
			waiting("p5-a", 1, 5, t0, nil),
			waiting("p5-b", 2, 5, t0.Add(time.Minute), nil),
			waiting("p8", 3, 8, t0.Add(2*time.Minute), nil),
			waiting("p5-c", 4, 5, t0.Add(3*time.Minute), nil),
		},
	}

	result := View(snap, tenant.AllOfOrg{}, Filter{})

	assert.Equal(t, []string{"p8", "p5-a", "p5-b", "p5-c"}, ids(result.Waiting))
	assert.Equal(t, conversation.BandUrgent, result.Waiting[0].Band)
	assert.Equal(t, conversation.BandHigh, result.Waiting[1].Band)
	assert.Equal(t, 1, result.Waiting[0].Position)
	assert.Equal(t, time.Hour, result.Waiting[1].Wait)

	head, ok := result.Head()
	require.True(t, ok)
	assert.Equal(t, "p8", head.ID)
}

func TestViewDoesNotMutateSnapshot(t *testing.T) {
	snap := &Snapshot{
		OrganizationID: "org-1",
		Conversations: []*conversation.Conversation{
			waiting("low", 1, 1, t0, nil),
			waiting("high", 2, 9, t0, nil),
		},
	}

	first := View(snap, tenant.AllOfOrg{}, Filter{})
	second := View(snap, tenant.AllOfOrg{}, Filter{})

	assert.Equal(t, "low", snap.Conversations[0].ID)
	assert.Equal(t, ids(first.Waiting), ids(second.Waiting))
}

func TestViewScopes(t *testing.T) {
	support := strPtr("q-support")
	billing := strPtr("q-billing")

	snap := &Snapshot{
		OrganizationID: "org-1",
		Queues: []*Queue{
			{ID: "q-support", TeamID: strPtr("team-support")},
			{ID: "q-billing", TeamID: strPtr("team-billing")},
		},
		Agents: []*agent.Agent{
			{ID: "alice", TeamID: strPtr("team-support")},
			{ID: "bob", TeamID: strPtr("team-billing")},
		},
		Conversations: []*conversation.Conversation{
			waiting("w-support", 1, 1, t0, support),
			waiting("w-billing", 2, 1, t0.Add(time.Second), billing),
			waiting("w-none", 3, 1, t0.Add(2*time.Second), nil),
			held("alice-active", 4, "alice", conversation.StatusActive, billing),
			held("bob-paused", 5, "bob", conversation.StatusPaused, nil),
			{ID: "done", Sequence: 6, Status: conversation.StatusFinished, StartedAt: t0},
		},
	}

	tests := []struct {
		name         string
		scope        tenant.Scope
		filter       Filter
		wantWaiting  []string
		wantAssigned []string
	}{
		{
			name:         "all of org",
			scope:        tenant.AllOfOrg{},
			wantWaiting:  []string{"w-support", "w-billing", "w-none"},
			wantAssigned: []string{"alice-active", "bob-paused"},
		},
		{
			name:         "team by queue or assignee",
			scope:        tenant.TeamOf{TeamID: "team-support"},
			wantWaiting:  []string{"w-support"},
			wantAssigned: []string{"alice-active"},
		},
		{
			name:         "own plus waiting",
			scope:        tenant.OwnPlusWaiting{AgentID: "bob"},
			wantWaiting:  []string{"w-support", "w-billing", "w-none"},
			wantAssigned: []string{"bob-paused"},
		},
		{
			name:         "queue filter",
			scope:        tenant.AllOfOrg{},
			filter:       Filter{QueueID: billing},
			wantWaiting:  []string{"w-billing"},
			wantAssigned: []string{"alice-active"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := View(snap, tt.scope, tt.filter)
			assert.Equal(t, tt.wantWaiting, ids(result.Waiting))
			assert.Equal(t, tt.wantAssigned, ids(result.Assigned))
		})
	}
}

func TestViewEmptySnapshot(t *testing.T) {
	result := View(&Snapshot{OrganizationID: "org-1"}, tenant.OwnPlusWaiting{AgentID: "a"}, Filter{})
	assert.Empty(t, result.Waiting)
	_, ok := result.Head()
	assert.False(t, ok)
}

func TestViewTeamFilterRoutesOwnedQueues(t *testing.T) {
	snap := &Snapshot{
		OrganizationID: "org-1",
		TakenAt:        t0.Add(time.Hour),
		Queues: []*Queue{
			{ID: "q-billing", OrganizationID: "org-1", TeamID: strPtr("billing")},
			{ID: "q-support", OrganizationID: "org-1", TeamID: strPtr("support")},
			{ID: "q-general", OrganizationID: "org-1"},
		},
		Conversations: []*conversation.Conversation{
			waiting("billing", 1, 5, t0, strPtr("q-billing")),
			waiting("support", 2, 5, t0, strPtr("q-support")),
			waiting("general", 3, 5, t0, strPtr("q-general")),
			waiting("unqueued", 4, 5, t0, nil),
			held("held-billing", 5, "sam", conversation.StatusActive, strPtr("q-billing")),
		},
	}
	scope := tenant.OwnPlusWaiting{AgentID: "sam"}

	all := View(snap, scope, Filter{})
	assert.Equal(t, []string{"billing", "support", "general", "unqueued"}, ids(all.Waiting))

	support := View(snap, scope, Filter{Team: strPtr("support")})
	assert.Equal(t, []string{"support", "general", "unqueued"}, ids(support.Waiting))
	assert.Equal(t, []string{"held-billing"}, ids(support.Assigned), "held work is not routed")

	teamless := View(snap, scope, Filter{Team: strPtr("")})
	assert.Equal(t, []string{"general", "unqueued"}, ids(teamless.Waiting))
}
