package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskline/queue-api/internal/domain/intake"
	"github.com/deskline/queue-api/internal/infrastructure/database/dbtest"
	"github.com/deskline/queue-api/internal/infrastructure/repository/agentrepo"
	"github.com/deskline/queue-api/internal/infrastructure/repository/conversationrepo"
	"github.com/deskline/queue-api/internal/infrastructure/repository/messagerepo"
	"github.com/deskline/queue-api/internal/infrastructure/repository/organizationrepo"
)

const sampleFixtures = `
organizations:
  - id: acme
    name: Acme
    teams:
      - id: support
        name: Support
    queues:
      - id: billing
        name: Billing
        team: Support
    agents:
      - id: alice
        display_name: Alice
        team: support
        status: online
        max_concurrent: 3
      - id: bob
        display_name: Bob
    conversations:
      - contact_id: c-1
        channel_type: whatsapp
        queue: billing
        priority: 2
        body: my invoice is wrong
        waiting_for: 45m
      - contact_id: c-2
        channel_type: email
        body: hello
        waiting_for: 2m
        assigned_to: alice
      - contact_id: c-1
        channel_type: whatsapp
        body: anyone there?
`

func TestParseFixtures(t *testing.T) {
	f, err := ParseFixtures(strings.NewReader(sampleFixtures))
	require.NoError(t, err)
	require.Len(t, f.Organizations, 1)

	org := f.Organizations[0]
	assert.Equal(t, "Acme", org.Name)
	assert.Len(t, org.Agents, 2)
	assert.Equal(t, 3, org.Agents[0].MaxConcurrent)
	require.Len(t, org.Conversations, 3)
	assert.Equal(t, 45*time.Minute, org.Conversations[0].WaitingFor)
	assert.Equal(t, "alice", org.Conversations[1].AssignedTo)
}

func TestParseFixturesRejectsBadDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{name: "empty", doc: "", want: "empty document"},
		{name: "no organizations", doc: "organizations: []", want: "no organizations"},
		{name: "unknown key", doc: "organizations:\n  - name: A\n    colour: red\n", want: "colour"},
		{name: "missing name", doc: "organizations:\n  - id: a\n", want: "name is required"},
		{
			name: "unknown team",
			doc:  "organizations:\n  - name: A\n    queues:\n      - name: Q\n        team: nope\n",
			want: `unknown team "nope"`,
		},
		{
			name: "bad status",
			doc:  "organizations:\n  - name: A\n    agents:\n      - display_name: X\n        status: sleeping\n",
			want: `unknown status "sleeping"`,
		},
		{
			name: "unknown assignee",
			doc:  "organizations:\n  - name: A\n    conversations:\n      - contact_id: c\n        channel_type: sms\n        body: hi\n        assigned_to: ghost\n",
			want: "assigned_to",
		},
		{
			name: "negative wait",
			doc:  "organizations:\n  - name: A\n    conversations:\n      - contact_id: c\n        channel_type: sms\n        body: hi\n        waiting_for: -5m\n",
			want: "waiting_for",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFixtures(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSeederLoadsFixtures(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)

	f, err := ParseFixtures(strings.NewReader(sampleFixtures))
	require.NoError(t, err)

	conversations := conversationrepo.NewGormRepository(db)
	agents := agentrepo.NewGormRepository(db)
	receiver := intake.NewService(conversations, messagerepo.NewGormRepository(db), zerolog.Nop())
	seeder := NewSeeder(organizationrepo.NewGormRepository(db), agents, conversations, receiver)

	now := time.Now().UTC()
	sum, err := seeder.Seed(ctx, f, now)
	require.NoError(t, err)
	assert.Equal(t, SeedSummary{Organizations: 1, Teams: 1, Queues: 1, Agents: 2, Conversations: 2, Assigned: 1}, sum)

	open, err := conversations.ListOpen(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, open, 2)

	var billing bool
	for _, c := range open {
		if c.ContactID == "c-1" {
			billing = true
			require.NotNil(t, c.QueueID)
			assert.Equal(t, "billing", *c.QueueID)
			assert.WithinDuration(t, now.Add(-45*time.Minute), c.StartedAt, time.Second)
		}
	}
	assert.True(t, billing)

	alice := "alice"
	held, err := conversations.ListHeld(ctx, "acme", &alice)
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, "c-2", held[0].ContactID)
}
