// Package queue computes the ordered queue view from a snapshot of an
// organization's open conversations.
package queue

import (
	"context"
	"time"

	"github.com/deskline/queue-api/internal/domain/agent"
	"github.com/deskline/queue-api/internal/domain/conversation"
)

// Queue is a named partition of the waiting set, optionally owned by a team.
type Queue struct {
	ID             string
	OrganizationID string
	TeamID         *string
	Name           string
	CreatedAt      time.Time
}

// Repository stores queue definitions.
type Repository interface {
	CreateQueue(ctx context.Context, q *Queue) error
	ListQueues(ctx context.Context, orgID string) ([]*Queue, error)
}

// Snapshot is a point-in-time read of one organization. It may be stale;
// nothing derived from it assumes otherwise.
type Snapshot struct {
	OrganizationID string
	Conversations  []*conversation.Conversation
	Queues         []*Queue
	Agents         []*agent.Agent
	TakenAt        time.Time
}

func (s *Snapshot) queueTeams() map[string]string {
	teams := make(map[string]string, len(s.Queues))
	for _, q := range s.Queues {
		if q.TeamID != nil {
			teams[q.ID] = *q.TeamID
		}
	}
	return teams
}

func (s *Snapshot) agentTeams() map[string]string {
	teams := make(map[string]string, len(s.Agents))
	for _, a := range s.Agents {
		if a.TeamID != nil {
			teams[a.ID] = *a.TeamID
		}
	}
	return teams
}
