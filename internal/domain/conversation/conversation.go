// Package conversation holds the conversation model, its lifecycle and the
// tenant-scoped repository contract used by the assignment engine.
package conversation

import (
	"sort"
	"time"
)

// Band is the display classification derived from the integer priority.
type Band string

const (
	BandUrgent Band = "urgent"
	BandHigh   Band = "high"
	BandNormal Band = "normal"
)

const (
	urgentPriority = 8
	highPriority   = 5
)

// BandFor classifies a raw priority. Only the integer is stored.
func BandFor(priority int) Band {
	switch {
	case priority >= urgentPriority:
		return BandUrgent
	case priority >= highPriority:
		return BandHigh
	default:
		return BandNormal
	}
}

// Conversation is the unit of work routed to agents.
type Conversation struct {
	ID              string
	Sequence        uint
	OrganizationID  string
	QueueID         *string
	ContactID       string
	ChannelType     string
	Status          Status
	Priority        int
	AssignedAgentID *string
	StartedAt       time.Time
	AssignedAt      *time.Time
	FinishedAt      *time.Time
	Metadata        map[string]any
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Band returns the display band of the conversation.
func (c *Conversation) Band() Band {
	return BandFor(c.Priority)
}

// IsAssignedTo reports whether agentID currently holds the conversation.
func (c *Conversation) IsAssignedTo(agentID string) bool {
	return c.AssignedAgentID != nil && *c.AssignedAgentID == agentID
}

// InQueue reports whether the conversation is routed to queueID.
func (c *Conversation) InQueue(queueID string) bool {
	return c.QueueID != nil && *c.QueueID == queueID
}

// WaitTime is how long the conversation has been open at now.
func (c *Conversation) WaitTime(now time.Time) time.Duration {
	if now.Before(c.StartedAt) {
		return 0
	}
	return now.Sub(c.StartedAt)
}

// QueueLess orders conversations for the waiting queue: higher priority
// first, then earlier started_at, then insertion sequence.
func QueueLess(a, b *Conversation) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.StartedAt.Equal(b.StartedAt) {
		return a.StartedAt.Before(b.StartedAt)
	}
	return a.Sequence < b.Sequence
}

// SortForQueue sorts items in place using QueueLess.
func SortForQueue(items []*Conversation) {
	sort.SliceStable(items, func(i, j int) bool {
		return QueueLess(items[i], items[j])
	})
}
