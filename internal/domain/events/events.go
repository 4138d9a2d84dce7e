// Package events defines the per-tenant change feed. Events are triggers:
// consumers re-read state instead of trusting the payload.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Table names the kind of row that changed.
type Table string

const (
	TableConversations Table = "conversations"
	TableMessages      Table = "messages"
	TableAgentProfiles Table = "agent_profiles"
)

// AllTables lists every table the feed carries.
func AllTables() []Table {
	return []Table{TableConversations, TableMessages, TableAgentProfiles}
}

// Op is the kind of change.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
)

// ChangeEvent announces that a row of an organization changed.
type ChangeEvent struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Table          Table     `json:"table"`
	Op             Op        `json:"op"`
	RowID          string    `json:"row_id"`
	Action         string    `json:"action,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// NewChangeEvent builds an event with a fresh id.
func NewChangeEvent(orgID string, table Table, op Op, rowID, action string) ChangeEvent {
	return ChangeEvent{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		Table:          table,
		Op:             op,
		RowID:          rowID,
		Action:         action,
		OccurredAt:     time.Now().UTC(),
	}
}

// Publisher sends change events.
type Publisher interface {
	Publish(ctx context.Context, event ChangeEvent) error
}

// Subscription delivers events for one organization until closed. The
// channel is closed when the subscription ends, including when the
// underlying connection drops.
type Subscription interface {
	Events() <-chan ChangeEvent
	Close() error
}

// Notifier is a per-tenant broadcast channel. Delivery is at-least-once at
// best and unordered; events may be lost.
type Notifier interface {
	Publisher
	Subscribe(ctx context.Context, orgID string, tables ...Table) (Subscription, error)
}

// Matches reports whether event is for one of tables. An empty list matches all.
func Matches(event ChangeEvent, tables []Table) bool {
	if len(tables) == 0 {
		return true
	}
	for _, t := range tables {
		if event.Table == t {
			return true
		}
	}
	return false
}
