package queue

import (
	"sort"
	"time"

	"github.com/deskline/queue-api/internal/domain/conversation"
	"github.com/deskline/queue-api/internal/domain/tenant"
)

// Filter narrows a view.
type Filter struct {
	QueueID *string
	// Team, when set, drops waiting conversations whose queue is owned by
	// a different team. Conversations without a queue and queues without a
	// team stay visible. An empty team sees only unowned work.
	Team *string
}

// Item is one conversation as presented by a view.
type Item struct {
	Conversation *conversation.Conversation
	Band         conversation.Band
	Position     int
	Wait         time.Duration
}

// Result is the derived queue state for one scope.
type Result struct {
	OrganizationID string
	Scope          string
	Waiting        []Item
	Assigned       []Item
	TakenAt        time.Time
}

// Head returns the first waiting conversation, if any.
func (r Result) Head() (*conversation.Conversation, bool) {
	if len(r.Waiting) == 0 {
		return nil, false
	}
	return r.Waiting[0].Conversation, true
}

// View derives the ordered queue for scope from the snapshot. It is a pure
// function: the snapshot is not modified and the result is rebuilt from
// scratch on every call.
func View(s *Snapshot, scope tenant.Scope, filter Filter) Result {
	result := Result{
		OrganizationID: s.OrganizationID,
		Scope:          scope.String(),
		TakenAt:        s.TakenAt,
	}

	admit := admitter(s, scope)
	routable := router(s, filter)

	var waiting, assigned []*conversation.Conversation
	for _, c := range s.Conversations {
		if c == nil || c.Status.IsTerminal() {
			continue
		}
		if filter.QueueID != nil && !c.InQueue(*filter.QueueID) {
			continue
		}
		if !admit(c) {
			continue
		}
		if c.Status == conversation.StatusWaiting {
			if !routable(c) {
				continue
			}
			waiting = append(waiting, c)
		} else {
			assigned = append(assigned, c)
		}
	}

	conversation.SortForQueue(waiting)
	sort.SliceStable(assigned, func(i, j int) bool {
		a, b := assigned[i], assigned[j]
		at, bt := assignedAt(a), assignedAt(b)
		if !at.Equal(bt) {
			return at.Before(bt)
		}
		return a.Sequence < b.Sequence
	})

	result.Waiting = toItems(waiting, s.TakenAt)
	result.Assigned = toItems(assigned, s.TakenAt)
	return result
}

func admitter(s *Snapshot, scope tenant.Scope) func(*conversation.Conversation) bool {
	switch sc := scope.(type) {
	case tenant.AllOfOrg:
		return func(*conversation.Conversation) bool { return true }
	case tenant.TeamOf:
		queueTeams := s.queueTeams()
		agentTeams := s.agentTeams()
		return func(c *conversation.Conversation) bool {
			if c.QueueID != nil && queueTeams[*c.QueueID] == sc.TeamID {
				return true
			}
			if c.AssignedAgentID != nil && agentTeams[*c.AssignedAgentID] == sc.TeamID {
				return true
			}
			return false
		}
	case tenant.OwnPlusWaiting:
		return func(c *conversation.Conversation) bool {
			return c.Status == conversation.StatusWaiting || c.IsAssignedTo(sc.AgentID)
		}
	default:
		return func(*conversation.Conversation) bool { return false }
	}
}

func router(s *Snapshot, filter Filter) func(*conversation.Conversation) bool {
	if filter.Team == nil {
		return func(*conversation.Conversation) bool { return true }
	}
	queueTeams := s.queueTeams()
	return func(c *conversation.Conversation) bool {
		if c.QueueID == nil {
			return true
		}
		owner, owned := queueTeams[*c.QueueID]
		return !owned || owner == *filter.Team
	}
}

func toItems(list []*conversation.Conversation, at time.Time) []Item {
	items := make([]Item, 0, len(list))
	for i, c := range list {
		items = append(items, Item{
			Conversation: c,
			Band:         c.Band(),
			Position:     i + 1,
			Wait:         c.WaitTime(at),
		})
	}
	return items
}

func assignedAt(c *conversation.Conversation) time.Time {
	if c.AssignedAt != nil {
		return *c.AssignedAt
	}
	return c.StartedAt
}
