package queue

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/deskline/queue-api/internal/domain/agent"
	"github.com/deskline/queue-api/internal/domain/conversation"
	"github.com/deskline/queue-api/internal/domain/tenant"
	"github.com/deskline/queue-api/internal/utils/platformerrors"
)

// OpenLister reads every non-finished conversation of an organization in a
// single query so a snapshot never sees one row twice.
type OpenLister interface {
	ListOpen(ctx context.Context, orgID string) ([]*conversation.Conversation, error)
}

// Service builds snapshots and views for callers.
type Service struct {
	conversations OpenLister
	queues        Repository
	agents        agent.Repository
	now           func() time.Time
}

// NewService constructs the queue read service.
func NewService(conversations OpenLister, queues Repository, agents agent.Repository) *Service {
	return &Service{
		conversations: conversations,
		queues:        queues,
		agents:        agents,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Snapshot reads the organization's open conversations, queues and agents.
func (s *Service) Snapshot(ctx context.Context, orgID string) (*Snapshot, error) {
	snap := &Snapshot{OrganizationID: orgID}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := s.conversations.ListOpen(gctx, orgID)
		snap.Conversations = items
		return err
	})
	g.Go(func() error {
		queues, err := s.queues.ListQueues(gctx, orgID)
		snap.Queues = queues
		return err
	})
	g.Go(func() error {
		agents, err := s.agents.List(gctx, orgID, agent.ListFilter{})
		snap.Agents = agents
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to read queue snapshot")
	}

	snap.TakenAt = s.now()
	return snap, nil
}

// ViewFor reads a fresh snapshot and derives the caller's view of it.
func (s *Service) ViewFor(ctx context.Context, caller tenant.Caller, filter Filter) (Result, error) {
	if err := caller.Validate(ctx); err != nil {
		return Result{}, err
	}
	snap, err := s.Snapshot(ctx, caller.OrganizationID)
	if err != nil {
		return Result{}, err
	}
	return View(snap, tenant.ScopeFor(caller), filter), nil
}
