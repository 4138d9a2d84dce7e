package dispatcher

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/deskline/queue-api/internal/domain/assignment"
	"github.com/deskline/queue-api/internal/domain/tenant"
	"github.com/deskline/queue-api/internal/infrastructure/metrics"
	"github.com/deskline/queue-api/internal/infrastructure/observability"
)

// Worker runs dispatch rounds for organizations handed out by the pool.
type Worker struct {
	id   int
	pool *Pool
	log  zerolog.Logger
}

// NewWorker creates a dispatch worker.
func NewWorker(id int, pool *Pool, log zerolog.Logger) *Worker {
	return &Worker{
		id:   id,
		pool: pool,
		log:  log.With().Int("worker_id", id).Str("component", "dispatch-worker").Logger(),
	}
}

// Start processes organizations until ctx is done or the pool stops.
func (w *Worker) Start(ctx context.Context) {
	w.log.Debug().Msg("worker started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.pool.stopChan:
			return
		case orgID := <-w.pool.tasks:
			w.process(ctx, orgID)
		}
	}
}

func (w *Worker) process(ctx context.Context, orgID string) {
	defer w.pool.clearPending(orgID)

	roundCtx, cancel := context.WithTimeout(ctx, w.pool.cfg.RoundTimeout)
	defer cancel()

	assigned, err := w.Round(roundCtx, orgID)
	switch {
	case err != nil:
		metrics.RecordDispatchRound("error")
		w.log.Warn().Err(err).Str("organization_id", orgID).Msg("dispatch round failed")
	case assigned > 0:
		metrics.RecordDispatchRound("assigned")
		w.log.Info().Str("organization_id", orgID).Int("assigned", assigned).Msg("dispatch round assigned conversations")
	default:
		metrics.RecordDispatchRound("idle")
	}
}

// Round offers one conversation to each online agent, least loaded first.
// Agents only receive conversations from unowned queues or queues of their
// own team. It returns how many were assigned.
func (w *Worker) Round(ctx context.Context, orgID string) (assigned int, err error) {
	ctx, span := observability.StartQueueSpan(ctx, "dispatch", orgID, "all")
	defer func() {
		observability.RecordError(span, err, "warning")
		span.End()
	}()

	snap, err := w.pool.snapshots.Snapshot(ctx, orgID)
	if err != nil {
		return 0, err
	}
	report := w.pool.monitor.Compute(snap, time.Now().UTC())
	if report.QueueDepth == 0 {
		return 0, nil
	}

	teams := make(map[string]string, len(snap.Agents))
	for _, a := range snap.Agents {
		if a.TeamID != nil {
			teams[a.ID] = *a.TeamID
		}
	}

	for _, load := range report.AvailableAgents() {
		if ctx.Err() != nil {
			return assigned, ctx.Err()
		}
		team := teams[load.AgentID]
		caller := tenant.Caller{
			OrganizationID: orgID,
			AgentID:        load.AgentID,
			TeamID:         team,
			Role:           tenant.RoleAgent,
		}
		attempt, err := w.pool.attender.AttendNext(ctx, caller, assignment.Options{Team: &team})
		if err != nil {
			return assigned, err
		}
		switch attempt.State {
		case assignment.StateClaimed:
			assigned++
			observability.AddStatusTransition(span, "waiting", "active")
			if attempt.Tries > 1 {
				observability.AddRetryEvent(span, attempt.Tries, string(assignment.ReasonTaken))
			}
			w.log.Debug().
				Str("organization_id", orgID).
				Str("agent_id", load.AgentID).
				Str("conversation_id", attempt.Conversation.ID).
				Int("tries", attempt.Tries).
				Msg("dispatched conversation")
		case assignment.StateUnavailable:
			// Other teams may still have work.
			continue
		}
	}
	return assigned, nil
}
