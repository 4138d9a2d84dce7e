package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/deskline/queue-api/internal/domain/events"
	"github.com/deskline/queue-api/internal/domain/queue"
	"github.com/deskline/queue-api/internal/domain/sla"
	"github.com/deskline/queue-api/internal/domain/tenant"
)

// SnapshotReader reads a point-in-time view of an organization.
type SnapshotReader interface {
	Snapshot(ctx context.Context, orgID string) (*queue.Snapshot, error)
}

// Dashboard is what a connected agent sees: the queue in their scope, the
// organization's SLA report and how fresh both are.
type Dashboard struct {
	Version uint64
	View    queue.Result
	Report  sla.Report
	Health  Health
}

// QueueWatcher recomputes a caller's dashboard whenever its subscriber
// fires and hands the newest one to a single reader.
type QueueWatcher struct {
	caller    tenant.Caller
	filter    queue.Filter
	snapshots SnapshotReader
	monitor   *sla.Monitor
	sub       *Subscriber
	now       func() time.Time

	mu      sync.RWMutex
	latest  *Dashboard
	version uint64
	updates chan Dashboard
}

// NewQueueWatcher builds a watcher for caller. The caller is assumed to be
// validated.
func NewQueueWatcher(notifier events.Notifier, snapshots SnapshotReader, monitor *sla.Monitor, caller tenant.Caller, filter queue.Filter, opts Options, log zerolog.Logger) (*QueueWatcher, error) {
	w := &QueueWatcher{
		caller:    caller,
		filter:    filter,
		snapshots: snapshots,
		monitor:   monitor,
		now:       func() time.Time { return time.Now().UTC() },
		updates:   make(chan Dashboard, 1),
	}

	userHealth := opts.OnHealth
	opts.OnHealth = func(h Health) {
		w.onHealth(h)
		if userHealth != nil {
			userHealth(h)
		}
	}

	sub, err := NewSubscriber(notifier, caller.OrganizationID, w.refresh, opts,
		log.With().Str("agent_id", caller.AgentID).Str("role", string(caller.Role)).Logger())
	if err != nil {
		return nil, err
	}
	w.sub = sub
	return w, nil
}

// Start begins watching.
func (w *QueueWatcher) Start(ctx context.Context) {
	w.sub.Start(ctx)
}

// Stop ends watching; Updates is not closed.
func (w *QueueWatcher) Stop() {
	w.sub.Stop()
}

// Updates delivers dashboards. Only the newest undelivered one is kept.
func (w *QueueWatcher) Updates() <-chan Dashboard {
	return w.updates
}

// Latest returns the most recent dashboard, if any refresh succeeded.
func (w *QueueWatcher) Latest() (Dashboard, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.latest == nil {
		return Dashboard{}, false
	}
	return *w.latest, true
}

// Trigger forces a refresh.
func (w *QueueWatcher) Trigger() {
	w.sub.Trigger(TriggerEvent)
}

func (w *QueueWatcher) refresh(ctx context.Context) error {
	snap, err := w.snapshots.Snapshot(ctx, w.caller.OrganizationID)
	if err != nil {
		return err
	}
	view := queue.View(snap, tenant.ScopeFor(w.caller), w.filter)
	report := w.monitor.Compute(snap, w.now())

	w.mu.Lock()
	w.version++
	w.latest = &Dashboard{
		Version: w.version,
		View:    view,
		Report:  report,
		Health:  w.sub.Health(),
	}
	w.mu.Unlock()
	return nil
}

// onHealth stamps the refresh outcome onto the latest dashboard and pushes
// it. A failed refresh still pushes so the reader can show the state.
func (w *QueueWatcher) onHealth(h Health) {
	w.mu.Lock()
	if w.latest == nil {
		if h.State != HealthDegraded {
			w.mu.Unlock()
			return
		}
		w.latest = &Dashboard{}
	}
	w.latest.Health = h
	d := *w.latest
	w.mu.Unlock()

	w.push(d)
}

func (w *QueueWatcher) push(d Dashboard) {
	for {
		select {
		case w.updates <- d:
			return
		default:
		}
		select {
		case <-w.updates:
		default:
		}
	}
}
