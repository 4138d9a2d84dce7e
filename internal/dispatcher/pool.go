// Package dispatcher assigns waiting conversations to online agents
// without anyone pressing "attend next". It is an ordinary caller of the
// assignment coordinator and gets no special treatment from the store.
package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/deskline/queue-api/internal/domain/assignment"
	"github.com/deskline/queue-api/internal/domain/queue"
	"github.com/deskline/queue-api/internal/domain/sla"
	"github.com/deskline/queue-api/internal/domain/tenant"
)

// Attender claims the head of an agent's queue.
type Attender interface {
	AttendNext(ctx context.Context, caller tenant.Caller, opts assignment.Options) (*assignment.Attempt, error)
}

// SnapshotReader reads a point-in-time view of an organization.
type SnapshotReader interface {
	Snapshot(ctx context.Context, orgID string) (*queue.Snapshot, error)
}

// OrganizationLister walks tenants.
type OrganizationLister interface {
	ListOrganizations(ctx context.Context) ([]*tenant.Organization, error)
}

// Config contains dispatcher configuration.
type Config struct {
	WorkerCount  int
	Interval     time.Duration
	RoundTimeout time.Duration
}

// Pool feeds organizations to a fixed set of workers. An organization is
// never queued twice at once.
type Pool struct {
	workers   []*Worker
	orgs      OrganizationLister
	snapshots SnapshotReader
	monitor   *sla.Monitor
	attender  Attender
	cfg       Config
	log       zerolog.Logger

	tasks    chan string
	mu       sync.Mutex
	pending  map[string]struct{}
	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewPool creates a new dispatch pool.
func NewPool(orgs OrganizationLister, snapshots SnapshotReader, monitor *sla.Monitor, attender Attender, cfg Config, log zerolog.Logger) *Pool {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.RoundTimeout <= 0 {
		cfg.RoundTimeout = 20 * time.Second
	}
	return &Pool{
		orgs:      orgs,
		snapshots: snapshots,
		monitor:   monitor,
		attender:  attender,
		cfg:       cfg,
		log:       log.With().Str("component", "dispatch-pool").Logger(),
		tasks:     make(chan string, cfg.WorkerCount*4),
		pending:   make(map[string]struct{}),
		stopChan:  make(chan struct{}),
	}
}

// Start launches the feeder and the workers.
func (p *Pool) Start(ctx context.Context) error {
	p.log.Info().Int("worker_count", p.cfg.WorkerCount).Dur("interval", p.cfg.Interval).Msg("starting dispatch pool")

	p.workers = make([]*Worker, p.cfg.WorkerCount)
	for i := 0; i < p.cfg.WorkerCount; i++ {
		worker := NewWorker(i+1, p, p.log)
		p.workers[i] = worker

		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Start(ctx)
		}(worker)
	}

	p.wg.Add(1)
	go p.feed(ctx)

	return nil
}

// Stop gracefully shuts down the feeder and all workers.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.log.Info().Msg("stopping dispatch pool")
		close(p.stopChan)

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			p.log.Info().Msg("all dispatch workers stopped gracefully")
		case <-time.After(30 * time.Second):
			p.log.Warn().Msg("dispatch pool shutdown timed out")
		}
	})
}

func (p *Pool) feed(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopChan:
			return
		case <-ticker.C:
			p.enqueueAll(ctx)
		}
	}
}

func (p *Pool) enqueueAll(ctx context.Context) {
	orgs, err := p.orgs.ListOrganizations(ctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("failed to list organizations")
		return
	}
	for _, org := range orgs {
		if !p.markPending(org.ID) {
			continue
		}
		select {
		case p.tasks <- org.ID:
		case <-ctx.Done():
			p.clearPending(org.ID)
			return
		case <-p.stopChan:
			p.clearPending(org.ID)
			return
		}
	}
}

func (p *Pool) markPending(orgID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.pending[orgID]; ok {
		return false
	}
	p.pending[orgID] = struct{}{}
	return true
}

func (p *Pool) clearPending(orgID string) {
	p.mu.Lock()
	delete(p.pending, orgID)
	p.mu.Unlock()
}
