package sla

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"

	"github.com/deskline/queue-api/internal/domain/tenant"
)

const alertedCacheSize = 4096

// Alert announces a conversation that crossed the SLA threshold.
type Alert struct {
	OrganizationID string        `json:"organization_id"`
	ConversationID string        `json:"conversation_id"`
	AgentID        string        `json:"agent_id,omitempty"`
	Priority       int           `json:"priority"`
	Age            time.Duration `json:"age_ns"`
	Threshold      time.Duration `json:"threshold_ns"`
	DetectedAt     time.Time     `json:"detected_at"`
}

// Sender delivers alerts to an external system.
type Sender interface {
	Send(ctx context.Context, alert Alert) error
}

// Gauges receives the headline numbers of every swept report.
type Gauges interface {
	SetQueueStats(orgID string, depth int, longestWaitSec float64, nearBreach int)
	RecordSLAAlert(status string)
}

// OrganizationLister walks tenants for background sweeps.
type OrganizationLister interface {
	ListOrganizations(ctx context.Context) ([]*tenant.Organization, error)
}

// Alerter periodically computes every organization's report, exports it
// and sends one alert per breached conversation.
type Alerter struct {
	orgs      OrganizationLister
	snapshots SnapshotReader
	monitor   *Monitor
	sender    Sender
	gauges    Gauges
	interval  time.Duration
	alerted   *lru.Cache
	log       zerolog.Logger
	now       func() time.Time

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewAlerter builds an alerter. sender may be nil, in which case only the
// gauges are updated.
func NewAlerter(orgs OrganizationLister, snapshots SnapshotReader, monitor *Monitor, sender Sender, gauges Gauges, interval time.Duration, log zerolog.Logger) (*Alerter, error) {
	cache, err := lru.New(alertedCacheSize)
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Alerter{
		orgs:      orgs,
		snapshots: snapshots,
		monitor:   monitor,
		sender:    sender,
		gauges:    gauges,
		interval:  interval,
		alerted:   cache,
		log:       log.With().Str("component", "sla-alerter").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
		done:      make(chan struct{}),
	}, nil
}

// Start runs sweeps until ctx is done or Stop is called.
func (a *Alerter) Start(ctx context.Context) {
	a.startOnce.Do(func() {
		a.wg.Add(1)
		go a.run(ctx)
		a.log.Info().Dur("interval", a.interval).Dur("threshold", a.monitor.Threshold()).Msg("sla alerter started")
	})
}

// Stop ends the sweep loop and waits for it.
func (a *Alerter) Stop() {
	a.stopOnce.Do(func() {
		close(a.done)
		a.wg.Wait()
		a.log.Info().Msg("sla alerter stopped")
	})
}

func (a *Alerter) run(ctx context.Context) {
	defer a.wg.Done()
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		if err := a.Sweep(ctx); err != nil && ctx.Err() == nil {
			a.log.Warn().Err(err).Msg("sla sweep failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-a.done:
			return
		case <-ticker.C:
		}
	}
}

// Sweep evaluates every organization once. A failing organization is
// logged and skipped.
func (a *Alerter) Sweep(ctx context.Context) error {
	orgs, err := a.orgs.ListOrganizations(ctx)
	if err != nil {
		return err
	}
	for _, org := range orgs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := a.sweepOrganization(ctx, org.ID); err != nil {
			a.log.Warn().Err(err).Str("organization_id", org.ID).Msg("sla check failed")
		}
	}
	return nil
}

func (a *Alerter) sweepOrganization(ctx context.Context, orgID string) error {
	snap, err := a.snapshots.Snapshot(ctx, orgID)
	if err != nil {
		return err
	}
	now := a.now()
	report := a.monitor.Compute(snap, now)
	if a.gauges != nil {
		a.gauges.SetQueueStats(orgID, report.QueueDepth, report.LongestWait.Seconds(), report.NearBreach)
	}
	if a.sender == nil {
		return nil
	}

	for _, b := range report.Breaches {
		if a.alerted.Contains(b.ConversationID) {
			continue
		}
		alert := Alert{
			OrganizationID: orgID,
			ConversationID: b.ConversationID,
			AgentID:        b.AgentID,
			Priority:       b.Priority,
			Age:            b.Age,
			Threshold:      report.Threshold,
			DetectedAt:     now,
		}
		if err := a.sender.Send(ctx, alert); err != nil {
			a.recordAlert("error")
			a.log.Warn().Err(err).Str("conversation_id", b.ConversationID).Msg("sla alert not delivered")
			continue
		}
		a.alerted.Add(b.ConversationID, struct{}{})
		a.recordAlert("sent")
	}
	return nil
}

func (a *Alerter) recordAlert(status string) {
	if a.gauges != nil {
		a.gauges.RecordSLAAlert(status)
	}
}
