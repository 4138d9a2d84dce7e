// Package realtime keeps a consumer's derived state fresh. Change events
// trigger re-reads and a fixed poll bounds staleness when events are lost.
package realtime

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"

	"github.com/deskline/queue-api/internal/domain/events"
	"github.com/deskline/queue-api/internal/domain/retry"
)

const (
	DefaultPollInterval = 30 * time.Second
	DefaultDedupeSize   = 1024

	defaultResubscribeDelay = time.Second
)

// Refresh triggers.
const (
	TriggerInitial     = "initial"
	TriggerEvent       = "event"
	TriggerPoll        = "poll"
	TriggerResubscribe = "resubscribe"
)

// RefreshFunc re-reads state from the store. Event payloads are never
// passed in; they are only a hint that something changed.
type RefreshFunc func(ctx context.Context) error

// HealthState describes how fresh the consumer's state is.
type HealthState string

const (
	HealthStarting HealthState = "starting"
	HealthLive     HealthState = "live"
	// HealthDegraded means the last refresh failed; the previous state is
	// still shown and the next trigger or poll tries again.
	HealthDegraded HealthState = "could_not_refresh"
)

// Health is a point-in-time status of a subscriber.
type Health struct {
	State               HealthState
	LastRefresh         time.Time
	LastError           string
	ConsecutiveFailures int
	Subscribed          bool
}

// Recorder receives refresh metrics.
type Recorder interface {
	RecordRefresh(trigger, status string)
}

// Options tunes a Subscriber. Zero values take defaults.
type Options struct {
	Tables           []events.Table
	PollInterval     time.Duration
	DedupeSize       int
	Policy           *retry.Policy
	ResubscribeDelay time.Duration
	Recorder         Recorder
	// OnHealth is called after every refresh attempt.
	OnHealth func(Health)
}

// Subscriber listens to one organization's change feed and calls a refresh
// function on every new event and on every poll tick.
type Subscriber struct {
	notifier events.Notifier
	orgID    string
	refresh  RefreshFunc
	opts     Options
	policy   retry.Policy
	seen     *lru.Cache
	log      zerolog.Logger

	trigger chan string

	mu     sync.RWMutex
	health Health

	cancel    context.CancelFunc
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewSubscriber creates a subscriber for orgID.
func NewSubscriber(notifier events.Notifier, orgID string, refresh RefreshFunc, opts Options, log zerolog.Logger) (*Subscriber, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.DedupeSize <= 0 {
		opts.DedupeSize = DefaultDedupeSize
	}
	if opts.ResubscribeDelay <= 0 {
		opts.ResubscribeDelay = defaultResubscribeDelay
	}
	if len(opts.Tables) == 0 {
		opts.Tables = events.AllTables()
	}
	policy := retry.RefreshPolicy()
	if opts.Policy != nil {
		policy = *opts.Policy
	}

	seen, err := lru.New(opts.DedupeSize)
	if err != nil {
		return nil, err
	}

	return &Subscriber{
		notifier: notifier,
		orgID:    orgID,
		refresh:  refresh,
		opts:     opts,
		policy:   policy,
		seen:     seen,
		log:      log.With().Str("component", "queue-subscriber").Str("organization_id", orgID).Logger(),
		trigger:  make(chan string, 1),
		health:   Health{State: HealthStarting},
		done:     make(chan struct{}),
	}, nil
}

// Start performs an initial refresh in the background and begins listening.
// Safe to call multiple times - only the first call starts the subscriber.
func (s *Subscriber) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)
		s.cancel = cancel
		s.wg.Add(2)
		go s.listen(runCtx)
		go s.run(runCtx)
		s.log.Debug().Dur("poll_interval", s.opts.PollInterval).Msg("subscriber started")
	})
}

// Stop cancels in-flight work, closes the subscription and waits for both
// loops to exit. No refresh runs after Stop returns.
func (s *Subscriber) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()
		s.log.Debug().Msg("subscriber stopped")
	})
}

// Done is closed once Stop has been called.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

// Health returns the current health.
func (s *Subscriber) Health() Health {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.health
}

// Trigger asks for a refresh. Requests made while one is pending coalesce.
func (s *Subscriber) Trigger(reason string) {
	select {
	case s.trigger <- reason:
	default:
	}
}

func (s *Subscriber) listen(ctx context.Context) {
	defer s.wg.Done()

	for {
		sub, err := s.notifier.Subscribe(ctx, s.orgID, s.opts.Tables...)
		if err != nil {
			s.log.Warn().Err(err).Msg("subscribe failed, relying on polling")
			if !s.sleep(ctx, s.opts.ResubscribeDelay) {
				return
			}
			continue
		}
		s.setSubscribed(true)

		if !s.consume(ctx, sub) {
			_ = sub.Close()
			s.setSubscribed(false)
			return
		}
		s.setSubscribed(false)

		// The channel closed: whatever was sent meanwhile is lost.
		s.Trigger(TriggerResubscribe)
		if !s.sleep(ctx, s.opts.ResubscribeDelay) {
			return
		}
	}
}

// consume forwards events until the subscription ends (true) or the
// subscriber is stopped (false).
func (s *Subscriber) consume(ctx context.Context, sub events.Subscription) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case <-s.done:
			return false
		case event, ok := <-sub.Events():
			if !ok {
				return true
			}
			if event.OrganizationID != s.orgID {
				s.log.Error().Str("event_org", event.OrganizationID).Msg("dropping event for another organization")
				continue
			}
			if event.ID != "" {
				if seen, _ := s.seen.ContainsOrAdd(event.ID, struct{}{}); seen {
					continue
				}
			}
			s.Trigger(TriggerEvent)
		}
	}
}

func (s *Subscriber) run(ctx context.Context) {
	defer s.wg.Done()

	s.doRefresh(ctx, TriggerInitial)

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case reason := <-s.trigger:
			s.doRefresh(ctx, reason)
		case <-ticker.C:
			s.doRefresh(ctx, TriggerPoll)
		}
	}
}

func (s *Subscriber) doRefresh(ctx context.Context, trigger string) {
	err := retry.Do(ctx, s.policy, func(ctx context.Context, _ int) error {
		return s.refresh(ctx)
	})
	if ctx.Err() != nil {
		return
	}

	s.mu.Lock()
	if err != nil {
		s.health.State = HealthDegraded
		s.health.LastError = err.Error()
		s.health.ConsecutiveFailures++
	} else {
		s.health.State = HealthLive
		s.health.LastError = ""
		s.health.ConsecutiveFailures = 0
		s.health.LastRefresh = time.Now().UTC()
	}
	health := s.health
	s.mu.Unlock()

	status := "ok"
	if err != nil {
		status = "error"
		s.log.Warn().Err(err).Str("trigger", trigger).Int("failures", health.ConsecutiveFailures).Msg("could not refresh")
	}
	if s.opts.Recorder != nil {
		s.opts.Recorder.RecordRefresh(trigger, status)
	}
	if s.opts.OnHealth != nil {
		s.opts.OnHealth(health)
	}
}

func (s *Subscriber) setSubscribed(v bool) {
	s.mu.Lock()
	s.health.Subscribed = v
	s.mu.Unlock()
}

func (s *Subscriber) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-s.done:
		return false
	case <-timer.C:
		return true
	}
}
