package notifier

import (
	"context"
	"sync"

	"github.com/deskline/queue-api/internal/domain/events"
	"github.com/deskline/queue-api/internal/infrastructure/metrics"
)

const defaultBuffer = 64

// MemoryHub is an in-process notifier. Publish never blocks: a subscriber
// whose buffer is full misses the event and relies on its poll fallback.
type MemoryHub struct {
	mu     sync.RWMutex
	subs   map[string]map[*memorySubscription]struct{}
	buffer int
	driver string
}

var _ events.Notifier = (*MemoryHub)(nil)

// NewMemoryHub creates a hub whose subscriptions buffer up to buffer events.
func NewMemoryHub(buffer int) *MemoryHub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &MemoryHub{
		subs:   make(map[string]map[*memorySubscription]struct{}),
		buffer: buffer,
		driver: DriverMemory,
	}
}

// Publish delivers event to the organization's current subscribers.
func (h *MemoryHub) Publish(_ context.Context, event events.ChangeEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[event.OrganizationID] {
		if !events.Matches(event, sub.tables) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			metrics.RecordEventDropped(h.driver)
		}
	}
	if h.driver == DriverMemory {
		metrics.RecordEventPublished(h.driver, "ok")
	}
	return nil
}

// Subscribe registers a subscription that ends when ctx is done or Close
// is called.
func (h *MemoryHub) Subscribe(ctx context.Context, orgID string, tables ...events.Table) (events.Subscription, error) {
	sub := &memorySubscription{
		hub:    h,
		orgID:  orgID,
		tables: tables,
		ch:     make(chan events.ChangeEvent, h.buffer),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	if h.subs[orgID] == nil {
		h.subs[orgID] = make(map[*memorySubscription]struct{})
	}
	h.subs[orgID][sub] = struct{}{}
	h.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			_ = sub.Close()
		case <-sub.done:
		}
	}()

	return sub, nil
}

// CloseAll ends every subscription. Subscribers see their channel close and
// resubscribe, which forces a refresh after a gap in delivery.
func (h *MemoryHub) CloseAll() {
	h.mu.Lock()
	all := h.subs
	h.subs = make(map[string]map[*memorySubscription]struct{})
	for _, set := range all {
		for sub := range set {
			sub.closeLocked()
		}
	}
	h.mu.Unlock()
}

// Subscribers returns the number of live subscriptions for orgID.
func (h *MemoryHub) Subscribers(orgID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[orgID])
}

type memorySubscription struct {
	hub    *MemoryHub
	orgID  string
	tables []events.Table
	ch     chan events.ChangeEvent
	done   chan struct{}
	once   sync.Once
}

func (s *memorySubscription) Events() <-chan events.ChangeEvent {
	return s.ch
}

func (s *memorySubscription) Close() error {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	if set, ok := s.hub.subs[s.orgID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(s.hub.subs, s.orgID)
		}
	}
	s.closeLocked()
	return nil
}

// closeLocked must run under the hub's write lock so no Publish is sending.
func (s *memorySubscription) closeLocked() {
	s.once.Do(func() {
		close(s.done)
		close(s.ch)
	})
}
