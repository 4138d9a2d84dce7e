package realtime

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/deskline/queue-api/internal/domain/events"
	"github.com/deskline/queue-api/internal/domain/queue"
	"github.com/deskline/queue-api/internal/domain/sla"
	"github.com/deskline/queue-api/internal/domain/tenant"
)

// Streams builds started watchers for connected callers.
type Streams struct {
	notifier  events.Notifier
	snapshots SnapshotReader
	monitor   *sla.Monitor
	opts      Options
	log       zerolog.Logger
}

func NewStreams(notifier events.Notifier, snapshots SnapshotReader, monitor *sla.Monitor, opts Options, log zerolog.Logger) *Streams {
	return &Streams{
		notifier:  notifier,
		snapshots: snapshots,
		monitor:   monitor,
		opts:      opts,
		log:       log.With().Str("component", "queue-stream").Logger(),
	}
}

// Watch validates caller and returns a running watcher bound to ctx. The
// caller must Stop it.
func (s *Streams) Watch(ctx context.Context, caller tenant.Caller, filter queue.Filter) (*QueueWatcher, error) {
	if err := caller.Validate(ctx); err != nil {
		return nil, err
	}
	w, err := NewQueueWatcher(s.notifier, s.snapshots, s.monitor, caller, filter, s.opts, s.log)
	if err != nil {
		return nil, err
	}
	w.Start(ctx)
	return w, nil
}
