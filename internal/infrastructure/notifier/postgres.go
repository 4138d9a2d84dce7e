package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/deskline/queue-api/internal/domain/events"
	"github.com/deskline/queue-api/internal/infrastructure/metrics"
)

const (
	listenerMinReconnect = 10 * time.Second
	listenerMaxReconnect = time.Minute
	listenerPingInterval = 90 * time.Second
)

// pgListener is the part of *pq.Listener the notifier drives.
type pgListener interface {
	Listen(channel string) error
	Ping() error
	Close() error
	NotificationChannel() <-chan *pq.Notification
}

func dialListener(dsn string, onEvent pq.EventCallbackType) pgListener {
	return pq.NewListener(dsn, listenerMinReconnect, listenerMaxReconnect, onEvent)
}

// PostgresNotifier publishes with pg_notify on one shared channel and fans
// notifications out to local subscribers through a MemoryHub.
type PostgresNotifier struct {
	db       *gorm.DB
	dsn      string
	channel  string
	hub      *MemoryHub
	log      zerolog.Logger
	listener pgListener
	dial     func(dsn string, onEvent pq.EventCallbackType) pgListener

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

var _ events.Notifier = (*PostgresNotifier)(nil)

// NewPostgresNotifier creates the notifier. Start must be called before
// subscribers receive anything.
func NewPostgresNotifier(db *gorm.DB, dsn, channel string, buffer int, log zerolog.Logger) *PostgresNotifier {
	hub := NewMemoryHub(buffer)
	hub.driver = DriverPostgres
	return &PostgresNotifier{
		db:      db,
		dsn:     dsn,
		channel: channel,
		hub:     hub,
		log:     log.With().Str("component", "postgres-notifier").Logger(),
		dial:    dialListener,
		done:    make(chan struct{}),
	}
}

// Start opens the LISTEN connection.
func (n *PostgresNotifier) Start(ctx context.Context) error {
	var startErr error
	n.startOnce.Do(func() {
		n.listener = n.dial(n.dsn, n.onListenerEvent)
		if err := n.listener.Listen(n.channel); err != nil {
			startErr = fmt.Errorf("listen %s: %w", n.channel, err)
			if closeErr := n.listener.Close(); closeErr != nil {
				n.log.Warn().Err(closeErr).Msg("close listener after failed start")
			}
			n.listener = nil
			return
		}
		n.wg.Add(1)
		go n.loop(ctx)
		n.log.Info().Str("channel", n.channel).Msg("listening for change events")
	})
	return startErr
}

func (n *PostgresNotifier) onListenerEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnectionAttemptFailed:
		n.log.Warn().Err(err).Msg("listener connection attempt failed")
	case pq.ListenerEventDisconnected:
		n.log.Warn().Err(err).Msg("listener disconnected")
	case pq.ListenerEventReconnected:
		n.log.Info().Msg("listener reconnected")
	}
}

func (n *PostgresNotifier) loop(ctx context.Context) {
	defer n.wg.Done()
	ping := time.NewTicker(listenerPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-n.done:
			return
		case <-ping.C:
			if err := n.listener.Ping(); err != nil {
				n.log.Warn().Err(err).Msg("listener ping failed")
			}
		case note, ok := <-n.listener.NotificationChannel():
			if !ok {
				n.hub.CloseAll()
				return
			}
			if note == nil {
				// Reconnected: anything sent meanwhile is gone.
				n.hub.CloseAll()
				continue
			}
			var event events.ChangeEvent
			if err := json.Unmarshal([]byte(note.Extra), &event); err != nil {
				n.log.Warn().Err(err).Msg("discarding malformed notification")
				continue
			}
			_ = n.hub.Publish(ctx, event)
		}
	}
}

// Publish sends event through pg_notify.
func (n *PostgresNotifier) Publish(ctx context.Context, event events.ChangeEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := n.db.WithContext(ctx).Exec("SELECT pg_notify(?, ?)", n.channel, string(body)).Error; err != nil {
		metrics.RecordEventPublished(DriverPostgres, "error")
		return fmt.Errorf("pg_notify: %w", err)
	}
	metrics.RecordEventPublished(DriverPostgres, "ok")
	return nil
}

// Subscribe registers a local subscription for orgID.
func (n *PostgresNotifier) Subscribe(ctx context.Context, orgID string, tables ...events.Table) (events.Subscription, error) {
	return n.hub.Subscribe(ctx, orgID, tables...)
}

// Close stops listening and ends every subscription.
func (n *PostgresNotifier) Close() error {
	var err error
	n.stopOnce.Do(func() {
		close(n.done)
		n.wg.Wait()
		if n.listener != nil {
			err = n.listener.Close()
		}
		n.hub.CloseAll()
	})
	return err
}
