// Package notifier implements the per-tenant change feed over several
// transports.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/deskline/queue-api/internal/config"
	"github.com/deskline/queue-api/internal/domain/events"
)

const (
	DriverMemory   = config.NotifierMemory
	DriverRedis    = config.NotifierRedis
	DriverPostgres = config.NotifierPostgres
	DriverAMQP     = "amqp"
)

// Fanout sends every event to a primary notifier and mirrors it to extra
// publishers. Only the primary's errors are returned; subscribers read from
// the primary.
type Fanout struct {
	primary events.Notifier
	mirrors []events.Publisher
	log     zerolog.Logger
}

var _ events.Notifier = (*Fanout)(nil)

func NewFanout(primary events.Notifier, log zerolog.Logger, mirrors ...events.Publisher) *Fanout {
	return &Fanout{
		primary: primary,
		mirrors: mirrors,
		log:     log.With().Str("component", "notifier-fanout").Logger(),
	}
}

func (f *Fanout) Publish(ctx context.Context, event events.ChangeEvent) error {
	err := f.primary.Publish(ctx, event)
	for _, m := range f.mirrors {
		if mirrorErr := m.Publish(ctx, event); mirrorErr != nil {
			f.log.Warn().Err(mirrorErr).Str("event_id", event.ID).Msg("mirror publish failed")
		}
	}
	return err
}

func (f *Fanout) Subscribe(ctx context.Context, orgID string, tables ...events.Table) (events.Subscription, error) {
	return f.primary.Subscribe(ctx, orgID, tables...)
}

// New builds the notifier selected by cfg. The returned closer releases
// every connection it opened.
func New(ctx context.Context, cfg *config.Config, db *gorm.DB, log zerolog.Logger) (events.Notifier, io.Closer, error) {
	var (
		primary events.Notifier
		closers closerList
	)

	switch cfg.NotifierDriver {
	case DriverMemory, "":
		primary = NewMemoryHub(0)
	case DriverRedis:
		n, err := NewRedisNotifier(ctx, cfg.RedisURL, cfg.RedisChannel, 0, log)
		if err != nil {
			return nil, nil, err
		}
		primary = n
		closers = append(closers, n)
	case DriverPostgres:
		n := NewPostgresNotifier(db, cfg.DatabaseURL, cfg.PostgresChannel, 0, log)
		if err := n.Start(ctx); err != nil {
			return nil, nil, err
		}
		primary = n
		closers = append(closers, n)
	default:
		return nil, nil, fmt.Errorf("unsupported notifier driver %q", cfg.NotifierDriver)
	}

	var mirrors []events.Publisher
	if cfg.AMQPURL != "" {
		p, err := NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
		if err != nil {
			_ = closers.Close()
			return nil, nil, err
		}
		mirrors = append(mirrors, p)
		closers = append(closers, p)
	}

	log.Info().Str("driver", cfg.NotifierDriver).Int("mirrors", len(mirrors)).Msg("change notifier ready")
	if len(mirrors) == 0 {
		return primary, closers, nil
	}
	return NewFanout(primary, log, mirrors...), closers, nil
}

type closerList []io.Closer

func (c closerList) Close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
