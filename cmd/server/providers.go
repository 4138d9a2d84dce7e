package main

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/deskline/queue-api/internal/config"
	"github.com/deskline/queue-api/internal/dispatcher"
	"github.com/deskline/queue-api/internal/domain/agent"
	"github.com/deskline/queue-api/internal/domain/assignment"
	"github.com/deskline/queue-api/internal/domain/conversation"
	"github.com/deskline/queue-api/internal/domain/events"
	"github.com/deskline/queue-api/internal/domain/message"
	"github.com/deskline/queue-api/internal/domain/realtime"
	"github.com/deskline/queue-api/internal/domain/sla"
	"github.com/deskline/queue-api/internal/infrastructure/database"
	"github.com/deskline/queue-api/internal/infrastructure/metrics"
	"github.com/deskline/queue-api/internal/infrastructure/repository/agentrepo"
	"github.com/deskline/queue-api/internal/infrastructure/repository/conversationrepo"
	"github.com/deskline/queue-api/internal/infrastructure/repository/messagerepo"
	"github.com/deskline/queue-api/internal/infrastructure/repository/notifying"
	"github.com/deskline/queue-api/internal/infrastructure/webhook"
	"github.com/deskline/queue-api/internal/interfaces/httpserver"
)

// ProvideConversationRepository provides the conversation store, announcing
// every write.
func ProvideConversationRepository(db *gorm.DB, pub events.Publisher, log zerolog.Logger) conversation.Repository {
	return notifying.NewConversationRepository(conversationrepo.NewGormRepository(db), pub, log)
}

// ProvideAgentRepository provides the agent store, announcing every write.
func ProvideAgentRepository(db *gorm.DB, pub events.Publisher, log zerolog.Logger) agent.Repository {
	return notifying.NewAgentRepository(agentrepo.NewGormRepository(db), pub, log)
}

// ProvideMessageRepository provides the message store, announcing every write.
func ProvideMessageRepository(db *gorm.DB, pub events.Publisher, log zerolog.Logger) message.Repository {
	return notifying.NewMessageRepository(messagerepo.NewGormRepository(db), pub, log)
}

// ProvideMonitor provides the SLA classifier.
func ProvideMonitor(cfg *config.Config) *sla.Monitor {
	return sla.NewMonitor(cfg.SLAThreshold, cfg.SLAWarningRatio)
}

// ProvideCoordinator provides the assignment coordinator.
func ProvideCoordinator(conversations conversation.Repository, viewer assignment.Viewer, cfg *config.Config, log zerolog.Logger) *assignment.Coordinator {
	return assignment.NewCoordinator(conversations, viewer, cfg.AttendMaxAttempt, metrics.AssignmentRecorder{}, log)
}

// ProvideDatabase connects, instruments and migrates the database.
func ProvideDatabase(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*gorm.DB, error) {
	db, err := database.Connect(database.Config{
		Driver:          cfg.DBDriver,
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
	})
	if err != nil {
		return nil, err
	}
	if err := database.Instrument(db); err != nil {
		_ = database.Close(db)
		return nil, err
	}
	if err := database.Migrate(ctx, db, log); err != nil {
		_ = database.Close(db)
		return nil, err
	}
	return db, nil
}

// ProvideStreams builds the dashboard stream factory.
func ProvideStreams(changes events.Notifier, snapshots realtime.SnapshotReader, monitor *sla.Monitor, cfg *config.Config, log zerolog.Logger) *realtime.Streams {
	return realtime.NewStreams(changes, snapshots, monitor, realtime.Options{
		PollInterval: cfg.PollInterval,
		DedupeSize:   cfg.EventDedupeSize,
		Recorder:     metrics.RefreshRecorder{},
	}, log)
}

// ProvideAlerter builds the SLA alerter, posting to the webhook when one is
// configured.
func ProvideAlerter(orgs sla.OrganizationLister, snapshots sla.SnapshotReader, monitor *sla.Monitor, cfg *config.Config, log zerolog.Logger) (*sla.Alerter, error) {
	var sender sla.Sender
	if cfg.SLAAlertWebhookURL != "" {
		sender = webhook.NewAlertSender(cfg.SLAAlertWebhookURL, log)
	}
	return sla.NewAlerter(orgs, snapshots, monitor, sender, metrics.SLAGauges{}, cfg.SLASweepInterval, log)
}

// ProvideDispatcher returns the automatic dispatcher, or nil when disabled.
func ProvideDispatcher(orgs dispatcher.OrganizationLister, snapshots dispatcher.SnapshotReader, monitor *sla.Monitor, attender dispatcher.Attender, cfg *config.Config, log zerolog.Logger) *dispatcher.Pool {
	if !cfg.AutoDispatchEnabled {
		return nil
	}
	return dispatcher.NewPool(orgs, snapshots, monitor, attender, dispatcher.Config{
		WorkerCount:  cfg.DispatchWorkers,
		Interval:     cfg.DispatchInterval,
		RoundTimeout: cfg.DispatchRoundTimeout,
	}, log)
}

// ProvideReadiness pings the database.
func ProvideReadiness(db *gorm.DB) httpserver.ReadinessCheck {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}

