//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/deskline/queue-api/internal/config"
	"github.com/deskline/queue-api/internal/dispatcher"
	"github.com/deskline/queue-api/internal/domain/agent"
	"github.com/deskline/queue-api/internal/domain/assignment"
	"github.com/deskline/queue-api/internal/domain/conversation"
	"github.com/deskline/queue-api/internal/domain/events"
	"github.com/deskline/queue-api/internal/domain/intake"
	"github.com/deskline/queue-api/internal/domain/queue"
	"github.com/deskline/queue-api/internal/domain/realtime"
	"github.com/deskline/queue-api/internal/domain/sla"
	"github.com/deskline/queue-api/internal/infrastructure/auth"
	"github.com/deskline/queue-api/internal/infrastructure/database"
	"github.com/deskline/queue-api/internal/infrastructure/notifier"
	"github.com/deskline/queue-api/internal/infrastructure/repository/organizationrepo"
	"github.com/deskline/queue-api/internal/interfaces/httpserver"
	"github.com/deskline/queue-api/internal/interfaces/httpserver/handlers"
)

// ProviderSet is the wire provider set for the application.
var ProviderSet = wire.NewSet(
	// Infrastructure providers
	ProvideManagedDatabase,
	ProvideManagedNotifier,
	wire.Bind(new(events.Publisher), new(events.Notifier)),
	organizationrepo.NewGormRepository,
	wire.Bind(new(queue.Repository), new(*organizationrepo.GormRepository)),
	wire.Bind(new(sla.OrganizationLister), new(*organizationrepo.GormRepository)),
	wire.Bind(new(dispatcher.OrganizationLister), new(*organizationrepo.GormRepository)),
	ProvideConversationRepository,
	wire.Bind(new(queue.OpenLister), new(conversation.Repository)),
	ProvideAgentRepository,
	ProvideMessageRepository,
	auth.NewValidator,
	ProvideReadiness,

	// Domain providers
	ProvideMonitor,
	queue.NewService,
	wire.Bind(new(assignment.Viewer), new(*queue.Service)),
	wire.Bind(new(sla.SnapshotReader), new(*queue.Service)),
	wire.Bind(new(dispatcher.SnapshotReader), new(*queue.Service)),
	wire.Bind(new(realtime.SnapshotReader), new(*queue.Service)),
	ProvideCoordinator,
	wire.Bind(new(dispatcher.Attender), new(*assignment.Coordinator)),
	intake.NewService,
	agent.NewService,
	sla.NewService,
	ProvideStreams,
	ProvideAlerter,
	ProvideDispatcher,

	// Interface providers
	handlers.HandlerProvider,
	httpserver.New,

	// Application
	NewApplication,
)

// ProvideManagedDatabase opens the database and closes it on cleanup.
func ProvideManagedDatabase(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*gorm.DB, func(), error) {
	db, err := ProvideDatabase(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return db, func() {
		if err := database.Close(db); err != nil {
			log.Error().Err(err).Msg("failed to close database")
		}
	}, nil
}

// ProvideManagedNotifier starts the configured change notifier.
func ProvideManagedNotifier(ctx context.Context, cfg *config.Config, db *gorm.DB, log zerolog.Logger) (events.Notifier, func(), error) {
	changes, closer, err := notifier.New(ctx, cfg, db, log)
	if err != nil {
		return nil, nil, err
	}
	return changes, func() { closeQuietly(closer, log) }, nil
}

// CreateApplication creates the application with all dependencies wired.
func CreateApplication(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Application, func(), error) {
	wire.Build(ProviderSet)
	return nil, nil, nil
}
