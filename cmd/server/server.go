package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/deskline/queue-api/internal/config"
	"github.com/deskline/queue-api/internal/dispatcher"
	"github.com/deskline/queue-api/internal/domain/agent"
	"github.com/deskline/queue-api/internal/domain/intake"
	"github.com/deskline/queue-api/internal/domain/queue"
	"github.com/deskline/queue-api/internal/domain/sla"
	"github.com/deskline/queue-api/internal/infrastructure/auth"
	"github.com/deskline/queue-api/internal/infrastructure/database"
	"github.com/deskline/queue-api/internal/infrastructure/logger"
	"github.com/deskline/queue-api/internal/infrastructure/notifier"
	"github.com/deskline/queue-api/internal/infrastructure/observability"
	"github.com/deskline/queue-api/internal/infrastructure/repository/organizationrepo"
	"github.com/deskline/queue-api/internal/interfaces/httpserver"
	"github.com/deskline/queue-api/internal/interfaces/httpserver/handlers"
)

//go:generate swag init -g server.go -d ./,../../internal/interfaces/httpserver -o ../../docs/swagger --parseInternal

// @title Queue API
// @version 1.0
// @description Multi-tenant conversation queue: intake, assignment, queue views, SLA reporting and realtime dashboards.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

// Application holds the long running components.
type Application struct {
	httpServer *httpserver.HTTPServer
	alerter    *sla.Alerter
	pool       *dispatcher.Pool
	log        zerolog.Logger
}

// NewApplication creates a new application instance. pool may be nil.
func NewApplication(httpServer *httpserver.HTTPServer, alerter *sla.Alerter, pool *dispatcher.Pool, log zerolog.Logger) *Application {
	return &Application{
		httpServer: httpServer,
		alerter:    alerter,
		pool:       pool,
		log:        log,
	}
}

// Start runs the background loops and the HTTP server until ctx is done.
func (a *Application) Start(ctx context.Context) error {
	a.alerter.Start(ctx)
	if a.pool != nil {
		if err := a.pool.Start(ctx); err != nil {
			a.alerter.Stop()
			return err
		}
	}

	err := a.httpServer.Run(ctx)

	if a.pool != nil {
		a.pool.Stop()
	}
	a.alerter.Stop()
	return err
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown telemetry")
		}
	}()

	db, err := ProvideDatabase(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Error().Err(err).Msg("failed to close database")
		}
	}()

	changes, closer, err := notifier.New(ctx, cfg, db, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize change notifier")
	}
	defer closeQuietly(closer, log)

	authValidator, err := auth.NewValidator(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize auth validator")
	}

	// Repositories; every write is announced on the change notifier.
	organizations := organizationrepo.NewGormRepository(db)
	conversations := ProvideConversationRepository(db, changes, log)
	agents := ProvideAgentRepository(db, changes, log)
	messages := ProvideMessageRepository(db, changes, log)

	// Domain services
	monitor := ProvideMonitor(cfg)
	queueService := queue.NewService(conversations, organizations, agents)
	coordinator := ProvideCoordinator(conversations, queueService, cfg, log)
	intakeService := intake.NewService(conversations, messages, log)
	agentService := agent.NewService(agents, log)
	slaService := sla.NewService(queueService, monitor)
	streams := ProvideStreams(changes, queueService, monitor, cfg, log)

	alerter, err := ProvideAlerter(organizations, queueService, monitor, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize sla alerter")
	}
	pool := ProvideDispatcher(organizations, queueService, monitor, coordinator, cfg, log)

	handlerProvider := handlers.NewProvider(coordinator, intakeService, queueService, agentService, slaService, streams, log)
	httpServer := httpserver.New(cfg, log, handlerProvider, authValidator, ProvideReadiness(db))

	app := NewApplication(httpServer, alerter, pool, log)

	log.Info().
		Str("service", cfg.ServiceName).
		Int("port", cfg.HTTPPort).
		Str("environment", cfg.Environment).
		Str("notifier", cfg.NotifierDriver).
		Bool("auto_dispatch", cfg.AutoDispatchEnabled).
		Msg("starting application")

	if err := app.Start(ctx); err != nil {
		log.Error().Err(err).Msg("application stopped with error")
		return
	}

	log.Info().Msg("application exited cleanly")
}

func closeQuietly(c io.Closer, log zerolog.Logger) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close notifier")
	}
}

func loadEnvFiles() {
	paths := []string{".env", "../.env", "../../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
