package app

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/coursemarket-backend/internal/data/db"
	"github.com/yungbote/coursemarket-backend/internal/data/repos"
	httpserver "github.com/yungbote/coursemarket-backend/internal/http"
	"github.com/yungbote/coursemarket-backend/internal/observability"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

type App struct {
	Log        *logger.Logger
	DB         *gorm.DB
	Cfg        Config
	Metrics    *observability.Metrics
	Repos      repos.Set
	Aggregates Aggregates
	Services   Services
	Server     *httpserver.Server

	dbSvc        *db.Service
	clients      Clients
	otelShutdown func(context.Context) error
}

// NewLogger builds the process logger from LOG_MODE.
func NewLogger() (*logger.Logger, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return log, nil
}

// OpenDB connects using cfg.DB and, when migrate is set, brings the schema up to date.
func OpenDB(log *logger.Logger, cfg Config, migrate bool) (*db.Service, error) {
	svc, err := db.NewService(cfg.DB, log)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	if migrate {
		if err := db.Migrate(svc.DB()); err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return svc, nil
}

func New(ctx context.Context, log *logger.Logger, cfg Config) (*App, error) {
	metrics := observability.Init(log)
	otelShutdown := observability.InitOTel(ctx, log, cfg.Otel)

	dbSvc, err := OpenDB(log, cfg, true)
	if err != nil {
		_ = otelShutdown(ctx)
		return nil, err
	}
	theDB := dbSvc.DB()

	clients, err := wireClients(log, cfg)
	if err != nil {
		_ = dbSvc.Close()
		_ = otelShutdown(ctx)
		return nil, err
	}

	reposet := wireRepos(theDB, log)
	aggs := wireAggregates(theDB, log, cfg, metrics, reposet)
	serviceset, err := wireServices(theDB, log, cfg, reposet, aggs, clients, metrics)
	if err != nil {
		clients.Close()
		_ = dbSvc.Close()
		_ = otelShutdown(ctx)
		return nil, err
	}

	handlerset := wireHandlers(theDB, log, serviceset)
	middleware := wireMiddleware(log, serviceset)
	server := wireServer(log, cfg, metrics, handlerset, middleware)

	return &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Metrics:      metrics,
		Repos:        reposet,
		Aggregates:   aggs,
		Services:     serviceset,
		Server:       server,
		dbSvc:        dbSvc,
		clients:      clients,
		otelShutdown: otelShutdown,
	}, nil
}

// Run serves HTTP and runs the scheduler until ctx ends or either fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.Server.Run(gctx, ":"+a.Cfg.Port)
	})
	g.Go(func() error {
		return a.Services.Scheduler.Start(gctx)
	})
	if a.Metrics != nil {
		a.Metrics.StartServer(gctx, a.Log, a.Cfg.MetricsAddr)
		a.Metrics.StartDBCollector(gctx, a.Log, a.DB)
	}

	return g.Wait()
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.clients.Close()
	if a.dbSvc != nil {
		if err := a.dbSvc.Close(); err != nil {
			a.Log.Warn("close database", "error", err)
		}
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(context.Background()); err != nil {
			a.Log.Warn("otel shutdown", "error", err)
		}
	}
	a.Log.Sync()
}
