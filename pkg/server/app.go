package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"LedgerCast/internal/domain/repository"
	"LedgerCast/internal/handler/api"
	"LedgerCast/internal/handler/ws"
	mid "LedgerCast/internal/middleware"
	"LedgerCast/internal/usecase"
	pkgcache "LedgerCast/pkg/cache"
	pkgch "LedgerCast/pkg/clickhouse"
	"LedgerCast/pkg/config"
	xhttp "LedgerCast/pkg/http"
	pkgkafka "LedgerCast/pkg/kafka"
	applogger "LedgerCast/pkg/logger"
	"LedgerCast/pkg/queue"

	"github.com/labstack/echo/v4"
)

// Components bundles everything the app lifecycle manages.
type Components struct {
	API          *api.AnalyticsHandler
	AlertsHub    *ws.AlertsHub
	Consumer     *pkgkafka.Consumer
	Ingest       *usecase.LedgerIngestHandler
	Pipeline     *mid.IngestPipeline
	RetrainQueue *queue.RedisQueue
	Scheduler    *usecase.RetrainScheduler
	Alerts       repository.AlertPublisher
	ClickHouse   *pkgch.Client
	Redis        *pkgcache.RedisCache
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	c          Components
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, logger *applogger.Logger, c Components) *App {
	return &App{cfg: cfg, logger: logger, c: c}
}

type routes struct {
	api *api.AnalyticsHandler
	hub *ws.AlertsHub
}

func (r routes) RegisterRoutes(e *echo.Echo) {
	if r.api != nil {
		r.api.RegisterRoutes(e)
	}
	if r.hub != nil {
		r.hub.RegisterRoutes(e)
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(routes{api: a.c.API, hub: a.c.AlertsHub},
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Ledger ingest: pipeline first so consumed rows have a sink.
	if a.c.Pipeline != nil {
		a.c.Pipeline.Start(ctx)
		a.logger.Info("ingest pipeline started")
	}
	if a.c.Consumer != nil && a.c.Ingest != nil {
		a.c.Consumer.RegisterHandler(a.c.Ingest)
		go func() {
			if err := a.c.Consumer.Start(); err != nil {
				a.logger.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.logger.Info("kafka consumer started", applogger.String("topic", a.c.Ingest.Topic()))
	}

	// Retrain queue and the periodic sweep feeding it.
	if a.c.RetrainQueue != nil {
		if err := a.c.RetrainQueue.Start(); err != nil {
			a.logger.Error("retrain queue start error", applogger.Error(err))
			return err
		}
	}
	if a.c.Scheduler != nil {
		go a.c.Scheduler.Start(ctx)
		a.logger.Info("retrain scheduler started")
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}
	a.logger.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown stops everything in reverse start order: intake first, then
// workers, then shared clients.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.c.Consumer != nil {
		if err := a.c.Consumer.Stop(shutdownCtx); err != nil {
			a.logger.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.c.Pipeline != nil {
		a.c.Pipeline.Stop()
	}
	if a.c.Scheduler != nil {
		a.c.Scheduler.Stop()
	}
	if a.c.RetrainQueue != nil {
		if err := a.c.RetrainQueue.Stop(shutdownCtx); err != nil {
			a.logger.Warn("retrain queue stop error", applogger.Error(err))
		}
	}

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	if a.c.Alerts != nil {
		if err := a.c.Alerts.Close(); err != nil {
			a.logger.Warn("alert publisher close error", applogger.Error(err))
		}
	}
	if a.c.ClickHouse != nil {
		if err := a.c.ClickHouse.Close(); err != nil {
			a.logger.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	a.logger.RemoveCollector()
	if a.c.Redis != nil {
		if err := a.c.Redis.Close(); err != nil {
			a.logger.Warn("redis close error", applogger.Error(err))
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}
