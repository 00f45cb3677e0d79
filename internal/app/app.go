// Package app wires the file lifecycle processes. It builds the shared
// dependency graph (logger, database, storage backend, task transport) and
// runs either the cleanup coordinator or a cleanup worker until a shutdown
// signal arrives.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/filekeeper/internal/cleanup"
	"github.com/dmitrijs2005/filekeeper/internal/config"
	"github.com/dmitrijs2005/filekeeper/internal/logging"
	"github.com/dmitrijs2005/filekeeper/internal/repositories/repomanager"
	"github.com/dmitrijs2005/filekeeper/internal/services"
	"github.com/dmitrijs2005/filekeeper/internal/storage"
	"github.com/dmitrijs2005/filekeeper/internal/tasks"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	repos   repomanager.RepositoryManager
	files   *services.FileService
	conn    *nats.Conn
	metrics *tasks.Metrics
}

func NewApp(ctx context.Context, cfg *config.Config, processName string) (*App, error) {
	logger := logging.NewDefault()

	repos, err := repomanager.NewPostgresRepositoryManager(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	return newAppWithRepos(ctx, cfg, processName, logger, repos)
}

// newAppWithRepos finishes wiring once the database is up. On any failure
// it closes repos, so the caller never leaks the DB handle.
func newAppWithRepos(ctx context.Context, cfg *config.Config, processName string, logger logging.Logger, repos repomanager.RepositoryManager) (*App, error) {
	closeRepos := func() {
		if err := repos.Close(); err != nil {
			logger.Error(ctx, "closing db after failed init", "error", err)
		}
	}

	store, err := newFileStorage(ctx, cfg, logger)
	if err != nil {
		closeRepos()
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	conn, err := tasks.Connect(cfg.NATSAddr, processName)
	if err != nil {
		closeRepos()
		return nil, fmt.Errorf("task transport init error: %w", err)
	}

	return &App{
		config:  cfg,
		logger:  logger,
		repos:   repos,
		files:   services.NewFileService(store, repos.Files(), logger),
		conn:    conn,
		metrics: tasks.NewMetrics(nil),
	}, nil
}

func newFileStorage(ctx context.Context, cfg *config.Config, logger logging.Logger) (storage.FileStorage, error) {
	switch cfg.StorageDriver {
	case config.DriverLocal:
		return storage.NewLocalStore(cfg.LocalStoragePath, cfg.PublicBaseURL, logger)
	case config.DriverS3:
		return storage.NewS3Store(ctx, storage.S3Options{
			Region:       cfg.S3Region,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			Bucket:       cfg.S3Bucket,
			BaseEndpoint: cfg.S3BaseEndpoint,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// Files exposes the file service for components embedding this app.
func (app *App) Files() *services.FileService {
	return app.files
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// serveMetrics exposes the Prometheus endpoint for the lifetime of ctx.
func (app *App) serveMetrics(ctx context.Context) {
	if app.config.MetricsAddr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: app.config.MetricsAddr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error(ctx, "metrics server failed", "addr", app.config.MetricsAddr, "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

// RunCoordinator sweeps once at startup, then on every cleanup interval.
func (app *App) RunCoordinator(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting cleanup coordinator",
		"interval", app.config.CleanupInterval, "chunk_size", app.config.CleanupChunkSize)

	app.initSignalHandler(cancelFunc)
	app.serveMetrics(ctx)

	dispatcher := tasks.NewNATSDispatcher(app.conn, app.metrics, app.logger)
	coordinator := cleanup.NewCoordinator(
		app.repos.Files(), dispatcher,
		app.config.CleanupChunkSize, app.config.CleanupMaxAge, app.logger)

	if _, err := coordinator.Run(ctx); err != nil {
		app.logger.Error(ctx, "initial cleanup sweep failed", "error", err)
	}

	err := coordinator.RunEvery(ctx, app.config.CleanupInterval)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// RunWorker consumes cleanup tasks until the process is stopped.
func (app *App) RunWorker(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting cleanup worker", "chunk_timeout", app.config.ChunkTimeout)

	app.initSignalHandler(cancelFunc)
	app.serveMetrics(ctx)

	worker := cleanup.NewWorker(
		app.repos.Files(), app.files,
		cleanup.NewUsagePolicy(app.repos.Users()), app.logger)

	consumer := tasks.NewConsumer(app.conn, app.config.ChunkTimeout, app.metrics, app.logger)
	sub, err := consumer.Subscribe(ctx, cleanup.TaskCleanupFiles, worker.HandleTask)
	if err != nil {
		return err
	}
	defer func() {
		if err := sub.Drain(); err != nil {
			app.logger.Error(ctx, "draining subscription failed", "error", err)
		}
	}()

	<-ctx.Done()
	app.logger.Info(ctx, "shutting down cleanup worker")
	return nil
}

// Close releases the shared resources. Safe to call after a failed run.
func (app *App) Close() error {
	if app.conn != nil {
		app.conn.Close()
	}
	if app.repos != nil {
		return app.repos.Close()
	}
	return nil
}
