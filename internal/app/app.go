// Package app builds the long-lived services and runs the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/docs-discovery-console/internal/api"
	"github.com/JakeFAU/docs-discovery-console/internal/backend"
	"github.com/JakeFAU/docs-discovery-console/internal/clock/system"
	"github.com/JakeFAU/docs-discovery-console/internal/config"
	"github.com/JakeFAU/docs-discovery-console/internal/id/uuid"
	"github.com/JakeFAU/docs-discovery-console/internal/logging"
	"github.com/JakeFAU/docs-discovery-console/internal/metrics"
	"github.com/JakeFAU/docs-discovery-console/internal/notify"
	"github.com/JakeFAU/docs-discovery-console/internal/notify/sinks"
	"github.com/JakeFAU/docs-discovery-console/internal/orchestrator"
	"github.com/JakeFAU/docs-discovery-console/internal/policy/ratelimit"
	"github.com/JakeFAU/docs-discovery-console/internal/session"
	"github.com/JakeFAU/docs-discovery-console/internal/storage"
	gcsstore "github.com/JakeFAU/docs-discovery-console/internal/storage/gcs"
	localstore "github.com/JakeFAU/docs-discovery-console/internal/storage/local"
	memorystore "github.com/JakeFAU/docs-discovery-console/internal/storage/memory"
	pgstore "github.com/JakeFAU/docs-discovery-console/internal/storage/postgres"
	redisstore "github.com/JakeFAU/docs-discovery-console/internal/storage/redis"
	"github.com/JakeFAU/docs-discovery-console/internal/telemetry"
)

// Version is reported to tracing. It is overridden at link time.
var Version = "dev"

// App contains the application's dependencies.
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	store      *session.Store
	client     *backend.Client
	controller *orchestrator.Controller
	hub        *notify.Hub
	recorder   *sinks.Recorder
	apiServer  *api.Server

	closers []func(context.Context) error
}

// Build creates the application's dependencies. The returned App must be
// closed.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(logging.Config{Development: cfg.Logging.Development, Level: cfg.Logging.Level})
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return BuildWithLogger(ctx, cfg, logger)
}

// BuildWithLogger is Build with a caller-supplied logger.
func BuildWithLogger(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *App, err error) {
	app := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = app.Close(context.WithoutCancel(ctx))
		}
	}()
	logger.Info("building application",
		zap.Int("port", cfg.Server.Port),
		zap.String("backend", cfg.Backend.BaseURL),
		zap.String("storage", cfg.Storage.Provider),
	)

	if err = app.setupTelemetry(ctx); err != nil {
		return nil, err
	}
	metrics.Init()

	documents, err := app.setupStorage(ctx)
	if err != nil {
		return nil, err
	}
	if err = app.setupNotifications(ctx); err != nil {
		return nil, err
	}

	bcfg := backend.Config{
		BaseURL:      cfg.Backend.BaseURL,
		DiscoverPath: cfg.Backend.DiscoverPath,
		CrawlPath:    cfg.Backend.CrawlPath,
		Timeout:      cfg.BackendTimeout(),
		UserAgent:    cfg.Backend.UserAgent,
		MaxBodyBytes: cfg.Backend.MaxBodyBytes,
	}
	if cfg.Backend.MaxRPS > 0 {
		bcfg.Limiter = ratelimit.New(ratelimit.Config{RPS: cfg.Backend.MaxRPS, Burst: cfg.Backend.Burst})
		logger.Info("backend calls rate limited", zap.Float64("rps", cfg.Backend.MaxRPS), zap.Int("burst", cfg.Backend.Burst))
	}
	app.client, err = backend.New(bcfg, nil, logger.Named("backend"))
	if err != nil {
		return nil, fmt.Errorf("backend client init failed: %w", err)
	}

	app.store = session.NewStore(system.New(), logger.Named("session"))
	app.closers = append(app.closers, func(context.Context) error {
		app.store.Close()
		return nil
	})

	app.controller, err = orchestrator.New(app.store, app.client, documents, app.hub, uuid.New(), orchestrator.Config{
		DocumentPrefix: cfg.Storage.Prefix,
		PersistTimeout: cfg.PersistTimeout(),
		Logger:         logger.Named("orchestrator"),
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrator init failed: %w", err)
	}

	app.apiServer = api.NewServer(app.controller, app.client, app.recorder, *cfg, logger.Named("api"))
	return app, nil
}

// Controller exposes the session orchestrator.
func (a *App) Controller() *orchestrator.Controller {
	return a.controller
}

// Recorder exposes the in-memory notification feed.
func (a *App) Recorder() *sinks.Recorder {
	return a.recorder
}

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Run serves HTTP until ctx is canceled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(a.cfg.Server.ReadTimeoutSeconds) * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		a.logger.Error("http server error", zap.Error(serveErr))
	}
	a.logger.Info("shutdown initiated")

	timeout := a.cfg.ShutdownTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	if serveErr != nil {
		return fmt.Errorf("serve http: %w", serveErr)
	}
	return nil
}

// Close releases every service in reverse build order.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("shutdown completed with errors", zap.Error(err))
		return err
	}
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) setupTelemetry(ctx context.Context) error {
	if !a.cfg.Telemetry.Enabled {
		return nil
	}
	tp, err := telemetry.InitTracerProvider(ctx, telemetry.Config{
		ServiceName: a.cfg.Telemetry.ServiceName,
		Version:     Version,
		SampleRatio: a.cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("tracer init failed: %w", err)
	}
	a.closers = append(a.closers, func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return fmt.Errorf("tracer shutdown: %w", err)
		}
		return nil
	})
	a.logger.Info("tracing enabled", zap.Float64("sample_ratio", a.cfg.Telemetry.SampleRatio))
	return nil
}

func (a *App) setupStorage(ctx context.Context) (storage.Store, error) {
	sc := a.cfg.Storage
	switch sc.Provider {
	case config.StorageLocal:
		st, err := localstore.New(localstore.Config{BaseDir: sc.Local.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local document store init failed: %w", err)
		}
		a.logger.Info("using local document storage", zap.String("path", sc.Local.BaseDir))
		return st, nil
	case config.StorageGCS:
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error {
			if err := client.Close(); err != nil {
				return fmt.Errorf("gcs client close: %w", err)
			}
			return nil
		})
		st, err := gcsstore.New(client, gcsstore.Config{Bucket: sc.GCS.Bucket})
		if err != nil {
			return nil, fmt.Errorf("gcs document store init failed: %w", err)
		}
		a.logger.Info("using GCS document storage", zap.String("bucket", sc.GCS.Bucket))
		return st, nil
	case config.StoragePostgres:
		st, err := pgstore.New(ctx, pgstore.Config{
			DSN:             sc.Postgres.DSN,
			Table:           sc.Postgres.Table,
			MaxConns:        sc.Postgres.MaxConns,
			MinConns:        sc.Postgres.MinConns,
			MaxConnLifetime: time.Duration(sc.Postgres.MaxConnLifetimeMinutes) * time.Minute,
		})
		if err != nil {
			return nil, fmt.Errorf("postgres document store init failed: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error {
			st.Close()
			return nil
		})
		a.logger.Info("using postgres document storage", zap.String("table", sc.Postgres.Table))
		return st, nil
	case config.StorageRedis:
		st, err := redisstore.New(ctx, redisstore.Config{
			Address:   sc.Redis.Address,
			Password:  sc.Redis.Password,
			DB:        sc.Redis.DB,
			KeyPrefix: sc.Redis.KeyPrefix,
			TTL:       time.Duration(sc.Redis.TTLSeconds) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("redis document store init failed: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error {
			if err := st.Close(); err != nil {
				return fmt.Errorf("redis close: %w", err)
			}
			return nil
		})
		a.logger.Info("using redis document storage", zap.String("address", sc.Redis.Address))
		return st, nil
	default:
		a.logger.Info("using in-memory document storage")
		return memorystore.New(), nil
	}
}

func (a *App) setupNotifications(ctx context.Context) error {
	nc := a.cfg.Notify
	a.recorder = sinks.NewRecorder(nc.RecentLimit)
	sinkList := []notify.Sink{a.recorder}
	if nc.LogSink {
		sinkList = append(sinkList, sinks.NewLogSink(a.logger.Named("notifications")))
	}
	if nc.PrometheusSink {
		ps, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
		if err != nil {
			return fmt.Errorf("prometheus sink init failed: %w", err)
		}
		sinkList = append(sinkList, ps)
	}
	if a.cfg.PubSub.Enabled {
		client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
		if err != nil {
			return fmt.Errorf("pubsub client init failed: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error {
			if err := client.Close(); err != nil {
				return fmt.Errorf("pubsub client close: %w", err)
			}
			return nil
		})
		sinkList = append(sinkList, sinks.NewPubSubSink(client.Topic(a.cfg.PubSub.TopicName)))
		a.logger.Info("publishing notifications to Pub/Sub",
			zap.String("project", a.cfg.PubSub.ProjectID),
			zap.String("topic", a.cfg.PubSub.TopicName),
		)
	}

	hubCfg := notify.Config{
		BufferSize:  nc.BufferSize,
		MaxBatch:    nc.MaxBatch,
		MaxWait:     a.cfg.NotifyMaxWait(),
		SinkTimeout: time.Duration(nc.SinkTimeoutSeconds) * time.Second,
		BaseContext: context.WithoutCancel(ctx),
		Logger:      a.logger.Named("notify_hub"),
	}
	a.hub = notify.NewHub(hubCfg, sinkList...)
	a.closers = append(a.closers, func(ctx context.Context) error {
		if err := a.hub.Close(ctx); err != nil {
			return fmt.Errorf("notification hub close: %w", err)
		}
		return nil
	})
	a.logger.Info("notification hub initialized",
		zap.Int("sinks", len(sinkList)),
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Int("max_batch", hubCfg.MaxBatch),
		zap.Duration("max_wait", hubCfg.MaxWait),
	)
	return nil
}
