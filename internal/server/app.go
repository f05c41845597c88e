// Package server builds the application's dependencies from configuration and
// runs the operations server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	gcsclient "cloud.google.com/go/storage"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/brightdata-go/internal/api"
	"github.com/JakeFAU/brightdata-go/internal/config"
	gcppublisher "github.com/JakeFAU/brightdata-go/internal/publisher/pubsub"
	"github.com/JakeFAU/brightdata-go/internal/sinks"
	"github.com/JakeFAU/brightdata-go/internal/storage"
	gcsstorage "github.com/JakeFAU/brightdata-go/internal/storage/gcs"
	localstorage "github.com/JakeFAU/brightdata-go/internal/storage/local"
	memorystorage "github.com/JakeFAU/brightdata-go/internal/storage/memory"
	pgstore "github.com/JakeFAU/brightdata-go/internal/storage/postgres"
	"github.com/JakeFAU/brightdata-go/internal/telemetry"
	"github.com/JakeFAU/brightdata-go/pkg/brightdata"
)

// App contains the application's dependencies.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	client    *brightdata.Client
	recorder  *sinks.Recorder
	ledger    storage.Ledger
	pgLedger  *pgstore.Ledger
	gcs       *gcsclient.Client
	publisher *gcppublisher.Publisher
	tracer    *sdktrace.TracerProvider
}

// Build creates the application's dependencies. Anything already opened is
// released when a later step fails.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger, version string) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{cfg: cfg, logger: logger}
	if err := app.build(ctx, version); err != nil {
		app.Close(context.Background())
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context, version string) error {
	if a.cfg.Tracing.Enabled {
		tp, err := telemetry.InitTracerProvider(ctx, a.cfg.Tracing.ServiceName, version)
		if err != nil {
			return fmt.Errorf("tracer init failed: %w", err)
		}
		a.tracer = tp
	}

	archive, err := a.setupArchive(ctx)
	if err != nil {
		return err
	}
	if err := a.setupLedger(ctx); err != nil {
		return err
	}
	if err := a.setupPublisher(ctx); err != nil {
		return err
	}

	recOpts := []sinks.Option{sinks.WithLedger(a.ledger)}
	if archive != nil {
		recOpts = append(recOpts, sinks.WithArchive(archive, a.cfg.Storage.Prefix))
	}
	if a.publisher != nil {
		recOpts = append(recOpts, sinks.WithPublisher(a.publisher))
	}
	a.recorder = sinks.New(a.logger.Named("sinks"), recOpts...)

	a.client, err = brightdata.New(ctx, brightdata.FromConfig(a.cfg), a.logger.Named("client"),
		brightdata.WithSinks(a.recorder))
	if err != nil {
		return fmt.Errorf("client init failed: %w", err)
	}
	a.logger.Debug("application built",
		zap.String("storage", a.cfg.Storage.Provider),
		zap.Bool("postgres", a.pgLedger != nil),
		zap.Bool("pubsub", a.publisher != nil),
		zap.Bool("tracing", a.tracer != nil),
	)
	return nil
}

func (a *App) setupArchive(ctx context.Context) (storage.Archive, error) {
	switch a.cfg.Storage.Provider {
	case config.StorageGCS:
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		a.gcs = client
		store, err := gcsstorage.New(client, gcsstorage.Config{Bucket: a.cfg.Storage.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs archive init failed: %w", err)
		}
		a.logger.Info("using GCS result archive", zap.String("bucket", a.cfg.Storage.GCSBucket))
		return store, nil
	case config.StorageLocal:
		store, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Storage.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local archive init failed: %w", err)
		}
		a.logger.Info("using local result archive", zap.String("path", a.cfg.Storage.BaseDir))
		return store, nil
	default:
		a.logger.Debug("result archive disabled")
		return nil, nil
	}
}

func (a *App) setupLedger(ctx context.Context) error {
	if a.cfg.DB.DSN == "" {
		a.logger.Debug("no database DSN, keeping the run ledger in memory")
		a.ledger = memorystorage.NewLedger()
		return nil
	}
	ledger, err := pgstore.New(ctx, pgstore.Config{DSN: a.cfg.DB.DSN, Table: a.cfg.DB.Table})
	if err != nil {
		return fmt.Errorf("run ledger init failed: %w", err)
	}
	a.pgLedger = ledger
	if err := ledger.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("run ledger schema: %w", err)
	}
	a.ledger = ledger
	a.logger.Info("postgres run ledger initialized", zap.String("table", a.cfg.DB.Table))
	return nil
}

func (a *App) setupPublisher(ctx context.Context) error {
	if a.cfg.PubSub.TopicName == "" {
		a.logger.Debug("no Pub/Sub topic configured, completion events disabled")
		return nil
	}
	pub, err := gcppublisher.Dial(ctx, a.cfg.PubSub.ProjectID, a.cfg.PubSub.TopicName)
	if err != nil {
		return fmt.Errorf("pubsub init failed: %w", err)
	}
	a.publisher = pub
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return nil
}

// Client returns the configured client.
func (a *App) Client() *brightdata.Client {
	return a.client
}

// Ledger returns the run ledger.
func (a *App) Ledger() storage.Ledger {
	return a.ledger
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Handler builds the operations HTTP handler.
func (a *App) Handler() http.Handler {
	srv := api.NewServer(a.client.Scrape(), a.client, a.ledger, api.Options{
		APIKey:         a.cfg.Server.APIKey,
		RequestTimeout: a.cfg.APITimeout() + 30*time.Second,
	}, a.logger.Named("api"))
	return srv.Handler()
}

// Run serves the operations API until ctx is canceled or a termination signal
// arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			errCh <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	default:
		return nil
	}
}

// Close releases every dependency. It tolerates a partially built App.
func (a *App) Close(ctx context.Context) {
	if a.client != nil {
		a.client.Close()
	}
	a.closeInfrastructure()
	a.closeObservability(ctx)
}

func (a *App) closeInfrastructure() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("pubsub close failed", zap.Error(err))
		}
	}
	if a.gcs != nil {
		if err := a.gcs.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.pgLedger != nil {
		a.pgLedger.Close()
	}
}

func (a *App) closeObservability(ctx context.Context) {
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
