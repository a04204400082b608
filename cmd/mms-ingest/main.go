// The mms-ingest service subscribes to sensor notifications over MQTT, runs
// them through the ingestion pipeline, and exposes the live stream, recording
// controls, CSV export, and metrics over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/sandrayoe/mms-version2/ingest"
	"github.com/sandrayoe/mms-version2/internal/wallclock"
	"github.com/sandrayoe/mms-version2/source"
	"github.com/sandrayoe/mms-version2/stream"
)

const (
	defaultHTTPAddr = ":8080"
	shutdownTimeout = 5 * time.Second
)

type Application struct {
	pipeline    *ingest.Pipeline
	source      *source.NotificationSource
	hub         *stream.Hub
	server      *http.Server
	unsubscribe func()
	hubDone     chan struct{}
	log         *slog.Logger
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevel(),
	}))

	app, err := NewApplication(log)
	if err != nil {
		log.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	if err := app.Start(ctx); err != nil {
		log.Error("failed to start application", "error", err)
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("shutting down...")
	cancel()
	app.Close()
}

func logLevel() slog.Level {
	if os.Getenv("MMS_DEBUG") == "true" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func httpAddr() string {
	if addr := os.Getenv("MMS_HTTP_ADDR"); addr != "" {
		return addr
	}
	return defaultHTTPAddr
}

func NewApplication(log *slog.Logger) (*Application, error) {
	cfg, err := ingest.ConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline configuration: %w", err)
	}

	pipeline := ingest.NewPipeline(
		ingest.WithConfig(cfg),
		ingest.WithLogger(log),
	)

	src, err := source.NewFromEnv(pipeline, source.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("failed to create notification source: %w", err)
	}

	hub := stream.NewHub(stream.WithLogger(log))

	api := &apiHandler{
		pipeline: pipeline,
		hub:      hub,
		started:  wallclock.Instance.Now(),
		log:      log,
	}
	server := &http.Server{
		Addr:              httpAddr(),
		Handler:           newMux(api),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Application{
		pipeline: pipeline,
		source:   src,
		hub:      hub,
		server:   server,
		log:      log,
	}, nil
}

func (a *Application) Start(ctx context.Context) error {
	a.log.Info("starting pipeline...")
	if err := a.pipeline.Start(ctx); err != nil {
		return fmt.Errorf("failed to start pipeline: %w", err)
	}

	batches, unsubscribe := a.pipeline.Subscribe()
	a.unsubscribe = unsubscribe
	a.hubDone = make(chan struct{})
	go func() {
		defer close(a.hubDone)
		a.hub.Run(ctx, batches)
	}()

	a.log.Info("starting notification source...")
	if err := a.source.Start(ctx); err != nil {
		return fmt.Errorf("failed to start notification source: %w", err)
	}

	go func() {
		a.log.Info("control surface listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server failed", "error", err)
		}
	}()

	a.log.Info("ingest service startup complete")
	return nil
}

func (a *Application) Close() {
	a.source.Stop()
	a.pipeline.Stop()
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	if a.hubDone != nil {
		<-a.hubDone
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(ctx); err != nil {
		a.log.Error("http shutdown failed", "error", err)
	}
}
