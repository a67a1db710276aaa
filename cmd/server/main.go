package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/dgallion1/docsplit/internal/api"
	"github.com/dgallion1/docsplit/internal/config"
	"github.com/dgallion1/docsplit/internal/contentgraph"
	"github.com/dgallion1/docsplit/internal/metrics"
	"github.com/dgallion1/docsplit/internal/objectstore"
	"github.com/dgallion1/docsplit/internal/pipeline"
	prom "github.com/prometheus/client_golang/prometheus"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// AWS credentials and region come from the usual environment chain.
	var awsOpts []func(*awsconfig.LoadOptions) error
	if cfg.AWSRegion != "" {
		awsOpts = append(awsOpts, awsconfig.WithRegion(cfg.AWSRegion))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsOpts...)
	if err != nil {
		log.Error("load aws config", "error", err)
		os.Exit(1)
	}
	newSource := func(_ context.Context, buckets []string) (objectstore.Source, error) {
		if len(buckets) == 0 {
			buckets = cfg.Buckets
		}
		return objectstore.NewS3SourceFromConfig(awsCfg, objectstore.S3Config{
			Buckets:       buckets,
			Prefix:        cfg.KeyPrefix,
			Endpoint:      cfg.S3Endpoint,
			PathStyle:     cfg.S3PathStyle,
			PresignExpiry: cfg.PresignExpiry,
		}, log), nil
	}

	// Initialize clients.
	graph := contentgraph.NewClient(cfg.ContentGraphURL, cfg.ContentGraphAPIKey,
		contentgraph.WithRetries(cfg.SinkRetries, time.Second))

	reg := prom.NewRegistry()
	rec := metrics.NewRecorder(reg)

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, newSource, graph, rec, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, graph, metrics.HTTPHandler(reg), log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown. The HTTP server drains first so no handler can
	// submit to the pipeline after its queue is closed.
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", "error", err)
		}

		orch.Stop()
		graph.Close()
	}()

	log.Info("starting docsplit", "port", cfg.Port, "buckets", cfg.Buckets, "prefix", cfg.KeyPrefix)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	<-stopped
	log.Info("stopped")
}
