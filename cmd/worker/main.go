// cmd/worker/main.go
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tendant/nft-enricher/internal/app"
	"github.com/tendant/nft-enricher/internal/bus"
	"github.com/tendant/nft-enricher/internal/config"
	"github.com/tendant/nft-enricher/internal/consumer"
	"github.com/tendant/nft-enricher/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatal(slog.Default(), "load config", err)
	}

	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	logger.Info("worker starting",
		"nats_url", cfg.NATS.URL,
		"job_subject", cfg.NATS.JobSubject,
		"durable", cfg.NATS.Durable,
		"workers", cfg.Workers,
		"thumb_dir", cfg.ThumbDir,
		"thumb_width", cfg.ThumbWidth,
		"thumb_height", cfg.ThumbHeight,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, true, logger)
	if err != nil {
		fatal(logger, "build pipeline", err)
	}
	defer a.Close()

	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("serving metrics", "addr", cfg.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "err", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	c := consumer.New(consumer.Config{
		MaxRetries: cfg.NATS.MaxRetries,
		RetryDelay: cfg.NATS.RetryDelay,
	}, a.Indexer, a.Processor, a.Bus, logger)

	logger.Info("listening for jobs", "stream", cfg.NATS.Stream, "subject", cfg.NATS.JobSubject)
	err = a.Bus.Consume(ctx, bus.ConsumerConfig{
		Stream:      cfg.NATS.Stream,
		Durable:     cfg.NATS.Durable,
		Parallelism: cfg.Workers,
		AckWait:     cfg.NATS.AckWait,
		// Redelivery past MaxRetries is settled by the handler; the broker
		// limit only guards against a handler that never settles.
		MaxDeliver: cfg.NATS.MaxRetries + 1,
	}, logger, c.HandleMessage)
	if err != nil {
		fatal(logger, "consume jobs", err, "stream", cfg.NATS.Stream)
	}
	logger.Info("worker stopped")
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func fatal(logger *slog.Logger, msg string, err error, attrs ...any) {
	attrs = append(attrs, "err", err)
	logger.Error(msg, attrs...)
	os.Exit(1)
}
