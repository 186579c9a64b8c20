// Package app wires the pipeline components from a Config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/tendant/nft-enricher/internal/asset"
	"github.com/tendant/nft-enricher/internal/bus"
	"github.com/tendant/nft-enricher/internal/cache"
	"github.com/tendant/nft-enricher/internal/config"
	"github.com/tendant/nft-enricher/internal/converters"
	"github.com/tendant/nft-enricher/internal/img"
	"github.com/tendant/nft-enricher/internal/indexer"
	"github.com/tendant/nft-enricher/internal/media"
	"github.com/tendant/nft-enricher/internal/metadata"
	"github.com/tendant/nft-enricher/internal/process"
	"github.com/tendant/nft-enricher/internal/storage"
	"github.com/tendant/nft-enricher/internal/store"
	"github.com/tendant/nft-enricher/internal/thumbnail"
)

type App struct {
	Store     *store.Store
	Cache     cache.Cache
	Bus       *bus.Client
	Indexer   *indexer.Client
	Processor *process.Processor
	Scheduler *process.Scheduler

	runner *converters.Runner
}

// Build opens every dependency. With withBus false no broker connection is
// made, cache refreshes are not broadcast and Scheduler is nil.
func Build(ctx context.Context, cfg config.Config, withBus bool, logger *slog.Logger) (*App, error) {
	a := &App{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	if dir := filepath.Dir(cfg.DatabaseDSN); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure database directory: %w", err)
		}
	}
	st, err := store.Open(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.Store = st
	logger.Info("opened store", "dsn", cfg.DatabaseDSN)

	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.Cache = rc
		logger.Info("using redis cache")
	} else {
		a.Cache = cache.NewMemory(10 * time.Minute)
		logger.Info("using in-process cache")
	}

	var notifier cache.Notifier = cache.NopNotifier{}
	if withBus {
		nc, err := bus.Connect(cfg.NATS.URL, bus.Subjects{
			Jobs:         cfg.NATS.JobSubject,
			DeadLetter:   cfg.NATS.DeadLetterSubject,
			Done:         cfg.NATS.DoneSubject,
			CacheRefresh: cfg.NATS.CacheSubject,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to NATS: %w", err)
		}
		a.Bus = nc
		if err := nc.EnsureStream(ctx, cfg.NATS.Stream, cfg.NATS.StreamMaxAge); err != nil {
			return nil, err
		}
		notifier = nc
		logger.Info("connected to NATS", "nats_url", cfg.NATS.URL, "stream", cfg.NATS.Stream)
	}

	if err := os.MkdirAll(cfg.ThumbDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure thumbnail directory: %w", err)
	}

	objects, err := storage.New(ctx, storage.Config{
		Bucket:          cfg.Storage.Bucket,
		Region:          cfg.Storage.Region,
		Endpoint:        cfg.Storage.Endpoint,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		UsePathStyle:    cfg.Storage.UsePathStyle,
		MediaURL:        cfg.Storage.MediaURL,
		ProbeURL:        cfg.Storage.MediaInternal,
		ProbeTimeout:    cfg.Storage.ProbeTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("build storage client: %w", err)
	}

	a.runner = converters.NewRunner(cfg.FFmpegWorkers)
	ffmpeg := converters.NewFFmpegConverter(a.runner)
	if err := ffmpeg.Available(); err != nil {
		logger.Warn("video and audio thumbnails disabled", "err", err)
	}

	httpClient := &http.Client{Timeout: cfg.DownloadTimeout}
	metadataResolver := metadata.NewResolver(st, a.Cache, notifier, logger)
	mediaResolver := media.NewResolver(media.Config{
		ExternalMediaURL: cfg.ExternalMediaURL,
		GatewayURL:       cfg.GatewayURL,
		MaxFileSize:      cfg.MaxFileSize,
	}, st, a.Cache, media.NewProber(httpClient, a.Cache, logger), notifier, logger)
	generator := thumbnail.NewGenerator(thumbnail.Config{
		TempDir:         cfg.ThumbDir,
		DownloadTimeout: cfg.DownloadTimeout,
		MaxFileSize:     cfg.MaxFileSize,
	}, httpClient, objects, img.NewExtractors(cfg.ThumbWidth, cfg.ThumbHeight, ffmpeg, ffmpeg), logger)

	assets := asset.NewUploader(asset.Config{
		GatewayURL:  cfg.GatewayURL,
		MaxFileSize: cfg.MaxFileSize,
	}, httpClient, objects, logger)

	a.Processor = process.NewProcessor(metadataResolver, mediaResolver, generator, logger).
		WithAssetUploader(assets)
	if a.Bus != nil {
		a.Scheduler = process.NewScheduler(a.Processor, a.Bus, logger)
	}
	a.Indexer = indexer.NewClient(cfg.IndexerURL, httpClient)

	ok = true
	return a, nil
}

func (a *App) Close() {
	if a.Bus != nil {
		a.Bus.Close()
	}
	if a.runner != nil {
		a.runner.Close()
	}
	if a.Cache != nil {
		_ = a.Cache.Close()
	}
	if a.Store != nil {
		_ = a.Store.Close()
	}
}
