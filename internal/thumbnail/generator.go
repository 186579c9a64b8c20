// Package thumbnail produces the thumbnail of one media asset: it downloads
// the source, picks an extractor by content type and uploads the PNG under a
// path derived from the NFT identifier and the asset URL.
package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"

	"github.com/tendant/nft-enricher/internal/fetch"
	"github.com/tendant/nft-enricher/internal/img"
	"github.com/tendant/nft-enricher/internal/metrics"
	"github.com/tendant/nft-enricher/internal/nft"
)

type Result string

const (
	ResultSuccess                  Result = "success"
	ResultNoURL                    Result = "noUrl"
	ResultNoMetadata               Result = "noMetadata"
	ResultUnrecognizedFileType     Result = "unrecognizedFileType"
	ResultCouldNotExtractThumbnail Result = "couldNotExtractThumbnail"
	ResultUnhandledException       Result = "unhandledException"
)

// Storage is where thumbnails are written and looked up.
type Storage interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) string
	Exists(ctx context.Context, path string) (bool, error)
}

type Config struct {
	// TempDir is the parent of the per-job scratch directories.
	TempDir         string
	DownloadTimeout time.Duration
	// MaxFileSize caps downloads; zero means unlimited.
	MaxFileSize int64
}

type Generator struct {
	http        *http.Client
	storage     Storage
	extractors  *img.Extractors
	tempDir     string
	maxFileSize int64
	logger      *slog.Logger
}

func NewGenerator(cfg Config, httpClient *http.Client, storage Storage, extractors *img.Extractors, logger *slog.Logger) *Generator {
	if httpClient == nil {
		timeout := cfg.DownloadTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		http:        httpClient,
		storage:     storage,
		extractors:  extractors,
		tempDir:     cfg.TempDir,
		maxFileSize: cfg.MaxFileSize,
		logger:      logger,
	}
}

// HasThumbnailGenerated reports whether the thumbnail for url is already
// published.
func (g *Generator) HasThumbnailGenerated(ctx context.Context, identifier, url string) (bool, error) {
	return g.storage.Exists(ctx, nft.ThumbnailPath(identifier, url))
}

// Generate creates and uploads the thumbnail of mediaURL. Problems with the
// content itself are reported through the Result; a non-nil error means the
// existence check or the download failed and the job should be retried.
func (g *Generator) Generate(ctx context.Context, n *nft.Nft, mediaURL, contentType string, force bool) (result Result, err error) {
	logger := g.logger.With("identifier", n.Identifier, "url", mediaURL)
	defer func() { metrics.ThumbnailResults.WithLabelValues(string(result)).Inc() }()

	if !strings.HasPrefix(mediaURL, "https://") {
		logger.Info("skip thumbnail for non https url")
		return ResultNoURL, nil
	}

	path := nft.ThumbnailPath(n.Identifier, mediaURL)
	if !force {
		exists, err := g.storage.Exists(ctx, path)
		if err != nil {
			logger.Error("thumbnail existence check failed", "path", path, "err", err)
			return ResultUnhandledException, err
		}
		if exists {
			logger.Debug("thumbnail already generated", "path", path)
			return ResultSuccess, nil
		}
	}

	data, err := fetch.Get(ctx, g.http, mediaURL, g.maxFileSize)
	if errors.Is(err, fetch.ErrTooLarge) {
		logger.Warn("media over the size limit", "max_size", humanize.Bytes(uint64(g.maxFileSize)))
		return ResultCouldNotExtractThumbnail, nil
	}
	if err != nil {
		logger.Error("download media failed", "err", err)
		return ResultUnhandledException, err
	}

	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mimetype.Detect(data).String()
	}
	extractor, kind, err := g.extractors.Get(contentType)
	if err != nil {
		logger.Warn("unrecognized file type", "content_type", contentType)
		return ResultUnrecognizedFileType, nil
	}

	arena, err := img.NewArena(g.tempDir, n.Identifier)
	if err != nil {
		return ResultUnhandledException, err
	}
	defer func() {
		if cerr := arena.Close(); cerr != nil {
			logger.Warn("failed to cleanup temp files", "dir", arena.Dir(), "err", cerr)
		}
	}()

	start := time.Now()
	thumb, err := extract(ctx, extractor, arena, data)
	if err == nil && len(thumb) == 0 {
		err = fmt.Errorf("%s extractor produced no output", extractor.Name())
	}
	if err != nil {
		logger.Error("could not extract thumbnail", "kind", kind.String(), "err", err)
		return ResultCouldNotExtractThumbnail, nil
	}

	url := g.storage.Upload(ctx, path, thumb, "image/png")
	logger.Info("thumbnail generated",
		"kind", kind.String(),
		"source_size", humanize.Bytes(uint64(len(data))),
		"thumbnail_size", humanize.Bytes(uint64(len(thumb))),
		"thumbnail_url", url,
		"processing_time_ms", time.Since(start).Milliseconds(),
	)
	return ResultSuccess, nil
}

// extract reports a panic inside the extractor as an error.
func extract(ctx context.Context, extractor img.Extractor, arena *img.Arena, data []byte) (thumb []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s extractor panicked: %v", extractor.Name(), r)
		}
	}()
	return extractor.Extract(ctx, arena, data)
}
