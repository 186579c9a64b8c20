// Package asset mirrors original NFT assets into the media bucket under
// nfts/asset, next to the generated thumbnails.
package asset

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/tendant/nft-enricher/internal/fetch"
	"github.com/tendant/nft-enricher/internal/media"
	"github.com/tendant/nft-enricher/internal/nft"
)

type Storage interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) string
	Exists(ctx context.Context, path string) (bool, error)
}

type Config struct {
	// GatewayURL is the IPFS gateway assets are downloaded from.
	GatewayURL  string
	MaxFileSize int64
}

type Uploader struct {
	cfg     Config
	http    *http.Client
	storage Storage
	logger  *slog.Logger
}

func NewUploader(cfg Config, httpClient *http.Client, storage Storage, logger *slog.Logger) *Uploader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{cfg: cfg, http: httpClient, storage: storage, logger: logger}
}

// IsUploaded reports whether the mirrored copy of m is published. Lookup
// errors count as not uploaded. Non IPFS assets are never mirrored and
// report true.
func (u *Uploader) IsUploaded(ctx context.Context, m nft.Media) bool {
	path, ok := media.AssetPath(m.OriginalURL)
	if !ok {
		return true
	}
	exists, err := u.storage.Exists(ctx, path)
	if err != nil {
		u.logger.Warn("asset existence check failed", "path", path, "err", err)
		return false
	}
	return exists
}

// Upload downloads the original asset of m and stores it with its file type.
// Failures are logged and never returned.
func (u *Uploader) Upload(ctx context.Context, identifier string, m nft.Media) {
	logger := u.logger.With("identifier", identifier, "original_url", m.OriginalURL)
	path, ok := media.AssetPath(m.OriginalURL)
	if !ok {
		logger.Debug("skip asset upload for non ipfs uri")
		return
	}

	data, err := fetch.Get(ctx, u.http, media.RewriteURI(m.OriginalURL, u.cfg.GatewayURL), u.cfg.MaxFileSize)
	if err != nil {
		logger.Error("download asset failed", "err", err)
		return
	}
	url := u.storage.Upload(ctx, path, data, m.FileType)
	logger.Info("asset uploaded", "url", url, "file_type", m.FileType, "size", humanize.Bytes(uint64(len(data))))
}
