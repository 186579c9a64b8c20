// Package media resolves the on-chain URIs of an NFT into media descriptors
// pointing at the asset proxy, with the content type and size learned from
// the gateway.
package media

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tendant/nft-enricher/internal/cache"
	"github.com/tendant/nft-enricher/internal/nft"
)

const CacheTTL = 10 * time.Minute

type Store interface {
	GetMedia(ctx context.Context, identifier string) ([]nft.Media, bool, error)
	SetMedia(ctx context.Context, identifier string, media []nft.Media) error
}

type Config struct {
	// ExternalMediaURL is the public host of the asset proxy and thumbnails.
	ExternalMediaURL string
	// GatewayURL is the IPFS gateway used to probe assets.
	GatewayURL string
	// MaxFileSize is the largest asset that gets a generated thumbnail.
	// Bigger assets point at the default thumbnail. Zero disables the cap.
	MaxFileSize int64
}

func CacheKey(identifier string) string { return "nftMedia:" + identifier }

type Resolver struct {
	cfg      Config
	store    Store
	cache    cache.Cache
	prober   *Prober
	notifier cache.Notifier
	logger   *slog.Logger
}

func NewResolver(cfg Config, store Store, c cache.Cache, prober *Prober, notifier cache.Notifier, logger *slog.Logger) *Resolver {
	if notifier == nil {
		notifier = cache.NopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg.ExternalMediaURL = strings.TrimRight(cfg.ExternalMediaURL, "/")
	return &Resolver{cfg: cfg, store: store, cache: c, prober: prober, notifier: notifier, logger: logger}
}

// Get returns the stored descriptors, or nil when media was never resolved.
func (r *Resolver) Get(ctx context.Context, identifier string) ([]nft.Media, error) {
	media, found, err := cache.GetOrSet(ctx, r.cache, CacheKey(identifier), CacheTTL,
		func(ctx context.Context) ([]nft.Media, bool, error) {
			return r.store.GetMedia(ctx, identifier)
		})
	if err != nil || !found {
		return nil, err
	}
	if media == nil {
		media = []nft.Media{}
	}
	return media, nil
}

// Refresh probes every URI of n and replaces the stored list. Meta tokens and
// NFTs without URIs resolve to nil and nothing is stored. A transport error on
// any URI fails the whole refresh.
func (r *Resolver) Refresh(ctx context.Context, n *nft.Nft) ([]nft.Media, error) {
	if !n.HasResolvableMedia() {
		return nil, nil
	}

	assetPrefix := r.cfg.ExternalMediaURL + "/nfts/asset"
	media := []nft.Media{}

	for _, encoded := range n.URIs {
		if encoded == "" {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			r.logger.Warn("skip undecodable uri", "identifier", n.Identifier, "err", err)
			continue
		}
		original := string(raw)

		probeURL := RewriteURI(original, r.cfg.GatewayURL)
		props, err := r.prober.Probe(ctx, probeURL)
		if err != nil {
			return nil, fmt.Errorf("refresh media %s: %w", n.Identifier, err)
		}
		if props == nil {
			r.logger.Info("skip uri without media properties", "identifier", n.Identifier, "uri", original)
			continue
		}

		url := RewriteURI(original, assetPrefix)
		thumbnailPath := nft.ThumbnailPath(n.Identifier, url)
		if r.cfg.MaxFileSize > 0 && props.ContentLength > r.cfg.MaxFileSize {
			r.logger.Info("asset over the size limit, using default thumbnail",
				"identifier", n.Identifier, "uri", original, "size", props.ContentLength)
			thumbnailPath = nft.DefaultThumbnailPath
		}
		media = append(media, nft.Media{
			URL:          url,
			OriginalURL:  original,
			ThumbnailURL: r.cfg.ExternalMediaURL + "/" + thumbnailPath,
			FileType:     props.ContentType,
			FileSize:     props.ContentLength,
		})
	}

	if err := r.store.SetMedia(ctx, n.Identifier, media); err != nil {
		return nil, err
	}

	key := CacheKey(n.Identifier)
	if err := cache.SetJSON(ctx, r.cache, key, media, CacheTTL); err != nil {
		r.logger.Warn("cache media failed", "identifier", n.Identifier, "err", err)
	}
	if err := r.notifier.RefreshCacheKey(ctx, key, CacheTTL); err != nil {
		r.logger.Warn("notify media refresh failed", "identifier", n.Identifier, "err", err)
	}

	r.logger.Info("media refreshed", "identifier", n.Identifier, "count", len(media))
	return media, nil
}
