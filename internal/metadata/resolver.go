// Package metadata turns the base64 attribute blob stored on chain into
// structured metadata and keeps it in the store behind a read-through cache.
package metadata

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tendant/nft-enricher/internal/cache"
	"github.com/tendant/nft-enricher/internal/nft"
)

const CacheTTL = 10 * time.Minute

var ErrMalformedAttributes = errors.New("malformed attributes")

type Store interface {
	GetMetadata(ctx context.Context, identifier string) (nft.Metadata, bool, error)
	SetMetadata(ctx context.Context, identifier string, md nft.Metadata) error
}

func CacheKey(identifier string) string { return "nftMetadata:" + identifier }

type Resolver struct {
	store    Store
	cache    cache.Cache
	notifier cache.Notifier
	logger   *slog.Logger
}

func NewResolver(store Store, c cache.Cache, notifier cache.Notifier, logger *slog.Logger) *Resolver {
	if notifier == nil {
		notifier = cache.NopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, cache: c, notifier: notifier, logger: logger}
}

// Get returns the stored metadata, or nil when none was ever resolved.
func (r *Resolver) Get(ctx context.Context, n *nft.Nft) (nft.Metadata, error) {
	md, found, err := cache.GetOrSet(ctx, r.cache, CacheKey(n.Identifier), CacheTTL,
		func(ctx context.Context) (nft.Metadata, bool, error) {
			return r.store.GetMetadata(ctx, n.Identifier)
		})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return md, nil
}

// Refresh decodes the attributes of n and replaces the stored record. It
// returns nil without touching the store when n has no attributes.
func (r *Resolver) Refresh(ctx context.Context, n *nft.Nft) (nft.Metadata, error) {
	if n.Attributes == "" {
		return nil, nil
	}

	md, err := Parse(n.Attributes)
	if err != nil {
		r.logger.Error("decode attributes failed", "identifier", n.Identifier, "err", err)
		return nil, fmt.Errorf("refresh metadata %s: %w", n.Identifier, err)
	}

	if err := r.store.SetMetadata(ctx, n.Identifier, md); err != nil {
		return nil, err
	}

	key := CacheKey(n.Identifier)
	if err := cache.SetJSON(ctx, r.cache, key, md, CacheTTL); err != nil {
		r.logger.Warn("cache metadata failed", "identifier", n.Identifier, "err", err)
	}
	if err := r.notifier.RefreshCacheKey(ctx, key, CacheTTL); err != nil {
		r.logger.Warn("notify metadata refresh failed", "identifier", n.Identifier, "err", err)
	}

	r.logger.Info("metadata refreshed", "identifier", n.Identifier, "fields", len(md))
	return md, nil
}

// Parse decodes an attribute blob of the form "tags:a,b;metadata:<cid>".
// Every "key:value" segment becomes a field; tags becomes a list. Segments
// without a key are ignored.
func Parse(attributes string) (nft.Metadata, error) {
	raw, err := base64.StdEncoding.DecodeString(attributes)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(attributes)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAttributes, err)
	}
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("%w: not valid utf-8", ErrMalformedAttributes)
	}

	md := nft.Metadata{}
	for _, segment := range strings.Split(string(raw), ";") {
		key, value, ok := strings.Cut(segment, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		value = strings.TrimSpace(value)

		if key == "tags" {
			md[key] = nft.Strings(splitTags(value))
			continue
		}
		md[key] = nft.String(value)
	}
	return md, nil
}

func splitTags(value string) []string {
	tags := []string{}
	for _, tag := range strings.Split(value, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
