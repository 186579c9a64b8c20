package media

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tendant/nft-enricher/internal/cache"
	"github.com/tendant/nft-enricher/internal/metrics"
)

const ProbeCacheTTL = time.Hour

// Properties are the response headers a HEAD probe learns about an asset.
type Properties struct {
	ContentType   string `json:"contentType"`
	ContentLength int64  `json:"contentLength"`
}

func probeCacheKey(url string) string { return "nftMediaProperties:" + url }

// Prober issues HEAD requests for asset URLs and caches what it learns.
type Prober struct {
	http   *http.Client
	cache  cache.Cache
	logger *slog.Logger
}

func NewProber(httpClient *http.Client, c cache.Cache, logger *slog.Logger) *Prober {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{http: httpClient, cache: c, logger: logger}
}

// Probe returns nil properties when the URL points at a JSON document,
// answers with a non-200 status or reports no content type. Transport errors
// are returned.
func (p *Prober) Probe(ctx context.Context, url string) (*Properties, error) {
	if strings.HasSuffix(strings.ToLower(url), ".json") {
		return nil, nil
	}

	key := probeCacheKey(url)
	var cached Properties
	hit, err := cache.GetJSON(ctx, p.cache, key, &cached)
	if err != nil {
		p.logger.Warn("read probe cache failed", "url", url, "err", err)
	}
	if hit {
		metrics.ProbeCache.WithLabelValues("hit").Inc()
		return &cached, nil
	}
	metrics.ProbeCache.WithLabelValues("miss").Inc()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build head request: %w", err)
	}
	resp, err := p.http.Do(req)
	if err != nil {
		p.logger.Error("media probe failed", "url", url, "err", err)
		return nil, fmt.Errorf("probe %s: %w", url, err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		p.logger.Warn("media probe returned non-200", "url", url, "status", resp.StatusCode)
		return nil, nil
	}
	props := &Properties{
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
	}
	if props.ContentType == "" {
		p.logger.Warn("media probe returned no content type", "url", url)
		return nil, nil
	}
	if props.ContentLength < 0 {
		props.ContentLength = 0
	}

	if err := cache.SetJSON(ctx, p.cache, key, props, ProbeCacheTTL); err != nil {
		p.logger.Warn("write probe cache failed", "url", url, "err", err)
	}
	return props, nil
}
