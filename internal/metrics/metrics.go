// Package metrics exposes the worker's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nft_enricher",
		Name:      "jobs_total",
		Help:      "Process jobs handled by the consumer, by outcome.",
	}, []string{"outcome"})

	JobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "nft_enricher",
		Name:      "job_duration_seconds",
		Help:      "Wall time of one process job.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	ThumbnailResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nft_enricher",
		Name:      "thumbnail_results_total",
		Help:      "Thumbnail generation results.",
	}, []string{"result"})

	ProbeCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nft_enricher",
		Name:      "media_probe_cache_total",
		Help:      "Media probe cache lookups, by hit or miss.",
	}, []string{"status"})
)

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
