// SPDX-FileCopyrightText: 2024 wikiarchive authors
// SPDX-License-Identifier: MIT

// Package metrics holds the Prometheus collectors the pipeline driver
// reports to during an ingest run, and exposes them over /metrics via
// promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

// Registry groups every collector the pipeline reports to during a run.
type Registry struct {
	BytesDownloaded  prometheus.Counter
	ArticlesIngested *prometheus.CounterVec // labeled by type
	EmbeddingErrors  prometheus.Counter
	ParseErrors      prometheus.Counter
	ShardFilesOpen   prometheus.Gauge
	CheckpointSaves  prometheus.Counter
	BatchDuration    prometheus.Histogram
}

// New registers and returns a fresh Registry against its own
// prometheus.Registry, so repeated pipeline runs in the same process
// (e.g. in tests) don't collide on collector registration.
func New() (*Registry, *prometheus.Registry) {
	reg := prometheus.NewRegistry()

	r := &Registry{
		BytesDownloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wikiarchive_bytes_downloaded_total",
			Help: "Total bytes downloaded from the dump source.",
		}),
		ArticlesIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wikiarchive_articles_ingested_total",
			Help: "Articles written to the columnar archive, by type.",
		}, []string{"type"}),
		EmbeddingErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wikiarchive_embedding_errors_total",
			Help: "Batches whose embedding request failed after retries.",
		}),
		ParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wikiarchive_parse_errors_total",
			Help: "Articles skipped due to unparseable wikitext.",
		}),
		ShardFilesOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wikiarchive_shard_files_open",
			Help: "Number of shard files currently open for writing.",
		}),
		CheckpointSaves: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wikiarchive_checkpoint_saves_total",
			Help: "Number of checkpoint files written.",
		}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "wikiarchive_batch_duration_seconds",
			Help: "Wall-clock time to process one ingestion batch.",
		}),
	}

	reg.MustRegister(r.BytesDownloaded, r.ArticlesIngested, r.EmbeddingErrors, r.ParseErrors, r.ShardFilesOpen, r.CheckpointSaves, r.BatchDuration)
	return r, reg
}

// Handler returns an http.Handler serving reg's collectors in the
// Prometheus exposition format, for mounting at /metrics.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
