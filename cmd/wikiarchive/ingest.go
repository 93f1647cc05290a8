// SPDX-FileCopyrightText: 2024 wikiarchive authors
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	humanize "github.com/dustin/go-humanize"

	"github.com/brawer/wikiarchive/internal/embedclient"
	"github.com/brawer/wikiarchive/internal/metrics"
	"github.com/brawer/wikiarchive/internal/pipeline"
	"github.com/brawer/wikiarchive/internal/source"
)

// runIngest downloads, parses, classifies, and writes one dump into a
// columnar archive, resuming from any existing checkpoint in dataDir.
func runIngest(args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	dataDir := fs.String("data-dir", envOr("OUTPUT_DIR", "archive"), "output directory for the archive")
	dumpURL := fs.String("dump-url", os.Getenv("WIKIPEDIA_DUMP_URL"), "HTTPS URL or local path to a Wikipedia XML dump")
	batchSize := fs.Int("batch-size", envOrInt("BATCH_SIZE", 500), "articles per batch")
	checkpointInterval := fs.Int64("checkpoint-interval", envOrInt64("CHECKPOINT_INTERVAL", 10_000), "articles between checkpoint saves")
	limit := fs.Int64("limit", 0, "stop after this many articles (0 = unlimited)")
	generateEmbeddings := fs.Bool("generate-embeddings", envOrBool("GENERATE_EMBEDDINGS", false), "call the embedding service for each batch")
	model := fs.String("model", envOr("EMBEDDINGS_MODEL", "bge-m3"), "embedding model name")
	embedEndpoint := fs.String("embed-endpoint", os.Getenv("EMBEDDINGS_ENDPOINT"), "embedding service URL")
	embedBatchSize := fs.Int("embed-batch-size", envOrInt("EMBEDDINGS_BATCH_SIZE", 32), "texts per embedding request")
	bloomFPRate := fs.Float64("bloom-fp-rate", 0.01, "target false-positive rate for title bloom filters")
	if err := fs.Parse(args); err != nil {
		return usageErr(err)
	}

	if *dumpURL == "" {
		return usageErr(fmt.Errorf("ingest: -dump-url (or WIKIPEDIA_DUMP_URL) is required"))
	}
	if err := os.MkdirAll(*dataDir, 0755); err != nil {
		return fmt.Errorf("ingest: creating %s: %w", *dataDir, err)
	}

	var s3Client source.S3
	if isS3URL(*dumpURL) {
		client, err := newS3Client()
		if err != nil {
			return fmt.Errorf("ingest: %w", err)
		}
		s3Client = client
	}

	reg, promReg := metrics.New()
	var embedClient *embedclient.Client
	if *generateEmbeddings {
		if *embedEndpoint == "" {
			return usageErr(fmt.Errorf("ingest: -generate-embeddings requires -embed-endpoint"))
		}
		cfg := embedclient.DefaultConfig(*embedEndpoint, *model)
		cfg.BatchSize = *embedBatchSize
		var err error
		embedClient, err = embedclient.New(cfg)
		if err != nil {
			return fmt.Errorf("ingest: creating embedding client: %w", err)
		}
	}

	result, err := pipeline.Run(context.Background(), pipeline.Config{
		DumpURL:            *dumpURL,
		OutputDir:          *dataDir,
		BatchSize:          *batchSize,
		CheckpointInterval: *checkpointInterval,
		Limit:              *limit,
		GenerateEmbeddings: *generateEmbeddings,
		EmbedClient:        embedClient,
		S3Client:           s3Client,
		BloomFPRate:        *bloomFPRate,
		Metrics:            reg,
		Logger:             logger,
		OnProgress: func(p pipeline.Progress) {
			logger.Printf("progress: %d articles (%s downloaded, %.1f%% embedding cache hit rate)",
				p.ArticlesProcessed, humanize.Bytes(uint64(p.BytesDownloaded)), p.EmbeddingHitRate*100)
		},
	})
	_ = promReg
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	logger.Printf("ingested %d articles into %d shard files; %d record errors retained",
		result.Manifest.Totals, len(result.Manifest.DataFiles), len(result.RecordErrors))
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envOrBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// usageErr marks err as a usage error so main exits with status 2
// rather than 1.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usageErr(err error) error { return &usageError{err} }
