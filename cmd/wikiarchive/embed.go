// SPDX-FileCopyrightText: 2024 wikiarchive authors
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/brawer/wikiarchive/internal/columnar"
	"github.com/brawer/wikiarchive/internal/embedclient"
	"github.com/brawer/wikiarchive/internal/manifest"
)

// runEmbed backfills embeddings for an archive that was ingested
// without -generate-embeddings (or whose embedding service was
// unreachable for some batches): it rewrites in place each shard that
// has records without a vector, calling the embedding service only for
// those records; shards where every record has a vector are left as is.
func runEmbed(args []string) error {
	fs := flag.NewFlagSet("embed", flag.ContinueOnError)
	dataDir := fs.String("data-dir", envOr("OUTPUT_DIR", "archive"), "archive directory")
	endpoint := fs.String("embed-endpoint", os.Getenv("EMBEDDINGS_ENDPOINT"), "embedding service URL")
	model := fs.String("model", envOr("EMBEDDINGS_MODEL", "bge-m3"), "embedding model name")
	batchSize := fs.Int("embed-batch-size", envOrInt("EMBEDDINGS_BATCH_SIZE", 32), "texts per embedding request")
	if err := fs.Parse(args); err != nil {
		return usageErr(err)
	}
	if *endpoint == "" {
		return usageErr(fmt.Errorf("embed: -embed-endpoint (or EMBEDDINGS_ENDPOINT) is required"))
	}

	m, err := manifest.Read(*dataDir)
	if err != nil {
		return fmt.Errorf("embed: reading manifest: %w", err)
	}

	cfg := embedclient.DefaultConfig(*endpoint, *model)
	cfg.BatchSize = *batchSize
	client, err := embedclient.New(cfg)
	if err != nil {
		return fmt.Errorf("embed: creating embedding client: %w", err)
	}

	ctx := context.Background()
	var embedded, skipped int
	for _, shard := range m.DataFiles {
		records, err := columnar.ReadShard(shard.Path)
		if err != nil {
			return fmt.Errorf("embed: reading shard %s: %w", shard.Path, err)
		}

		var pending []int
		var texts []string
		for i, rec := range records {
			if len(rec.Embedding) > 0 {
				skipped++
				continue
			}
			pending = append(pending, i)
			texts = append(texts, rec.Content)
		}
		if len(pending) == 0 {
			continue
		}

		vecs, err := client.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed: embedding shard %s: %w", shard.Path, err)
		}
		for j, i := range pending {
			records[i].Embedding = vecs[j]
		}
		embedded += len(pending)

		if err := rewriteShard(shard.Path, records); err != nil {
			return fmt.Errorf("embed: rewriting shard %s: %w", shard.Path, err)
		}
		logger.Printf("embedded %d records in %s", len(pending), shard.Path)
	}

	logger.Printf("embed: %d records embedded, %d already had vectors", embedded, skipped)
	return nil
}

// rewriteShard replaces a single shard file's content with records,
// writing to a temp file in the same directory before renaming over
// the original so a crash mid-write never leaves a truncated shard.
func rewriteShard(path string, records []columnar.ArticleRecord) error {
	tmpDir := path + ".rewrite"
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	w, err := columnar.New(columnar.Config{OutputDir: tmpDir, RowGroupSize: len(records) + 1})
	if err != nil {
		return err
	}
	for _, rec := range records {
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	shards, err := w.Finalize()
	if err != nil {
		return err
	}
	if len(shards) != 1 {
		return fmt.Errorf("rewriteShard: expected 1 output shard, got %d", len(shards))
	}
	return os.Rename(shards[0].Path, path)
}
