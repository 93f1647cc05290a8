// SPDX-FileCopyrightText: 2024 wikiarchive authors
// SPDX-License-Identifier: MIT

package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/brawer/wikiarchive/internal/bm25"
	"github.com/brawer/wikiarchive/internal/columnar"
	"github.com/brawer/wikiarchive/internal/manifest"
)

// runQuery builds an in-memory BM25 index from an archive's shard
// content and runs a single search against it. There is no persisted
// BM25 index format (scoring is a closed-form function over the raw
// text, not a trained artifact), so query pays the shard-read cost
// every invocation; no subcommand keeps the index in a long-lived
// process (serve exposes only metrics, the manifest, and a health check).
func runQuery(args []string) error {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	dataDir := fs.String("data-dir", envOr("OUTPUT_DIR", "archive"), "archive directory")
	q := fs.String("q", "", "search query")
	limit := fs.Int("limit", 10, "maximum results")
	types := fs.String("types", "", "comma-separated list of article types to restrict to")
	if err := fs.Parse(args); err != nil {
		return usageErr(err)
	}
	if *q == "" {
		return usageErr(fmt.Errorf("query: -q is required"))
	}

	m, err := manifest.Read(*dataDir)
	if err != nil {
		return fmt.Errorf("query: reading manifest: %w", err)
	}

	index := bm25.New(bm25.DefaultConfig())
	titles := make(map[string]string)
	for _, shard := range m.DataFiles {
		records, err := columnar.ReadShard(shard.Path)
		if err != nil {
			return fmt.Errorf("query: reading shard %s: %w", shard.Path, err)
		}
		for _, rec := range records {
			index.AddDocument(rec.ID, rec.Type, map[string]string{
				"title":   rec.Title,
				"content": rec.Content,
			})
			titles[rec.ID] = rec.Title
		}
	}

	opts := bm25.SearchOptions{Limit: *limit}
	if *types != "" {
		opts.Types = strings.Split(*types, ",")
	}

	results := index.Search(*q, opts)
	if len(results) == 0 {
		fmt.Fprintln(os.Stdout, "no matches")
		return nil
	}
	for i, r := range results {
		fmt.Fprintf(os.Stdout, "%2d. %-40s  score=%.3f  terms=%v\n", i+1, titles[r.DocID], r.Score, r.MatchedTerms)
	}
	return nil
}
