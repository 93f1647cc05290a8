// SPDX-FileCopyrightText: 2024 wikiarchive authors
// SPDX-License-Identifier: MIT

package main

import (
	"flag"
	"fmt"

	"github.com/brawer/wikiarchive/internal/columnar"
	"github.com/brawer/wikiarchive/internal/indexbuild"
	"github.com/brawer/wikiarchive/internal/manifest"
)

// runBuildIndexes rebuilds the title/type/id maps and per-file bloom
// filters from the shard files a prior ingest already wrote, without
// re-downloading or re-parsing the dump. Useful after changing the
// bloom false-positive rate or recovering a lost indexes/ directory.
func runBuildIndexes(args []string) error {
	fs := flag.NewFlagSet("build-indexes", flag.ContinueOnError)
	dataDir := fs.String("data-dir", envOr("OUTPUT_DIR", "archive"), "archive directory")
	bloomFPRate := fs.Float64("bloom-fp-rate", 0.01, "target false-positive rate for title bloom filters")
	if err := fs.Parse(args); err != nil {
		return usageErr(err)
	}

	m, err := manifest.Read(*dataDir)
	if err != nil {
		return fmt.Errorf("build-indexes: reading manifest: %w", err)
	}

	builder := indexbuild.New(*dataDir, *bloomFPRate)
	for _, shard := range m.DataFiles {
		builder.Track(shard.Path, int(shard.RowCount))
	}

	var total int
	for _, shard := range m.DataFiles {
		records, err := columnar.ReadShard(shard.Path)
		if err != nil {
			return fmt.Errorf("build-indexes: reading shard %s: %w", shard.Path, err)
		}
		for i, rec := range records {
			builder.AddRow(rec.ID, rec.Title, rec.Type, shard.Path, 0, i)
		}
		total += len(records)
		logger.Printf("indexed %d records from %s", len(records), shard.Path)
	}

	if err := builder.Finalize(); err != nil {
		return fmt.Errorf("build-indexes: finalizing: %w", err)
	}
	logger.Printf("rebuilt indexes for %d records across %d shards", total, len(m.DataFiles))
	return nil
}
