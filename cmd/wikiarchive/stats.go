// SPDX-FileCopyrightText: 2024 wikiarchive authors
// SPDX-License-Identifier: MIT

package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	humanize "github.com/dustin/go-humanize"

	"github.com/brawer/wikiarchive/internal/manifest"
)

// runStats prints a human-readable summary of an archive's manifest:
// totals, per-type counts, and shard file sizes.
func runStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	dataDir := fs.String("data-dir", envOr("OUTPUT_DIR", "archive"), "archive directory")
	if err := fs.Parse(args); err != nil {
		return usageErr(err)
	}

	m, err := manifest.Read(*dataDir)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}

	fmt.Fprintf(os.Stdout, "source:     %s\n", m.SourceURL)
	fmt.Fprintf(os.Stdout, "created:    %s\n", m.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(os.Stdout, "articles:   %s\n", humanize.Comma(m.Totals))
	fmt.Fprintf(os.Stdout, "shards:     %d\n", len(m.DataFiles))

	var totalBytes int64
	for _, s := range m.DataFiles {
		totalBytes += s.ByteSize
	}
	fmt.Fprintf(os.Stdout, "on disk:    %s\n", humanize.Bytes(uint64(totalBytes)))

	types := make([]string, 0, len(m.PerTypeCounts))
	for t := range m.PerTypeCounts {
		types = append(types, t)
	}
	sort.Strings(types)
	fmt.Fprintf(os.Stdout, "\nper-type counts:\n")
	for _, t := range types {
		fmt.Fprintf(os.Stdout, "  %-12s %s\n", t, humanize.Comma(m.PerTypeCounts[t]))
	}
	return nil
}
