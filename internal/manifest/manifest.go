// SPDX-FileCopyrightText: 2024 wikiarchive authors
// SPDX-License-Identifier: MIT

// Package manifest writes the single JSON file that is the sole entry
// point a reader needs to discover an archive's shards, indexes, and
// per-type stats. It is written exactly once, at finalize, and never
// mutated afterward.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/brawer/wikiarchive/internal/columnar"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Manifest describes a finalized archive.
type Manifest struct {
	Version       int                      `json:"version"`
	CreatedAt     time.Time                `json:"created_at"`
	SourceURL     string                   `json:"source_url"`
	Totals        int64                    `json:"totals"`
	PerTypeCounts map[string]int64         `json:"per_type_counts"`
	DataFiles     []columnar.ShardFile     `json:"data_files"`
	IndexFiles    []string                 `json:"index_files"`
}

// CurrentVersion is the manifest schema version written by this build.
const CurrentVersion = 1

// Build assembles a Manifest from the columnar writer's finalized
// shard files and the standard set of index file paths under
// outputDir/indexes.
func Build(sourceURL string, shards []columnar.ShardFile) Manifest {
	perType := make(map[string]int64, len(shards))
	var total int64
	for _, s := range shards {
		perType[s.Type] += s.RowCount
		total += s.RowCount
	}

	indexFiles := []string{
		"indexes/titles.json.gz",
		"indexes/types.json.gz",
		"indexes/ids.json.gz",
	}

	return Manifest{
		Version:       CurrentVersion,
		CreatedAt:     time.Now().UTC(),
		SourceURL:     sourceURL,
		Totals:        total,
		PerTypeCounts: perType,
		DataFiles:     shards,
		IndexFiles:    indexFiles,
	}
}

// Write persists m to outputDir/manifest.json atomically: write to a
// temp file, sync, then rename over the final path.
func Write(outputDir string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest: marshaling: %w", err)
	}

	path := filepath.Join(outputDir, "manifest.json")
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("manifest: creating %s: %w", tmp, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("manifest: writing %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("manifest: syncing %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("manifest: closing %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

// Read loads a manifest previously written by Write.
func Read(outputDir string) (*Manifest, error) {
	path := filepath.Join(outputDir, "manifest.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: reading %s: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: decoding %s: %w", path, err)
	}
	return &m, nil
}
