// SPDX-FileCopyrightText: 2024 wikiarchive authors
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"errors"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/brawer/wikiarchive/internal/columnar"
	"github.com/brawer/wikiarchive/internal/manifest"
)

func writeTestArchive(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	w, err := columnar.New(columnar.Config{OutputDir: dir, RowGroupSize: 10})
	if err != nil {
		t.Fatal(err)
	}
	records := []columnar.ArticleRecord{
		{ID: "1", Type: "person", Title: "Ada Lovelace", Content: "Ada Lovelace was a mathematician and writer."},
		{ID: "2", Type: "place", Title: "Zurich", Content: "Zurich is a city in Switzerland."},
	}
	for _, rec := range records {
		if err := w.Write(rec); err != nil {
			t.Fatal(err)
		}
	}
	shards, err := w.Finalize()
	if err != nil {
		t.Fatal(err)
	}

	m := manifest.Build("https://example.org/dump.xml.bz2", shards)
	if err := manifest.Write(dir, m); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestRunStatsPrintsManifestSummary(t *testing.T) {
	dir := writeTestArchive(t)
	logger = log.New(&bytes.Buffer{}, "", 0)

	if err := runStats([]string{"-data-dir", dir}); err != nil {
		t.Fatal(err)
	}
}

func TestRunQueryFindsMatchingArticle(t *testing.T) {
	dir := writeTestArchive(t)
	logger = log.New(&bytes.Buffer{}, "", 0)

	if err := runQuery([]string{"-data-dir", dir, "-q", "mathematician"}); err != nil {
		t.Fatal(err)
	}
}

func TestRunQueryRequiresQueryFlag(t *testing.T) {
	dir := writeTestArchive(t)
	logger = log.New(&bytes.Buffer{}, "", 0)

	err := runQuery([]string{"-data-dir", dir})
	if err == nil {
		t.Fatal("expected usage error when -q is missing")
	}
	var usageErr *usageError
	if !errors.As(err, &usageErr) {
		t.Errorf("expected *usageError, got %T: %v", err, err)
	}
}

func TestRunBuildIndexesRebuildsFromShards(t *testing.T) {
	dir := writeTestArchive(t)
	logger = log.New(&bytes.Buffer{}, "", 0)

	if err := runBuildIndexes([]string{"-data-dir", dir}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "indexes", "titles.json.gz")); err != nil {
		t.Errorf("titles index missing: %v", err)
	}
}

func TestRewriteShardReplacesRecordsAtomically(t *testing.T) {
	dir := writeTestArchive(t)
	m, err := manifest.Read(dir)
	if err != nil {
		t.Fatal(err)
	}
	shard := m.DataFiles[0]

	records, err := columnar.ReadShard(shard.Path)
	if err != nil {
		t.Fatal(err)
	}
	for i := range records {
		records[i].Embedding = []float32{1, 2, 3}
	}

	if err := rewriteShard(shard.Path, records); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(shard.Path + ".rewrite"); !os.IsNotExist(err) {
		t.Errorf("expected temp rewrite dir to be cleaned up, stat err: %v", err)
	}

	got, err := columnar.ReadShard(shard.Path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(records) {
		t.Fatalf("got %d records, want %d", len(got), len(records))
	}
	for _, rec := range got {
		if len(rec.Embedding) != 3 {
			t.Errorf("record %s missing rewritten embedding", rec.ID)
		}
	}
}
