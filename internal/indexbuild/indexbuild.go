// SPDX-FileCopyrightText: 2024 wikiarchive authors
// SPDX-License-Identifier: MIT

// Package indexbuild maintains the title/type/id maps and per-file
// bloom filters that accompany a columnar archive, alongside the
// columnar writer as shards are produced.
package indexbuild

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/gzip"

	"github.com/brawer/wikiarchive/internal/bloom"
	"github.com/brawer/wikiarchive/internal/normalize"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Location pinpoints a record within a columnar shard.
type Location struct {
	File     string `json:"file"`
	RowGroup int    `json:"row_group"`
	Row      int    `json:"row"`
}

// IDLocation is Location plus the article's type, for the id map.
type IDLocation struct {
	Type     string `json:"type"`
	File     string `json:"file"`
	RowGroup int     `json:"row_group"`
	Row      int     `json:"row"`
}

// Builder accumulates title/type/id entries and per-file bloom filters
// as the columnar writer emits rows, to be finalized alongside it.
type Builder struct {
	outputDir string
	bloomFPR  float64

	titles map[string]Location
	types  map[string][]string
	ids    map[string]IDLocation

	fileBlooms map[string]*bloom.Filter
	fileCounts map[string]int
}

var sanitizeRe = regexp.MustCompile(`[^a-zA-Z0-9_\-]+`)

// New creates a Builder writing alongside outputDir's columnar archive.
// bloomFPR is the target false-positive rate for per-file bloom filters.
func New(outputDir string, bloomFPR float64) *Builder {
	if bloomFPR <= 0 {
		bloomFPR = 0.01
	}
	return &Builder{
		outputDir:  outputDir,
		bloomFPR:   bloomFPR,
		titles:     make(map[string]Location),
		types:      make(map[string][]string),
		ids:        make(map[string]IDLocation),
		fileBlooms: make(map[string]*bloom.Filter),
		fileCounts: make(map[string]int),
	}
}

// Track pre-counts the expected item count for file, used to size its
// bloom filter. Call once per file before any AddRow for it, typically
// when the columnar writer opens a new shard.
func (b *Builder) Track(file string, expectedItems int) {
	b.fileCounts[file] = expectedItems
}

// AddRow records one article's location in the title, type, and id
// maps, and adds its normalized title to the file's bloom filter.
func (b *Builder) AddRow(id, title, typ, file string, rowGroup, row int) {
	norm := normalize.Normalize(title, normalize.Default())

	b.titles[norm] = Location{File: file, RowGroup: rowGroup, Row: row}
	b.ids[id] = IDLocation{Type: typ, File: file, RowGroup: rowGroup, Row: row}

	found := false
	for _, f := range b.types[typ] {
		if f == file {
			found = true
			break
		}
	}
	if !found {
		b.types[typ] = append(b.types[typ], file)
	}

	bf, ok := b.fileBlooms[file]
	if !ok {
		expected := b.fileCounts[file]
		if expected < 1 {
			expected = 1024
		}
		bf = bloom.New(expected, b.bloomFPR)
		b.fileBlooms[file] = bf
	}
	bf.Add(norm)
}

// Finalize writes titles.json.gz, types.json.gz, ids.json.gz, and one
// bloom/<sanitized-name>.json per file that received at least one
// AddRow, all under outputDir/indexes.
func (b *Builder) Finalize() error {
	dir := filepath.Join(b.outputDir, "indexes")
	if err := os.MkdirAll(filepath.Join(dir, "bloom"), 0755); err != nil {
		return fmt.Errorf("indexbuild: creating indexes dir: %w", err)
	}

	if err := writeGzipJSON(filepath.Join(dir, "titles.json.gz"), b.titles); err != nil {
		return err
	}
	if err := writeGzipJSON(filepath.Join(dir, "types.json.gz"), b.types); err != nil {
		return err
	}
	if err := writeGzipJSON(filepath.Join(dir, "ids.json.gz"), b.ids); err != nil {
		return err
	}

	for file, bf := range b.fileBlooms {
		name := sanitizeFileName(file)
		path := filepath.Join(dir, "bloom", name+".json")
		data, err := bf.MarshalJSON()
		if err != nil {
			return fmt.Errorf("indexbuild: marshaling bloom filter for %s: %w", file, err)
		}
		if err := writeAtomic(path, data); err != nil {
			return err
		}
	}
	return nil
}

func sanitizeFileName(file string) string {
	base := filepath.Base(file)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return sanitizeRe.ReplaceAllString(base, "_")
}

func writeGzipJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("indexbuild: marshaling %s: %w", path, err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("indexbuild: creating %s: %w", tmp, err)
	}
	gz := gzip.NewWriter(f)
	if _, err := gz.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("indexbuild: gzip-writing %s: %w", path, err)
	}
	if err := gz.Close(); err != nil {
		f.Close()
		return fmt.Errorf("indexbuild: closing gzip stream for %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("indexbuild: syncing %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("indexbuild: closing %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("indexbuild: writing %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

// ReadGzipJSON decompresses and decodes a gzip'd JSON index file into v.
func ReadGzipJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("indexbuild: opening %s: %w", path, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("indexbuild: opening gzip stream for %s: %w", path, err)
	}
	defer gz.Close()

	dec := json.NewDecoder(gz)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("indexbuild: decoding %s: %w", path, err)
	}
	return nil
}
