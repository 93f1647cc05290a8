// SPDX-FileCopyrightText: 2024 wikiarchive authors
// SPDX-License-Identifier: MIT

// Package lookup is an in-memory embedding lookup table fronted by a
// bloom filter and an LRU cache of hot entries, with a persisted
// columnar form and Jaro-Winkler fuzzy matching for near-misses.
package lookup

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/hbollon/go-edlib"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/parquet-go/parquet-go"

	"github.com/brawer/wikiarchive/internal/bloom"
	"github.com/brawer/wikiarchive/internal/embedclient"
	"github.com/brawer/wikiarchive/internal/normalize"
)

// Source ranks where a term came from; lower sorts first in dedup
// tie-breaking: title > entity > category > query.
type Source string

const (
	SourceTitle    Source = "title"
	SourceEntity   Source = "entity"
	SourceCategory Source = "category"
	SourceQuery    Source = "query"
)

var sourcePriority = map[Source]int{
	SourceTitle:    0,
	SourceEntity:   1,
	SourceCategory: 2,
	SourceQuery:    3,
}

// Entry is one normalized term's embedding record.
type Entry struct {
	Term           string    `parquet:"term"`
	TermHash       uint64    `parquet:"term_hash"`
	EmbeddingM3    []float32 `parquet:"embedding_m3"`
	EmbeddingGemma []float32 `parquet:"embedding_gemma,optional"`
	Source         string    `parquet:"source"`
	HitCount       uint32    `parquet:"hit_count"`
}

// Config sizes the bloom filter and the in-memory LRU cache.
type Config struct {
	BloomExpectedItems int
	BloomFPRate        float64
	CacheSize          int
	FuzzyThreshold     float32
}

// DefaultConfig returns reasonable sizing defaults.
func DefaultConfig() Config {
	return Config{BloomExpectedItems: 100_000, BloomFPRate: 0.01, CacheSize: 10_000, FuzzyThreshold: 0.85}
}

// Table is the queryable lookup structure.
type Table struct {
	cfg     Config
	entries map[string]*Entry
	sorted  []string
	bloom   *bloom.Filter
	cache   *lru.Cache[string, *Entry]

	// prefixIndex buckets normalized terms by their first 3 characters,
	// supporting fuzzy lookup's prefix filter.
	prefixIndex map[string][]string
}

// New creates an empty Table.
func New(cfg Config) (*Table, error) {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 10_000
	}
	cache, err := lru.New[string, *Entry](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("lookup: creating cache: %w", err)
	}
	return &Table{
		cfg:         cfg,
		entries:     make(map[string]*Entry),
		bloom:       bloom.New(maxInt(cfg.BloomExpectedItems, 1), cfg.BloomFPRate),
		cache:       cache,
		prefixIndex: make(map[string][]string),
	}, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// candidate is a raw (term, source) pair destined for embedding, before
// dedup by normalized form and source priority.
type candidate struct {
	term   string
	source Source
}

// Build deduplicates candidate terms by normalized form (keeping the
// highest-priority source), generates embeddings in batches via c, and
// populates the table.
func Build(ctx context.Context, cfg Config, terms []string, sources []Source, c *embedclient.Client) (*Table, error) {
	if len(terms) != len(sources) {
		return nil, fmt.Errorf("lookup: terms and sources length mismatch: %d vs %d", len(terms), len(sources))
	}

	best := make(map[string]candidate, len(terms))
	for i, term := range terms {
		norm := normalize.Normalize(term, normalize.Default())
		if norm == "" {
			continue
		}
		src := sources[i]
		if existing, ok := best[norm]; ok {
			if sourcePriority[src] >= sourcePriority[existing.source] {
				continue
			}
		}
		best[norm] = candidate{term: norm, source: src}
	}

	normTerms := make([]string, 0, len(best))
	for norm := range best {
		normTerms = append(normTerms, norm)
	}
	sort.Strings(normTerms)

	t, err := New(cfg)
	if err != nil {
		return nil, err
	}

	const batchSize = 64
	for start := 0; start < len(normTerms); start += batchSize {
		end := start + batchSize
		if end > len(normTerms) {
			end = len(normTerms)
		}
		batch := normTerms[start:end]

		vecs, err := c.Embed(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("lookup: embedding batch %d-%d: %w", start, end, err)
		}

		for i, norm := range batch {
			e := &Entry{
				Term:        norm,
				TermHash:    normalize.Hash(norm),
				EmbeddingM3: vecs[i],
				Source:      string(best[norm].source),
			}
			t.add(e)
		}
	}

	return t, nil
}

func (t *Table) add(e *Entry) {
	t.entries[e.Term] = e
	t.sorted = append(t.sorted, e.Term)
	t.bloom.Add(e.Term)

	prefix := prefixKey(e.Term)
	t.prefixIndex[prefix] = append(t.prefixIndex[prefix], e.Term)
}

func prefixKey(term string) string {
	r := []rune(term)
	if len(r) > 3 {
		r = r[:3]
	}
	return string(r)
}

// finalizeSort sorts the persisted term list lexicographically, per
// the invariant that the on-disk form is sorted.
func (t *Table) finalizeSort() {
	sort.Strings(t.sorted)
}

// Lookup normalizes term, checks the LRU, then the bloom filter, and
// finally the map. Hits promote the entry into the LRU and increment
// its hit count.
func (t *Table) Lookup(term string) (*Entry, bool) {
	norm := normalize.Normalize(term, normalize.Default())

	if e, ok := t.cache.Get(norm); ok {
		e.HitCount++
		return e, true
	}

	if !t.bloom.MightContain(norm) {
		return nil, false
	}

	e, ok := t.entries[norm]
	if !ok {
		return nil, false // bloom false positive
	}
	e.HitCount++
	t.cache.Add(norm, e)
	return e, true
}

// FuzzyMatch is a near-miss candidate with its similarity score.
type FuzzyMatch struct {
	Entry *Entry
	Score float32
}

// FuzzyLookup tries an exact match first; failing that, it filters
// candidates sharing the first 3 normalized characters of term and
// scores them by Jaro-Winkler similarity, returning matches at or
// above cfg.FuzzyThreshold, highest score first.
func (t *Table) FuzzyLookup(term string, limit int) ([]FuzzyMatch, error) {
	norm := normalize.Normalize(term, normalize.Default())

	if e, ok := t.Lookup(term); ok {
		return []FuzzyMatch{{Entry: e, Score: 1.0}}, nil
	}

	candidates := t.prefixIndex[prefixKey(norm)]
	matches := make([]FuzzyMatch, 0, len(candidates))
	for _, cand := range candidates {
		score, err := edlib.StringsSimilarity(norm, cand, edlib.JaroWinkler)
		if err != nil {
			return nil, fmt.Errorf("lookup: scoring %q against %q: %w", norm, cand, err)
		}
		if score >= t.cfg.FuzzyThreshold {
			matches = append(matches, FuzzyMatch{Entry: t.entries[cand], Score: score})
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Persist writes the table as a Parquet file at path; the bloom filter
// is serialized separately by the caller (see indexbuild for the
// convention used by the columnar archive's own bloom files).
func (t *Table) Persist(path string) error {
	t.finalizeSort()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("lookup: creating %s: %w", path, err)
	}
	defer f.Close()

	w := parquet.NewGenericWriter[Entry](f)
	for _, term := range t.sorted {
		if _, err := w.Write([]Entry{*t.entries[term]}); err != nil {
			return fmt.Errorf("lookup: writing entry %q: %w", term, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("lookup: closing writer: %w", err)
	}
	return nil
}

// Bloom exposes the table's bloom filter for separate persistence.
func (t *Table) Bloom() *bloom.Filter { return t.bloom }

// Len returns the number of distinct normalized terms in the table.
func (t *Table) Len() int { return len(t.entries) }
