// SPDX-FileCopyrightText: 2024 wikiarchive authors
// SPDX-License-Identifier: MIT

// Package bm25 is an inverted-index text search engine: tokenize,
// stem, remove stopwords, and score documents with BM25 over one or
// more weighted fields.
package bm25

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/surgebase/porter2"

	"github.com/brawer/wikiarchive/internal/wikiconfig"
)

// Config controls BM25 scoring parameters and per-field weights.
type Config struct {
	K1          float64
	B           float64
	FieldBoosts map[string]float64 // e.g. {"title": 2.0, "content": 1.0}
}

// DefaultConfig returns the conventional k1=1.2, b=0.75 with a title
// boost over content.
func DefaultConfig() Config {
	return Config{
		K1:          1.2,
		B:           0.75,
		FieldBoosts: map[string]float64{"title": 2.0, "content": 1.0},
	}
}

type posting struct {
	docID int
	freq  int
}

// fieldStats tracks per-field document length for BM25's length norm.
type fieldStats struct {
	lengths map[int]int
	total   int64
	count   int
}

// Index is an inverted index over one or more named fields.
type Index struct {
	cfg Config

	postings map[string]map[string][]posting // field -> term -> postings
	fields   map[string]*fieldStats
	docTypes map[int]string
	docIDs   []string // external doc id, keyed by internal docID
}

// New creates an empty Index.
func New(cfg Config) *Index {
	return &Index{
		cfg:      cfg,
		postings: make(map[string]map[string][]posting),
		fields:   make(map[string]*fieldStats),
		docTypes: make(map[int]string),
	}
}

// AddDocument indexes one document's fields (e.g. {"title": ..., "content": ...}).
func (ix *Index) AddDocument(docID, docType string, fields map[string]string) {
	internalID := len(ix.docIDs)
	ix.docIDs = append(ix.docIDs, docID)
	ix.docTypes[internalID] = docType

	for field, text := range fields {
		tokens := Tokenize(text)
		if _, ok := ix.postings[field]; !ok {
			ix.postings[field] = make(map[string][]posting)
		}
		if _, ok := ix.fields[field]; !ok {
			ix.fields[field] = &fieldStats{lengths: make(map[int]int)}
		}

		freqs := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			freqs[tok]++
		}
		for term, freq := range freqs {
			ix.postings[field][term] = append(ix.postings[field][term], posting{docID: internalID, freq: freq})
		}

		stats := ix.fields[field]
		stats.lengths[internalID] = len(tokens)
		stats.total += int64(len(tokens))
		stats.count++
	}
}

// Tokenize lowercases, strips punctuation, drops stopwords, and
// Porter-stems the remaining words.
func Tokenize(text string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() == 0 {
			return
		}
		word := strings.ToLower(cur.String())
		cur.Reset()
		if _, stop := wikiconfig.Stopwords[word]; stop {
			return
		}
		tokens = append(tokens, porter2.Stem(word))
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// Result is one ranked search hit.
type Result struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// SearchOptions configures Search.
type SearchOptions struct {
	Limit int
	Types []string
}

// Search tokenizes query the same way documents were indexed, scores
// every matching document by BM25 summed across fields with their
// configured boosts, and returns the top results descending by score.
func (ix *Index) Search(query string, opts SearchOptions) []Result {
	queryTerms := Tokenize(query)
	if len(queryTerms) == 0 {
		return nil
	}

	typeFilter := toSet(opts.Types)
	scores := make(map[int]float64)
	matched := make(map[int]map[string]bool)

	for field, boost := range ix.cfg.FieldBoosts {
		termMap, ok := ix.postings[field]
		if !ok {
			continue
		}
		stats := ix.fields[field]
		avgLen := 0.0
		if stats.count > 0 {
			avgLen = float64(stats.total) / float64(stats.count)
		}
		n := float64(stats.count)

		for _, term := range queryTerms {
			list, ok := termMap[term]
			if !ok {
				continue
			}
			idf := math.Log(1 + (n-float64(len(list))+0.5)/(float64(len(list))+0.5))
			for _, p := range list {
				if len(typeFilter) > 0 && !typeFilter[ix.docTypes[p.docID]] {
					continue
				}
				docLen := float64(stats.lengths[p.docID])
				tf := float64(p.freq)
				norm := tf * (ix.cfg.K1 + 1) / (tf + ix.cfg.K1*(1-ix.cfg.B+ix.cfg.B*docLen/avgLen))
				scores[p.docID] += boost * idf * norm

				if matched[p.docID] == nil {
					matched[p.docID] = make(map[string]bool)
				}
				matched[p.docID][term] = true
			}
		}
	}

	results := make([]Result, 0, len(scores))
	for docID, score := range scores {
		terms := make([]string, 0, len(matched[docID]))
		for t := range matched[docID] {
			terms = append(terms, t)
		}
		sort.Strings(terms)
		results = append(results, Result{DocID: ix.docIDs[docID], Score: score, MatchedTerms: terms})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results
}

func toSet(ss []string) map[string]bool {
	if len(ss) == 0 {
		return nil
	}
	m := make(map[string]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}
	return m
}
