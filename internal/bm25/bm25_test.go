// SPDX-License-Identifier: MIT

package bm25

import "testing"

func TestTokenizeStemsAndDropsStopwords(t *testing.T) {
	toks := Tokenize("The Physicists were running quickly")
	for _, tok := range toks {
		if tok == "the" || tok == "were" {
			t.Errorf("expected stopwords removed, got %v", toks)
		}
	}
	found := false
	for _, tok := range toks {
		if tok == "physicist" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected stemmed 'physicist' in %v", toks)
	}
}

func TestSearchRanksTitleMatchAboveContentOnlyMatch(t *testing.T) {
	ix := New(DefaultConfig())
	ix.AddDocument("1", "person", map[string]string{
		"title":   "Albert Einstein",
		"content": "A physicist known for relativity.",
	})
	ix.AddDocument("2", "person", map[string]string{
		"title":   "Quantum mechanics",
		"content": "Discusses Einstein's contributions to physics.",
	})

	results := ix.Search("Einstein", SearchOptions{Limit: 10})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].DocID != "1" {
		t.Errorf("expected doc with title match ranked first, got %+v", results)
	}
}

func TestSearchFiltersByType(t *testing.T) {
	ix := New(DefaultConfig())
	ix.AddDocument("1", "person", map[string]string{"title": "Tokyo Tower"})
	ix.AddDocument("2", "place", map[string]string{"title": "Tokyo"})

	results := ix.Search("Tokyo", SearchOptions{Types: []string{"place"}})
	if len(results) != 1 || results[0].DocID != "2" {
		t.Fatalf("got %+v", results)
	}
}

func TestSearchReturnsMatchedTerms(t *testing.T) {
	ix := New(DefaultConfig())
	ix.AddDocument("1", "work", map[string]string{"title": "The Matrix Revolutions"})

	results := ix.Search("Matrix Revolutions", SearchOptions{})
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if len(results[0].MatchedTerms) != 2 {
		t.Errorf("expected 2 matched terms, got %v", results[0].MatchedTerms)
	}
}

func TestSearchEmptyQueryReturnsNoResults(t *testing.T) {
	ix := New(DefaultConfig())
	ix.AddDocument("1", "place", map[string]string{"title": "Tokyo"})
	if results := ix.Search("", SearchOptions{}); results != nil {
		t.Errorf("expected nil results for empty query, got %v", results)
	}
}
