// SPDX-License-Identifier: MIT

package lookup

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/brawer/wikiarchive/internal/embedclient"
)

func fakeEmbedServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Texts []string `json:"texts"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		vecs := make([][]float32, len(req.Texts))
		for i := range vecs {
			vecs[i] = []float32{1, 2, 3}
		}
		json.NewEncoder(w).Encode(map[string]any{"embeddings": vecs, "cached": false})
	}))
}

func TestBuildDeduplicatesByNormalizedFormWithSourcePriority(t *testing.T) {
	srv := fakeEmbedServer(t)
	defer srv.Close()

	cfg := embedclient.DefaultConfig(srv.URL, "bge-m3")
	client, err := embedclient.New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	terms := []string{"Tokyo", "tokyo", "TOKYO"}
	sources := []Source{SourceQuery, SourceTitle, SourceCategory}

	table, err := Build(context.Background(), DefaultConfig(), terms, sources, client)
	if err != nil {
		t.Fatal(err)
	}
	if table.Len() != 1 {
		t.Fatalf("expected 1 deduplicated term, got %d", table.Len())
	}
	e, ok := table.Lookup("tokyo")
	if !ok {
		t.Fatal("expected tokyo to be found")
	}
	if e.Source != string(SourceTitle) {
		t.Errorf("expected source priority to keep 'title', got %q", e.Source)
	}
}

func TestLookupMissReturnsFalseForUnseenTerm(t *testing.T) {
	table, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := table.Lookup("nonexistent"); ok {
		t.Error("expected miss for term never added")
	}
}

func TestFuzzyLookupFindsNearMiss(t *testing.T) {
	table, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	table.add(&Entry{Term: "einstein", EmbeddingM3: []float32{1}, Source: string(SourceTitle)})

	matches, err := table.FuzzyLookup("einsten", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) == 0 {
		t.Fatal("expected at least one fuzzy match for a one-letter typo")
	}
	if matches[0].Entry.Term != "einstein" {
		t.Errorf("got %q", matches[0].Entry.Term)
	}
}

func TestPersistWritesParquetFile(t *testing.T) {
	table, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	table.add(&Entry{Term: "tokyo", EmbeddingM3: []float32{1, 2, 3}, Source: string(SourceTitle)})

	path := filepath.Join(t.TempDir(), "lookup.parquet")
	if err := table.Persist(path); err != nil {
		t.Fatal(err)
	}
}
