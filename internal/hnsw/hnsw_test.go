// SPDX-License-Identifier: MIT

package hnsw

import "testing"

func vec(vals ...float32) []float32 { return vals }

func TestInsertAndSearchFindsNearestNeighbor(t *testing.T) {
	SeedLayerSampling(42)
	g, err := New(DefaultParams())
	if err != nil {
		t.Fatal(err)
	}

	g.Insert("origin", vec(0, 0, 0), map[string]string{"type": "place"})
	g.Insert("far", vec(100, 100, 100), map[string]string{"type": "place"})
	g.Insert("near", vec(1, 0, 0), map[string]string{"type": "place"})

	results := g.Search(vec(0, 0, 0), 1, SearchOptions{})
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].DocID != "origin" {
		t.Errorf("expected origin to be nearest to itself, got %q", results[0].DocID)
	}
}

func TestSearchRespectsTypeFilter(t *testing.T) {
	SeedLayerSampling(1)
	g, _ := New(DefaultParams())
	g.Insert("a", vec(0, 0), map[string]string{"type": "person"})
	g.Insert("b", vec(0.01, 0), map[string]string{"type": "place"})

	results := g.Search(vec(0, 0), 5, SearchOptions{TypeFilter: map[string]bool{"place": true}})
	for _, r := range results {
		if r.Metadata["type"] != "place" {
			t.Errorf("expected only place results, got %+v", r)
		}
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 filtered result, got %d", len(results))
	}
}

func TestDeleteRemovesNodeFromAdjacencyLists(t *testing.T) {
	SeedLayerSampling(7)
	g, _ := New(DefaultParams())
	g.Insert("a", vec(0, 0), nil)
	bID := g.Insert("b", vec(1, 0), nil)
	g.Insert("c", vec(2, 0), nil)

	if !g.Delete("b") {
		t.Fatal("expected delete to succeed")
	}
	if g.Len() != 2 {
		t.Errorf("expected 2 nodes remaining, got %d", g.Len())
	}
	for _, id := range g.cache.Keys() {
		n, _ := g.cache.Peek(id)
		for layer, conns := range n.Connections {
			for _, c := range conns {
				if c == bID {
					t.Errorf("node %d still links to deleted node at layer %d", id, layer)
				}
			}
		}
	}

	results := g.Search(vec(0, 0), 10, SearchOptions{})
	for _, r := range results {
		if r.DocID == "b" {
			t.Error("deleted node still returned by search")
		}
	}
}

func TestDeleteNonexistentReturnsFalse(t *testing.T) {
	g, _ := New(DefaultParams())
	if g.Delete("nope") {
		t.Error("expected false for nonexistent doc")
	}
}

func TestHybridSearchPreFilterRespectsCandidateSet(t *testing.T) {
	SeedLayerSampling(3)
	g, _ := New(DefaultParams())
	g.Insert("a", vec(0, 0), nil)
	g.Insert("b", vec(1, 0), nil)
	g.Insert("c", vec(2, 0), nil)

	candidates := map[string]bool{"a": true, "c": true}
	results := g.HybridSearch(vec(0, 0), 5, candidates, PreFilter, SearchOptions{})
	for _, r := range results {
		if !candidates[r.DocID] {
			t.Errorf("got result outside candidate set: %q", r.DocID)
		}
	}
}

func TestDistanceCosineIdenticalVectorsIsZero(t *testing.T) {
	d := distance(Cosine, vec(1, 2, 3), vec(1, 2, 3))
	if d > 1e-5 {
		t.Errorf("expected ~0 distance for identical vectors, got %v", d)
	}
}

func TestScoreDotIsRawDotProduct(t *testing.T) {
	d := distance(Dot, vec(1, 2), vec(3, 4))
	s := score(Dot, d)
	if s != 11 {
		t.Errorf("expected dot product 11, got %v", s)
	}
}
