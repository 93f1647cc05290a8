// SPDX-FileCopyrightText: 2024 wikiarchive authors
// SPDX-License-Identifier: MIT

// Package hnsw implements a Hierarchical Navigable Small World graph
// for approximate nearest-neighbor search over dense embeddings, with
// a byte- and count-bounded LRU node cache so the graph can outgrow
// process memory: edges are ids, not pointers, so an evicted node is
// a tolerable dead end rather than a corrupt graph.
package hnsw

import (
	"fmt"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Node is one vector and its adjacency lists, one list per graph layer.
type Node struct {
	ID          uint32
	DocID       string
	Vector      []float32
	Metadata    map[string]string
	Connections map[uint8][]uint32
	MaxLayer    uint8
}

func (n *Node) byteSize() int64 {
	size := int64(8*len(n.Vector) + 2*len(n.DocID) + 32)
	for _, conns := range n.Connections {
		size += int64(len(conns) * 4)
	}
	return size
}

// Params configures graph construction and the node cache.
type Params struct {
	M              int
	EfConstruction int
	EfSearch       int
	Metric         Metric
	MaxNodes       int
	MaxBytes       int64
}

// DefaultParams returns the conventional HNSW knobs (M=16).
func DefaultParams() Params {
	return Params{M: 16, EfConstruction: 200, EfSearch: 50, Metric: Cosine, MaxNodes: 1_000_000, MaxBytes: 1 << 30}
}

// Graph is a hierarchical proximity graph over dense vectors.
type Graph struct {
	mu     sync.RWMutex
	params Params

	cache      *lru.Cache[uint32, *Node]
	bytesUsed  int64
	nextID     uint32
	entryPoint uint32
	hasEntry   bool
	docToID    map[string]uint32
}

// New creates an empty Graph.
func New(params Params) (*Graph, error) {
	if params.M < 2 {
		params.M = 16
	}
	if params.EfConstruction < 1 {
		params.EfConstruction = 200
	}
	if params.EfSearch < 1 {
		params.EfSearch = 50
	}
	if params.MaxNodes < 1 {
		params.MaxNodes = 1_000_000
	}

	g := &Graph{params: params, docToID: make(map[string]uint32)}

	cache, err := lru.NewWithEvict[uint32, *Node](params.MaxNodes, g.onEvict)
	if err != nil {
		return nil, fmt.Errorf("hnsw: creating node cache: %w", err)
	}
	g.cache = cache
	return g, nil
}

// onEvict is the cache eviction callback; it only adjusts byte
// accounting. The node's edges remain as dangling ids elsewhere in the
// graph, which Search tolerates as dead ends.
func (g *Graph) onEvict(id uint32, n *Node) {
	g.bytesUsed -= n.byteSize()
}

func (g *Graph) getNode(id uint32) (*Node, bool) {
	return g.cache.Get(id)
}

// Insert adds vector/metadata as a new node, linked into the graph per
// the classic HNSW construction rule.
func (g *Graph) Insert(docID string, vector []float32, metadata map[string]string) uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.nextID
	g.nextID++
	layer := geometricLayer(g.params.M)

	n := &Node{
		ID:          id,
		DocID:       docID,
		Vector:      vector,
		Metadata:    metadata,
		Connections: make(map[uint8][]uint32, layer+1),
		MaxLayer:    layer,
	}
	for l := uint8(0); l <= layer; l++ {
		n.Connections[l] = nil
	}

	g.cache.Add(id, n)
	g.bytesUsed += n.byteSize()
	for g.params.MaxBytes > 0 && g.bytesUsed > g.params.MaxBytes && g.cache.Len() > 1 {
		g.cache.RemoveOldest()
	}
	g.docToID[docID] = id

	if !g.hasEntry {
		g.entryPoint = id
		g.hasEntry = true
		return id
	}

	entry, ok := g.getNode(g.entryPoint)
	if !ok {
		g.entryPoint = id
		return id
	}

	cur := entry.ID
	curDist := distance(g.params.Metric, vector, entry.Vector)
	maxLayer := entry.MaxLayer

	// Phase 1: greedily descend from maxLayer down to layer+1.
	for l := maxLayer; l > layer && l > 0; l-- {
		cur, curDist = g.greedyDescend(cur, curDist, vector, l)
	}

	// Phase 2: for layers min(layer, maxLayer) down to 0, beam search +
	// connect with the diversity heuristic.
	top := layer
	if maxLayer < top {
		top = maxLayer
	}
	for l := int(top); l >= 0; l-- {
		candidates := g.beamSearch(cur, vector, g.params.EfConstruction, uint8(l))
		neighbors := g.selectNeighbors(vector, candidates, g.params.M)
		for _, nb := range neighbors {
			g.link(id, nb, uint8(l))
			g.link(nb, id, uint8(l))
			g.pruneIfNeeded(nb, uint8(l))
		}
		if len(candidates) > 0 {
			cur = candidates[0].id
		}
	}

	if layer > entry.MaxLayer {
		g.entryPoint = id
	}
	return id
}

func (g *Graph) greedyDescend(start uint32, startDist float32, query []float32, layer uint8) (uint32, float32) {
	cur, curDist := start, startDist
	for {
		node, ok := g.getNode(cur)
		if !ok {
			return cur, curDist
		}
		improved := false
		for _, nbID := range node.Connections[layer] {
			nb, ok := g.getNode(nbID)
			if !ok {
				continue
			}
			d := distance(g.params.Metric, query, nb.Vector)
			if d < curDist {
				cur, curDist = nbID, d
				improved = true
			}
		}
		if !improved {
			return cur, curDist
		}
	}
}

type candidate struct {
	id   uint32
	dist float32
}

// beamSearch runs a best-first search of width ef at the given layer,
// returning candidates sorted by ascending distance.
func (g *Graph) beamSearch(entry uint32, query []float32, ef int, layer uint8) []candidate {
	visited := map[uint32]bool{entry: true}
	entryNode, ok := g.getNode(entry)
	if !ok {
		return nil
	}
	entryDist := distance(g.params.Metric, query, entryNode.Vector)

	candidates := []candidate{{entry, entryDist}}
	results := []candidate{{entry, entryDist}}

	for len(candidates) > 0 {
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })
		c := candidates[0]
		candidates = candidates[1:]

		sort.Slice(results, func(i, j int) bool { return results[i].dist < results[j].dist })
		if len(results) >= ef && c.dist > results[len(results)-1].dist {
			break
		}

		node, ok := g.getNode(c.id)
		if !ok {
			continue
		}
		for _, nbID := range node.Connections[layer] {
			if visited[nbID] {
				continue
			}
			visited[nbID] = true
			nb, ok := g.getNode(nbID)
			if !ok {
				continue
			}
			d := distance(g.params.Metric, query, nb.Vector)
			candidates = append(candidates, candidate{nbID, d})
			results = append(results, candidate{nbID, d})
			if len(results) > ef {
				sort.Slice(results, func(i, j int) bool { return results[i].dist < results[j].dist })
				results = results[:ef]
			}
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].dist < results[j].dist })
	return results
}

// selectNeighbors applies the diversity heuristic: a candidate is
// skipped if it's closer to an already-selected neighbor than to the
// query itself, preferring spread-out connections over a redundant
// cluster.
func (g *Graph) selectNeighbors(query []float32, candidates []candidate, m int) []uint32 {
	var selected []candidate
	for _, c := range candidates {
		if len(selected) >= m {
			break
		}
		node, ok := g.getNode(c.id)
		if !ok {
			continue
		}
		diverse := true
		for _, s := range selected {
			sNode, ok := g.getNode(s.id)
			if !ok {
				continue
			}
			if distance(g.params.Metric, node.Vector, sNode.Vector) < c.dist {
				diverse = false
				break
			}
		}
		if diverse {
			selected = append(selected, c)
		}
	}
	ids := make([]uint32, len(selected))
	for i, s := range selected {
		ids[i] = s.id
	}
	return ids
}

func (g *Graph) link(from, to uint32, layer uint8) {
	node, ok := g.getNode(from)
	if !ok {
		return
	}
	for _, existing := range node.Connections[layer] {
		if existing == to {
			return
		}
	}
	node.Connections[layer] = append(node.Connections[layer], to)
}

// pruneIfNeeded trims a node's adjacency at layer back to 2M using the
// same diversity heuristic, if it has grown past that bound.
func (g *Graph) pruneIfNeeded(id uint32, layer uint8) {
	node, ok := g.getNode(id)
	if !ok {
		return
	}
	limit := 2 * g.params.M
	if len(node.Connections[layer]) <= limit {
		return
	}
	candidates := make([]candidate, 0, len(node.Connections[layer]))
	for _, nbID := range node.Connections[layer] {
		nb, ok := g.getNode(nbID)
		if !ok {
			continue
		}
		candidates = append(candidates, candidate{nbID, distance(g.params.Metric, node.Vector, nb.Vector)})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })
	node.Connections[layer] = g.selectNeighbors(node.Vector, candidates, limit)
}

// SearchOptions filters and bounds a Search call.
type SearchOptions struct {
	TypeFilter map[string]bool // metadata["type"] must be in this set, if non-empty
	MinScore   float32
}

// SearchResult is one ranked hit.
type SearchResult struct {
	DocID    string
	Score    float32
	Metadata map[string]string
}

// Search finds the k nearest neighbors of query, descending through
// upper layers greedily and running a beam search at layer 0.
func (g *Graph) Search(query []float32, k int, opts SearchOptions) []SearchResult {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.hasEntry {
		return nil
	}
	entry, ok := g.getNode(g.entryPoint)
	if !ok {
		return nil
	}

	cur := entry.ID
	curDist := distance(g.params.Metric, query, entry.Vector)
	for l := entry.MaxLayer; l > 0; l-- {
		cur, curDist = g.greedyDescend(cur, curDist, query, l)
	}

	ef := g.params.EfSearch
	if k > ef {
		ef = k
	}
	candidates := g.beamSearch(cur, query, ef, 0)

	var results []SearchResult
	for _, c := range candidates {
		node, ok := g.getNode(c.id)
		if !ok {
			continue
		}
		if len(opts.TypeFilter) > 0 && !opts.TypeFilter[node.Metadata["type"]] {
			continue
		}
		s := score(g.params.Metric, c.dist)
		if s < opts.MinScore {
			continue
		}
		results = append(results, SearchResult{DocID: node.DocID, Score: s, Metadata: node.Metadata})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results
}

// Delete removes docID's node from the graph, unlinking it from every
// neighbor's adjacency list first.
func (g *Graph) Delete(docID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, ok := g.docToID[docID]
	if !ok {
		return false
	}
	node, ok := g.getNode(id)
	if !ok {
		delete(g.docToID, docID)
		return true
	}

	for layer, conns := range node.Connections {
		for _, nbID := range conns {
			nb, ok := g.getNode(nbID)
			if !ok {
				continue
			}
			nb.Connections[layer] = removeID(nb.Connections[layer], id)
		}
	}

	g.cache.Remove(id)
	delete(g.docToID, docID)

	if g.hasEntry && g.entryPoint == id {
		g.reassignEntryPoint()
	}
	return true
}

func removeID(ids []uint32, target uint32) []uint32 {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

// reassignEntryPoint scans cached nodes for the one with the highest
// layer, used after the current entry point is deleted. Nodes evicted
// from the cache are not candidates; this may pick a node that isn't
// truly the graph-wide maximum if eviction has occurred, which is
// tolerated per the component's memory-eviction contract.
func (g *Graph) reassignEntryPoint() {
	var bestID uint32
	var bestLayer int8 = -1
	found := false
	for _, id := range g.cache.Keys() {
		node, ok := g.getNode(id)
		if !ok {
			continue
		}
		if int8(node.MaxLayer) > bestLayer {
			bestID = id
			bestLayer = int8(node.MaxLayer)
			found = true
		}
	}
	g.hasEntry = found
	g.entryPoint = bestID
}

// HybridStrategy selects how Search combines with a candidate id filter.
type HybridStrategy string

const (
	Auto       HybridStrategy = "auto"
	PreFilter  HybridStrategy = "pre-filter"
	PostFilter HybridStrategy = "post-filter"
)

// HybridSearch restricts Search to a candidate doc_id set, choosing
// between brute-force pre-filtering and HNSW-search-then-filter based
// on strategy (or automatically, by candidate-set selectivity).
func (g *Graph) HybridSearch(query []float32, k int, candidateDocIDs map[string]bool, strategy HybridStrategy, opts SearchOptions) []SearchResult {
	g.mu.RLock()
	total := g.cache.Len()
	g.mu.RUnlock()

	chosen := strategy
	if strategy == Auto || strategy == "" {
		selectivity := 1.0
		if total > 0 {
			selectivity = float64(len(candidateDocIDs)) / float64(total)
		}
		if len(candidateDocIDs) < 2*k || selectivity < 0.30 {
			chosen = PreFilter
		} else {
			chosen = PostFilter
		}
	}

	if chosen == PreFilter {
		return g.bruteForceFilter(query, k, candidateDocIDs, opts)
	}

	multiplier := 4
	overfetch := k * multiplier
	results := g.Search(query, overfetch, opts)
	filtered := make([]SearchResult, 0, k)
	for _, r := range results {
		if candidateDocIDs[r.DocID] {
			filtered = append(filtered, r)
		}
		if len(filtered) >= k {
			break
		}
	}
	return filtered
}

func (g *Graph) bruteForceFilter(query []float32, k int, candidateDocIDs map[string]bool, opts SearchOptions) []SearchResult {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var results []SearchResult
	for _, id := range g.cache.Keys() {
		node, ok := g.getNode(id)
		if !ok || !candidateDocIDs[node.DocID] {
			continue
		}
		if len(opts.TypeFilter) > 0 && !opts.TypeFilter[node.Metadata["type"]] {
			continue
		}
		d := distance(g.params.Metric, query, node.Vector)
		s := score(g.params.Metric, d)
		if s < opts.MinScore {
			continue
		}
		results = append(results, SearchResult{DocID: node.DocID, Score: s, Metadata: node.Metadata})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results
}

// Len returns the number of nodes currently resident in the cache.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cache.Len()
}
