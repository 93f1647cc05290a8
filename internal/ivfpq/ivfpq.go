// SPDX-FileCopyrightText: 2024 wikiarchive authors
// SPDX-License-Identifier: MIT

// Package ivfpq is an inverted-file product-quantization vector index
// for on-disk corpora too large to hold as dense float32 in memory: a
// coarse IVF partition narrows the search, and per-partition vectors
// are compressed to byte codes via per-subvector codebooks, searched
// with precomputed asymmetric distance tables.
package ivfpq

import (
	"fmt"
	"math"
	"sort"
)

// Config describes the quantizer's shape.
type Config struct {
	Dimension          int
	NumPartitions      int
	NumSubQuantizers   int
	TrainingSampleSize int
}

// codebookSize is the number of sub-centroids per sub-quantizer
// codebook; bitsPerCode=8 means one byte per sub-quantizer per vector.
const codebookSize = 256

// Index is a trained IVF-PQ structure plus the encoded corpus.
type Index struct {
	cfg Config

	centroids [][]float32   // [NumPartitions][Dimension]
	codebooks [][][]float32 // [NumSubQuantizers][256][Dimension/NumSubQuantizers]

	assignments     []uint32 // [N] coarse partition per vector, in original insertion order
	pqCodes         [][]byte // [N][NumSubQuantizers]
	sortedIDs       []uint32 // permutation sorting vectors by partition
	partitionOffsets []uint32 // [NumPartitions+1]

	subDim int
}

// Train builds an Index from a training sample of vectors: k-means for
// the coarse quantizer, then k-means per sub-vector for the PQ
// codebooks.
func Train(cfg Config, trainingVectors [][]float32, seed int64) (*Index, error) {
	if cfg.Dimension <= 0 || len(trainingVectors) == 0 {
		return nil, fmt.Errorf("ivfpq: empty or malformed training set")
	}
	if cfg.Dimension%cfg.NumSubQuantizers != 0 {
		return nil, fmt.Errorf("ivfpq: dimension %d not divisible by %d sub-quantizers", cfg.Dimension, cfg.NumSubQuantizers)
	}
	subDim := cfg.Dimension / cfg.NumSubQuantizers

	sample := trainingVectors
	if cfg.TrainingSampleSize > 0 && len(sample) > cfg.TrainingSampleSize {
		sample = sample[:cfg.TrainingSampleSize]
	}

	centroids := kmeans(sample, cfg.NumPartitions, 25, seed)

	codebooks := make([][][]float32, cfg.NumSubQuantizers)
	for m := 0; m < cfg.NumSubQuantizers; m++ {
		subVectors := make([][]float32, len(sample))
		for i, v := range sample {
			subVectors[i] = v[m*subDim : (m+1)*subDim]
		}
		codebooks[m] = kmeans(subVectors, codebookSize, 25, seed+int64(m)+1)
	}

	return &Index{cfg: cfg, centroids: centroids, codebooks: codebooks, subDim: subDim}, nil
}

// Add encodes and appends one vector to the index, assigning it to its
// nearest centroid and PQ-encoding it against the trained codebooks.
// Callers add all vectors before calling Finalize.
func (ix *Index) Add(vector []float32) {
	partition := ix.nearestCentroid(vector)
	ix.assignments = append(ix.assignments, uint32(partition))

	code := make([]byte, ix.cfg.NumSubQuantizers)
	for m := 0; m < ix.cfg.NumSubQuantizers; m++ {
		sub := vector[m*ix.subDim : (m+1)*ix.subDim]
		code[m] = byte(ix.nearestSubCentroid(m, sub))
	}
	ix.pqCodes = append(ix.pqCodes, code)
}

func (ix *Index) nearestCentroid(v []float32) int {
	best, bestDist := 0, float32(math.MaxFloat32)
	for c, centroid := range ix.centroids {
		d := sqEuclidean(v, centroid)
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func (ix *Index) nearestSubCentroid(m int, sub []float32) int {
	best, bestDist := 0, float32(math.MaxFloat32)
	for c, centroid := range ix.codebooks[m] {
		d := sqEuclidean(sub, centroid)
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// Finalize computes sortedIDs (the permutation sorting vectors by
// partition) and partitionOffsets, after all vectors have been Added.
func (ix *Index) Finalize() {
	n := len(ix.assignments)
	ix.sortedIDs = make([]uint32, n)
	for i := range ix.sortedIDs {
		ix.sortedIDs[i] = uint32(i)
	}
	sort.Slice(ix.sortedIDs, func(i, j int) bool {
		return ix.assignments[ix.sortedIDs[i]] < ix.assignments[ix.sortedIDs[j]]
	})

	ix.partitionOffsets = make([]uint32, ix.cfg.NumPartitions+1)
	for _, id := range ix.sortedIDs {
		ix.partitionOffsets[ix.assignments[id]+1]++
	}
	for p := 1; p < len(ix.partitionOffsets); p++ {
		ix.partitionOffsets[p] += ix.partitionOffsets[p-1]
	}
}

// SearchOptions configures Search.
type SearchOptions struct {
	Nprobe     int
	Asymmetric bool // when false, exact distances re-rank the top 2k via exactVectors
}

// Result is one ranked hit, keyed by original insertion index.
type Result struct {
	VectorIndex uint32
	Distance    float32
}

// Search computes approximate distances via precomputed asymmetric
// distance tables over the nprobe nearest partitions, returning the
// top k by ascending distance. If opts.Asymmetric is false and
// exactVectors is non-nil, the top 2k candidates are re-ranked by
// exact distance.
func (ix *Index) Search(query []float32, k int, opts SearchOptions, exactVectors [][]float32) []Result {
	nprobe := opts.Nprobe
	if nprobe <= 0 || nprobe > len(ix.centroids) {
		nprobe = len(ix.centroids)
	}

	type partDist struct {
		partition int
		dist      float32
	}
	partDists := make([]partDist, len(ix.centroids))
	for p, c := range ix.centroids {
		partDists[p] = partDist{p, sqEuclidean(query, c)}
	}
	sort.Slice(partDists, func(i, j int) bool { return partDists[i].dist < partDists[j].dist })
	if len(partDists) > nprobe {
		partDists = partDists[:nprobe]
	}

	tables := ix.distanceTables(query)

	var candidates []Result
	for _, pd := range partDists {
		start, end := ix.partitionOffsets[pd.partition], ix.partitionOffsets[pd.partition+1]
		for i := start; i < end; i++ {
			vecIdx := ix.sortedIDs[i]
			code := ix.pqCodes[vecIdx]
			var approx float32
			for m, c := range code {
				approx += tables[m][c]
			}
			candidates = append(candidates, Result{VectorIndex: vecIdx, Distance: approx})
		}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Distance < candidates[j].Distance })

	overfetch := k * 2
	if overfetch > len(candidates) {
		overfetch = len(candidates)
	}
	candidates = candidates[:overfetch]

	if !opts.Asymmetric && exactVectors != nil {
		for i := range candidates {
			exact := sqEuclidean(query, exactVectors[candidates[i].VectorIndex])
			candidates[i].Distance = exact
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].Distance < candidates[j].Distance })
	}

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}

// distanceTables precomputes, for each sub-quantizer, the squared
// distance from query's sub-vector to every sub-codeword.
func (ix *Index) distanceTables(query []float32) [][]float32 {
	tables := make([][]float32, ix.cfg.NumSubQuantizers)
	for m := 0; m < ix.cfg.NumSubQuantizers; m++ {
		sub := query[m*ix.subDim : (m+1)*ix.subDim]
		table := make([]float32, codebookSize)
		for c, centroid := range ix.codebooks[m] {
			table[c] = sqEuclidean(sub, centroid)
		}
		tables[m] = table
	}
	return tables
}

// NumVectors returns the count of encoded vectors.
func (ix *Index) NumVectors() int { return len(ix.assignments) }
