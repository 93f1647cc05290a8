// SPDX-License-Identifier: MIT

package ivfpq

import (
	"math/rand"
	"testing"
)

func randomVectors(n, dim int, seed int64) [][]float32 {
	rng := rand.New(rand.NewSource(seed))
	vecs := make([][]float32, n)
	for i := range vecs {
		v := make([]float32, dim)
		for d := range v {
			v[d] = rng.Float32()
		}
		vecs[i] = v
	}
	return vecs
}

func TestTrainProducesExpectedShapes(t *testing.T) {
	cfg := Config{Dimension: 8, NumPartitions: 4, NumSubQuantizers: 2, TrainingSampleSize: 50}
	vectors := randomVectors(50, 8, 1)

	ix, err := Train(cfg, vectors, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(ix.centroids) != 4 {
		t.Errorf("expected 4 centroids, got %d", len(ix.centroids))
	}
	if len(ix.codebooks) != 2 {
		t.Errorf("expected 2 codebooks, got %d", len(ix.codebooks))
	}
	if len(ix.codebooks[0]) != codebookSize {
		t.Errorf("expected %d sub-centroids per codebook, got %d", codebookSize, len(ix.codebooks[0]))
	}
}

func TestTrainRejectsIndivisibleDimension(t *testing.T) {
	cfg := Config{Dimension: 7, NumPartitions: 2, NumSubQuantizers: 2}
	_, err := Train(cfg, randomVectors(10, 7, 1), 1)
	if err == nil {
		t.Fatal("expected error for dimension not divisible by sub-quantizer count")
	}
}

func TestAddAndFinalizePartitionOffsetsAreNonDecreasing(t *testing.T) {
	cfg := Config{Dimension: 8, NumPartitions: 4, NumSubQuantizers: 2}
	vectors := randomVectors(40, 8, 2)
	ix, err := Train(cfg, vectors, 2)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range vectors {
		ix.Add(v)
	}
	ix.Finalize()

	if ix.partitionOffsets[len(ix.partitionOffsets)-1] != uint32(len(vectors)) {
		t.Errorf("expected final offset %d, got %d", len(vectors), ix.partitionOffsets[len(ix.partitionOffsets)-1])
	}
	for i := 1; i < len(ix.partitionOffsets); i++ {
		if ix.partitionOffsets[i] < ix.partitionOffsets[i-1] {
			t.Fatalf("partition offsets not non-decreasing: %v", ix.partitionOffsets)
		}
	}
}

func TestSearchFindsApproximateNeighborOfItself(t *testing.T) {
	cfg := Config{Dimension: 8, NumPartitions: 4, NumSubQuantizers: 2}
	vectors := randomVectors(60, 8, 3)
	ix, err := Train(cfg, vectors, 3)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range vectors {
		ix.Add(v)
	}
	ix.Finalize()

	query := vectors[5]
	results := ix.Search(query, 5, SearchOptions{Nprobe: 4, Asymmetric: false}, vectors)
	if len(results) == 0 {
		t.Fatal("expected at least one result")
	}
	if results[0].VectorIndex != 5 {
		t.Errorf("expected exact self-match to re-rank to the top, got index %d (distance %v)", results[0].VectorIndex, results[0].Distance)
	}
}
