// SPDX-FileCopyrightText: 2024 wikiarchive authors
// SPDX-License-Identifier: MIT

package ivfpq

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats/floats32"
)

// kmeans runs Lloyd's algorithm over vectors, returning k centroids of
// the same dimensionality. maxIters bounds the refinement; the loop
// also stops early once no point changes cluster. With fewer vectors
// than k, initial centroids repeat vectors, and duplicate centroids
// keep their starting value.
func kmeans(vectors [][]float32, k, maxIters int, seed int64) [][]float32 {
	if len(vectors) == 0 || k <= 0 {
		return nil
	}
	dim := len(vectors[0])

	rng := rand.New(rand.NewSource(seed))
	centroids := make([][]float32, k)
	perm := rng.Perm(len(vectors))
	for i := 0; i < k; i++ {
		v := make([]float32, dim)
		copy(v, vectors[perm[i%len(vectors)]])
		centroids[i] = v
	}

	assignments := make([]int, len(vectors))
	for iter := 0; iter < maxIters; iter++ {
		changed := false
		for i, v := range vectors {
			best, bestDist := 0, float32(math.MaxFloat32)
			for c, centroid := range centroids {
				d := sqEuclidean(v, centroid)
				if d < bestDist {
					best, bestDist = c, d
				}
			}
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}

		sums := make([][]float32, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float32, dim)
		}
		for i, v := range vectors {
			c := assignments[i]
			floats32.Add(sums[c], v)
			counts[c]++
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue // keep the previous centroid if the cluster emptied out
			}
			for d := 0; d < dim; d++ {
				centroids[c][d] = sums[c][d] / float32(counts[c])
			}
		}

		if !changed {
			break
		}
	}
	return centroids
}

func sqEuclidean(a, b []float32) float32 {
	var sum float32
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum
}
