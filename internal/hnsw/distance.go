// SPDX-FileCopyrightText: 2024 wikiarchive authors
// SPDX-License-Identifier: MIT

package hnsw

import (
	"math"
	"math/rand"
	"sync"

	"gonum.org/v1/gonum/floats/floats32"
)

var (
	randMu  sync.Mutex
	randSrc = rand.New(rand.NewSource(1))
)

func uniform01() float64 {
	randMu.Lock()
	defer randMu.Unlock()
	// avoid log(0)
	for {
		u := randSrc.Float64()
		if u > 0 {
			return u
		}
	}
}

// SeedLayerSampling fixes the layer-sampling PRNG seed, for deterministic
// tests. Production callers need not call this.
func SeedLayerSampling(seed int64) {
	randMu.Lock()
	defer randMu.Unlock()
	randSrc = rand.New(rand.NewSource(seed))
}

// Metric selects the vector similarity/distance function used for both
// graph construction and search ranking.
type Metric string

const (
	Cosine    Metric = "cosine"
	Euclidean Metric = "euclidean"
	Dot       Metric = "dot"
)

// distance returns a value where smaller means more similar, used to
// order the candidate beam during construction and search. For Dot,
// we negate so that "smaller is closer" still holds.
func distance(metric Metric, a, b []float32) float32 {
	switch metric {
	case Euclidean:
		return euclideanDistance(a, b)
	case Dot:
		return -floats32.Dot(a, b)
	default: // Cosine
		return cosineDistance(a, b)
	}
}

func euclideanDistance(a, b []float32) float32 {
	diff := make([]float32, len(a))
	for i := range a {
		diff[i] = a[i] - b[i]
	}
	return floats32.Norm(diff, 2)
}

func cosineDistance(a, b []float32) float32 {
	dot := floats32.Dot(a, b)
	na := floats32.Norm(a, 2)
	nb := floats32.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 1
	}
	cosine := dot / (na * nb)
	return 1 - cosine
}

// score converts a distance back into a ranking score where higher is
// better, per the component contract: 1/(1+distance) for
// cosine/euclidean, raw dot-product for dot.
func score(metric Metric, d float32) float32 {
	if metric == Dot {
		return -d // distance was negated dot; un-negate for the reported score
	}
	return float32(1 / (1 + float64(d)))
}

func geometricLayer(m int) uint8 {
	if m < 2 {
		m = 2
	}
	lambda := 1.0 / math.Log(float64(m))
	u := uniform01()
	layer := math.Floor(-math.Log(u) * lambda)
	if layer < 0 {
		layer = 0
	}
	return uint8(layer)
}
