// SPDX-FileCopyrightText: 2024 wikiarchive authors
// SPDX-License-Identifier: MIT

// Package geohash maps (lat, lng) to base32 geohash strings and
// supports radius and bounding-box search over geohash-bucketed
// entries, ranked by Haversine distance.
package geohash

import (
	"math"
	"sort"
)

const base32Alphabet = "0123456789bcdefghjkmnpqrstuvwxyz"

// earthRadiusMeters is the mean Earth radius used for Haversine distance.
const earthRadiusMeters = 6371000.0

// DefaultPrecision is the default geohash string length, giving cells
// of roughly 4.8m x 4.8m.
const DefaultPrecision = 9

// Encode converts (lat, lng) into a base32 geohash of the given length.
func Encode(lat, lng float64, precision int) string {
	if precision <= 0 {
		precision = DefaultPrecision
	}
	latRange := [2]float64{-90, 90}
	lngRange := [2]float64{-180, 180}

	var hash []byte
	bit, ch := 0, 0
	evenBit := true

	for len(hash) < precision {
		if evenBit {
			mid := (lngRange[0] + lngRange[1]) / 2
			if lng >= mid {
				ch |= 1 << (4 - bit)
				lngRange[0] = mid
			} else {
				lngRange[1] = mid
			}
		} else {
			mid := (latRange[0] + latRange[1]) / 2
			if lat >= mid {
				ch |= 1 << (4 - bit)
				latRange[0] = mid
			} else {
				latRange[1] = mid
			}
		}
		evenBit = !evenBit

		if bit < 4 {
			bit++
		} else {
			hash = append(hash, base32Alphabet[ch])
			bit, ch = 0, 0
		}
	}
	return string(hash)
}

// BoundingBox is a (lat,lng) rectangle, south/west/north/east.
type BoundingBox struct {
	South, West, North, East float64
}

// Decode returns the bounding box a geohash string represents; the
// decoded (lat,lng) center point lies within this box.
func Decode(hash string) BoundingBox {
	latRange := [2]float64{-90, 90}
	lngRange := [2]float64{-180, 180}
	evenBit := true

	for _, c := range hash {
		idx := indexOf(byte(c))
		if idx < 0 {
			continue
		}
		for i := 4; i >= 0; i-- {
			bitVal := (idx >> uint(i)) & 1
			if evenBit {
				mid := (lngRange[0] + lngRange[1]) / 2
				if bitVal == 1 {
					lngRange[0] = mid
				} else {
					lngRange[1] = mid
				}
			} else {
				mid := (latRange[0] + latRange[1]) / 2
				if bitVal == 1 {
					latRange[0] = mid
				} else {
					latRange[1] = mid
				}
			}
			evenBit = !evenBit
		}
	}
	return BoundingBox{South: latRange[0], West: lngRange[0], North: latRange[1], East: lngRange[1]}
}

func indexOf(c byte) int {
	for i := 0; i < len(base32Alphabet); i++ {
		if base32Alphabet[i] == c {
			return i
		}
	}
	return -1
}

// Neighbors returns the 8 adjacent geohash cells at the same precision
// as hash, in the order N, NE, E, SE, S, SW, W, NW.
func Neighbors(hash string) []string {
	box := Decode(hash)
	latSpan := box.North - box.South
	lngSpan := box.East - box.West
	lat := (box.North + box.South) / 2
	lng := (box.East + box.West) / 2
	precision := len(hash)

	offsets := [][2]float64{
		{latSpan, 0}, {latSpan, lngSpan}, {0, lngSpan}, {-latSpan, lngSpan},
		{-latSpan, 0}, {-latSpan, -lngSpan}, {0, -lngSpan}, {latSpan, -lngSpan},
	}
	neighbors := make([]string, len(offsets))
	for i, off := range offsets {
		neighbors[i] = Encode(clampLat(lat+off[0]), wrapLng(lng+off[1]), precision)
	}
	return neighbors
}

func clampLat(lat float64) float64 {
	if lat > 90 {
		return 90
	}
	if lat < -90 {
		return -90
	}
	return lat
}

func wrapLng(lng float64) float64 {
	for lng > 180 {
		lng -= 360
	}
	for lng < -180 {
		lng += 360
	}
	return lng
}

// Haversine returns the great-circle distance in meters between two
// (lat, lng) points.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// Entry is one indexed (article, location) pair.
type Entry struct {
	ArticleID string
	Lat, Lng  float64
	Geohash   string
	Type      string
}

// Index buckets entries by geohash prefix at a fixed precision.
type Index struct {
	precision int
	entries   []Entry
	buckets   map[string][]int // geohash prefix -> indices into entries
}

// NewIndex creates an empty Index at the given geohash precision.
func NewIndex(precision int) *Index {
	if precision <= 0 {
		precision = DefaultPrecision
	}
	return &Index{precision: precision, buckets: make(map[string][]int)}
}

// Add inserts one entry, computing its geohash at the index's precision.
func (ix *Index) Add(articleID string, lat, lng float64, typ string) {
	hash := Encode(lat, lng, ix.precision)
	e := Entry{ArticleID: articleID, Lat: lat, Lng: lng, Geohash: hash, Type: typ}
	ix.entries = append(ix.entries, e)
	ix.buckets[hash] = append(ix.buckets[hash], len(ix.entries)-1)
}

// NearResult is a ranked Near search hit.
type NearResult struct {
	Entry      Entry
	DistanceM  float64
}

// NearOptions configures Near.
type NearOptions struct {
	MaxDistanceM float64
	MinDistanceM float64
	Limit        int
	Types        []string
}

// Near returns entries within [MinDistanceM, MaxDistanceM] of (lat,lng),
// sorted ascending by distance, filtered by Types if non-empty, capped
// at Limit.
func (ix *Index) Near(lat, lng float64, opts NearOptions) []NearResult {
	precision := cellPrecisionForRadius(opts.MaxDistanceM)
	if precision > ix.precision {
		precision = ix.precision
	}
	centerHash := Encode(lat, lng, precision)
	cells := map[string]bool{centerHash: true}
	for _, n := range Neighbors(centerHash) {
		cells[n] = true
	}

	typeFilter := toSet(opts.Types)

	var results []NearResult
	for _, e := range ix.entries {
		cellPrefix := e.Geohash
		if len(cellPrefix) > precision {
			cellPrefix = cellPrefix[:precision]
		}
		if !cells[cellPrefix] {
			continue
		}
		if len(typeFilter) > 0 && !typeFilter[e.Type] {
			continue
		}
		d := Haversine(lat, lng, e.Lat, e.Lng)
		if opts.MaxDistanceM > 0 && d > opts.MaxDistanceM {
			continue
		}
		if d < opts.MinDistanceM {
			continue
		}
		results = append(results, NearResult{Entry: e, DistanceM: d})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].DistanceM < results[j].DistanceM })
	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results
}

// BoundingBoxSearch returns entries whose (lat,lng) falls inside box.
func (ix *Index) BoundingBoxSearch(box BoundingBox) []Entry {
	var results []Entry
	for _, e := range ix.entries {
		if e.Lat >= box.South && e.Lat <= box.North && e.Lng >= box.West && e.Lng <= box.East {
			results = append(results, e)
		}
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

// cellPrecisionForRadius picks a geohash precision whose cell size is
// comparably larger than radiusM, so a 3x3 neighbor block covers it.
func cellPrecisionForRadius(radiusM float64) int {
	if radiusM <= 0 {
		return DefaultPrecision
	}
	// approximate cell widths in meters by precision, halving per 5 bits
	widths := []float64{5000000, 1250000, 156000, 39100, 4890, 1220, 153, 38.2, 4.77, 1.19}
	for i := len(widths) - 1; i >= 0; i-- {
		if widths[i]/2 >= radiusM {
			return i + 1
		}
	}
	return 1
}
