// SPDX-License-Identifier: MIT

package geohash

import (
	"math"
	"testing"
)

func TestEncodeDecodeRoundTripContainsOriginalPoint(t *testing.T) {
	lat, lng := 35.6895, 139.6917 // Tokyo
	hash := Encode(lat, lng, 9)
	box := Decode(hash)
	if lat < box.South || lat > box.North || lng < box.West || lng > box.East {
		t.Fatalf("decoded box %+v does not contain (%v, %v)", box, lat, lng)
	}
}

func TestEncodeKnownValue(t *testing.T) {
	// Tokyo station, precision 7; expect a stable prefix matching common references.
	got := Encode(35.6812, 139.7671, 7)
	if len(got) != 7 {
		t.Fatalf("expected length 7, got %q", got)
	}
	if got != "xn76urx" {
		t.Errorf("expected %q, got %q", "xn76urx", got)
	}
}

func TestHaversineZeroForSamePoint(t *testing.T) {
	d := Haversine(35.0, 139.0, 35.0, 139.0)
	if d != 0 {
		t.Errorf("expected 0, got %v", d)
	}
}

func TestHaversineApproximateKnownDistance(t *testing.T) {
	// Tokyo to Osaka, roughly 400km.
	d := Haversine(35.6895, 139.6917, 34.6937, 135.5023)
	if math.Abs(d-400000) > 60000 {
		t.Errorf("got %v meters, expected roughly 400km", d)
	}
}

func TestIndexNearFindsNearbyEntryWithinRadius(t *testing.T) {
	ix := NewIndex(9)
	ix.Add("tokyo", 35.6895, 139.6917, "place")
	ix.Add("osaka", 34.6937, 135.5023, "place")

	results := ix.Near(35.69, 139.69, NearOptions{MaxDistanceM: 5000, Limit: 10})
	if len(results) != 1 || results[0].Entry.ArticleID != "tokyo" {
		t.Fatalf("expected only tokyo within 5km, got %+v", results)
	}
}

func TestIndexNearFiltersByType(t *testing.T) {
	ix := NewIndex(9)
	ix.Add("a", 35.0, 139.0, "place")
	ix.Add("b", 35.0001, 139.0001, "person")

	results := ix.Near(35.0, 139.0, NearOptions{MaxDistanceM: 100000, Types: []string{"place"}})
	if len(results) != 1 || results[0].Entry.ArticleID != "a" {
		t.Fatalf("expected only place-typed entry, got %+v", results)
	}
}

func TestIndexBoundingBoxSearch(t *testing.T) {
	ix := NewIndex(9)
	ix.Add("inside", 10.0, 20.0, "place")
	ix.Add("outside", 50.0, 50.0, "place")

	box := BoundingBox{South: 0, North: 20, West: 0, East: 30}
	results := ix.BoundingBoxSearch(box)
	if len(results) != 1 || results[0].ArticleID != "inside" {
		t.Fatalf("got %+v", results)
	}
}
