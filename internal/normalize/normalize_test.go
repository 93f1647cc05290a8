// SPDX-License-Identifier: MIT

package normalize

import "testing"

func TestNormalizeDefault(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Zürich", "zurich"},
		{"Åland Islands", "aland islands"},
		{"São Paulo", "sao paulo"},
		{"Straße", "strase"},
		{"  Double   Space  ", "double space"},
		{"Müller-Lyer", "muller lyer"},
	}
	for _, c := range cases {
		got := Normalize(c.in, Default())
		if got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

// TestCuratedMapOwnsListedCharacters pins Open Question 1: the curated
// diacritic map runs first and owns any character it lists; NFD
// stripping never re-processes a character the map already replaced.
func TestCuratedMapOwnsListedCharacters(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"æon", "aon"},
		{"Œuvre", "ouvre"},
		{"Øresund", "oresund"},
		{"Łódź", "lodz"},
		{"Þingvellir", "tingvellir"},
	}
	for _, c := range cases {
		got := Normalize(c.in, Default())
		if got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeExpandAbbreviations(t *testing.T) {
	opts := Options{ExpandAbbreviations: true, MaxLength: 256}
	got := Normalize("st. louis", opts)
	if got != "saint louis" {
		t.Errorf("got %q, want %q", got, "saint louis")
	}
}

func TestNormalizeStem(t *testing.T) {
	opts := Options{Stem: true, MaxLength: 256}
	got := Normalize("running rivers", opts)
	if got == "running rivers" {
		t.Errorf("expected stemming to change input, got %q", got)
	}
}

func TestNormalizeTruncatesToValidUTF8(t *testing.T) {
	opts := Options{MaxLength: 5}
	got := Normalize("héllo world", opts)
	if len(got) > 5 {
		t.Errorf("expected result within %d bytes, got %q (%d bytes)", 5, got, len(got))
	}
}

func TestHashIsDeterministic(t *testing.T) {
	a := Hash("zurich")
	b := Hash("zurich")
	if a != b {
		t.Fatal("expected Hash to be deterministic")
	}
	if Hash("zurich") == Hash("geneva") {
		t.Fatal("expected distinct terms to hash differently")
	}
}

func TestBloomKeyIsNormalizedTerm(t *testing.T) {
	if BloomKey("zurich") != "zurich" {
		t.Errorf("expected BloomKey to return its input unchanged")
	}
}
