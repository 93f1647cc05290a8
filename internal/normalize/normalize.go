// SPDX-FileCopyrightText: 2024 wikiarchive authors
// SPDX-License-Identifier: MIT

// Package normalize canonicalizes terms for lookup-table keys, bloom
// filter positions, and index entries. Normalization is purely a
// function of input and options, so it is idempotent and deterministic.
package normalize

import (
	"hash/fnv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/surgebase/porter2"
)

// Options controls which normalization steps run.
type Options struct {
	RemoveDiacritics    bool
	ExpandAbbreviations bool
	Stem                bool
	MaxLength           int // 0 means unbounded
}

// Default returns the options used for title/category/entity terms:
// diacritics removed, no stemming, no abbreviation expansion, 256-byte cap.
func Default() Options {
	return Options{RemoveDiacritics: true, MaxLength: 256}
}

// diacriticMap is the curated set of precomposed characters folded to
// their plain ASCII base letter before any NFD-based stripping runs.
// Characters not listed here fall through to combining-mark stripping.
var diacriticMap = map[rune]rune{
	'æ': 'a', 'Æ': 'a',
	'œ': 'o', 'Œ': 'o',
	'ø': 'o', 'Ø': 'o',
	'ß': 's',
	'ł': 'l', 'Ł': 'l',
	'đ': 'd', 'Đ': 'd',
	'ð': 'd', 'Ð': 'd',
	'þ': 't', 'Þ': 't',
}

// abbreviations expands common English abbreviations before punctuation
// stripping collapses the period into a space.
var abbreviations = map[string]string{
	"st.":  "saint",
	"mt.":  "mount",
	"dr.":  "doctor",
	"mr.":  "mister",
	"mrs.": "missus",
	"ft.":  "fort",
	"jr.":  "junior",
	"sr.":  "senior",
}

// Normalize canonicalizes s per opts. Steps run in this fixed order:
// NFC, lowercase, diacritic folding (curated map then NFD stripping),
// abbreviation expansion, non-letter/non-number collapse to spaces,
// whitespace collapse, optional stemming, truncate to MaxLength.
func Normalize(s string, opts Options) string {
	s = norm.NFC.String(s)
	s = strings.ToLower(s)

	if opts.RemoveDiacritics {
		s = foldDiacritics(s)
	}

	if opts.ExpandAbbreviations {
		s = expandAbbreviations(s)
	}

	s = stripToLettersAndSpaces(s)
	s = collapseWhitespace(s)

	if opts.Stem {
		s = stemWords(s)
	}

	if opts.MaxLength > 0 && len(s) > opts.MaxLength {
		s = truncateValidUTF8(s, opts.MaxLength)
	}

	return s
}

// foldDiacritics first applies the curated map, then strips any
// remaining combining marks via NFD decomposition. The curated map
// owns every character it lists; NFD stripping only ever touches
// characters the map did not handle.
func foldDiacritics(s string) string {
	var mapped strings.Builder
	mapped.Grow(len(s))
	for _, r := range s {
		if repl, ok := diacriticMap[r]; ok {
			mapped.WriteRune(repl)
		} else {
			mapped.WriteRune(r)
		}
	}

	decomposed := norm.NFD.String(mapped.String())
	var out strings.Builder
	out.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) { // combining mark
			continue
		}
		out.WriteRune(r)
	}
	return norm.NFC.String(out.String())
}

func expandAbbreviations(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if repl, ok := abbreviations[w]; ok {
			words[i] = repl
		}
	}
	return strings.Join(words, " ")
}

func stripToLettersAndSpaces(s string) string {
	var out strings.Builder
	out.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			out.WriteRune(r)
		} else {
			out.WriteRune(' ')
		}
	}
	return out.String()
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func stemWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = porter2.Stem(w)
	}
	return strings.Join(words, " ")
}

func truncateValidUTF8(s string, maxLength int) string {
	b := []byte(s)
	if len(b) <= maxLength {
		return s
	}
	b = b[:maxLength]
	for len(b) > 0 {
		r := []rune(string(b))
		if string(r) == string(b) {
			break
		}
		b = b[:len(b)-1]
	}
	return strings.TrimSpace(string(b))
}

// Hash returns the FNV-1a 64-bit hash of a normalized term, used as
// EmbeddingLookup.term_hash.
func Hash(term string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(term))
	return h.Sum64()
}

// BloomKey returns the string used to derive bloom filter positions for
// a term: the normalized term itself. Kept as a named function so
// callers do not have to remember which normalization form bloom
// filters were built against.
func BloomKey(term string) string {
	return term
}
