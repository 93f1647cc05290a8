// SPDX-FileCopyrightText: 2024 wikiarchive authors
// SPDX-License-Identifier: MIT

// Package bloom implements a probabilistic set-membership filter sized
// from an expected item count and target false-positive rate.
package bloom

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
)

// Filter is a Bloom filter using FNV-1a base hashes with double hashing.
type Filter struct {
	bitCount  uint64
	hashCount uint32
	bits      []uint64 // packed, 64 bits per word
}

// New sizes a filter for expectedItems entries at false-positive rate p.
// m = ceil(-n*ln(p) / (ln 2)^2), k = ceil((m/n)*ln 2).
func New(expectedItems int, p float64) *Filter {
	if expectedItems < 1 {
		expectedItems = 1
	}
	if p <= 0 || p >= 1 {
		p = 0.01
	}
	n := float64(expectedItems)
	ln2 := math.Ln2
	m := math.Ceil(-n * math.Log(p) / (ln2 * ln2))
	if m < 64 {
		m = 64
	}
	k := math.Ceil((m / n) * ln2)
	if k < 1 {
		k = 1
	}
	bitCount := uint64(m)
	words := (bitCount + 63) / 64
	return &Filter{
		bitCount:  bitCount,
		hashCount: uint32(k),
		bits:      make([]uint64, words),
	}
}

// NewWithParams builds a filter with explicit bit and hash counts, used
// when deserializing a persisted filter.
func NewWithParams(bitCount uint64, hashCount uint32) *Filter {
	words := (bitCount + 63) / 64
	return &Filter{bitCount: bitCount, hashCount: hashCount, bits: make([]uint64, words)}
}

// BitCount returns the number of bits backing the filter.
func (f *Filter) BitCount() uint64 { return f.bitCount }

// HashCount returns the number of hash functions used per item.
func (f *Filter) HashCount() uint32 { return f.hashCount }

// hashPair returns the two FNV-1a-derived base hashes used for double
// hashing: FNV-1a of the term, and FNV-1a of the term behind a 0xff salt byte.
func hashPair(term string) (uint64, uint64) {
	h1 := fnv.New64a()
	h1.Write([]byte(term))
	a := h1.Sum64()

	h2 := fnv.New64a()
	h2.Write([]byte{0xff})
	h2.Write([]byte(term))
	b := h2.Sum64()
	if b == 0 {
		b = 1 // avoid a degenerate double-hash sequence
	}
	return a, b
}

// positions returns the k bit positions for term, via h_i = h1 + i*h2 mod m.
func (f *Filter) positions(term string) []uint64 {
	h1, h2 := hashPair(term)
	positions := make([]uint64, f.hashCount)
	for i := uint32(0); i < f.hashCount; i++ {
		positions[i] = (h1 + uint64(i)*h2) % f.bitCount
	}
	return positions
}

// Add inserts term into the filter.
func (f *Filter) Add(term string) {
	for _, pos := range f.positions(term) {
		f.bits[pos/64] |= 1 << (pos % 64)
	}
}

// MightContain reports whether term may be a member of the set.
// False positives are possible; false negatives are not.
func (f *Filter) MightContain(term string) bool {
	for _, pos := range f.positions(term) {
		if f.bits[pos/64]&(1<<(pos%64)) == 0 {
			return false
		}
	}
	return true
}

// persisted is the on-disk JSON form of a Filter.
type persisted struct {
	BitCount  uint64 `json:"bit_count"`
	HashCount uint32 `json:"hash_count"`
	Bits      string `json:"bits"` // base64-encoded packed words, little-endian
}

// MarshalJSON encodes the filter as base64-packed bits with bit/hash counts.
func (f *Filter) MarshalJSON() ([]byte, error) {
	raw := make([]byte, len(f.bits)*8)
	for i, word := range f.bits {
		for b := 0; b < 8; b++ {
			raw[i*8+b] = byte(word >> (8 * b))
		}
	}
	p := persisted{
		BitCount:  f.bitCount,
		HashCount: f.hashCount,
		Bits:      base64.StdEncoding.EncodeToString(raw),
	}
	return json.Marshal(p)
}

// UnmarshalJSON restores a filter from its persisted form.
func (f *Filter) UnmarshalJSON(data []byte) error {
	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	raw, err := base64.StdEncoding.DecodeString(p.Bits)
	if err != nil {
		return fmt.Errorf("bloom: decoding bits: %w", err)
	}
	words := (p.BitCount + 63) / 64
	if uint64(len(raw)) < words*8 {
		return fmt.Errorf("bloom: truncated bit array: got %d bytes, want %d", len(raw), words*8)
	}
	f.bitCount = p.BitCount
	f.hashCount = p.HashCount
	f.bits = make([]uint64, words)
	for i := range f.bits {
		var word uint64
		for b := 0; b < 8; b++ {
			word |= uint64(raw[i*8+b]) << (8 * b)
		}
		f.bits[i] = word
	}
	return nil
}
