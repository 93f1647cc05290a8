// SPDX-FileCopyrightText: 2024 wikiarchive authors
// SPDX-License-Identifier: MIT

// Package decompress auto-detects gzip or bzip2 streams and exposes a
// streaming io.Reader with O(window-size) memory, never O(compressed-size).
package decompress

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
)

// Format identifies a detected compression format.
type Format int

const (
	Unknown Format = iota
	Gzip
	Bzip2
	None
)

var (
	gzipMagic  = []byte{0x1F, 0x8B}
	bzip2Magic = []byte{0x42, 0x5A}
)

// DetectFormat sniffs the first two bytes of peeked to determine format.
func DetectFormat(peeked []byte) Format {
	if len(peeked) >= 2 {
		if peeked[0] == gzipMagic[0] && peeked[1] == gzipMagic[1] {
			return Gzip
		}
		if peeked[0] == bzip2Magic[0] && peeked[1] == bzip2Magic[1] {
			return Bzip2
		}
	}
	return Unknown
}

// FormatFromExtension falls back to URL/path extension when magic-byte
// sniffing is inconclusive (e.g. an empty or truncated stream).
func FormatFromExtension(name string) Format {
	switch {
	case strings.HasSuffix(name, ".bz2"):
		return Bzip2
	case strings.HasSuffix(name, ".gz"):
		return Gzip
	default:
		return None
	}
}

// NewReader wraps r with the right decompressor, auto-detecting from the
// stream's first two bytes and falling back to nameHint's extension when
// those bytes match neither magic (including a stream too short to sniff).
func NewReader(r io.Reader, nameHint string) (io.Reader, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	peeked, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("decompress: peeking stream: %w", err)
	}

	format := DetectFormat(peeked)
	if format == Unknown {
		format = FormatFromExtension(nameHint)
	}

	switch format {
	case Gzip:
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("decompress: opening gzip stream: %w", err)
		}
		return gz, nil
	case Bzip2:
		bz, err := bzip2.NewReader(br, &bzip2.ReaderConfig{})
		if err != nil {
			return nil, fmt.Errorf("decompress: opening bzip2 stream: %w", err)
		}
		return bz, nil
	default:
		return br, nil
	}
}
