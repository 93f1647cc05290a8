// SPDX-FileCopyrightText: 2024 wikiarchive authors
// SPDX-License-Identifier: MIT

package ivfpq

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/orcaman/writerseeker"
)

// magic identifies a vector index file: "LANC".
var magic = [4]byte{'L', 'A', 'N', 'C'}

const (
	fileVersion  = 1
	footerColumns = 9 // id, title, type, chunk_index, text_preview, embedding, model, created_at, ivfpq
	footerSize    = footerColumns * 8
	flagHasIVFPQ  = 1 << 0
)

// Metadata is the JSON block embedded after the fixed header.
type Metadata struct {
	Schema             string `json:"schema"`
	RowCount           int    `json:"row_count"`
	EmbeddingDimension int    `json:"embedding_dimension"`
	IndexType          string `json:"index_type"`
	IndexConfig        Config `json:"index_config"`
}

// Row is one record in the columnar payload sections.
type Row struct {
	ID          string
	Title       string
	Type        string
	ChunkIndex  int32
	TextPreview string
	Embedding   []float32
	Model       string
	CreatedAt   int64
}

// WriteFile assembles a complete vector index file at path: header,
// JSON metadata, per-column payload sections, an optional IVF-PQ
// section, and the trailing 72-byte footer of column offsets.
//
// Columns are built in an in-memory WriterSeeker first so the footer's
// offsets can be computed before anything touches disk; the assembled
// buffer is then written out in one pass.
func WriteFile(path string, rows []Row, meta Metadata, ivf *Index) error {
	ws := &writerseeker.WriterSeeker{}

	offsets := make([]int64, footerColumns)
	var pos int64

	writeColumn := func(idx int, w func(io.Writer) error) error {
		offsets[idx] = pos
		var buf bytes.Buffer
		if err := w(&buf); err != nil {
			return err
		}
		n, err := ws.Write(buf.Bytes())
		if err != nil {
			return err
		}
		pos += int64(n)
		return nil
	}

	if err := writeColumn(0, func(w io.Writer) error { return writeStringColumn(w, ids(rows)) }); err != nil {
		return fmt.Errorf("ivfpq: writing id column: %w", err)
	}
	if err := writeColumn(1, func(w io.Writer) error { return writeStringColumn(w, titles(rows)) }); err != nil {
		return fmt.Errorf("ivfpq: writing title column: %w", err)
	}
	if err := writeColumn(2, func(w io.Writer) error { return writeStringColumn(w, types(rows)) }); err != nil {
		return fmt.Errorf("ivfpq: writing type column: %w", err)
	}
	if err := writeColumn(3, func(w io.Writer) error { return writeInt32Column(w, chunkIndices(rows)) }); err != nil {
		return fmt.Errorf("ivfpq: writing chunk_index column: %w", err)
	}
	if err := writeColumn(4, func(w io.Writer) error { return writeStringColumn(w, textPreviews(rows)) }); err != nil {
		return fmt.Errorf("ivfpq: writing text_preview column: %w", err)
	}
	if err := writeColumn(5, func(w io.Writer) error { return writeEmbeddingColumn(w, embeddings(rows)) }); err != nil {
		return fmt.Errorf("ivfpq: writing embedding column: %w", err)
	}
	if err := writeColumn(6, func(w io.Writer) error { return writeStringColumn(w, models(rows)) }); err != nil {
		return fmt.Errorf("ivfpq: writing model column: %w", err)
	}
	if err := writeColumn(7, func(w io.Writer) error { return writeInt64Column(w, createdAts(rows)) }); err != nil {
		return fmt.Errorf("ivfpq: writing created_at column: %w", err)
	}

	flags := uint32(0)
	offsets[8] = pos // an absent IVF-PQ section is empty, at the end of the payload
	if ivf != nil {
		flags |= flagHasIVFPQ
		if err := writeColumn(8, func(w io.Writer) error { return writeIVFPQSection(w, ivf) }); err != nil {
			return fmt.Errorf("ivfpq: writing ivfpq section: %w", err)
		}
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("ivfpq: marshaling metadata: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ivfpq: creating %s: %w", path, err)
	}
	defer f.Close()

	if err := binary.Write(f, binary.LittleEndian, magic); err != nil {
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(fileVersion)); err != nil {
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(metaJSON))); err != nil {
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, flags); err != nil {
		return err
	}
	if _, err := f.Write(metaJSON); err != nil {
		return err
	}

	body, err := io.ReadAll(ws.Reader())
	if err != nil {
		return fmt.Errorf("ivfpq: reading assembled payload: %w", err)
	}
	if _, err := f.Write(body); err != nil {
		return err
	}

	footer := make([]byte, footerSize)
	for i, off := range offsets {
		binary.LittleEndian.PutUint64(footer[i*8:], math.Float64bits(float64(off)))
	}
	if _, err := f.Write(footer); err != nil {
		return err
	}
	return f.Sync()
}

func writeStringColumn(w io.Writer, values []string) error {
	offsets := make([]uint32, len(values)+1)
	var data bytes.Buffer
	for i, v := range values {
		data.WriteString(v)
		offsets[i+1] = uint32(data.Len())
	}
	for _, off := range offsets {
		if err := binary.Write(w, binary.LittleEndian, off); err != nil {
			return err
		}
	}
	_, err := w.Write(data.Bytes())
	return err
}

func writeInt32Column(w io.Writer, values []int32) error {
	return binary.Write(w, binary.LittleEndian, values)
}

func writeInt64Column(w io.Writer, values []int64) error {
	return binary.Write(w, binary.LittleEndian, values)
}

func writeEmbeddingColumn(w io.Writer, values [][]float32) error {
	for _, v := range values {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return nil
}

func writeIVFPQSection(w io.Writer, ix *Index) error {
	enc := json.NewEncoder(w)
	type section struct {
		Centroids        [][]float32   `json:"centroids"`
		Codebooks        [][][]float32 `json:"codebooks"`
		Assignments      []uint32      `json:"assignments"`
		PQCodes          [][]byte      `json:"pq_codes"`
		SortedIDs        []uint32      `json:"sorted_ids"`
		PartitionOffsets []uint32      `json:"partition_offsets"`
	}
	return enc.Encode(section{
		Centroids:        ix.centroids,
		Codebooks:        ix.codebooks,
		Assignments:      ix.assignments,
		PQCodes:          ix.pqCodes,
		SortedIDs:        ix.sortedIDs,
		PartitionOffsets: ix.partitionOffsets,
	})
}

func ids(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

func titles(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Title
	}
	return out
}

func types(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Type
	}
	return out
}

func textPreviews(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.TextPreview
	}
	return out
}

func models(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Model
	}
	return out
}

func chunkIndices(rows []Row) []int32 {
	out := make([]int32, len(rows))
	for i, r := range rows {
		out[i] = r.ChunkIndex
	}
	return out
}

func createdAts(rows []Row) []int64 {
	out := make([]int64, len(rows))
	for i, r := range rows {
		out[i] = r.CreatedAt
	}
	return out
}

func embeddings(rows []Row) [][]float32 {
	out := make([][]float32, len(rows))
	for i, r := range rows {
		out[i] = r.Embedding
	}
	return out
}

// RangeReader is the subset of an object-store client this package
// needs for lazy, per-section reads of a published vector index file.
// Defined narrowly so tests can supply a local-file fake instead of a
// real object-store connection.
type RangeReader interface {
	ReadRange(ctx context.Context, offset, length int64) ([]byte, error)
}

// Header is the fixed-size prefix of a vector index file.
type Header struct {
	Version  uint32
	MetaLen  uint32
	Flags    uint32
	Metadata Metadata
}

// ReadHeader fetches the fixed 16-byte header, validates the magic
// bytes, then fetches the JSON metadata in a second range request.
func ReadHeader(ctx context.Context, r RangeReader) (*Header, error) {
	prefix, err := r.ReadRange(ctx, 0, 16)
	if err != nil {
		return nil, fmt.Errorf("ivfpq: reading header: %w", err)
	}
	if len(prefix) < 16 || prefix[0] != magic[0] || prefix[1] != magic[1] || prefix[2] != magic[2] || prefix[3] != magic[3] {
		return nil, fmt.Errorf("ivfpq: bad magic bytes, index file is corrupt or absent")
	}

	version := binary.LittleEndian.Uint32(prefix[4:8])
	metaLen := binary.LittleEndian.Uint32(prefix[8:12])
	flags := binary.LittleEndian.Uint32(prefix[12:16])

	metaBytes, err := r.ReadRange(ctx, 16, int64(metaLen))
	if err != nil {
		return nil, fmt.Errorf("ivfpq: reading metadata: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, fmt.Errorf("ivfpq: decoding metadata: %w", err)
	}

	return &Header{Version: version, MetaLen: metaLen, Flags: flags, Metadata: meta}, nil
}

// ReadFooter fetches the trailing 72-byte footer of column offsets.
// fileSize is the total file size, known from a prior stat/HEAD.
func ReadFooter(ctx context.Context, r RangeReader, fileSize int64) ([footerColumns]int64, error) {
	var offsets [footerColumns]int64
	raw, err := r.ReadRange(ctx, fileSize-footerSize, footerSize)
	if err != nil {
		return offsets, fmt.Errorf("ivfpq: reading footer: %w", err)
	}
	if len(raw) != footerSize {
		return offsets, fmt.Errorf("ivfpq: truncated footer: got %d bytes, want %d", len(raw), footerSize)
	}
	for i := range offsets {
		offsets[i] = int64(math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:])))
	}
	return offsets, nil
}
