// SPDX-FileCopyrightText: 2024 wikiarchive authors
// SPDX-License-Identifier: MIT

// Package columnar writes ArticleRecord batches into a type-partitioned
// directory of Parquet shard files, flushing row-groups on size and
// rolling shards over at a configurable byte limit.
package columnar

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
)

// ArticleRecord is the storage-facing row shape. Infobox keeps the full
// field map as an escape hatch alongside shredded columns for the common
// keys in wikiconfig.ShreddedInfoboxKeys.
type ArticleRecord struct {
	ID          string            `parquet:"id"`
	Type        string            `parquet:"type"`
	Title       string            `parquet:"title"`
	Description string            `parquet:"description"`
	WikidataID  string            `parquet:"wikidata_id,optional"`
	CoordsLat   *float32          `parquet:"coords_lat,optional"`
	CoordsLon   *float32          `parquet:"coords_lon,optional"`
	Content     string            `parquet:"content"`
	UpdatedAt   int64             `parquet:"updated_at"`
	BirthDate   string            `parquet:"birth_date,optional"`
	DeathDate   string            `parquet:"death_date,optional"`
	Population  *int64            `parquet:"population,optional"`
	Founded     string            `parquet:"founded,optional"`
	ReleaseDate string            `parquet:"release_date,optional"`
	PublicationDate string        `parquet:"publication_date,optional"`
	Area        string            `parquet:"area,optional"`
	Infobox     map[string]string `parquet:"infobox,optional"`
	Embedding   []float32         `parquet:"embedding,optional"`
}

// ShardFile describes one finalized output file.
type ShardFile struct {
	Path       string
	Type       string
	Shard      int
	RowCount   int64
	ByteSize   int64
	RowGroups  int
}

// Thresholds configures the file-count governor. Each level fires a
// one-shot warning via OnWarn; going over MaxFiles aborts with
// FileLimitExceeded.
type Thresholds struct {
	WarnAt     int
	WarnHighAt int
	CriticalAt int
	MaxFiles   int
}

// FileLimitExceeded is raised by the governor when the file count
// exceeds MaxFiles.
type FileLimitExceeded struct {
	Count int
	Max   int
}

func (e *FileLimitExceeded) Error() string {
	return fmt.Sprintf("columnar: file count %d exceeds limit %d; increase row-group or shard size, or consolidate", e.Count, e.Max)
}

// Config configures a Writer.
type Config struct {
	OutputDir    string
	RowGroupSize int
	MaxFileSize  int64
	Thresholds   Thresholds
	OnWarn       func(level string, count, max int)
}

type typeBuffer struct {
	records   []ArticleRecord
	shard     int
	file      *os.File
	writer    *parquet.GenericWriter[ArticleRecord]
	rowCount  int64
	byteSize  int64
	rowGroups int
}

// Writer routes ArticleRecords into per-type shard files.
type Writer struct {
	cfg        Config
	buffers    map[string]*typeBuffer
	fileCount  int
	warned     map[string]bool
	shardFiles []ShardFile
}

// New creates a Writer rooted at cfg.OutputDir/data.
func New(cfg Config) (*Writer, error) {
	if cfg.RowGroupSize <= 0 {
		cfg.RowGroupSize = 10000
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 256 << 20
	}
	if err := os.MkdirAll(filepath.Join(cfg.OutputDir, "data"), 0755); err != nil {
		return nil, fmt.Errorf("columnar: creating output dir: %w", err)
	}
	return &Writer{
		cfg:     cfg,
		buffers: make(map[string]*typeBuffer),
		warned:  make(map[string]bool),
	}, nil
}

// Write routes one record into its type's buffer, flushing a row-group
// when the buffer fills.
func (w *Writer) Write(rec ArticleRecord) error {
	buf, ok := w.buffers[rec.Type]
	if !ok {
		buf = &typeBuffer{}
		w.buffers[rec.Type] = buf
		if err := w.openShard(rec.Type, buf); err != nil {
			return err
		}
	}

	buf.records = append(buf.records, rec)
	if len(buf.records) >= w.cfg.RowGroupSize {
		if err := w.flushRowGroup(rec.Type, buf); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) flushRowGroup(typ string, buf *typeBuffer) error {
	if len(buf.records) == 0 {
		return nil
	}
	if _, err := buf.writer.Write(buf.records); err != nil {
		return fmt.Errorf("columnar: writing row-group for %s: %w", typ, err)
	}
	if err := buf.writer.Flush(); err != nil {
		return fmt.Errorf("columnar: flushing row-group for %s: %w", typ, err)
	}
	buf.rowCount += int64(len(buf.records))
	buf.rowGroups++
	buf.records = buf.records[:0]

	info, err := buf.file.Stat()
	if err == nil {
		buf.byteSize = info.Size()
	}

	if buf.byteSize > w.cfg.MaxFileSize {
		if err := w.rollShard(typ, buf); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) openShard(typ string, buf *typeBuffer) error {
	dir := filepath.Join(w.cfg.OutputDir, "data", typ)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("columnar: creating type dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s.%d.parquet", typ, buf.shard))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("columnar: creating shard file: %w", err)
	}

	w.fileCount++
	if err := w.checkGovernor(); err != nil {
		f.Close()
		return err
	}

	buf.file = f
	buf.writer = parquet.NewGenericWriter[ArticleRecord](f)
	buf.rowCount = 0
	buf.byteSize = 0
	buf.rowGroups = 0
	return nil
}

func (w *Writer) rollShard(typ string, buf *typeBuffer) error {
	if err := w.closeShard(typ, buf); err != nil {
		return err
	}
	buf.shard++
	return w.openShard(typ, buf)
}

func (w *Writer) closeShard(typ string, buf *typeBuffer) error {
	if buf.writer == nil {
		return nil
	}
	if err := buf.writer.Close(); err != nil {
		return fmt.Errorf("columnar: closing writer for %s: %w", typ, err)
	}
	info, err := buf.file.Stat()
	if err == nil {
		buf.byteSize = info.Size()
	}
	path := buf.file.Name()
	if err := buf.file.Close(); err != nil {
		return fmt.Errorf("columnar: closing shard file: %w", err)
	}

	w.shardFiles = append(w.shardFiles, ShardFile{
		Path:      path,
		Type:      typ,
		Shard:     buf.shard,
		RowCount:  buf.rowCount,
		ByteSize:  buf.byteSize,
		RowGroups: buf.rowGroups,
	})
	return nil
}

// checkGovernor fires one-shot warnings at the configured thresholds
// and returns FileLimitExceeded once the file count exceeds MaxFiles.
func (w *Writer) checkGovernor() error {
	t := w.cfg.Thresholds
	n := w.fileCount

	fire := func(level string, at int) {
		if at <= 0 || n < at || w.warned[level] {
			return
		}
		w.warned[level] = true
		if w.cfg.OnWarn != nil {
			w.cfg.OnWarn(level, n, t.MaxFiles)
		}
	}
	fire("warn", t.WarnAt)
	fire("warn_high", t.WarnHighAt)
	fire("critical", t.CriticalAt)

	if t.MaxFiles > 0 && n > t.MaxFiles {
		return &FileLimitExceeded{Count: n, Max: t.MaxFiles}
	}
	return nil
}

// Finalize flushes every non-empty buffer and closes all shard files,
// returning the finalized ShardFile descriptors for the manifest.
func (w *Writer) Finalize() ([]ShardFile, error) {
	for typ, buf := range w.buffers {
		if len(buf.records) > 0 {
			if err := w.flushRowGroup(typ, buf); err != nil {
				return nil, err
			}
		}
		if err := w.closeShard(typ, buf); err != nil {
			return nil, err
		}
	}
	return w.shardFiles, nil
}

// ShredInfobox lifts the curated keys in wikiconfig.ShreddedInfoboxKeys
// out of a raw infobox field map into first-class ArticleRecord columns,
// leaving the full map intact as an escape hatch.
func ShredInfobox(rec *ArticleRecord, fields map[string]string) {
	if fields == nil {
		return
	}
	rec.Infobox = fields
	rec.BirthDate = fields["birth_date"]
	rec.DeathDate = fields["death_date"]
	rec.Founded = fields["founded"]
	rec.ReleaseDate = fields["release_date"]
	rec.PublicationDate = fields["publication_date"]
	rec.Area = fields["area"]
	if pop, ok := parseInt64(fields["population"]); ok {
		rec.Population = &pop
	}
}

// ReadShard reads every record back out of a finalized Parquet shard
// file, for index rebuilding and query-time access.
func ReadShard(path string) ([]ArticleRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("columnar: opening %s: %w", path, err)
	}
	defer f.Close()

	reader := parquet.NewGenericReader[ArticleRecord](f)
	defer reader.Close()

	var records []ArticleRecord
	buf := make([]ArticleRecord, 256)
	for {
		n, err := reader.Read(buf)
		records = append(records, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("columnar: reading %s: %w", path, err)
		}
	}
	return records, nil
}

func parseInt64(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	var n int64
	var digits int
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int64(r-'0')
		digits++
	}
	return n, digits > 0
}
