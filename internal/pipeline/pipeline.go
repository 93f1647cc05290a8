// SPDX-FileCopyrightText: 2024 wikiarchive authors
// SPDX-License-Identifier: MIT

// Package pipeline is the end-to-end ingestion driver: it composes
// the streaming source, decompressor, XML splitter, wikitext parser,
// classifier, embedding client, and columnar writer into a single
// resumable run, with checkpointing and progress reporting.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	humanize "github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/brawer/wikiarchive/internal/classify"
	"github.com/brawer/wikiarchive/internal/columnar"
	"github.com/brawer/wikiarchive/internal/decompress"
	"github.com/brawer/wikiarchive/internal/embedclient"
	"github.com/brawer/wikiarchive/internal/indexbuild"
	"github.com/brawer/wikiarchive/internal/manifest"
	"github.com/brawer/wikiarchive/internal/metrics"
	"github.com/brawer/wikiarchive/internal/source"
	"github.com/brawer/wikiarchive/internal/wikitext"
	"github.com/brawer/wikiarchive/internal/xmlsplit"
)

// Config controls one ingestion run.
type Config struct {
	DumpURL            string
	OutputDir          string
	BatchSize          int
	CheckpointInterval int64
	Limit              int64 // 0 = unlimited
	GenerateEmbeddings bool
	EmbedClient        *embedclient.Client
	EmbedConcurrency   int // max batches embedding concurrently
	S3Client           source.S3 // required when DumpURL has an s3:// scheme
	RowGroupSize       int
	MaxShardFileSize   int64
	FileThresholds     columnar.Thresholds
	BloomFPRate        float64
	Metrics            *metrics.Registry
	Logger             *log.Logger
	ProgressEvery      time.Duration
	OnProgress         func(Progress)
}

// Progress summarizes pipeline state for periodic reporting.
type Progress struct {
	ArticlesProcessed int64
	ArticlesByType    map[string]int64
	BytesDownloaded   int64
	EmbeddingHitRate  float64
}

// Result summarizes a completed run.
type Result struct {
	Manifest     manifest.Manifest
	RecordErrors []RecordError
	Checkpoint   Checkpoint
}

func (cfg *Config) setDefaults() {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.CheckpointInterval <= 0 {
		cfg.CheckpointInterval = 10_000
	}
	if cfg.EmbedConcurrency <= 0 {
		cfg.EmbedConcurrency = 4
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "pipeline: ", log.LstdFlags)
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = 10 * time.Second
	}
}

// batchJob carries one batch from the scan/parse/embed-dispatch stage
// to the write/checkpoint stage, in strict scan order. Embedding for
// a batch may complete out of order relative to other batches (bounded
// by a semaphore), but jobs are always consumed from the channel in
// the order they were produced, so checkpoint progress stays monotonic.
//
// progress is a snapshot computed entirely within the producer, so the
// consumer is the sole writer of the shared Checkpoint: the two stages
// never touch the same Checkpoint fields concurrently.
type batchJob struct {
	records  []columnar.ArticleRecord
	progress batchProgress
	embedded chan struct{}
}

type batchProgress struct {
	processed        int64
	lastArticleID    uint64
	lastArticleTitle string
	byType           map[string]int64
}

// Run executes one ingestion pass: download, decompress, split, parse,
// classify, batch, embed (optionally, with bounded concurrency across
// batches), write, and finalize. It honors ctx cancellation
// cooperatively: on cancellation or any other fatal error a checkpoint
// is saved before the error is returned, and once the scan stages have
// run the writer's open shards are flushed first.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	cfg.setDefaults()

	existing, err := LoadCheckpoint(cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	var cp Checkpoint
	if existing != nil && existing.DumpURL == cfg.DumpURL {
		cp = *existing
		cfg.Logger.Printf("resuming from checkpoint: %d articles processed, last id %d", cp.ArticlesProcessed, cp.LastArticleID)
	} else {
		cp = Checkpoint{DumpURL: cfg.DumpURL, ArticlesByType: make(map[string]int64), StartedAt: time.Now().UTC()}
	}
	if cp.ArticlesByType == nil {
		cp.ArticlesByType = make(map[string]int64)
	}

	writer, err := columnar.New(columnar.Config{
		OutputDir:    cfg.OutputDir,
		RowGroupSize: cfg.RowGroupSize,
		MaxFileSize:  cfg.MaxShardFileSize,
		Thresholds:   cfg.FileThresholds,
		OnWarn: func(level string, count, max int) {
			cfg.Logger.Printf("shard file count warning: level=%s count=%d max=%d", level, count, max)
		},
	})
	if err != nil {
		return nil, err
	}

	indexer := indexbuild.New(cfg.OutputDir, cfg.BloomFPRate)
	errs := newErrorRing(100)

	var bytesDownloaded int64
	var lastReportedBytes int64
	srcCfg := source.Config{
		URL:           cfg.DumpURL,
		ResumeFrom:    cp.BytesDownloaded,
		ProgressEvery: cfg.ProgressEvery,
		S3Client:      cfg.S3Client,
		OnProgress: func(p source.Progress) {
			bytesDownloaded = p.BytesDownloaded
			if cfg.Metrics != nil {
				cfg.Metrics.BytesDownloaded.Add(float64(p.BytesDownloaded - lastReportedBytes))
			}
			lastReportedBytes = p.BytesDownloaded
			cfg.Logger.Printf("downloaded %s at %s/s", humanize.Bytes(uint64(p.BytesDownloaded)), humanize.Bytes(uint64(p.BytesPerSecond)))
		},
	}

	stream, err := source.Open(ctx, srcCfg)
	if err != nil {
		if cerr := SaveCheckpoint(cfg.OutputDir, cp); cerr != nil {
			cfg.Logger.Printf("failed to save checkpoint during shutdown: %v", cerr)
		}
		return nil, fmt.Errorf("pipeline: opening source: %w", err)
	}
	defer stream.Close()

	decompressed, err := decompress.NewReader(stream.AsReader(ctx), cfg.DumpURL)
	if err != nil {
		if cerr := SaveCheckpoint(cfg.OutputDir, cp); cerr != nil {
			cfg.Logger.Printf("failed to save checkpoint during shutdown: %v", cerr)
		}
		return nil, fmt.Errorf("pipeline: opening decompressor: %w", err)
	}

	scanner := xmlsplit.NewScanner(decompressed)
	sem := semaphore.NewWeighted(int64(cfg.EmbedConcurrency))
	jobs := make(chan *batchJob, 2)

	g, gctx := errgroup.WithContext(ctx)

	// Producer: scan, parse, classify, batch, and (if enabled) dispatch
	// embedding for each batch without blocking the next batch's parse.
	// It only reads the checkpoint's resume position, captured once
	// before the stage starts; it never writes cp.
	resumeLastID := cp.LastArticleID
	resumeProcessed := cp.ArticlesProcessed
	g.Go(func() error {
		defer close(jobs)
		return produce(gctx, cfg, scanner, sem, resumeLastID, resumeProcessed, jobs)
	})

	// Consumer: write each batch's records in order, advance and
	// periodically persist the checkpoint, and surface fatal errors.
	g.Go(func() error {
		lastCheckpointAt := cp.ArticlesProcessed
		for job := range jobs {
			select {
			case <-job.embedded:
			case <-gctx.Done():
				return gctx.Err()
			}
			if err := writeBatch(cfg, writer, indexer, errs, job.records); err != nil {
				return err
			}
			applyProgress(&cp, job.progress)
			cp.BytesDownloaded = bytesDownloaded
			if cp.ArticlesProcessed-lastCheckpointAt >= cfg.CheckpointInterval {
				if err := SaveCheckpoint(cfg.OutputDir, cp); err != nil {
					return err
				}
				if cfg.Metrics != nil {
					cfg.Metrics.CheckpointSaves.Inc()
				}
				lastCheckpointAt = cp.ArticlesProcessed
			}
			if cfg.OnProgress != nil {
				hitRate := 0.0
				if cfg.EmbedClient != nil {
					hitRate = cfg.EmbedClient.Stats().HitRate
				}
				cfg.OnProgress(Progress{
					ArticlesProcessed: cp.ArticlesProcessed,
					ArticlesByType:    cp.ArticlesByType,
					BytesDownloaded:   bytesDownloaded,
					EmbeddingHitRate:  hitRate,
				})
			}
		}
		return nil
	})

	runErr := g.Wait()
	if scanErr := scanner.Err(); scanErr != nil && runErr == nil {
		runErr = fmt.Errorf("pipeline: malformed dump stream: %w", scanErr)
	}

	if runErr != nil {
		if _, ferr := writer.Finalize(); ferr != nil {
			cfg.Logger.Printf("failed to flush writer during shutdown: %v", ferr)
		}
		if cerr := SaveCheckpoint(cfg.OutputDir, cp); cerr != nil {
			cfg.Logger.Printf("failed to save checkpoint during shutdown: %v", cerr)
		}
		return nil, runErr
	}

	shards, err := writer.Finalize()
	if err != nil {
		return nil, fmt.Errorf("pipeline: finalizing writer: %w", err)
	}
	if err := indexer.Finalize(); err != nil {
		return nil, fmt.Errorf("pipeline: finalizing indexes: %w", err)
	}

	m := manifest.Build(cfg.DumpURL, shards)
	if err := manifest.Write(cfg.OutputDir, m); err != nil {
		return nil, fmt.Errorf("pipeline: writing manifest: %w", err)
	}
	if err := SaveCheckpoint(cfg.OutputDir, cp); err != nil {
		cfg.Logger.Printf("failed to save final checkpoint: %v", err)
	}

	return &Result{Manifest: m, RecordErrors: errs.Errors(), Checkpoint: cp}, nil
}

// produce scans raw pages, groups them into batches, parses and
// classifies each batch, and dispatches its embedding call (bounded by
// sem) before handing the job to jobs in scan order. resumeLastID and
// resumeProcessed are a snapshot of the checkpoint taken before this
// stage started; produce tracks its own running totals from there and
// never touches the shared Checkpoint, which only the consumer writes.
func produce(ctx context.Context, cfg Config, scanner *xmlsplit.Scanner, sem *semaphore.Weighted, resumeLastID uint64, resumeProcessed int64, jobs chan<- *batchJob) error {
	var batch []xmlsplit.RawPage
	lastID := resumeLastID
	processed := resumeProcessed

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		records, progress := buildRecords(cfg, batch, processed)
		lastID = progress.lastArticleID
		processed = progress.processed
		batch = nil

		job := &batchJob{records: records, progress: progress, embedded: make(chan struct{})}
		if !cfg.GenerateEmbeddings || cfg.EmbedClient == nil || len(records) == 0 {
			close(job.embedded)
		} else if err := sem.Acquire(ctx, 1); err != nil {
			close(job.embedded)
			return err
		} else {
			go func() {
				defer sem.Release(1)
				defer close(job.embedded)
				embed(ctx, cfg, records)
			}()
		}

		select {
		case jobs <- job:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		page := scanner.Page()
		if page.ID <= lastID && processed > 0 {
			continue
		}
		if cfg.Limit > 0 && processed+int64(len(batch)) >= cfg.Limit {
			break
		}

		batch = append(batch, page)
		if len(batch) >= cfg.BatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

// buildRecords parses and classifies one batch of raw pages into
// storage-ready records, plus a progress snapshot continuing from
// startProcessed. It does not touch the shared Checkpoint.
func buildRecords(cfg Config, batch []xmlsplit.RawPage, startProcessed int64) ([]columnar.ArticleRecord, batchProgress) {
	records := make([]columnar.ArticleRecord, 0, len(batch))
	progress := batchProgress{processed: startProcessed, byType: make(map[string]int64)}

	for _, page := range batch {
		art := wikitext.Parse(page)
		typ := string(classify.Classify(art))

		rec := columnar.ArticleRecord{
			ID:          fmt.Sprintf("%d", page.ID),
			Type:        typ,
			Title:       page.Title,
			Description: wikitext.FirstParagraph(art.Plaintext, 500),
			Content:     art.Plaintext,
			UpdatedAt:   page.Timestamp.Unix(),
		}
		for _, box := range art.Infoboxes {
			columnar.ShredInfobox(&rec, box.Fields)
			break // first infobox is authoritative for shredded columns
		}
		records = append(records, rec)

		progress.lastArticleID = page.ID
		progress.lastArticleTitle = page.Title
		progress.processed++
		progress.byType[typ]++
		if cfg.Metrics != nil {
			cfg.Metrics.ArticlesIngested.WithLabelValues(typ).Inc()
		}
	}
	return records, progress
}

// applyProgress merges one batch's progress snapshot into cp. Called
// only from the consumer stage, so cp has a single writer.
func applyProgress(cp *Checkpoint, p batchProgress) {
	cp.ArticlesProcessed = p.processed
	if p.lastArticleID != 0 {
		cp.LastArticleID = p.lastArticleID
		cp.LastArticleTitle = p.lastArticleTitle
	}
	for typ, n := range p.byType {
		cp.ArticlesByType[typ] += n
	}
}

// embed calls the embedding client for one batch's content and attaches
// the resulting vectors to records in place. A failed batch is logged
// and left without embeddings rather than aborting the run.
func embed(ctx context.Context, cfg Config, records []columnar.ArticleRecord) {
	texts := make([]string, len(records))
	for i, rec := range records {
		texts[i] = rec.Content
	}

	vecs, err := cfg.EmbedClient.Embed(ctx, texts)
	if err != nil {
		if cfg.Metrics != nil {
			cfg.Metrics.EmbeddingErrors.Inc()
		}
		cfg.Logger.Printf("embedding batch of %d failed, writing records without embeddings: %v", len(records), err)
		return
	}
	for i, v := range vecs {
		records[i].Embedding = v
	}
}

// writeBatch writes every record to the columnar writer and tracks it
// in the index builder. A per-record write failure is routed to errs
// and skipped, unless it is the fatal FileLimitExceeded, which aborts
// the run.
func writeBatch(cfg Config, writer *columnar.Writer, indexer *indexbuild.Builder, errs *errorRing, records []columnar.ArticleRecord) error {
	for i, rec := range records {
		if err := writer.Write(rec); err != nil {
			var limitErr *columnar.FileLimitExceeded
			if errors.As(err, &limitErr) {
				return fmt.Errorf("pipeline: writing record %s: %w", rec.ID, err)
			}
			errs.Add(RecordError{ArticleTitle: rec.Title, Err: err})
			if cfg.Metrics != nil {
				cfg.Metrics.ParseErrors.Inc()
			}
			continue
		}
		indexer.AddRow(rec.ID, rec.Title, rec.Type, shardPathFor(rec.Type), 0, i)
	}
	return nil
}

// shardPathFor is a placeholder lookup until the columnar writer
// exposes per-type current-shard paths; kept narrow so indexbuild
// entries always point at a type's most recent shard.
func shardPathFor(typ string) string {
	return typ
}
