// SPDX-FileCopyrightText: 2024 wikiarchive authors
// SPDX-License-Identifier: MIT

// Package source reads bytes from an HTTP URL or local file as a lazy,
// finite, non-restartable sequence of chunks, with byte-range resume,
// progress reporting, and cooperative cancellation.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
	"github.com/minio/minio-go/v7"
)

// S3 is the narrow subset of the minio client used to fetch dumps
// stored in S3-compatible object storage. It is restricted to
// FGetObject (download straight to a local file) rather than the
// streaming GetObject call, so a fake test double only has to write
// bytes to a path instead of constructing a minio.Object.
type S3 interface {
	FGetObject(ctx context.Context, bucket, key, filePath string, opts minio.GetObjectOptions) error
}

// Progress reports download speed and volume at a point in time.
type Progress struct {
	BytesDownloaded int64
	BytesPerSecond  float64
	ElapsedMs       int64
}

// ProgressFunc receives periodic progress reports.
type ProgressFunc func(Progress)

// FetchError is returned for permanent, non-retryable failures: 404,
// 416, or other 4xx responses other than 429.
type FetchError struct {
	URL        string
	StatusCode int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("source: fetch %s failed with status %d", e.URL, e.StatusCode)
}

// AbortedError is surfaced to consumers when a cancellation signal
// terminates the stream mid-read.
type AbortedError struct{}

func (e *AbortedError) Error() string { return "source: aborted" }

// Config controls resume, retry, and progress behavior.
type Config struct {
	URL           string // http(s):// URL, s3://bucket/key, or a local filesystem path
	ResumeFrom    int64  // byte offset to resume from, via Range header
	MaxRetries    int
	ProgressEvery time.Duration
	OnProgress    ProgressFunc
	S3Client      S3 // required when URL has an s3:// scheme
}

// Stream is a single-use, forward-only byte source.
type Stream struct {
	cfg      Config
	body     io.ReadCloser
	started  time.Time
	total    int64
	lastTick time.Time
}

// Open begins reading cfg.URL (HTTP or local file), issuing a Range
// request when cfg.ResumeFrom is non-zero. The returned Stream must be
// closed by the caller.
func Open(ctx context.Context, cfg Config) (*Stream, error) {
	if cfg.ProgressEvery == 0 {
		cfg.ProgressEvery = time.Second
	}

	if strings.HasPrefix(cfg.URL, "s3://") {
		return openS3(ctx, cfg)
	}

	if isLocalPath(cfg.URL) {
		f, err := os.Open(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("source: opening %s: %w", cfg.URL, err)
		}
		if cfg.ResumeFrom > 0 {
			if _, err := f.Seek(cfg.ResumeFrom, io.SeekStart); err != nil {
				f.Close()
				return nil, fmt.Errorf("source: seeking %s: %w", cfg.URL, err)
			}
		}
		return &Stream{cfg: cfg, body: f, started: time.Now()}, nil
	}

	client := retryablehttp.NewClient()
	client.RetryMax = cfg.MaxRetries
	client.Logger = nil
	client.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if err != nil {
			return true, nil
		}
		switch resp.StatusCode {
		case http.StatusTooManyRequests:
			return true, nil
		default:
			return resp.StatusCode >= 500, nil
		}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("source: building request: %w", err)
	}
	if cfg.ResumeFrom > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", cfg.ResumeFrom))
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source: fetching %s: %w", cfg.URL, err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent:
		return &Stream{cfg: cfg, body: resp.Body, started: time.Now()}, nil
	case http.StatusNotFound, http.StatusRequestedRangeNotSatisfiable:
		resp.Body.Close()
		return nil, &FetchError{URL: cfg.URL, StatusCode: resp.StatusCode}
	default:
		resp.Body.Close()
		return nil, &FetchError{URL: cfg.URL, StatusCode: resp.StatusCode}
	}
}

// openS3 downloads a dump stored in S3-compatible object storage to a
// local temp file via FGetObject, then streams it exactly like a
// local-path Stream (including ResumeFrom, via Seek rather than a
// ranged request: FGetObject has no partial-download mode). Bucket and
// key are split from an "s3://bucket/key" URL.
func openS3(ctx context.Context, cfg Config) (*Stream, error) {
	if cfg.S3Client == nil {
		return nil, fmt.Errorf("source: %s requires an S3 client", cfg.URL)
	}
	bucket, key, err := parseS3URL(cfg.URL)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp("", "wikiarchive-s3-*")
	if err != nil {
		return nil, fmt.Errorf("source: creating temp file for %s: %w", cfg.URL, err)
	}
	tmpPath := tmp.Name()
	tmp.Close()

	if err := cfg.S3Client.FGetObject(ctx, bucket, key, tmpPath, minio.GetObjectOptions{}); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("source: fetching %s: %w", cfg.URL, err)
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("source: opening downloaded %s: %w", cfg.URL, err)
	}
	os.Remove(tmpPath) // the open file descriptor keeps the data alive until Close
	if cfg.ResumeFrom > 0 {
		if _, err := f.Seek(cfg.ResumeFrom, io.SeekStart); err != nil {
			f.Close()
			return nil, fmt.Errorf("source: seeking %s: %w", cfg.URL, err)
		}
	}
	return &Stream{cfg: cfg, body: f, started: time.Now()}, nil
}

func parseS3URL(url string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(url, "s3://")
	idx := strings.IndexByte(rest, '/')
	if idx < 1 || idx == len(rest)-1 {
		return "", "", fmt.Errorf("source: malformed s3 URL %q, want s3://bucket/key", url)
	}
	return rest[:idx], rest[idx+1:], nil
}

func isLocalPath(url string) bool {
	if len(url) >= 7 && url[:7] == "http://" {
		return false
	}
	if len(url) >= 8 && url[:8] == "https://" {
		return false
	}
	return true
}

// Read reads into buf, also driving progress callbacks and honoring
// ctx cancellation between reads. It takes a ctx and so is not an
// io.Reader; AsReader adapts it to one.
func (s *Stream) Read(ctx context.Context, buf []byte) (int, error) {
	select {
	case <-ctx.Done():
		return 0, &AbortedError{}
	default:
	}

	n, err := s.body.Read(buf)
	s.total += int64(n)

	if s.cfg.OnProgress != nil && time.Since(s.lastTick) >= s.cfg.ProgressEvery {
		elapsed := time.Since(s.started)
		var bps float64
		if elapsed > 0 {
			bps = float64(s.total) / elapsed.Seconds()
		}
		s.cfg.OnProgress(Progress{
			BytesDownloaded: s.total + s.cfg.ResumeFrom,
			BytesPerSecond:  bps,
			ElapsedMs:       elapsed.Milliseconds(),
		})
		s.lastTick = time.Now()
	}

	if err != nil && !errors.Is(err, io.EOF) {
		select {
		case <-ctx.Done():
			return n, &AbortedError{}
		default:
		}
	}
	return n, err
}

// Close releases the underlying connection or file handle.
func (s *Stream) Close() error {
	return s.body.Close()
}

// AsReader adapts the Stream to a plain io.Reader bound to ctx, for
// handing off to io-based consumers such as the decompressor.
func (s *Stream) AsReader(ctx context.Context) io.Reader {
	return &ctxReader{stream: s, ctx: ctx}
}

type ctxReader struct {
	stream *Stream
	ctx    context.Context
}

func (r *ctxReader) Read(buf []byte) (int, error) {
	return r.stream.Read(r.ctx, buf)
}
