// SPDX-License-Identifier: MIT

package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
)

// fakeS3 is a minimal S3 double: it writes pre-seeded bytes to
// filePath on FGetObject.
type fakeS3 struct {
	objects map[string][]byte // "bucket/key" -> content
}

func (f *fakeS3) FGetObject(ctx context.Context, bucket, key, filePath string, opts minio.GetObjectOptions) error {
	data, ok := f.objects[bucket+"/"+key]
	if !ok {
		return fmt.Errorf("fakeS3: no such object %s/%s", bucket, key)
	}
	return os.WriteFile(filePath, data, 0644)
}

func TestOpenLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.xml")
	if err := os.WriteFile(path, []byte("<mediawiki></mediawiki>"), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := Open(context.Background(), Config{URL: path})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	data, err := io.ReadAll(s.AsReader(context.Background()))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "<mediawiki></mediawiki>" {
		t.Fatalf("got %q", data)
	}
}

func TestOpenHTTPRangeResume(t *testing.T) {
	body := "0123456789"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rng := r.Header.Get("Range")
		if rng == "" {
			w.Write([]byte(body))
			return
		}
		var from int
		fmtSscan(rng, &from)
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte(body[from:]))
	}))
	defer srv.Close()

	s, err := Open(context.Background(), Config{URL: srv.URL, ResumeFrom: 5})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	data, err := io.ReadAll(s.AsReader(context.Background()))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "56789" {
		t.Fatalf("got %q, want %q", data, "56789")
	}
}

func TestOpenHTTPNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := Open(context.Background(), Config{URL: srv.URL, MaxRetries: 0})
	if err == nil {
		t.Fatal("expected error")
	}
	fe, ok := err.(*FetchError)
	if !ok {
		t.Fatalf("expected *FetchError, got %T: %v", err, err)
	}
	if fe.StatusCode != http.StatusNotFound {
		t.Fatalf("got status %d", fe.StatusCode)
	}
}

func TestOpenS3Object(t *testing.T) {
	s3 := &fakeS3{objects: map[string][]byte{
		"dumps/enwiki-latest.xml": []byte("<mediawiki></mediawiki>"),
	}}

	s, err := Open(context.Background(), Config{URL: "s3://dumps/enwiki-latest.xml", S3Client: s3})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	data, err := io.ReadAll(s.AsReader(context.Background()))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "<mediawiki></mediawiki>" {
		t.Fatalf("got %q", data)
	}
}

func TestParseS3URL(t *testing.T) {
	bucket, key, err := parseS3URL("s3://dumps/wikis/enwiki-latest.xml")
	if err != nil {
		t.Fatal(err)
	}
	if bucket != "dumps" || key != "wikis/enwiki-latest.xml" {
		t.Errorf("got bucket=%q key=%q", bucket, key)
	}

	if _, _, err := parseS3URL("s3://malformed"); err == nil {
		t.Error("expected error for URL with no key")
	}
}

// fmtSscan parses "bytes=N-" into the starting offset.
func fmtSscan(rangeHeader string, from *int) {
	rangeHeader = strings.TrimPrefix(rangeHeader, "bytes=")
	rangeHeader = strings.TrimSuffix(rangeHeader, "-")
	n := 0
	for _, c := range rangeHeader {
		n = n*10 + int(c-'0')
	}
	*from = n
}
