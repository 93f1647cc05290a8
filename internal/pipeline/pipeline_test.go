// SPDX-License-Identifier: MIT

package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const testDump = `<mediawiki>
  <page>
    <title>Albert Einstein</title>
    <ns>0</ns>
    <id>1</id>
    <revision>
      <timestamp>2024-01-01T00:00:00Z</timestamp>
      <text>{{Infobox scientist
| birth_date = 14 March 1879
}}
'''Albert Einstein''' was a theoretical physicist.

[[Category:German physicists]]</text>
    </revision>
  </page>
  <page>
    <title>Tokyo</title>
    <ns>0</ns>
    <id>2</id>
    <revision>
      <timestamp>2024-01-02T00:00:00Z</timestamp>
      <text>'''Tokyo''' is the capital of [[Japan]].

[[Category:Capitals in Asia]]</text>
    </revision>
  </page>
</mediawiki>`

func writeTestDump(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dump.xml")
	if err := os.WriteFile(path, []byte(testDump), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunIngestsAllArticlesAndWritesManifest(t *testing.T) {
	dumpPath := writeTestDump(t)
	outDir := t.TempDir()

	result, err := Run(context.Background(), Config{
		DumpURL:      dumpPath,
		OutputDir:    outDir,
		BatchSize:    10,
		RowGroupSize: 10,
		BloomFPRate:  0.01,
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Checkpoint.ArticlesProcessed != 2 {
		t.Errorf("got %d articles processed, want 2", result.Checkpoint.ArticlesProcessed)
	}
	if result.Manifest.Totals != 2 {
		t.Errorf("got manifest totals %d, want 2", result.Manifest.Totals)
	}
	if _, err := os.Stat(filepath.Join(outDir, "manifest.json")); err != nil {
		t.Errorf("manifest.json missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "indexes", "titles.json.gz")); err != nil {
		t.Errorf("titles index missing: %v", err)
	}
}

func TestRunResumesFromCheckpointSkippingProcessedIDs(t *testing.T) {
	dumpPath := writeTestDump(t)
	outDir := t.TempDir()

	cp := Checkpoint{
		DumpURL:           dumpPath,
		ArticlesProcessed: 1,
		LastArticleID:     1,
		ArticlesByType:    map[string]int64{"person": 1},
	}
	if err := SaveCheckpoint(outDir, cp); err != nil {
		t.Fatal(err)
	}

	result, err := Run(context.Background(), Config{
		DumpURL:      dumpPath,
		OutputDir:    outDir,
		BatchSize:    10,
		RowGroupSize: 10,
		BloomFPRate:  0.01,
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Checkpoint.ArticlesProcessed != 2 {
		t.Errorf("got %d articles processed, want 2 (1 resumed + 1 new)", result.Checkpoint.ArticlesProcessed)
	}
	if result.Manifest.Totals != 1 {
		t.Errorf("got manifest totals %d, want 1 (only the unprocessed article gets written)", result.Manifest.Totals)
	}
}

func TestRunCancellationSavesCheckpointAndReturnsError(t *testing.T) {
	dumpPath := writeTestDump(t)
	outDir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel before the scan loop observes any page

	_, err := Run(ctx, Config{
		DumpURL:      dumpPath,
		OutputDir:    outDir,
		BatchSize:    10,
		RowGroupSize: 10,
		BloomFPRate:  0.01,
	})
	if err == nil {
		t.Fatal("expected context.Canceled to propagate")
	}

	if _, statErr := os.Stat(filepath.Join(outDir, ".ingest-checkpoint.json")); statErr != nil {
		t.Errorf("expected checkpoint file to be written on cancellation: %v", statErr)
	}
}
