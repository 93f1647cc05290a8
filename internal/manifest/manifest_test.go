// SPDX-License-Identifier: MIT

package manifest

import (
	"testing"

	"github.com/brawer/wikiarchive/internal/columnar"
)

func TestBuildAggregatesPerTypeCounts(t *testing.T) {
	shards := []columnar.ShardFile{
		{Type: "person", RowCount: 10},
		{Type: "person", RowCount: 5},
		{Type: "place", RowCount: 3},
	}
	m := Build("https://dumps.example/dump.xml.bz2", shards)
	if m.Totals != 18 {
		t.Errorf("got totals %d, want 18", m.Totals)
	}
	if m.PerTypeCounts["person"] != 15 {
		t.Errorf("got person count %d, want 15", m.PerTypeCounts["person"])
	}
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	shards := []columnar.ShardFile{{Type: "place", Path: "data/place/place.0.parquet", RowCount: 1}}
	m := Build("https://dumps.example/dump.xml.bz2", shards)

	if err := Write(dir, m); err != nil {
		t.Fatal(err)
	}

	got, err := Read(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got.Totals != m.Totals || got.SourceURL != m.SourceURL {
		t.Errorf("got %+v, want %+v", got, m)
	}
}
