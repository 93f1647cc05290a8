// SPDX-License-Identifier: MIT

package indexbuild

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/brawer/wikiarchive/internal/normalize"
)

func TestFinalizeWritesAllIndexFiles(t *testing.T) {
	dir := t.TempDir()
	b := New(dir, 0.01)
	b.Track("person.0.parquet", 2)
	b.AddRow("1", "Albert Einstein", "person", "person.0.parquet", 0, 0)
	b.AddRow("2", "Tokyo", "place", "place.0.parquet", 0, 0)

	if err := b.Finalize(); err != nil {
		t.Fatal(err)
	}

	var titles map[string]Location
	if err := ReadGzipJSON(filepath.Join(dir, "indexes", "titles.json.gz"), &titles); err != nil {
		t.Fatal(err)
	}
	norm := normalize.Normalize("Albert Einstein", normalize.Default())
	loc, ok := titles[norm]
	if !ok || loc.File != "person.0.parquet" {
		t.Errorf("got titles[%q] = %+v, ok=%v", norm, loc, ok)
	}

	var types map[string][]string
	if err := ReadGzipJSON(filepath.Join(dir, "indexes", "types.json.gz"), &types); err != nil {
		t.Fatal(err)
	}
	if len(types["person"]) != 1 || types["person"][0] != "person.0.parquet" {
		t.Errorf("got types[person] = %v", types["person"])
	}

	var ids map[string]IDLocation
	if err := ReadGzipJSON(filepath.Join(dir, "indexes", "ids.json.gz"), &ids); err != nil {
		t.Fatal(err)
	}
	if ids["2"].Type != "place" {
		t.Errorf("got ids[2] = %+v", ids["2"])
	}
}

func TestFinalizeWritesBloomPerFile(t *testing.T) {
	dir := t.TempDir()
	b := New(dir, 0.01)
	b.AddRow("1", "Tokyo", "place", "data/place/place.0.parquet", 0, 0)
	if err := b.Finalize(); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "indexes", "bloom", "place_0.json")
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected bloom file at %s: %v", path, err)
	}
}

func TestSanitizeFileNameStripsPathAndExtension(t *testing.T) {
	got := sanitizeFileName("data/person/person.3.parquet")
	if got != "person_3" {
		t.Errorf("got %q", got)
	}
}
