// SPDX-License-Identifier: MIT

package classify

import (
	"testing"

	"github.com/brawer/wikiarchive/internal/wikiconfig"
	"github.com/brawer/wikiarchive/internal/wikitext"
)

func TestClassifyByInfobox(t *testing.T) {
	a := wikitext.Article{
		Infoboxes: []wikitext.Infobox{{Type: "scientist", Fields: map[string]string{}}},
	}
	if got := Classify(a); got != wikiconfig.Person {
		t.Errorf("got %q, want %q", got, wikiconfig.Person)
	}
}

func TestClassifyByInfoboxIsCaseInsensitive(t *testing.T) {
	a := wikitext.Article{
		Infoboxes: []wikitext.Infobox{{Type: "  Settlement ", Fields: map[string]string{}}},
	}
	if got := Classify(a); got != wikiconfig.Place {
		t.Errorf("got %q, want %q", got, wikiconfig.Place)
	}
}

func TestClassifyFallsBackToCategory(t *testing.T) {
	a := wikitext.Article{
		Categories: []string{"1990 films", "American comedy films"},
	}
	if got := Classify(a); got != wikiconfig.Work {
		t.Errorf("got %q, want %q", got, wikiconfig.Work)
	}
}

func TestClassifyPrefersInfoboxOverCategory(t *testing.T) {
	a := wikitext.Article{
		Infoboxes:  []wikitext.Infobox{{Type: "company"}},
		Categories: []string{"1990 births"},
	}
	if got := Classify(a); got != wikiconfig.Org {
		t.Errorf("got %q, want %q", got, wikiconfig.Org)
	}
}

func TestClassifyDefaultsToOther(t *testing.T) {
	a := wikitext.Article{Categories: []string{"Unrelated topic"}}
	if got := Classify(a); got != wikiconfig.Other {
		t.Errorf("got %q, want %q", got, wikiconfig.Other)
	}
}
