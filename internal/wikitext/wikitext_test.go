// SPDX-License-Identifier: MIT

package wikitext

import (
	"strings"
	"testing"

	"github.com/brawer/wikiarchive/internal/xmlsplit"
)

func TestParseExtractsInfobox(t *testing.T) {
	page := xmlsplit.RawPage{
		Title: "Albert Einstein",
		Wikitext: `{{Infobox scientist
| name = Albert Einstein
| birth_date = 14 March 1879
| field = [[Physics]]
}}
'''Albert Einstein''' was a [[theoretical physics|theoretical physicist]].

[[Category:1879 births]]
[[Category:German physicists]]`,
	}

	a := Parse(page)
	if len(a.Infoboxes) != 1 {
		t.Fatalf("expected 1 infobox, got %d", len(a.Infoboxes))
	}
	box := a.Infoboxes[0]
	if box.Type != "scientist" {
		t.Errorf("got infobox type %q", box.Type)
	}
	if box.Fields["birth_date"] != "14 March 1879" {
		t.Errorf("got birth_date %q", box.Fields["birth_date"])
	}
	if box.Fields["name"] != "Albert Einstein" {
		t.Errorf("got name %q", box.Fields["name"])
	}

	if len(a.Categories) != 2 || a.Categories[0] != "1879 births" {
		t.Errorf("got categories %v", a.Categories)
	}

	if !strings.Contains(a.Plaintext, "theoretical physicist") {
		t.Errorf("plaintext missing link text: %q", a.Plaintext)
	}
	if strings.Contains(a.Plaintext, "{{") {
		t.Errorf("plaintext still contains template markup: %q", a.Plaintext)
	}
	if strings.Contains(a.Plaintext, "'''") {
		t.Errorf("plaintext still contains bold markup: %q", a.Plaintext)
	}
}

func TestParseResolvesPipedLinks(t *testing.T) {
	page := xmlsplit.RawPage{Wikitext: "See [[Tokyo|the capital of Japan]] for details."}
	a := Parse(page)
	if len(a.Links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(a.Links))
	}
	if a.Links[0].Page != "Tokyo" || a.Links[0].Text != "the capital of Japan" {
		t.Errorf("got link %+v", a.Links[0])
	}
}

func TestParseDetectsRedirect(t *testing.T) {
	page := xmlsplit.RawPage{Wikitext: "#REDIRECT [[Tokyo]]"}
	a := Parse(page)
	if !a.IsRedirect || a.Redirect != "Tokyo" {
		t.Errorf("expected redirect to Tokyo, got %+v", a)
	}
}

func TestParseDetectsDisambiguation(t *testing.T) {
	page := xmlsplit.RawPage{Wikitext: "'''Mercury''' may refer to:\n{{disambiguation}}"}
	a := Parse(page)
	if !a.IsDisambiguation {
		t.Error("expected disambiguation page to be detected")
	}
}

func TestParseStripsTablesAndComments(t *testing.T) {
	page := xmlsplit.RawPage{Wikitext: "Intro text.\n<!-- hidden -->\n{| class=\"wikitable\"\n|Row||Cell\n|}\nOutro text."}
	a := Parse(page)
	if strings.Contains(a.Plaintext, "hidden") {
		t.Errorf("comment leaked into plaintext: %q", a.Plaintext)
	}
	if strings.Contains(a.Plaintext, "wikitable") {
		t.Errorf("table markup leaked into plaintext: %q", a.Plaintext)
	}
	if !strings.Contains(a.Plaintext, "Intro text.") || !strings.Contains(a.Plaintext, "Outro text.") {
		t.Errorf("expected surrounding prose preserved, got %q", a.Plaintext)
	}
}

func TestFirstParagraphTruncates(t *testing.T) {
	p := FirstParagraph("first paragraph here\n\nsecond paragraph", 5)
	if p != "first" {
		t.Errorf("got %q", p)
	}
}
