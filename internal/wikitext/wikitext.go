// SPDX-FileCopyrightText: 2024 wikiarchive authors
// SPDX-License-Identifier: MIT

// Package wikitext converts raw MediaWiki wikitext into a ParsedArticle:
// plaintext, infoboxes, links, categories, redirect target, and
// disambiguation status. Extraction is best-effort: malformed markup
// never panics, and output is a deterministic function of input.
package wikitext

import (
	"regexp"
	"strings"

	"github.com/brawer/wikiarchive/internal/wikiconfig"
	"github.com/brawer/wikiarchive/internal/xmlsplit"
)

// Infobox is one {{Infobox ...}} template, with case-insensitive keys
// normalized to lowercase.
type Infobox struct {
	Type   string
	Fields map[string]string
}

// Link is a resolved [[page|text]] wikilink.
type Link struct {
	Page string
	Text string
}

// Article is a RawPage enriched with parsed structure.
type Article struct {
	xmlsplit.RawPage
	Plaintext        string
	Infoboxes        []Infobox
	Links            []Link
	Categories       []string
	IsRedirect       bool
	IsDisambiguation bool
}

var (
	templateRe   = regexp.MustCompile(`(?s)\{\{([^{}]*(?:\{\{[^{}]*\}\}[^{}]*)*)\}\}`)
	wikilinkRe   = regexp.MustCompile(`\[\[([^\[\]|]+)(?:\|([^\[\]]+))?\]\]`)
	categoryRe   = regexp.MustCompile(`(?i)^\s*Category\s*:\s*(.+)$`)
	redirectRe   = regexp.MustCompile(`(?i)^\s*#REDIRECT\s*:?\s*\[\[([^\]|]+)`)
	tableRe      = regexp.MustCompile(`(?s)\{\|.*?\|\}`)
	htmlCommentRe = regexp.MustCompile(`(?s)<!--.*?-->`)
	refTagRe     = regexp.MustCompile(`(?s)<ref[^>]*?/>|<ref[^>]*?>.*?</ref>`)
	htmlTagRe    = regexp.MustCompile(`(?s)<[^>]+>`)
	boldItalicRe = regexp.MustCompile(`'{2,5}`)
)

// Parse converts a RawPage to an Article. It never panics: any
// extraction step that cannot make sense of its input simply omits
// that piece of structure.
func Parse(page xmlsplit.RawPage) Article {
	a := Article{RawPage: page}

	if target, ok := redirectTarget(page.Wikitext); ok {
		a.IsRedirect = true
		a.Redirect = target
	} else if page.Redirect != "" {
		a.IsRedirect = true
		a.Redirect = page.Redirect
	}

	a.Infoboxes = extractInfoboxes(page.Wikitext)
	a.Links, a.Categories = extractLinksAndCategories(page.Wikitext)
	a.Plaintext = toPlaintext(page.Wikitext)
	a.IsDisambiguation = isDisambiguation(page.Wikitext, a.Categories)

	return a
}

func redirectTarget(wikitext string) (string, bool) {
	m := redirectRe.FindStringSubmatch(wikitext)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// extractInfoboxes finds every {{Infobox ...}} template and parses its
// pipe-separated "key = value" body into a field map with
// case-insensitive (lowercased) keys.
func extractInfoboxes(wikitext string) []Infobox {
	var boxes []Infobox
	for _, m := range templateRe.FindAllStringSubmatch(wikitext, -1) {
		body := m[1]
		parts := splitTopLevelPipes(body)
		if len(parts) == 0 {
			continue
		}
		name := strings.TrimSpace(parts[0])
		lowerName := strings.ToLower(name)
		if !strings.HasPrefix(lowerName, "infobox") {
			continue
		}
		typeName := strings.TrimSpace(strings.TrimPrefix(lowerName, "infobox"))

		fields := make(map[string]string, len(parts)-1)
		for _, part := range parts[1:] {
			kv := strings.SplitN(part, "=", 2)
			if len(kv) != 2 {
				continue
			}
			key := strings.ToLower(strings.TrimSpace(kv[0]))
			val := strings.TrimSpace(kv[1])
			if key == "" {
				continue
			}
			fields[key] = val
		}
		boxes = append(boxes, Infobox{Type: typeName, Fields: fields})
	}
	return boxes
}

// splitTopLevelPipes splits a template body on '|' characters that are
// not nested inside [[...]] or {{...}}, so wikilinks and nested
// templates inside a field value don't get cut in half.
func splitTopLevelPipes(body string) []string {
	var parts []string
	var cur strings.Builder
	depthBrackets, depthBraces := 0, 0
	for _, r := range body {
		switch r {
		case '[':
			depthBrackets++
		case ']':
			if depthBrackets > 0 {
				depthBrackets--
			}
		case '{':
			depthBraces++
		case '}':
			if depthBraces > 0 {
				depthBraces--
			}
		}
		if r == '|' && depthBrackets == 0 && depthBraces == 0 {
			parts = append(parts, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteRune(r)
	}
	parts = append(parts, cur.String())
	return parts
}

// extractLinksAndCategories resolves every [[page|text]] wikilink,
// splitting off [[Category:Foo]] links into the categories list.
func extractLinksAndCategories(wikitext string) ([]Link, []string) {
	var links []Link
	var categories []string
	for _, m := range wikilinkRe.FindAllStringSubmatch(wikitext, -1) {
		target := strings.TrimSpace(m[1])
		text := strings.TrimSpace(m[2])

		if cm := categoryRe.FindStringSubmatch(target); cm != nil {
			categories = append(categories, strings.TrimSpace(cm[1]))
			continue
		}

		if text == "" {
			text = target
		}
		links = append(links, Link{Page: target, Text: text})
	}
	return links, categories
}

// toPlaintext strips templates, tables, refs, comments, and markup to
// produce readable prose, preserving paragraph breaks.
func toPlaintext(wikitext string) string {
	s := htmlCommentRe.ReplaceAllString(wikitext, "")
	s = refTagRe.ReplaceAllString(s, "")
	s = tableRe.ReplaceAllString(s, "")

	// Templates can nest; strip repeatedly until stable or a bound is hit.
	for i := 0; i < 5; i++ {
		stripped := templateRe.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = stripped
	}

	s = wikilinkRe.ReplaceAllStringFunc(s, func(match string) string {
		sub := wikilinkRe.FindStringSubmatch(match)
		if sub == nil {
			return ""
		}
		if categoryRe.MatchString(sub[1]) {
			return ""
		}
		if sub[2] != "" {
			return sub[2]
		}
		return sub[1]
	})

	s = htmlTagRe.ReplaceAllString(s, "")
	s = boldItalicRe.ReplaceAllString(s, "")

	paragraphs := strings.Split(s, "\n\n")
	var kept []string
	for _, p := range paragraphs {
		p = strings.TrimSpace(collapseSpaces(p))
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}

func collapseSpaces(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// isDisambiguation reports whether the article is a disambiguation
// page, per the curated template list plus any category whose name
// contains "disambiguation". The page title is not consulted.
func isDisambiguation(wikitext string, categories []string) bool {
	lower := strings.ToLower(wikitext)
	for _, tmpl := range wikiconfig.DisambiguationTemplates {
		if strings.Contains(lower, "{{"+tmpl) {
			return true
		}
	}
	for _, c := range categories {
		if strings.Contains(strings.ToLower(c), "disambiguation") {
			return true
		}
	}
	return false
}

// FirstParagraph returns up to maxLen characters of the first
// non-empty paragraph, used as ArticleRecord.Description.
func FirstParagraph(plaintext string, maxLen int) string {
	paragraphs := strings.SplitN(plaintext, "\n\n", 2)
	if len(paragraphs) == 0 {
		return ""
	}
	p := paragraphs[0]
	if r := []rune(p); maxLen > 0 && len(r) > maxLen {
		p = string(r[:maxLen])
	}
	return p
}
