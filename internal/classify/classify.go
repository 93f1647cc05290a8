// SPDX-FileCopyrightText: 2024 wikiarchive authors
// SPDX-License-Identifier: MIT

// Package classify assigns each parsed article a canonical
// wikiconfig.ArticleType, preferring infobox evidence over category
// evidence, and falling back to wikiconfig.Other when neither matches.
package classify

import (
	"strings"

	"github.com/brawer/wikiarchive/internal/wikiconfig"
	"github.com/brawer/wikiarchive/internal/wikitext"
)

// Classify determines the article type of a parsed article. It first
// tries every infobox's normalized type name against
// wikiconfig.InfoboxTypeMap, then scans categories against
// wikiconfig.CategoryKeywordBuckets in order, and otherwise returns
// wikiconfig.Other.
func Classify(a wikitext.Article) wikiconfig.ArticleType {
	if t, ok := classifyByInfobox(a.Infoboxes); ok {
		return t
	}
	if t, ok := classifyByCategory(a.Categories); ok {
		return t
	}
	return wikiconfig.Other
}

func classifyByInfobox(boxes []wikitext.Infobox) (wikiconfig.ArticleType, bool) {
	for _, box := range boxes {
		name := normalizeInfoboxType(box.Type)
		if t, ok := wikiconfig.InfoboxTypeMap[name]; ok {
			return t, true
		}
	}
	return "", false
}

func classifyByCategory(categories []string) (wikiconfig.ArticleType, bool) {
	for _, c := range categories {
		lower := strings.ToLower(c)
		for _, bucket := range wikiconfig.CategoryKeywordBuckets {
			if strings.Contains(lower, bucket.Keyword) {
				return bucket.Type, true
			}
		}
	}
	return "", false
}

// normalizeInfoboxType lowercases, collapses whitespace, and drops a
// leading "infobox" word so that "Infobox  Scientist", "scientist", and
// "Scientist" all key the same InfoboxTypeMap entry.
func normalizeInfoboxType(typeName string) string {
	fields := strings.Fields(strings.ToLower(typeName))
	if len(fields) > 1 && fields[0] == "infobox" {
		fields = fields[1:]
	}
	return strings.Join(fields, " ")
}
