// SPDX-FileCopyrightText: 2024 wikiarchive authors
// SPDX-License-Identifier: MIT

// Package wikiconfig holds curated configuration data consumed by the
// classifier, the wikitext parser, and the BM25 engine: infobox-name to
// article-type mappings, category keyword buckets, the disambiguation
// template list, and English stopwords. These are data, not code, and
// are kept in one package so they can be swapped or extended (e.g. for
// another language edition) without touching pipeline logic.
package wikiconfig

// ArticleType is one of the six canonical classifications.
type ArticleType string

const (
	Person ArticleType = "person"
	Place  ArticleType = "place"
	Org    ArticleType = "org"
	Work   ArticleType = "work"
	Event  ArticleType = "event"
	Other  ArticleType = "other"
)

// InfoboxTypeMap maps a normalized infobox template name (lowercased,
// "infobox " prefix stripped) to a canonical article type. First match
// wins in the classifier.
var InfoboxTypeMap = map[string]ArticleType{
	"person":            Person,
	"scientist":         Person,
	"writer":            Person,
	"musical artist":     Person,
	"artist":            Person,
	"politician":        Person,
	"officeholder":      Person,
	"sportsperson":      Person,
	"actor":             Person,
	"military person":   Person,
	"royalty":           Person,

	"settlement":      Place,
	"country":         Place,
	"city":            Place,
	"mountain":        Place,
	"river":           Place,
	"protected area":  Place,
	"island":          Place,
	"ancient site":    Place,

	"company":       Org,
	"organization":  Org,
	"organisation":  Org,
	"university":    Org,
	"school":        Org,
	"sports team":   Org,
	"political party": Org,
	"government agency": Org,
	"nonprofit":    Org,

	"film":        Work,
	"book":        Work,
	"album":       Work,
	"single":      Work,
	"television":  Work,
	"video game":  Work,
	"software":    Work,
	"artwork":     Work,
	"newspaper":   Work,

	"military conflict": Event,
	"event":              Event,
	"election":           Event,
	"sports event":       Event,
	"civil conflict":     Event,
	"natural disaster":   Event,
}

// CategoryKeywordBuckets maps a category-name substring to a canonical
// article type, consulted when no infobox matched. First match wins,
// scanning in the order the slice is defined.
var CategoryKeywordBuckets = []struct {
	Keyword string
	Type    ArticleType
}{
	{"births", Person},
	{"deaths", Person},
	{"alumni", Person},
	{"living people", Person},

	{"cities", Place},
	{"towns", Place},
	{"villages", Place},
	{"mountains", Place},
	{"rivers", Place},
	{"countries", Place},
	{"capitals", Place},

	{"companies", Org},
	{"universities", Org},
	{"organizations", Org},
	{"organisations", Org},
	{"political parties", Org},

	{"films", Work},
	{"novels", Work},
	{"albums", Work},
	{"songs", Work},
	{"television series", Work},
	{"video games", Work},

	{"wars", Event},
	{"battles", Event},
	{"elections", Event},
	{"disasters", Event},
}

// DisambiguationTemplates lists template names (lowercased, without the
// "Template:" or "Infobox " prefix) treated as a disambiguation marker.
var DisambiguationTemplates = []string{
	"disambiguation",
	"disambig",
	"dab",
	"hndis",
	"geodis",
	"numberdis",
	"surname",
	"given name",
}

// ShreddedInfoboxKeys are the infobox field keys promoted to first-class
// storage columns. population is lifted as numeric; the rest are kept
// as strings to preserve original formatting (e.g. "c. 1850", "4 July 1776").
var ShreddedInfoboxKeys = []string{
	"birth_date",
	"death_date",
	"population",
	"founded",
	"release_date",
	"publication_date",
	"area",
}

// Stopwords is the curated English stopword list used by the BM25
// tokenizer.
var Stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "has": {}, "he": {}, "in": {}, "is": {},
	"it": {}, "its": {}, "of": {}, "on": {}, "that": {}, "the": {}, "to": {},
	"was": {}, "were": {}, "will": {}, "with": {}, "this": {}, "but": {},
	"they": {}, "have": {}, "had": {}, "not": {}, "or": {}, "can": {},
	"their": {}, "which": {}, "been": {}, "also": {}, "his": {}, "her": {},
}
