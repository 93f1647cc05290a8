// SPDX-FileCopyrightText: 2024 wikiarchive authors
// SPDX-License-Identifier: MIT

// Package xmlsplit is a SAX-style scanner over a Wikipedia XML dump that
// never buffers more than one <page> element at a time.
package xmlsplit

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"
)

// RawPage is one <page> record from the dump, emitted verbatim on
// </page> without any wikitext interpretation.
type RawPage struct {
	Title     string
	ID        uint64
	Namespace int32
	Wikitext  string
	Timestamp time.Time
	Redirect  string // non-empty if the page XML carried a <redirect> tag
}

// MalformedXmlError is returned when the decoder cannot read the stream
// or a <page> element (for example unbalanced <page> tags); unknown
// child elements within a page are silently ignored.
type MalformedXmlError struct {
	Err error
}

func (e *MalformedXmlError) Error() string {
	return fmt.Sprintf("xmlsplit: malformed XML: %v", e.Err)
}

func (e *MalformedXmlError) Unwrap() error { return e.Err }

// pageXML mirrors the subset of MediaWiki export XML this package reads.
// Unknown sibling elements (e.g. <contributor>, <sha1>, <model>) are
// ignored by virtue of not being named here.
type pageXML struct {
	Title     string `xml:"title"`
	ID        uint64 `xml:"id"`
	NS        int32  `xml:"ns"`
	Redirect  *struct {
		Title string `xml:"title,attr"`
	} `xml:"redirect"`
	Revision struct {
		Timestamp string `xml:"timestamp"`
		Text      string `xml:"text"`
	} `xml:"revision"`
}

// Scanner splits a MediaWiki XML export into RawPage records.
type Scanner struct {
	dec  *xml.Decoder
	page RawPage
	err  error
	done bool
}

// NewScanner returns a Scanner reading from r.
func NewScanner(r io.Reader) *Scanner {
	dec := xml.NewDecoder(r)
	dec.Strict = false // tolerate minor encoding quirks in old dumps
	return &Scanner{dec: dec}
}

// Scan advances to the next <page> element, returning false at end of
// stream or on a fatal MalformedXmlError.
func (s *Scanner) Scan() bool {
	if s.done || s.err != nil {
		return false
	}

	for {
		tok, err := s.dec.Token()
		if err == io.EOF {
			s.done = true
			return false
		}
		if err != nil {
			s.err = &MalformedXmlError{Err: err}
			return false
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "page" {
			continue
		}

		var p pageXML
		if err := s.dec.DecodeElement(&p, &start); err != nil {
			s.err = &MalformedXmlError{Err: fmt.Errorf("decoding <page>: %w", err)}
			return false
		}

		s.page = RawPage{
			Title:     p.Title,
			ID:        p.ID,
			Namespace: p.NS,
			Wikitext:  p.Revision.Text,
		}
		if p.Redirect != nil {
			s.page.Redirect = p.Redirect.Title
		}
		if ts, err := time.Parse(time.RFC3339, p.Revision.Timestamp); err == nil {
			s.page.Timestamp = ts
		}
		return true
	}
}

// Page returns the page most recently produced by Scan.
func (s *Scanner) Page() RawPage {
	return s.page
}

// Err returns the first non-EOF error encountered, if any.
func (s *Scanner) Err() error {
	return s.err
}
