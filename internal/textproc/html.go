// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package textproc normalizes chunk/file content ahead of embedding: HTML
// stripping, coarse token-window chunking for the single-chunk split path
// and for file-worker paragraph extraction, and a loose timestamp parser.
package textproc

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StripHTML extracts visible text from an HTML fragment. It is idempotent
// on plain text: if goquery finds no tags, the document's own text equals
// the input modulo whitespace collapse.
func StripHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	text := doc.Text()
	return collapseWhitespace(text), nil
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
