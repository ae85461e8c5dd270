// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package fileworker

import (
	"fmt"

	"github.com/gen2brain/go-fitz"
)

// extractLocalPDFText is the local-extraction fallback for a PDF that
// isn't routed through pdf2md OCR: MuPDF (via go-fitz) reads each page's
// text directly from the bytes already in memory, avoiding a round trip
// to Tika for documents that already carry a text layer. Grounded on the
// teacher's internal/pdf.Processor.ExtractText, adapted from a
// file-path API to the in-memory bytes the blob fetch already produced.
func extractLocalPDFText(content []byte) ([]string, error) {
	doc, err := fitz.NewFromMemory(content)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	pages := make([]string, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil {
			continue
		}
		if text != "" {
			pages = append(pages, text)
		}
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no text layer found in pdf")
	}
	return pages, nil
}
