// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package bm25 computes the in-process BM25 sparse vector the ingestion
// worker attaches under the bm25_vectors name (§3.2, §4.3.2 item 3). There
// is no teacher equivalent for this; the numeric style (plain loops, no
// comments beyond the formula) matches the register of
// internal/processor/chunker.go.
package bm25

import (
	"hash/fnv"
	"strings"

	"github.com/northbound-system/hive-ingest/internal/vectordb"
)

// Params are the per-dataset BM25 constants (§3.1 DatasetConfiguration).
type Params struct {
	AvgLen float64
	B      float64
	K      float64
}

// TokenIndex maps a token to a stable sparse-vector dimension, using the
// same hash-based scheme the teacher's embeddings/mock.go uses for
// deterministic pseudo-vectors.
func TokenIndex(token string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(token)))
	return h.Sum32()
}

func tokenize(text string) []string {
	return strings.Fields(text)
}

// Vector computes the BM25 term-saturation weight for every distinct
// token in text:
//
//	w(t) = tf(t) * (k+1) / (tf(t) + k*(1 - b + b*doclen/avgLen))
//
// This is the document-side half of BM25 scoring; the query-side idf
// term is applied by the search engine at query time, which is why the
// vector is parametrized purely by (avg_len, b, k) and carries no corpus
// statistics.
func Vector(text string, p Params) []vectordb.SparseEntry {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil
	}

	freq := make(map[string]int, len(tokens))
	order := make([]string, 0, len(tokens))
	for _, t := range tokens {
		lower := strings.ToLower(t)
		if _, seen := freq[lower]; !seen {
			order = append(order, lower)
		}
		freq[lower]++
	}

	docLen := float64(len(tokens))
	avgLen := p.AvgLen
	if avgLen == 0 {
		avgLen = docLen
	}
	k := p.K
	if k == 0 {
		k = 1.2
	}
	b := p.B

	entries := make([]vectordb.SparseEntry, 0, len(order))
	for _, token := range order {
		tf := float64(freq[token])
		denom := tf + k*(1-b+b*(docLen/avgLen))
		weight := tf * (k + 1) / denom
		entries = append(entries, vectordb.SparseEntry{
			Index: TokenIndex(token),
			Value: float32(weight),
		})
	}
	return entries
}
