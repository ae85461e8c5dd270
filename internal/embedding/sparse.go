// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/northbound-system/hive-ingest/internal/vectordb"
)

// SparseClient calls the SPLADE sparse-embedding service (§6 "Sparse
// SPLADE service").
type SparseClient struct {
	docOrigin   string
	queryOrigin string
	client      *http.Client
}

// NewSparseClient builds a client against SPARSE_SERVER_DOC_ORIGIN and
// SPARSE_SERVER_QUERY_ORIGIN (config.LoadOrigins already falls the query
// origin back to the doc origin when unset).
func NewSparseClient(docOrigin, queryOrigin string) *SparseClient {
	return &SparseClient{
		docOrigin:   docOrigin,
		queryOrigin: queryOrigin,
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

type sparseRequest struct {
	Inputs     []string `json:"inputs"`
	EncodeType string   `json:"encode_type"`
	Truncate   bool     `json:"truncate"`
}

type sparseEntryWire struct {
	Index uint32  `json:"index"`
	Value float32 `json:"value"`
}

// EmbedBatch calls {origin}/embed_sparse in batches of BatchWidth,
// returning one sparse vector per input text in order.
func (c *SparseClient) EmbedBatch(ctx context.Context, texts []string, encodeType EncodeType) ([][]vectordb.SparseEntry, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	origin := c.docOrigin
	if encodeType == EncodeQuery {
		origin = c.queryOrigin
	}

	out := make([][]vectordb.SparseEntry, 0, len(texts))
	for i := 0; i < len(texts); i += BatchWidth {
		end := i + BatchWidth
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[i:end]

		vecs, err := c.embedOne(ctx, origin, batch, encodeType)
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (c *SparseClient) embedOne(ctx context.Context, origin string, texts []string, encodeType EncodeType) ([][]vectordb.SparseEntry, error) {
	payload := sparseRequest{Inputs: texts, EncodeType: string(encodeType), Truncate: true}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("sparse: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, origin+"/embed_sparse", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("sparse: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sparse: call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("sparse: server error %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("sparse: request rejected (%d): %s", resp.StatusCode, b)
	}

	var wire [][]sparseEntryWire
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("sparse: decode response: %w", err)
	}
	if len(wire) != len(texts) {
		return nil, fmt.Errorf("sparse: expected %d vectors, got %d", len(texts), len(wire))
	}

	out := make([][]vectordb.SparseEntry, len(wire))
	for i, entries := range wire {
		vec := make([]vectordb.SparseEntry, len(entries))
		for j, e := range entries {
			vec[j] = vectordb.SparseEntry{Index: e.Index, Value: e.Value}
		}
		out[i] = vec
	}
	return out, nil
}

// PlaceholderSparseVector is emitted when FULLTEXT_ENABLED is false: a
// single-token vector [(0, 0.0)] (§4.3.2 item 2).
func PlaceholderSparseVector() []vectordb.SparseEntry {
	return []vectordb.SparseEntry{{Index: 0, Value: 0}}
}
