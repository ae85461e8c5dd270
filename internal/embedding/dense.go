// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package embedding holds the dense and SPLADE sparse embedding HTTP
// clients. The request/response shapes are grounded on §6; the client
// plumbing (manual http.Client, JSON marshal/decode, no framework) is
// grounded on the teacher's internal/embeddings/openai.go.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"
)

// BatchWidth is the hardcoded embedding-service fan-out (§9 "Batching
// width"), exposed as a variable so tests can assert on it per the design
// note's instruction.
var BatchWidth = 30

// EncodeType selects the SPLADE/embedding input shape.
type EncodeType string

const (
	EncodeDoc   EncodeType = "doc"
	EncodeQuery EncodeType = "query"
)

var (
	tokenEncodingOnce sync.Once
	tokenEncoding     *tiktoken.Tiktoken
)

// logBatchTokenCount is a diagnostic-only token accounting pass over a
// batch before it goes out over the wire: not used for the clip boundary
// (that is a character count per §4.3.2), just a log line operators can
// use to reason about cost and batching. Failure to load an encoding is
// non-fatal; the embedding call proceeds regardless.
func logBatchTokenCount(texts []string) {
	tokenEncodingOnce.Do(func() {
		enc, err := tiktoken.EncodingForModel("gpt-3.5-turbo")
		if err != nil {
			log.Printf("embedding: tiktoken encoding unavailable, skipping token accounting: %v", err)
			return
		}
		tokenEncoding = enc
	})
	if tokenEncoding == nil {
		return
	}
	total := 0
	for _, t := range texts {
		total += len(tokenEncoding.Encode(t, nil, nil))
	}
	log.Printf("embedding: batch of %d inputs, ~%d tokens", len(texts), total)
}

// clipContent applies the spec's literal per-input clipping rule: inputs
// over 7000 characters are truncated to their first 20000 characters.
// (Read as written in §4.3.2 item 1 — it reads unusual because the
// truncation bound is larger than the trigger bound, but that is the
// embedding service's documented tolerance, not a local budget.)
func clipContent(s string) string {
	if len(s) > 7000 && len(s) > 20000 {
		return s[:20000]
	}
	return s
}

// DenseClient calls the dense embedding service.
type DenseClient struct {
	baseURL     string
	apiVersion  string
	model       string
	queryPrefix string
	client      *http.Client
}

// NewDenseClient builds a client against EMBEDDING_SERVER_ORIGIN (or its
// GPU_SERVER_ORIGIN fallback, resolved by config.LoadOrigins).
func NewDenseClient(baseURL, apiVersion, model, queryPrefix string) *DenseClient {
	if apiVersion == "" {
		apiVersion = "2023-05-15"
	}
	return &DenseClient{
		baseURL:     baseURL,
		apiVersion:  apiVersion,
		model:       model,
		queryPrefix: queryPrefix,
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

type embeddingsRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int        `json:"index"`
	} `json:"data"`
}

// embedOne performs a single call to {base}/embeddings?api-version=...,
// returning embeddings in request order.
func (c *DenseClient) embedOne(ctx context.Context, texts []string, encodeType EncodeType) ([][]float32, error) {
	var input any
	if encodeType == EncodeQuery {
		if len(texts) != 1 {
			return nil, fmt.Errorf("embedding: query encode requires exactly one input, got %d", len(texts))
		}
		input = c.queryPrefix + texts[0]
	} else {
		clipped := make([]string, len(texts))
		for i, t := range texts {
			clipped[i] = clipContent(t)
		}
		logBatchTokenCount(clipped)
		input = clipped
	}

	payload := embeddingsRequest{Model: c.model, Input: input}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/embeddings?api-version=%s", c.baseURL, c.apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedding: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding: call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("embedding: server error %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding: request rejected (%d): %s", resp.StatusCode, b)
	}

	var out embeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("embedding: decode response: %w", err)
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("embedding: expected %d embeddings, got %d", len(texts), len(out.Data))
	}

	result := make([][]float32, len(texts))
	for _, d := range out.Data {
		idx := d.Index
		if idx < 0 || idx >= len(texts) {
			idx = 0
		}
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		result[idx] = vec
	}
	return result, nil
}

// EmbedBatch fans texts out in batches of BatchWidth concurrently and
// gathers results preserving input order (§4.3.2 item 1, §5 "Intra-job
// concurrency").
func (c *DenseClient) EmbedBatch(ctx context.Context, texts []string, encodeType EncodeType) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	type batchResult struct {
		startIdx int
		vectors  [][]float32
		err      error
	}

	var batches [][]string
	var starts []int
	for i := 0; i < len(texts); i += BatchWidth {
		end := i + BatchWidth
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, texts[i:end])
		starts = append(starts, i)
	}

	results := make(chan batchResult, len(batches))
	var wg sync.WaitGroup
	for i, batch := range batches {
		wg.Add(1)
		go func(startIdx int, batch []string) {
			defer wg.Done()
			vecs, err := c.embedOne(ctx, batch, encodeType)
			results <- batchResult{startIdx: startIdx, vectors: vecs, err: err}
		}(starts[i], batch)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	collected := make([]batchResult, 0, len(batches))
	var firstErr error
	for r := range results {
		if r.err != nil && firstErr == nil {
			firstErr = r.err
		}
		collected = append(collected, r)
	}
	if firstErr != nil {
		return nil, firstErr
	}

	sort.Slice(collected, func(i, j int) bool { return collected[i].startIdx < collected[j].startIdx })

	out := make([][]float32, 0, len(texts))
	for _, r := range collected {
		out = append(out, r.vectors...)
	}
	return out, nil
}
