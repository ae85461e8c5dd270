// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestClipContent(t *testing.T) {
	short := strings.Repeat("a", 100)
	if clipContent(short) != short {
		t.Error("short content should be unchanged")
	}

	mid := strings.Repeat("a", 8000)
	if clipContent(mid) != mid {
		t.Error("content between 7000 and 20000 chars should be unchanged")
	}

	long := strings.Repeat("a", 25000)
	got := clipContent(long)
	if len(got) != 20000 {
		t.Errorf("expected clipped length 20000, got %d", len(got))
	}
}

func TestDenseClient_BatchingExactWidth(t *testing.T) {
	var calls int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)

		var req embeddingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		inputs, ok := req.Input.([]any)
		if !ok {
			t.Fatalf("expected array input, got %T", req.Input)
		}

		resp := embeddingsResponse{}
		for i := range inputs {
			resp.Data = append(resp.Data, struct {
				Embedding []float64 `json:"embedding"`
				Index     int       `json:"index"`
			}{Embedding: []float64{float64(i)}, Index: i})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewDenseClient(srv.URL, "", "test-model", "query: ")

	texts := make([]string, BatchWidth)
	for i := range texts {
		texts[i] = "chunk text"
	}
	vecs, err := client.EmbedBatch(context.Background(), texts, EncodeDoc)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != BatchWidth {
		t.Errorf("expected %d vectors, got %d", BatchWidth, len(vecs))
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("a batch of exactly %d should issue 1 request, got %d", BatchWidth, calls)
	}
}

func TestDenseClient_BatchingOverWidth(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		var req embeddingsRequest
		json.NewDecoder(r.Body).Decode(&req)
		inputs, _ := req.Input.([]any)

		resp := embeddingsResponse{}
		for i := range inputs {
			resp.Data = append(resp.Data, struct {
				Embedding []float64 `json:"embedding"`
				Index     int       `json:"index"`
			}{Embedding: []float64{float64(i)}, Index: i})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewDenseClient(srv.URL, "", "test-model", "")

	texts := make([]string, BatchWidth+1)
	for i := range texts {
		texts[i] = "chunk text"
	}
	vecs, err := client.EmbedBatch(context.Background(), texts, EncodeDoc)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != BatchWidth+1 {
		t.Errorf("expected %d vectors, got %d", BatchWidth+1, len(vecs))
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("a batch of %d should issue 2 requests, got %d", BatchWidth+1, calls)
	}
}
