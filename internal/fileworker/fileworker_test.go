// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package fileworker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/northbound-system/hive-ingest/internal/models"
	"github.com/northbound-system/hive-ingest/internal/ocr"
)

func TestSizeInMB_RoundsToNearest(t *testing.T) {
	cases := []struct {
		bytes int
		want  int
	}{
		{0, 0},
		{1024 * 1024, 1},
		{1024 * 1024 * 3 / 2, 2},
		{1024*1024 + 100, 1},
	}
	for _, c := range cases {
		if got := sizeInMB(c.bytes); got != c.want {
			t.Errorf("sizeInMB(%d) = %d, want %d", c.bytes, got, c.want)
		}
	}
}

func TestExtractViaTika_EmptyBodyIsUserError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h := &Handler{Tika: ocr.NewTikaClient(srv.URL)}
	_, err := h.extractViaTika(context.Background(), []byte("pdf bytes"))
	if err == nil {
		t.Fatal("expected error for empty tika response")
	}
}

func TestExtractViaTika_ReturnsHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>hi</body></html>"))
	}))
	defer srv.Close()

	h := &Handler{Tika: ocr.NewTikaClient(srv.URL)}
	pages, err := h.extractViaTika(context.Background(), []byte("pdf bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 1 || pages[0] == "" {
		t.Fatalf("expected one non-empty page, got %v", pages)
	}
}

func TestHandler_AttemptAndReinject(t *testing.T) {
	h := &Handler{}
	msg := models.FileMessage{FileID: uuid.New(), DatasetID: uuid.New(), AttemptNumber: 2}
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	attempt, err := h.Attempt(raw)
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if attempt != 2 {
		t.Errorf("expected attempt 2, got %d", attempt)
	}

	next, err := h.Reinject(raw)
	if err != nil {
		t.Fatalf("Reinject: %v", err)
	}
	var nextMsg models.FileMessage
	if err := json.Unmarshal(next, &nextMsg); err != nil {
		t.Fatalf("unmarshal reinjected: %v", err)
	}
	if nextMsg.AttemptNumber != 3 {
		t.Errorf("expected bumped attempt 3, got %d", nextMsg.AttemptNumber)
	}
}

func TestHandler_DeadLetterEvent(t *testing.T) {
	h := &Handler{}
	fileID, datasetID := uuid.New(), uuid.New()
	msg := models.FileMessage{FileID: fileID, DatasetID: datasetID}
	raw, _ := json.Marshal(msg)

	ev := h.DeadLetterEvent(raw, "boom")
	require.Equal(t, datasetID, ev.DatasetID)
	require.NotNil(t, ev.FileID)
	require.Equal(t, fileID, *ev.FileID)
	require.Equal(t, "boom", ev.Cause)
}
