// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package ocr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOCRClient_CreateTask_ReturnsID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/task", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		w.Write([]byte(`{"id":"task-1","status":"Pending","pos_in_queue":3}`))
	}))
	defer srv.Close()

	c := NewOCRClient(srv.URL, "")
	id, err := c.CreateTask(context.Background(), "doc.pdf", []byte("pdf bytes"))
	require.NoError(t, err)
	require.Equal(t, "task-1", id)
}

func TestOCRClient_CreateTask_SetsBearerAuth(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"id":"task-2","status":"Pending"}`))
	}))
	defer srv.Close()

	c := NewOCRClient(srv.URL, "secret-token")
	_, err := c.CreateTask(context.Background(), "doc.pdf", []byte("x"))
	require.NoError(t, err)
	require.Equal(t, "Bearer secret-token", gotAuth)
}

func TestOCRClient_PollTask_ContextCancelStopsPolling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("poll should not reach the server once the context is already cancelled")
	}))
	defer srv.Close()

	c := NewOCRClient(srv.URL, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.PollTask(ctx, "task-1")
	require.ErrorIs(t, err, context.Canceled)
}

func TestTikaClient_ExtractHTML_EmptyBodyIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "text/html", r.Header.Get("Accept"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewTikaClient(srv.URL)
	_, err := c.ExtractHTML(context.Background(), []byte("raw bytes"))
	require.Error(t, err)
}

func TestTikaClient_ExtractHTML_ReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>extracted</body></html>"))
	}))
	defer srv.Close()

	c := NewTikaClient(srv.URL)
	html, err := c.ExtractHTML(context.Background(), []byte("raw bytes"))
	require.NoError(t, err)
	require.Contains(t, html, "extracted")
}
