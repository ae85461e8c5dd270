// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package ingestion is the chunk ingestion worker core (§4.3): dispatch,
// normalization, bulk insert, embedding fan-out, point assembly,
// compensating rollback, the split-average single-chunk path, and the
// update path. Its shape follows the teacher's internal/jobs job-handler
// pattern (decode, branch on kind, return a retryable error) generalized
// from the teacher's single recalc-job case to the spec's tagged union.
package ingestion

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"

	"github.com/northbound-system/hive-ingest/internal/bm25"
	"github.com/northbound-system/hive-ingest/internal/config"
	"github.com/northbound-system/hive-ingest/internal/embedding"
	"github.com/northbound-system/hive-ingest/internal/events"
	"github.com/northbound-system/hive-ingest/internal/ingesterr"
	"github.com/northbound-system/hive-ingest/internal/models"
	"github.com/northbound-system/hive-ingest/internal/store"
	"github.com/northbound-system/hive-ingest/internal/vectordb"
)

// DenseEmbedder is the subset of embedding.DenseClient the handler needs,
// narrowed to an interface so tests can substitute a fake.
type DenseEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string, encodeType embedding.EncodeType) ([][]float32, error)
}

// SparseEmbedder is the subset of embedding.SparseClient the handler needs.
type SparseEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string, encodeType embedding.EncodeType) ([][]vectordb.SparseEntry, error)
}

// Handler wires the relational store, vector store, and embedding clients
// into the dispatch loop worker.StartWorkers drives.
type Handler struct {
	Store  *store.Store
	Vector vectordb.VectorDB
	Sparse SparseEmbedder

	// DefaultDenseOrigin/DefaultAPIVersion seed a per-dataset DenseClient
	// when the dataset configuration does not override EMBEDDING_BASE_URL.
	DefaultDenseOrigin string
	DefaultAPIVersion  string
}

// NewHandler builds a Handler from already-constructed infrastructure
// clients, as cmd/ingestion-worker's main does at startup.
func NewHandler(s *store.Store, vdb vectordb.VectorDB, sparse SparseEmbedder, origins config.Origins) *Handler {
	return &Handler{
		Store:              s,
		Vector:             vdb,
		Sparse:             sparse,
		DefaultDenseOrigin: origins.EmbeddingServerOrigin,
	}
}

func (h *Handler) denseClientFor(cfg models.DatasetConfiguration) DenseEmbedder {
	origin := cfg.EmbeddingBaseURL
	if origin == "" {
		origin = h.DefaultDenseOrigin
	}
	return embedding.NewDenseClient(origin, h.DefaultAPIVersion, cfg.EmbeddingModelName, cfg.EmbeddingQueryPrefix)
}

func bm25Params(cfg models.DatasetConfiguration) bm25.Params {
	return bm25.Params{AvgLen: cfg.BM25AvgLen, B: cfg.BM25B, K: cfg.BM25K}
}

// Handle implements worker.Handler. A parse failure is un-actionable and
// is dropped (§4.3.1); a missing dataset is transient (store surfaces it
// as such already).
func (h *Handler) Handle(ctx context.Context, raw []byte) error {
	var msg models.IngestionMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ingesterr.User("ingestion: unparseable message: %v", err)
	}

	switch msg.Kind {
	case models.IngestionKindBulkUpload:
		if msg.BulkUpload == nil {
			return ingesterr.User("ingestion: bulk_upload message missing payload")
		}
		cfg, err := h.Store.GetDatasetConfiguration(ctx, msg.BulkUpload.DatasetID)
		if err != nil {
			return err
		}
		ids, err := h.BulkUpload(ctx, *msg.BulkUpload, cfg)
		if err != nil {
			return err
		}
		log.Printf("ingestion: bulk_upload dataset=%s produced %d chunks", msg.BulkUpload.DatasetID, len(ids))
		return nil

	case models.IngestionKindUpdate:
		if msg.Update == nil {
			return ingesterr.User("ingestion: update message missing payload")
		}
		cfg, err := h.Store.GetDatasetConfiguration(ctx, msg.Update.DatasetID)
		if err != nil {
			return err
		}
		id, err := h.Update(ctx, *msg.Update, cfg)
		if err != nil {
			return err
		}
		log.Printf("ingestion: update dataset=%s chunk=%s", msg.Update.DatasetID, id)
		return nil

	default:
		return ingesterr.User("ingestion: unknown message kind %q", msg.Kind)
	}
}

// Attempt implements worker.Handler.
func (h *Handler) Attempt(raw []byte) (int, error) {
	var msg models.IngestionMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return 0, err
	}
	return msg.AttemptNumber(), nil
}

// Reinject implements worker.Handler.
func (h *Handler) Reinject(raw []byte) ([]byte, error) {
	var msg models.IngestionMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, err
	}
	msg = msg.WithAttempt(msg.AttemptNumber() + 1)
	return json.Marshal(msg)
}

// DeadLetterEvent implements worker.EventDescriber: best-effort
// re-parses raw to surface the dataset id and, for a bulk message, the
// ids of the rows it was attempting to write, for §7's dead-letter
// event. A re-parse failure (the message was already unparseable) still
// yields an event, just without chunk ids.
func (h *Handler) DeadLetterEvent(raw []byte, cause string) events.DeadLetterEvent {
	var msg models.IngestionMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return events.DeadLetterEvent{Cause: cause}
	}
	ev := events.DeadLetterEvent{Cause: cause}
	switch msg.Kind {
	case models.IngestionKindBulkUpload:
		if msg.BulkUpload != nil {
			ev.DatasetID = msg.BulkUpload.DatasetID
			for _, m := range msg.BulkUpload.IngestionMessages {
				if m.ChunkID != uuid.Nil {
					ev.ChunkIDs = append(ev.ChunkIDs, m.ChunkID)
				}
			}
		}
	case models.IngestionKindUpdate:
		if msg.Update != nil {
			ev.DatasetID = msg.Update.DatasetID
			if msg.Update.ChunkMetadata.ChunkID != uuid.Nil {
				ev.ChunkIDs = []uuid.UUID{msg.Update.ChunkMetadata.ChunkID}
			}
		}
	}
	return ev
}

// uniqueIDs dedups ids while preserving first-seen order (§4.3.2 "Return
// the unique list of inserted chunk ids").
func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
