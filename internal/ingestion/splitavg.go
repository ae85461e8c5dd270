// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package ingestion

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/northbound-system/hive-ingest/internal/bm25"
	"github.com/northbound-system/hive-ingest/internal/config"
	"github.com/northbound-system/hive-ingest/internal/embedding"
	"github.com/northbound-system/hive-ingest/internal/ingesterr"
	"github.com/northbound-system/hive-ingest/internal/models"
	"github.com/northbound-system/hive-ingest/internal/store"
	"github.com/northbound-system/hive-ingest/internal/textproc"
	"github.com/northbound-system/hive-ingest/internal/vectordb"
)

// splitAverageChunk implements §4.3.5: the indexing text is split into
// coarse windows, each window embedded, and the stored dense vector is
// the coordinate-wise mean of the per-window embeddings, renormalized.
// Sparse/BM25 are computed on the full text. Relational insert, vector
// upsert, and rollback mirror the bulk path applied to a batch of one.
func (h *Handler) splitAverageChunk(ctx context.Context, datasetID uuid.UUID, cfg models.DatasetConfiguration, raw models.RawChunkMessage) (uuid.UUID, error) {
	row, ok, err := normalizeChunk(datasetID, raw)
	if err != nil {
		return uuid.Nil, err
	}
	if !ok {
		return uuid.Nil, nil
	}

	var inserted store.InsertedChunk
	if !cfg.QdrantOnly {
		rows, err := h.Store.BulkUpsertChunks(ctx, []store.ChunkRow{row}, raw.UpsertByTrackingID)
		if err != nil {
			return uuid.Nil, err
		}
		if len(rows) == 0 {
			return uuid.Nil, nil
		}
		inserted = rows[0]
	} else {
		if row.TrackingID != "" {
			row.PointID = models.DeterministicPointID(row.TrackingID)
		}
		inserted = store.InsertedChunk{ChunkRow: row}
	}

	rollback := func() {
		if cfg.QdrantOnly || raw.UpsertByTrackingID {
			return
		}
		h.Store.BulkDeleteChunks(ctx, []uuid.UUID{inserted.ChunkID})
	}

	var dense []float32
	var denseDim int
	if cfg.SemanticEnabled {
		windows := textproc.ChunkByTokens(inserted.EmbeddingContent, textproc.CoarseWindow)
		if len(windows) == 0 {
			windows = []string{inserted.EmbeddingContent}
		}
		client := h.denseClientFor(cfg)
		vecs, err := client.EmbedBatch(ctx, windows, embedding.EncodeDoc)
		if err != nil {
			rollback()
			return uuid.Nil, ingesterr.Transient(fmt.Errorf("split-average dense embedding: %w", err))
		}
		dense = meanNormalize(vecs)
		denseDim = len(dense)
		if _, err := vectordb.DenseVectorName(denseDim); err != nil {
			rollback()
			return uuid.Nil, ingesterr.User("chunk %s: %v", inserted.ChunkID, err)
		}
	}

	var sparse []vectordb.SparseEntry
	if cfg.FulltextEnabled {
		vecs, err := h.Sparse.EmbedBatch(ctx, []string{boostedText(inserted.Content, inserted.FulltextBoost)}, embedding.EncodeDoc)
		if err != nil {
			rollback()
			return uuid.Nil, ingesterr.Transient(fmt.Errorf("split-average sparse embedding: %w", err))
		}
		sparse = vecs[0]
	} else {
		sparse = embedding.PlaceholderSparseVector()
	}

	var bm25Vec []vectordb.SparseEntry
	if cfg.BM25Enabled && config.BM25Active() {
		bm25Vec = bm25.Vector(inserted.Content, bm25Params(cfg))
	}

	tagSets, err := resolveGroups(ctx, h.Store, []store.ChunkRow{inserted.ChunkRow})
	if err != nil {
		rollback()
		return uuid.Nil, err
	}
	merged := store.MergedTagSet(inserted.TagSet, tagSets)
	point := buildPoint(inserted.ChunkRow, dense, denseDim, sparse, bm25Vec, merged)

	if err := h.Vector.UpsertPoints(ctx, []vectordb.Point{point}); err != nil {
		rollback()
		return uuid.Nil, ingesterr.Transient(fmt.Errorf("split-average vector upsert: %w", err))
	}

	if err := persistGroupMembership(ctx, h.Store, []store.ChunkRow{inserted.ChunkRow}); err != nil {
		return uuid.Nil, err
	}

	return inserted.ChunkID, nil
}

// meanNormalize returns the coordinate-wise mean of vecs, renormalized to
// unit length (§4.3.5).
func meanNormalize(vecs [][]float32) []float32 {
	if len(vecs) == 0 {
		return nil
	}
	dim := len(vecs[0])
	mean := make([]float64, dim)
	for _, v := range vecs {
		for i, x := range v {
			mean[i] += float64(x)
		}
	}
	n := float64(len(vecs))
	var sumSquares float64
	for i := range mean {
		mean[i] /= n
		sumSquares += mean[i] * mean[i]
	}
	norm := math.Sqrt(sumSquares)
	out := make([]float32, dim)
	if norm == 0 {
		return out
	}
	for i, x := range mean {
		out[i] = float32(x / norm)
	}
	return out
}
