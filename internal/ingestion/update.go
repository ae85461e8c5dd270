// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package ingestion

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/northbound-system/hive-ingest/internal/bm25"
	"github.com/northbound-system/hive-ingest/internal/config"
	"github.com/northbound-system/hive-ingest/internal/embedding"
	"github.com/northbound-system/hive-ingest/internal/ingesterr"
	"github.com/northbound-system/hive-ingest/internal/models"
	"github.com/northbound-system/hive-ingest/internal/store"
	"github.com/northbound-system/hive-ingest/internal/vectordb"
)

// Update implements §4.3.6: recompute enabled vectors from the
// (re)extracted text, resolve groups, overwrite the existing point, and
// rewrite the relational row's mutable columns. The chunk id never
// changes; the point id changes only when the update carries a new
// tracking id (§3.3).
func (h *Handler) Update(ctx context.Context, payload models.UpdatePayload, cfg models.DatasetConfiguration) (uuid.UUID, error) {
	existing, err := h.Store.GetChunkByID(ctx, payload.ChunkMetadata.ChunkID)
	if err != nil {
		return uuid.Nil, err
	}

	row, ok, err := normalizeChunk(payload.DatasetID, payload.ChunkMetadata)
	if err != nil {
		return uuid.Nil, err
	}
	if !ok {
		return uuid.Nil, ingesterr.User("update for chunk %s carries empty indexing text", payload.ChunkMetadata.ChunkID)
	}
	row.ChunkID = existing.ChunkID
	row.GroupIDs = payload.GroupIDs

	if payload.FulltextBoost.Present() {
		row.FulltextBoost = payload.FulltextBoost
	}
	if payload.SemanticBoost.Present() {
		row.SemanticBoost = payload.SemanticBoost
	}

	row.PointID = existing.PointID
	if row.TrackingID != "" && row.TrackingID != existing.TrackingID {
		row.PointID = models.DeterministicPointID(row.TrackingID)
	}

	var dense []float32
	var denseDim int
	if cfg.SemanticEnabled {
		client := h.denseClientFor(cfg)
		vecs, err := client.EmbedBatch(ctx, []string{row.EmbeddingContent}, embedding.EncodeDoc)
		if err != nil {
			return uuid.Nil, ingesterr.Transient(fmt.Errorf("update dense embedding: %w", err))
		}
		dense = vecs[0]
		denseDim = len(dense)
		if _, dimErr := vectordb.DenseVectorName(denseDim); dimErr != nil {
			return uuid.Nil, ingesterr.User("chunk %s: %v", row.ChunkID, dimErr)
		}
	}

	var sparse []vectordb.SparseEntry
	if cfg.FulltextEnabled {
		vecs, err := h.Sparse.EmbedBatch(ctx, []string{boostedText(row.Content, row.FulltextBoost)}, embedding.EncodeDoc)
		if err != nil {
			return uuid.Nil, ingesterr.Transient(fmt.Errorf("update sparse embedding: %w", err))
		}
		sparse = vecs[0]
	} else {
		sparse = embedding.PlaceholderSparseVector()
	}

	var bm25Vec []vectordb.SparseEntry
	if cfg.BM25Enabled && config.BM25Active() {
		bm25Vec = bm25.Vector(row.Content, bm25Params(cfg))
	}

	tagSets, err := resolveGroups(ctx, h.Store, []store.ChunkRow{row})
	if err != nil {
		return uuid.Nil, err
	}
	merged := store.MergedTagSet(row.TagSet, tagSets)
	point := buildPoint(row, dense, denseDim, sparse, bm25Vec, merged)

	if err := h.Vector.UpdatePoint(ctx, point); err != nil {
		return uuid.Nil, ingesterr.Transient(fmt.Errorf("update point %s: %w", row.PointID, err))
	}

	if err := h.Store.UpdateChunk(ctx, row); err != nil {
		return uuid.Nil, err
	}

	if existing.PointID != uuid.Nil && existing.PointID != row.PointID {
		if err := h.Vector.DeletePoints(ctx, []uuid.UUID{existing.PointID}); err != nil {
			return uuid.Nil, ingesterr.Transient(fmt.Errorf("delete superseded point %s: %w", existing.PointID, err))
		}
	}

	if row.FulltextBoost.Present() || row.SemanticBoost.Present() {
		if err := h.Store.UpsertBoosts(ctx, row.ChunkID, row.FulltextBoost, row.SemanticBoost); err != nil {
			return uuid.Nil, err
		}
	}

	if err := persistGroupMembership(ctx, h.Store, []store.ChunkRow{row}); err != nil {
		return uuid.Nil, err
	}

	return row.ChunkID, nil
}
