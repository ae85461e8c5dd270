// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package ingestion

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/northbound-system/hive-ingest/internal/bm25"
	"github.com/northbound-system/hive-ingest/internal/config"
	"github.com/northbound-system/hive-ingest/internal/embedding"
	"github.com/northbound-system/hive-ingest/internal/ingesterr"
	"github.com/northbound-system/hive-ingest/internal/models"
	"github.com/northbound-system/hive-ingest/internal/store"
	"github.com/northbound-system/hive-ingest/internal/vectordb"
)

// BulkUpload implements §4.3.2 end to end: quota check, normalization,
// the split-average short-circuit, transactional relational insert,
// parallel embedding, point assembly, vector upsert, and compensating
// rollback.
func (h *Handler) BulkUpload(ctx context.Context, payload models.BulkUploadPayload, cfg models.DatasetConfiguration) ([]uuid.UUID, error) {
	if !config.Unlimited() {
		count, err := h.Store.OrganizationChunkCount(ctx, payload.DatasetID)
		if err != nil {
			return nil, err
		}
		limit, err := h.Store.PlanChunkLimit(ctx, payload.DatasetID)
		if err != nil {
			return nil, err
		}
		if count+int64(len(payload.IngestionMessages)) > limit {
			return nil, ingesterr.User("dataset %s quota exceeded: %d current + %d incoming > %d limit", payload.DatasetID, count, len(payload.IngestionMessages), limit)
		}
	}

	splitAvg := false
	for _, m := range payload.IngestionMessages {
		if m.SplitAvg {
			splitAvg = true
			break
		}
	}
	if splitAvg {
		var ids []uuid.UUID
		for _, m := range payload.IngestionMessages {
			id, err := h.splitAverageChunk(ctx, payload.DatasetID, cfg, m)
			if err != nil {
				return nil, err
			}
			if id != uuid.Nil {
				ids = append(ids, id)
			}
		}
		return uniqueIDs(ids), nil
	}

	var rows []store.ChunkRow
	upsertByTrackingID := false
	for _, m := range payload.IngestionMessages {
		if m.UpsertByTrackingID {
			upsertByTrackingID = true
		}
		row, ok, err := normalizeChunk(payload.DatasetID, m)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	var inserted []store.InsertedChunk
	if !cfg.QdrantOnly {
		var err error
		inserted, err = h.Store.BulkUpsertChunks(ctx, rows, upsertByTrackingID)
		if err != nil {
			return nil, err
		}
	} else {
		inserted = make([]store.InsertedChunk, len(rows))
		for i, row := range rows {
			if row.TrackingID != "" {
				row.PointID = models.DeterministicPointID(row.TrackingID)
			}
			inserted[i] = store.InsertedChunk{ChunkRow: row}
		}
	}
	if len(inserted) == 0 {
		return nil, nil
	}

	rollback := func() {
		if cfg.QdrantOnly || upsertByTrackingID {
			return
		}
		ids := make([]uuid.UUID, len(inserted))
		for i, r := range inserted {
			ids[i] = r.ChunkID
		}
		h.Store.BulkDeleteChunks(ctx, ids)
	}

	dense, denseDims, err := h.embedDense(ctx, cfg, inserted)
	if err != nil {
		rollback()
		return nil, err
	}

	sparse, err := h.embedSparse(ctx, cfg, inserted)
	if err != nil {
		rollback()
		return nil, err
	}

	bm25Vecs := computeBM25(cfg, inserted)

	tagSets, err := resolveGroups(ctx, h.Store, rowsOf(inserted))
	if err != nil {
		rollback()
		return nil, err
	}

	points := make([]vectordb.Point, len(inserted))
	for i, r := range inserted {
		if dense[i] != nil {
			if _, dimErr := vectordb.DenseVectorName(denseDims[i]); dimErr != nil {
				rollback()
				return nil, ingesterr.User("chunk %s: %v", r.ChunkID, dimErr)
			}
		}
		merged := store.MergedTagSet(r.TagSet, filterGroupTagSets(tagSets, r.GroupIDs))
		points[i] = buildPoint(r.ChunkRow, dense[i], denseDims[i], sparse[i], bm25Vecs[i], merged)
	}

	if err := h.Vector.UpsertPoints(ctx, points); err != nil {
		rollback()
		return nil, ingesterr.Transient(fmt.Errorf("vector upsert: %w", err))
	}

	if err := persistGroupMembership(ctx, h.Store, rowsOf(inserted)); err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(inserted))
	for i, r := range inserted {
		ids[i] = r.ChunkID
	}
	ids = uniqueIDs(ids)

	if cfg.QdrantOnly {
		if err := h.Store.IncrementUsageCount(ctx, payload.DatasetID, len(ids)); err != nil {
			return nil, err
		}
	}

	return ids, nil
}

func rowsOf(inserted []store.InsertedChunk) []store.ChunkRow {
	out := make([]store.ChunkRow, len(inserted))
	for i, r := range inserted {
		out[i] = r.ChunkRow
	}
	return out
}

func filterGroupTagSets(all map[uuid.UUID][]string, ids []uuid.UUID) map[uuid.UUID][]string {
	out := make(map[uuid.UUID][]string, len(ids))
	for _, id := range ids {
		out[id] = all[id]
	}
	return out
}

// embedDense computes dense vectors for every row when semantic search is
// enabled, fanned out in batches of embedding.BatchWidth (§4.3.2 item 1).
func (h *Handler) embedDense(ctx context.Context, cfg models.DatasetConfiguration, rows []store.InsertedChunk) ([][]float32, []int, error) {
	out := make([][]float32, len(rows))
	dims := make([]int, len(rows))
	if !cfg.SemanticEnabled {
		return out, dims, nil
	}

	texts := make([]string, len(rows))
	for i, r := range rows {
		texts[i] = r.EmbeddingContent
	}

	client := h.denseClientFor(cfg)
	vecs, err := client.EmbedBatch(ctx, texts, embedding.EncodeDoc)
	if err != nil {
		return nil, nil, ingesterr.Transient(fmt.Errorf("dense embedding: %w", err))
	}
	for i, v := range vecs {
		out[i] = v
		dims[i] = len(v)
	}
	return out, dims, nil
}

// embedSparse computes SPLADE vectors when enabled, else a placeholder
// per row (§4.3.2 item 2). The fulltext boost phrase is folded in by
// repeating it ahead of the indexed text proportional to its factor,
// giving the SPLADE service's own tokenizer more mass on the boosted
// phrase without inventing a reweighting contract the service doesn't
// document.
func (h *Handler) embedSparse(ctx context.Context, cfg models.DatasetConfiguration, rows []store.InsertedChunk) ([][]vectordb.SparseEntry, error) {
	out := make([][]vectordb.SparseEntry, len(rows))
	if !cfg.FulltextEnabled {
		for i := range rows {
			out[i] = embedding.PlaceholderSparseVector()
		}
		return out, nil
	}

	texts := make([]string, len(rows))
	for i, r := range rows {
		texts[i] = boostedText(r.Content, r.FulltextBoost)
	}

	vecs, err := h.Sparse.EmbedBatch(ctx, texts, embedding.EncodeDoc)
	if err != nil {
		return nil, ingesterr.Transient(fmt.Errorf("sparse embedding: %w", err))
	}
	copy(out, vecs)
	return out, nil
}

func boostedText(content string, boost *models.Boost) string {
	if !boost.Present() {
		return content
	}
	repeat := int(boost.Factor)
	if repeat < 1 {
		repeat = 1
	}
	if repeat > 10 {
		repeat = 10
	}
	return strings.Repeat(boost.Phrase+" ", repeat) + content
}

func computeBM25(cfg models.DatasetConfiguration, rows []store.InsertedChunk) [][]vectordb.SparseEntry {
	out := make([][]vectordb.SparseEntry, len(rows))
	if !cfg.BM25Enabled || !config.BM25Active() {
		return out
	}
	params := bm25Params(cfg)
	for i, r := range rows {
		out[i] = bm25.Vector(r.Content, params)
	}
	return out
}
