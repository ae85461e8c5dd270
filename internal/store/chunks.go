// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/northbound-system/hive-ingest/internal/ingesterr"
	"github.com/northbound-system/hive-ingest/internal/models"
)

// ChunkRow is the normalized, write-ready form of a chunk the ingestion
// worker hands to the relational store.
type ChunkRow struct {
	ChunkID             uuid.UUID
	PointID             uuid.UUID
	DatasetID           uuid.UUID
	TrackingID          string // empty means absent
	Link                string
	ChunkHTML           string
	Content             string // indexing text, already HTML-stripped if requested
	EmbeddingContent     string
	Metadata            map[string]any
	TagSet              []string
	TimeStamp           time.Time
	Location            *models.GeoLocation
	NumValue            *float64
	Weight              float64
	ImageURLs           []string
	GroupIDs            []uuid.UUID
	FulltextBoost       *models.Boost
	SemanticBoost       *models.Boost
}

// InsertedChunk is the authoritative row the relational store returns
// after a bulk insert; per §9 the worker must reconcile to these ids and
// never trust the preallocated values past this point.
type InsertedChunk struct {
	ChunkRow
}

// BulkUpsertChunks inserts rows transactionally. When upsertByTrackingID
// is true, conflicts on (dataset_id, tracking_id) update the mutable
// columns in place and the deterministic point id is always
// models.DeterministicPointID(tracking_id). When false, any conflict
// aborts the whole transaction with an *ingesterr.DuplicateTrackingID.
func (s *Store) BulkUpsertChunks(ctx context.Context, rows []ChunkRow, upsertByTrackingID bool) ([]InsertedChunk, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, ingesterr.Transient(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx)

	inserted := make([]InsertedChunk, 0, len(rows))
	for _, row := range rows {
		if upsertByTrackingID && row.TrackingID != "" {
			row.PointID = models.DeterministicPointID(row.TrackingID)
		}

		metaJSON, err := json.Marshal(row.Metadata)
		if err != nil {
			return nil, ingesterr.User("invalid metadata for chunk %s: %v", row.ChunkID, err)
		}
		var locJSON []byte
		if row.Location != nil {
			locJSON, _ = json.Marshal(row.Location)
		}

		var trackingID *string
		if row.TrackingID != "" {
			trackingID = &row.TrackingID
		}

		var query string
		if upsertByTrackingID {
			query = `
				INSERT INTO chunk_metadata
					(id, dataset_id, tracking_id, link, chunk_html, content, metadata, tag_set, time_stamp, location, num_value, weight, image_urls, qdrant_point_id)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
				ON CONFLICT (dataset_id, tracking_id) WHERE tracking_id IS NOT NULL DO UPDATE SET
					link = EXCLUDED.link,
					chunk_html = EXCLUDED.chunk_html,
					content = EXCLUDED.content,
					metadata = EXCLUDED.metadata,
					tag_set = EXCLUDED.tag_set,
					weight = EXCLUDED.weight,
					updated_at = now()
				RETURNING id, qdrant_point_id`
		} else {
			query = `
				INSERT INTO chunk_metadata
					(id, dataset_id, tracking_id, link, chunk_html, content, metadata, tag_set, time_stamp, location, num_value, weight, image_urls, qdrant_point_id)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
				RETURNING id, qdrant_point_id`
		}

		var returnedID, returnedPoint uuid.UUID
		err = tx.QueryRow(ctx, query,
			row.ChunkID, row.DatasetID, trackingID, row.Link, row.ChunkHTML, row.Content,
			metaJSON, row.TagSet, nullableTime(row.TimeStamp), nullableJSON(locJSON), row.NumValue, row.Weight, row.ImageURLs, row.PointID,
		).Scan(&returnedID, &returnedPoint)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, &ingesterr.DuplicateTrackingID{TrackingID: row.TrackingID}
			}
			return nil, ingesterr.Transient(fmt.Errorf("insert chunk %s: %w", row.ChunkID, err))
		}

		row.ChunkID = returnedID
		row.PointID = returnedPoint
		inserted = append(inserted, InsertedChunk{ChunkRow: row})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, ingesterr.Transient(fmt.Errorf("commit tx: %w", err))
	}
	return inserted, nil
}

// BulkDeleteChunks is the compensating rollback helper: it deletes exactly
// the rows inserted in the failed attempt, keyed by id. Called by the
// bulk and split-average paths when a step after the insert fails
// (embedding, group resolution, dimensionality check, vector upsert).
func (s *Store) BulkDeleteChunks(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.Pool.Exec(ctx, `DELETE FROM chunk_metadata WHERE id = ANY($1)`, ids); err != nil {
		log.Printf("BulkDeleteChunks: rollback failed for %d ids: %v", len(ids), err)
		return ingesterr.Transient(fmt.Errorf("rollback delete: %w", err))
	}
	log.Printf("BulkDeleteChunks: rolled back %d rows", len(ids))
	return nil
}

// UpdateChunk rewrites the mutable columns of an existing row in place,
// used by the Update path (§4.3.6). The chunk's id never changes.
func (s *Store) UpdateChunk(ctx context.Context, row ChunkRow) error {
	metaJSON, err := json.Marshal(row.Metadata)
	if err != nil {
		return ingesterr.User("invalid metadata for chunk %s: %v", row.ChunkID, err)
	}
	var locJSON []byte
	if row.Location != nil {
		locJSON, _ = json.Marshal(row.Location)
	}
	var trackingID *string
	if row.TrackingID != "" {
		trackingID = &row.TrackingID
	}

	_, err = s.Pool.Exec(ctx, `
		UPDATE chunk_metadata SET
			tracking_id = $2, link = $3, chunk_html = $4, content = $5, metadata = $6,
			tag_set = $7, num_value = $8, weight = $9, image_urls = $10, location = $11,
			qdrant_point_id = $12, updated_at = now()
		WHERE id = $1`,
		row.ChunkID, trackingID, row.Link, row.ChunkHTML, row.Content, metaJSON,
		row.TagSet, row.NumValue, row.Weight, row.ImageURLs, nullableJSON(locJSON), row.PointID,
	)
	if err != nil {
		return ingesterr.Transient(fmt.Errorf("update chunk %s: %w", row.ChunkID, err))
	}
	return nil
}

// UpsertBoosts writes the per-chunk fulltext/semantic boost row, used by
// the Update path when a boost changes.
func (s *Store) UpsertBoosts(ctx context.Context, chunkID uuid.UUID, fulltext, semantic *models.Boost) error {
	var ftPhrase, smPhrase *string
	var ftFactor, smFactor *float64
	if fulltext.Present() {
		ftPhrase, ftFactor = &fulltext.Phrase, &fulltext.Factor
	}
	if semantic.Present() {
		smPhrase, smFactor = &semantic.Phrase, &semantic.Factor
	}

	_, err := s.Pool.Exec(ctx, `
		INSERT INTO chunk_boosts (chunk_id, fulltext_boost_phrase, fulltext_boost_factor, semantic_boost_phrase, semantic_boost_factor)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (chunk_id) DO UPDATE SET
			fulltext_boost_phrase = EXCLUDED.fulltext_boost_phrase,
			fulltext_boost_factor = EXCLUDED.fulltext_boost_factor,
			semantic_boost_phrase = EXCLUDED.semantic_boost_phrase,
			semantic_boost_factor = EXCLUDED.semantic_boost_factor`,
		chunkID, ftPhrase, ftFactor, smPhrase, smFactor,
	)
	if err != nil {
		return ingesterr.Transient(fmt.Errorf("upsert boosts for chunk %s: %w", chunkID, err))
	}
	return nil
}

// GetChunkByID loads a chunk row for the Update path.
func (s *Store) GetChunkByID(ctx context.Context, id uuid.UUID) (ChunkRow, error) {
	var row ChunkRow
	var metaJSON []byte
	var locJSON []byte
	var trackingID *string
	var ts *time.Time

	err := s.Pool.QueryRow(ctx, `
		SELECT id, dataset_id, tracking_id, link, chunk_html, content, metadata, tag_set, time_stamp, location, num_value, weight, image_urls, qdrant_point_id
		FROM chunk_metadata WHERE id = $1`, id,
	).Scan(&row.ChunkID, &row.DatasetID, &trackingID, &row.Link, &row.ChunkHTML, &row.Content, &metaJSON, &row.TagSet, &ts, &locJSON, &row.NumValue, &row.Weight, &row.ImageURLs, &row.PointID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return row, ingesterr.User("chunk %s not found", id)
		}
		return row, ingesterr.Transient(fmt.Errorf("load chunk %s: %w", id, err))
	}
	if trackingID != nil {
		row.TrackingID = *trackingID
	}
	if ts != nil {
		row.TimeStamp = *ts
	}
	if len(metaJSON) > 0 {
		_ = json.Unmarshal(metaJSON, &row.Metadata)
	}
	if len(locJSON) > 0 {
		row.Location = &models.GeoLocation{}
		_ = json.Unmarshal(locJSON, row.Location)
	}
	return row, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func nullableJSON(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

func isUniqueViolation(err error) bool {
	return err != nil && (hasSQLState(err, "23505"))
}

func hasSQLState(err error, code string) bool {
	type sqlStater interface{ SQLState() string }
	var s sqlStater
	for u := err; u != nil; {
		if ss, ok := u.(sqlStater); ok {
			s = ss
			break
		}
		type unwrapper interface{ Unwrap() error }
		uw, ok := u.(unwrapper)
		if !ok {
			break
		}
		u = uw.Unwrap()
	}
	return s != nil && s.SQLState() == code
}
