// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/northbound-system/hive-ingest/internal/ingesterr"
	"github.com/northbound-system/hive-ingest/internal/models"
)

// GetDatasetConfiguration loads and decodes a dataset's server_configuration
// JSONB column, mirroring the original's DatasetConfiguration::from_json. A
// missing dataset returns a transient error: the dispatch loop treats it as
// a possible registration race rather than a hard user error (§4.3.1).
func (s *Store) GetDatasetConfiguration(ctx context.Context, datasetID uuid.UUID) (models.DatasetConfiguration, error) {
	var raw []byte
	err := s.Pool.QueryRow(ctx, `SELECT server_configuration FROM datasets WHERE id = $1`, datasetID).Scan(&raw)
	if err != nil {
		if err == pgx.ErrNoRows {
			return models.DatasetConfiguration{}, ingesterr.Transientf("dataset %s not found", datasetID)
		}
		return models.DatasetConfiguration{}, ingesterr.Transient(fmt.Errorf("load dataset %s: %w", datasetID, err))
	}

	var cfg models.DatasetConfiguration
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return models.DatasetConfiguration{}, ingesterr.User("malformed dataset configuration for %s: %v", datasetID, err)
		}
	}
	return cfg.WithDefaults(), nil
}

// OrganizationChunkCount returns the current chunk count used by the quota
// check (§4.3.2). Backed by dataset_usage_counts, which relational
// triggers normally maintain; QDRANT_ONLY mode increments it explicitly
// from the worker (see IncrementUsageCount).
func (s *Store) OrganizationChunkCount(ctx context.Context, datasetID uuid.UUID) (int64, error) {
	var count int64
	err := s.Pool.QueryRow(ctx, `SELECT COALESCE(chunk_count, 0) FROM dataset_usage_counts WHERE dataset_id = $1`, datasetID).Scan(&count)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, nil
		}
		return 0, ingesterr.Transient(fmt.Errorf("load usage count for %s: %w", datasetID, err))
	}
	return count, nil
}

// PlanChunkLimit returns the organization's plan ceiling on total chunk
// count for the dataset (§4.3.2 quota check). The organization/plan model
// itself is out of scope; this reads the denormalized ceiling the
// ingress API is expected to have stamped onto the dataset row.
func (s *Store) PlanChunkLimit(ctx context.Context, datasetID uuid.UUID) (int64, error) {
	var limit int64
	err := s.Pool.QueryRow(ctx, `SELECT plan_chunk_limit FROM datasets WHERE id = $1`, datasetID).Scan(&limit)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, ingesterr.Transientf("dataset %s not found", datasetID)
		}
		return 0, ingesterr.Transient(fmt.Errorf("load plan limit for %s: %w", datasetID, err))
	}
	return limit, nil
}

// IncrementUsageCount bumps the dataset's chunk counter by n, used only in
// QDRANT_ONLY mode where no relational insert trigger exists to do it
// automatically (§4.3.2 "Post-write").
func (s *Store) IncrementUsageCount(ctx context.Context, datasetID uuid.UUID, n int) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO dataset_usage_counts (dataset_id, chunk_count) VALUES ($1, $2)
		ON CONFLICT (dataset_id) DO UPDATE SET chunk_count = dataset_usage_counts.chunk_count + EXCLUDED.chunk_count`,
		datasetID, n)
	if err != nil {
		return ingesterr.Transient(fmt.Errorf("increment usage count for %s: %w", datasetID, err))
	}
	return nil
}
