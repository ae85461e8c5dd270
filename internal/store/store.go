// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package store is the relational side of the pipeline: chunk_metadata,
// chunk_group, chunk_group_bookmarks, files, groups_from_files, datasets,
// dataset_usage_counts, and chunk_boosts (§6). Schema migration runs on
// boot as a list of CREATE ... IF NOT EXISTS statements; it does not probe
// existing columns or add missing ones to tables that already exist.
package store

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps a pgx connection pool sized per §5 (3-10 connections).
type Store struct {
	Pool *pgxpool.Pool
}

// Open connects to databaseURL and runs schema migration.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		log.Printf("store.Open: invalid DATABASE_URL: %v", err)
		return nil, err
	}
	if cfg.MaxConns < 3 {
		cfg.MaxConns = 10
	}
	if cfg.MinConns == 0 {
		cfg.MinConns = 3
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		log.Printf("store.Open: failed to create pool: %v", err)
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		log.Printf("store.Open: failed to ping: %v", err)
		return nil, err
	}

	s := &Store{Pool: pool}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	log.Printf("store.Open: connected and migrated, maxConns=%d", cfg.MaxConns)
	return s, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.Pool.Close()
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS datasets (
		id UUID PRIMARY KEY,
		organization_id UUID NOT NULL,
		name TEXT NOT NULL,
		server_configuration JSONB NOT NULL DEFAULT '{}',
		plan_chunk_limit BIGINT NOT NULL DEFAULT 9223372036854775807,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS dataset_usage_counts (
		dataset_id UUID PRIMARY KEY REFERENCES datasets(id),
		chunk_count BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS chunk_group (
		id UUID PRIMARY KEY,
		dataset_id UUID NOT NULL REFERENCES datasets(id),
		name TEXT NOT NULL,
		tracking_id TEXT,
		metadata JSONB NOT NULL DEFAULT '{}',
		tag_set TEXT[] NOT NULL DEFAULT '{}',
		file_id UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (dataset_id, tracking_id)
	)`,
	`CREATE TABLE IF NOT EXISTS files (
		id UUID PRIMARY KEY,
		dataset_id UUID NOT NULL REFERENCES datasets(id),
		name TEXT NOT NULL,
		size_mb INTEGER NOT NULL DEFAULT 0,
		metadata JSONB NOT NULL DEFAULT '{}',
		link TEXT,
		group_id UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS groups_from_files (
		group_id UUID NOT NULL REFERENCES chunk_group(id),
		file_id UUID NOT NULL REFERENCES files(id),
		PRIMARY KEY (group_id, file_id)
	)`,
	`CREATE TABLE IF NOT EXISTS chunk_metadata (
		id UUID PRIMARY KEY,
		dataset_id UUID NOT NULL REFERENCES datasets(id),
		tracking_id TEXT,
		link TEXT,
		chunk_html TEXT NOT NULL,
		content TEXT NOT NULL,
		metadata JSONB NOT NULL DEFAULT '{}',
		tag_set TEXT[] NOT NULL DEFAULT '{}',
		time_stamp TIMESTAMP,
		location JSONB,
		num_value DOUBLE PRECISION,
		weight DOUBLE PRECISION NOT NULL DEFAULT 0,
		image_urls TEXT[] NOT NULL DEFAULT '{}',
		qdrant_point_id UUID NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS chunk_metadata_dataset_tracking_idx
		ON chunk_metadata (dataset_id, tracking_id) WHERE tracking_id IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS chunk_group_bookmarks (
		chunk_id UUID NOT NULL REFERENCES chunk_metadata(id),
		group_id UUID NOT NULL REFERENCES chunk_group(id),
		PRIMARY KEY (chunk_id, group_id)
	)`,
	`CREATE TABLE IF NOT EXISTS chunk_boosts (
		chunk_id UUID PRIMARY KEY REFERENCES chunk_metadata(id),
		fulltext_boost_phrase TEXT,
		fulltext_boost_factor DOUBLE PRECISION,
		semantic_boost_phrase TEXT,
		semantic_boost_factor DOUBLE PRECISION
	)`,
}

// migrate runs each CREATE statement, tolerating already-applied ones, and
// logs the failing statement's error or one summary line on success.
func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.Pool.Exec(ctx, stmt); err != nil {
			log.Printf("store.migrate: statement failed: %v", err)
			return err
		}
	}
	log.Printf("store.migrate: schema up to date (%d statements)", len(schemaStatements))
	return nil
}
