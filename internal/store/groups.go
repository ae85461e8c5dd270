// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/northbound-system/hive-ingest/internal/ingesterr"
)

// ResolveGroupTagSets looks up the tag sets for a bounded set of group ids,
// used by point assembly to merge a chunk's own tags with its groups'
// tags (§4.3.4). An unknown id is simply omitted from the result map;
// callers that need "unknown group id is a user error" semantics check
// for missing keys themselves (direct group ids), while tracking-id
// lookups silently drop unknowns per the same section.
func (s *Store) ResolveGroupTagSets(ctx context.Context, groupIDs []uuid.UUID) (map[uuid.UUID][]string, error) {
	result := make(map[uuid.UUID][]string, len(groupIDs))
	if len(groupIDs) == 0 {
		return result, nil
	}

	rows, err := s.Pool.Query(ctx, `SELECT id, tag_set FROM chunk_group WHERE id = ANY($1)`, groupIDs)
	if err != nil {
		return nil, ingesterr.Transient(fmt.Errorf("resolve group tag sets: %w", err))
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var tags []string
		if err := rows.Scan(&id, &tags); err != nil {
			return nil, ingesterr.Transient(fmt.Errorf("scan group tag set: %w", err))
		}
		result[id] = tags
	}
	return result, rows.Err()
}

// ResolveGroupTrackingIDs maps group tracking ids to group ids within a
// dataset. Unknown tracking ids are simply absent from the returned map.
func (s *Store) ResolveGroupTrackingIDs(ctx context.Context, datasetID uuid.UUID, trackingIDs []string) (map[string]uuid.UUID, error) {
	result := make(map[string]uuid.UUID, len(trackingIDs))
	if len(trackingIDs) == 0 {
		return result, nil
	}
	rows, err := s.Pool.Query(ctx, `SELECT tracking_id, id FROM chunk_group WHERE dataset_id = $1 AND tracking_id = ANY($2)`, datasetID, trackingIDs)
	if err != nil {
		return nil, ingesterr.Transient(fmt.Errorf("resolve group tracking ids: %w", err))
	}
	defer rows.Close()
	for rows.Next() {
		var tid string
		var id uuid.UUID
		if err := rows.Scan(&tid, &id); err != nil {
			return nil, ingesterr.Transient(fmt.Errorf("scan group tracking id: %w", err))
		}
		result[tid] = id
	}
	return result, rows.Err()
}

// GroupExists checks a direct group id reference (an unknown direct id is
// a user error per §4.3.4).
func (s *Store) GroupExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := s.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM chunk_group WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, ingesterr.Transient(fmt.Errorf("check group %s: %w", id, err))
	}
	return exists, nil
}

// CreateGroup inserts a group, optionally attached to a file, used by the
// file worker when it finishes chunking a file.
func (s *Store) CreateGroup(ctx context.Context, id, datasetID uuid.UUID, name string, fileID *uuid.UUID) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO chunk_group (id, dataset_id, name, file_id) VALUES ($1,$2,$3,$4)`,
		id, datasetID, name, fileID)
	if err != nil {
		return ingesterr.Transient(fmt.Errorf("create group %s: %w", id, err))
	}
	return nil
}

// AttachFileToGroup records the file-derives-group relationship.
func (s *Store) AttachFileToGroup(ctx context.Context, groupID, fileID uuid.UUID) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO groups_from_files (group_id, file_id) VALUES ($1,$2)
		ON CONFLICT DO NOTHING`, groupID, fileID)
	if err != nil {
		return ingesterr.Transient(fmt.Errorf("attach file %s to group %s: %w", fileID, groupID, err))
	}
	return nil
}

// AttachChunkToGroup records a chunk's membership in a group
// (chunk_group_bookmarks), used by point assembly to persist the
// relational side of group membership alongside the vector payload.
func (s *Store) AttachChunkToGroup(ctx context.Context, chunkID, groupID uuid.UUID) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO chunk_group_bookmarks (chunk_id, group_id) VALUES ($1,$2)
		ON CONFLICT DO NOTHING`, chunkID, groupID)
	if err != nil {
		return ingesterr.Transient(fmt.Errorf("attach chunk %s to group %s: %w", chunkID, groupID, err))
	}
	return nil
}

// CreateFileRecord writes the file row the file worker produces after
// extraction.
func (s *Store) CreateFileRecord(ctx context.Context, id, datasetID uuid.UUID, name string, sizeMB int, metadata map[string]any, link string, groupID *uuid.UUID) error {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return ingesterr.User("invalid file metadata: %v", err)
	}
	_, err = s.Pool.Exec(ctx, `
		INSERT INTO files (id, dataset_id, name, size_mb, metadata, link, group_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		id, datasetID, name, sizeMB, metaJSON, link, groupID)
	if err != nil {
		return ingesterr.Transient(fmt.Errorf("create file %s: %w", id, err))
	}
	return nil
}

// MergedTagSet returns the sorted-dedup union of a chunk's own tags and
// its resolved groups' tags (§4.3.4, tested in property 5 of §8).
func MergedTagSet(ownTags []string, groupTagSets map[uuid.UUID][]string) []string {
	seen := make(map[string]struct{}, len(ownTags))
	merged := make([]string, 0, len(ownTags))
	add := func(tag string) {
		if _, ok := seen[tag]; ok {
			return
		}
		seen[tag] = struct{}{}
		merged = append(merged, tag)
	}
	for _, t := range ownTags {
		add(t)
	}
	for _, tags := range groupTagSets {
		for _, t := range tags {
			add(t)
		}
	}
	sort.Strings(merged)
	return merged
}
