// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/northbound-system/hive-ingest/internal/ingesterr"
	"github.com/northbound-system/hive-ingest/internal/store"
	"github.com/northbound-system/hive-ingest/internal/vectordb"
)

// resolveGroups validates direct group ids (an unknown one is a user
// error per §4.3.4) and returns their tag sets keyed by id. The ids of all
// rows are deduplicated first so each distinct group is looked up once.
func resolveGroups(ctx context.Context, s *store.Store, rows []store.ChunkRow) (map[uuid.UUID][]string, error) {
	seen := make(map[uuid.UUID]struct{})
	var all []uuid.UUID
	for _, r := range rows {
		for _, g := range r.GroupIDs {
			if _, ok := seen[g]; ok {
				continue
			}
			seen[g] = struct{}{}
			all = append(all, g)
		}
	}
	if len(all) == 0 {
		return map[uuid.UUID][]string{}, nil
	}

	tagSets, err := s.ResolveGroupTagSets(ctx, all)
	if err != nil {
		return nil, err
	}
	for _, g := range all {
		if _, ok := tagSets[g]; !ok {
			return nil, ingesterr.User("unknown group id %s", g)
		}
	}
	return tagSets, nil
}

// buildPoint assembles the vector-store point and its payload for a
// written row (§3.2, §6).
func buildPoint(row store.ChunkRow, dense []float32, denseDim int, sparse, bm25 []vectordb.SparseEntry, tagSet []string) vectordb.Point {
	payload := map[string]any{
		"dataset_id": row.DatasetID.String(),
		"tag_set":    tagSet,
		"content":    row.Content,
		"chunk_html": row.ChunkHTML,
		"link":       row.Link,
		"weight":     row.Weight,
		"metadata":   stringifyMetadata(row.Metadata),
	}
	if !row.TimeStamp.IsZero() {
		payload["time_stamp"] = row.TimeStamp.Unix()
	}
	if row.NumValue != nil {
		payload["num_value"] = *row.NumValue
	}
	if row.Location != nil {
		payload["location"] = map[string]any{"lat": row.Location.Lat, "lon": row.Location.Lon}
	}
	groupIDs := make([]string, len(row.GroupIDs))
	for i, g := range row.GroupIDs {
		groupIDs[i] = g.String()
	}
	payload["group_ids"] = groupIDs

	return vectordb.Point{
		ID:       row.PointID,
		Dense:    dense,
		DenseDim: denseDim,
		Sparse:   sparse,
		BM25:     bm25,
		Payload:  payload,
	}
}

func stringifyMetadata(m map[string]any) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+toString(v))
	}
	return out
}

// toString renders a metadata value for the "key=value" payload index
// (§3.1 "free-form JSON object"). Scalars print as-is; anything with
// structure (arrays, nested objects) is JSON-marshaled rather than
// dropped, so no metadata value is silently lost.
func toString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case time.Time:
		return val.Format(time.RFC3339)
	case nil:
		return ""
	case bool, float64, float32, int, int32, int64:
		return fmt.Sprint(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

// persistGroupMembership writes the relational chunk_group_bookmarks rows
// for a written row's group ids. Best-effort is not acceptable here:
// failures are transient and retried with the rest of the job, which is
// safe because the write is idempotent (ON CONFLICT DO NOTHING).
func persistGroupMembership(ctx context.Context, s *store.Store, rows []store.ChunkRow) error {
	for _, row := range rows {
		for _, g := range row.GroupIDs {
			if err := s.AttachChunkToGroup(ctx, row.ChunkID, g); err != nil {
				return err
			}
		}
	}
	return nil
}
