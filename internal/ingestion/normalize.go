// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package ingestion

import (
	"github.com/google/uuid"

	"github.com/northbound-system/hive-ingest/internal/ingesterr"
	"github.com/northbound-system/hive-ingest/internal/models"
	"github.com/northbound-system/hive-ingest/internal/store"
	"github.com/northbound-system/hive-ingest/internal/textproc"
)

// normalizeChunk builds a ChunkDataWithEmbeddingText-equivalent row from a
// raw inbound chunk message (§4.3.2 "Normalize"). ok is false when the
// indexing text ends up empty, in which case the caller discards the row
// silently rather than erroring.
func normalizeChunk(datasetID uuid.UUID, raw models.RawChunkMessage) (store.ChunkRow, bool, error) {
	text := raw.ChunkHTML
	convert := raw.ConvertHTMLToText == nil || *raw.ConvertHTMLToText
	if convert {
		stripped, err := textproc.StripHTML(raw.ChunkHTML)
		if err != nil {
			return store.ChunkRow{}, false, ingesterr.User("strip html for chunk %s: %v", raw.ChunkID, err)
		}
		text = stripped
	}

	embeddingContent := raw.SemanticContent
	if embeddingContent == "" {
		embeddingContent = text
	}

	row := store.ChunkRow{
		ChunkID:          raw.ChunkID,
		PointID:          raw.PointID,
		DatasetID:        datasetID,
		TrackingID:       raw.TrackingID,
		Link:             raw.Link,
		ChunkHTML:        raw.ChunkHTML,
		Content:          text,
		EmbeddingContent: embeddingContent,
		Metadata:         raw.Metadata,
		TagSet:           raw.TagSet,
		Location:         raw.Location,
		NumValue:         raw.NumValue,
		ImageURLs:        raw.ImageURLs,
		GroupIDs:         raw.GroupIDs,
	}

	if raw.Weight != nil {
		row.Weight = *raw.Weight
	}
	if raw.FulltextBoost.Present() {
		row.FulltextBoost = raw.FulltextBoost
	}
	if raw.SemanticBoost.Present() {
		row.SemanticBoost = raw.SemanticBoost
	}

	if raw.TimeStamp != "" {
		ts, err := textproc.ParseTimestamp(raw.TimeStamp)
		if err != nil {
			return store.ChunkRow{}, false, err
		}
		row.TimeStamp = ts
	}

	if row.Content == "" {
		return store.ChunkRow{}, false, nil
	}
	return row, true, nil
}
