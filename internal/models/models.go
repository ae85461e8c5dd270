// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package models

import (
	"time"

	"github.com/google/uuid"
)

// NamespaceOID is the fixed UUIDv5 namespace used to derive deterministic
// point ids for tracking-id-keyed chunks. Re-deriving a point id for the
// same tracking_id always yields the same UUID.
var NamespaceOID = uuid.MustParse("6ba7b812-9dad-11d1-80b4-00c04fd430c8")

// DeterministicPointID derives the vector-store point id for a tracking-id
// keyed chunk. Two chunks with the same trackingID in the same namespace
// always resolve to the same point.
func DeterministicPointID(trackingID string) uuid.UUID {
	return uuid.NewSHA1(NamespaceOID, []byte(trackingID))
}

// Boost carries a phrase and a reranking factor. An empty Phrase means the
// boost is absent and should not be persisted.
type Boost struct {
	Phrase string  `json:"phrase"`
	Factor float64 `json:"factor"`
}

// Present reports whether the boost carries a non-empty phrase.
func (b *Boost) Present() bool {
	return b != nil && b.Phrase != ""
}

// Chunk is the indexed unit the pipeline writes to the relational and
// vector stores.
type Chunk struct {
	ID              uuid.UUID
	PointID         uuid.UUID
	DatasetID       uuid.UUID
	TrackingID      string
	Link            string
	ChunkHTML       string
	ChunkText       string
	SemanticContent string
	Metadata        map[string]any
	TagSet          []string
	TimeStamp       time.Time
	Location        *GeoLocation
	NumValue        *float64
	Weight          float64
	ImageURLs       []string
	FulltextBoost   *Boost
	SemanticBoost   *Boost
	GroupIDs        []uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// GeoLocation is a payload-indexed geo point.
type GeoLocation struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ChunkGroup is a named collection of chunks within a dataset.
type ChunkGroup struct {
	ID         uuid.UUID
	DatasetID  uuid.UUID
	Name       string
	TrackingID string
	Metadata   map[string]any
	TagSet     []string
	FileID     *uuid.UUID
}

// FileRecord is a blob-storage-backed artifact.
type FileRecord struct {
	ID        uuid.UUID
	DatasetID uuid.UUID
	Name      string
	SizeMB    int
	Metadata  map[string]any
	Link      string
	GroupID   *uuid.UUID
	CreatedAt time.Time
}

// DatasetConfiguration holds the per-dataset booleans and parameters
// consumed by the ingestion worker. Unknown/missing keys decode to their
// zero value; defaults are applied explicitly where the spec calls for one.
type DatasetConfiguration struct {
	SemanticEnabled     bool    `json:"SEMANTIC_ENABLED"`
	FulltextEnabled     bool    `json:"FULLTEXT_ENABLED"`
	BM25Enabled         bool    `json:"BM25_ENABLED"`
	BM25AvgLen          float64 `json:"BM25_AVG_LEN"`
	BM25B               float64 `json:"BM25_B"`
	BM25K               float64 `json:"BM25_K"`
	QdrantOnly          bool    `json:"QDRANT_ONLY"`
	EmbeddingModelName  string  `json:"EMBEDDING_MODEL_NAME"`
	EmbeddingBaseURL    string  `json:"EMBEDDING_BASE_URL"`
	EmbeddingQueryPrefix string `json:"EMBEDDING_QUERY_PREFIX"`
}

// WithDefaults fills in the BM25 constants the spec mandates when the
// dataset configuration leaves them unset (zero value).
func (c DatasetConfiguration) WithDefaults() DatasetConfiguration {
	if c.BM25AvgLen == 0 {
		c.BM25AvgLen = 256
	}
	if c.BM25B == 0 {
		c.BM25B = 0.75
	}
	if c.BM25K == 0 {
		c.BM25K = 1.2
	}
	return c
}

// IngestionKind tags the IngestionMessage union.
type IngestionKind string

const (
	IngestionKindBulkUpload IngestionKind = "bulk_upload"
	IngestionKindUpdate     IngestionKind = "update"
)

// RawChunkMessage is a single inbound chunk as submitted by the producer,
// before normalization.
type RawChunkMessage struct {
	ChunkID            uuid.UUID      `json:"chunk_id"`
	PointID            uuid.UUID      `json:"point_id"`
	TrackingID         string         `json:"tracking_id,omitempty"`
	UpsertByTrackingID bool           `json:"upsert_by_tracking_id"`
	SplitAvg           bool           `json:"split_avg"`
	Link               string         `json:"link,omitempty"`
	ChunkHTML          string         `json:"chunk_html"`
	SemanticContent    string         `json:"semantic_content,omitempty"`
	TagSet             []string       `json:"tag_set,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	TimeStamp          string         `json:"time_stamp,omitempty"`
	Location           *GeoLocation   `json:"location,omitempty"`
	NumValue           *float64       `json:"num_value,omitempty"`
	Weight             *float64       `json:"weight,omitempty"`
	ImageURLs          []string       `json:"image_urls,omitempty"`
	GroupIDs           []uuid.UUID    `json:"group_ids,omitempty"`
	ConvertHTMLToText  *bool          `json:"convert_html_to_text,omitempty"`
	FulltextBoost      *Boost         `json:"fulltext_boost,omitempty"`
	SemanticBoost      *Boost         `json:"semantic_boost,omitempty"`
}

// BulkUploadPayload is the IngestionMessage.BulkUpload variant.
type BulkUploadPayload struct {
	DatasetID          uuid.UUID         `json:"dataset_id"`
	DatasetConfig      DatasetConfiguration `json:"dataset_config"`
	IngestionMessages  []RawChunkMessage `json:"ingestion_messages"`
	AttemptNumber      int               `json:"attempt_number"`
}

// UpdatePayload is the IngestionMessage.Update variant.
type UpdatePayload struct {
	DatasetID         uuid.UUID      `json:"dataset_id"`
	ChunkMetadata     RawChunkMessage `json:"chunk_metadata"`
	GroupIDs          []uuid.UUID    `json:"group_ids,omitempty"`
	FulltextBoost     *Boost         `json:"fulltext_boost,omitempty"`
	SemanticBoost     *Boost         `json:"semantic_boost,omitempty"`
	ConvertHTMLToText *bool          `json:"convert_html_to_text,omitempty"`
	AttemptNumber     int            `json:"attempt_number"`
}

// IngestionMessage is the tagged union the ingestion worker dequeues.
type IngestionMessage struct {
	Kind       IngestionKind      `json:"kind"`
	BulkUpload *BulkUploadPayload `json:"bulk_upload,omitempty"`
	Update     *UpdatePayload     `json:"update,omitempty"`
}

// AttemptNumber returns the attempt count of whichever variant is set.
func (m IngestionMessage) AttemptNumber() int {
	switch m.Kind {
	case IngestionKindBulkUpload:
		if m.BulkUpload != nil {
			return m.BulkUpload.AttemptNumber
		}
	case IngestionKindUpdate:
		if m.Update != nil {
			return m.Update.AttemptNumber
		}
	}
	return 0
}

// WithAttempt returns a copy of the message with the attempt number set to
// n, used by the queue's reinject transform.
func (m IngestionMessage) WithAttempt(n int) IngestionMessage {
	switch m.Kind {
	case IngestionKindBulkUpload:
		cp := *m.BulkUpload
		cp.AttemptNumber = n
		m.BulkUpload = &cp
	case IngestionKindUpdate:
		cp := *m.Update
		cp.AttemptNumber = n
		m.Update = &cp
	}
	return m
}

// UploadFileData carries the flags and hints attached to a FileMessage.
type UploadFileData struct {
	FileName     string         `json:"file_name"`
	UsePdf2mdOCR bool           `json:"use_pdf2md_ocr"`
	CreateChunks *bool          `json:"create_chunks,omitempty"`
	TagSet       []string       `json:"tag_set,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Link         string         `json:"link,omitempty"`
	GroupIDs     []uuid.UUID    `json:"group_ids,omitempty"`
}

// ShouldCreateChunks reports whether the file worker should chunk the
// extracted text. Defaults to true unless explicitly disabled.
func (u UploadFileData) ShouldCreateChunks() bool {
	return u.CreateChunks == nil || *u.CreateChunks
}

// FileMessage is the message the file worker dequeues.
type FileMessage struct {
	FileID         uuid.UUID      `json:"file_id"`
	DatasetID      uuid.UUID      `json:"dataset_id"`
	UploadFileData UploadFileData `json:"upload_file_data"`
	AttemptNumber  int            `json:"attempt_number"`
}

// WithAttempt returns a copy with the attempt number set to n.
func (f FileMessage) WithAttempt(n int) FileMessage {
	f.AttemptNumber = n
	return f
}
