// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package vectordb wraps the Qdrant collection the pipeline maintains:
// named dense vectors by dimensionality, two sparse vectors (SPLADE and
// BM25), and the payload indices queries rely on (§3.2, §6). The wrapper
// shape (service clients built from a single *grpc.ClientConn, error
// wrapping, point-id-as-UUID) is grounded on the teacher's
// vectordb.QdrantVectorDB; the named-vector and sparse-vector handling is
// grounded on the newer qdrant client idiom in
// WessleyAI-wessley-mvp/engine/semantic/store.go.
package vectordb

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	qdrant "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
)

// SupportedDimensions are the dense-vector sizes the collection accepts
// (§3.2). A chunk requesting any other dimensionality is a user error.
var SupportedDimensions = []int{384, 512, 768, 1024, 1536, 3072}

// DenseVectorName maps a dimensionality to its named-vector string, e.g.
// 1024 -> "1024_vectors". Returns an error for unsupported dimensions.
func DenseVectorName(dim int) (string, error) {
	for _, d := range SupportedDimensions {
		if d == dim {
			return fmt.Sprintf("%d_vectors", dim), nil
		}
	}
	return "", fmt.Errorf("unsupported dense vector dimensionality: %d", dim)
}

const (
	sparseVectorName = "sparse_vectors"
	bm25VectorName   = "bm25_vectors"
)

// SparseEntry is one (token_index, weight) pair of a sparse vector.
type SparseEntry struct {
	Index uint32
	Value float32
}

// Point is everything the worker knows about a single vector-store point
// at upsert/update time.
type Point struct {
	ID       uuid.UUID
	Dense    []float32 // may be nil if semantic search is disabled
	DenseDim int
	Sparse   []SparseEntry // SPLADE; the placeholder [(0, 0.0)] if fulltext search is disabled
	BM25     []SparseEntry // nil if BM25 is disabled
	Payload  map[string]any
}

// VectorDB is the behavior the ingestion worker depends on.
type VectorDB interface {
	EnsureCollection(ctx context.Context) error
	UpsertPoints(ctx context.Context, points []Point) error
	UpdatePoint(ctx context.Context, point Point) error
	DeletePoints(ctx context.Context, ids []uuid.UUID) error
	GetPointCount(ctx context.Context) (int, error)
}

// QdrantVectorDB is a thin wrapper around the Qdrant gRPC service clients.
type QdrantVectorDB struct {
	collectionsSvc qdrant.CollectionsClient
	pointsSvc      qdrant.PointsClient
	collection     string
}

// NewQdrantVectorDB constructs a wrapper over an already-dialed gRPC
// connection. Callers should call EnsureCollection once at startup.
func NewQdrantVectorDB(conn *grpc.ClientConn, collection string) (*QdrantVectorDB, error) {
	if conn == nil {
		return nil, errors.New("gRPC connection is required")
	}
	if collection == "" {
		collection = "hive_chunks"
	}
	return &QdrantVectorDB{
		collectionsSvc: qdrant.NewCollectionsClient(conn),
		pointsSvc:      qdrant.NewPointsClient(conn),
		collection:     collection,
	}, nil
}

// EnsureCollection creates the collection if it doesn't exist, with every
// named dense vector, both sparse vectors, HNSW m=0/payload_m=16, and the
// payload indices named in §6. It is idempotent (list-then-create),
// mirroring the original's create_new_qdrant_collection_query.
func (q *QdrantVectorDB) EnsureCollection(ctx context.Context) error {
	collections, err := q.collectionsSvc.List(ctx, &qdrant.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	for _, c := range collections.Collections {
		if c.Name == q.collection {
			log.Printf("EnsureCollection: %s already exists", q.collection)
			return nil
		}
	}

	denseConfigs := make(map[string]*qdrant.VectorParams, len(SupportedDimensions))
	for _, dim := range SupportedDimensions {
		name, _ := DenseVectorName(dim)
		denseConfigs[name] = &qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
			HnswConfig: &qdrant.HnswConfigDiff{
				M:        ptr(uint64(0)),
				PayloadM: ptr(uint64(16)),
			},
		}
	}

	sparseConfigs := map[string]*qdrant.SparseVectorParams{
		sparseVectorName: {},
		bm25VectorName:   {},
	}

	_, err = q.collectionsSvc.Create(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_ParamsMap{
				ParamsMap: &qdrant.VectorParamsMap{Map: denseConfigs},
			},
		},
		SparseVectorsConfig: &qdrant.SparseVectorConfig{Map: sparseConfigs},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", q.collection, err)
	}
	log.Printf("EnsureCollection: created %s with %d dense vectors", q.collection, len(denseConfigs))

	for field, typ := range payloadIndexFields {
		_, err := q.collectionsSvc.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: q.collection,
			FieldName:      field,
			FieldType:      typ,
		})
		if err != nil {
			log.Printf("EnsureCollection: failed to create index on %s: %v", field, err)
		}
	}
	return nil
}

var payloadIndexFields = map[string]*qdrant.FieldType{
	"link":       qdrant.FieldType_FieldTypeText.Enum(),
	"tag_set":    qdrant.FieldType_FieldTypeText.Enum(),
	"dataset_id": qdrant.FieldType_FieldTypeKeyword.Enum(),
	"content":    qdrant.FieldType_FieldTypeText.Enum(),
	"metadata":   qdrant.FieldType_FieldTypeKeyword.Enum(),
	"time_stamp": qdrant.FieldType_FieldTypeInteger.Enum(),
	"group_ids":  qdrant.FieldType_FieldTypeKeyword.Enum(),
	"location":   qdrant.FieldType_FieldTypeGeo.Enum(),
	"num_value":  qdrant.FieldType_FieldTypeFloat.Enum(),
}

func toPointStruct(p Point) (*qdrant.PointStruct, error) {
	vectors := make(map[string]*qdrant.Vector)
	if len(p.Dense) > 0 {
		name, err := DenseVectorName(p.DenseDim)
		if err != nil {
			return nil, err
		}
		vectors[name] = &qdrant.Vector{Data: p.Dense}
	}
	if len(p.Sparse) > 0 {
		vectors[sparseVectorName] = sparseToVector(p.Sparse)
	}
	if len(p.BM25) > 0 {
		vectors[bm25VectorName] = sparseToVector(p.BM25)
	}

	payload := make(map[string]*qdrant.Value, len(p.Payload))
	for k, v := range p.Payload {
		payload[k] = toQdrantValue(v)
	}

	return &qdrant.PointStruct{
		Id:      &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: p.ID.String()}},
		Vectors: &qdrant.Vectors{VectorsOptions: &qdrant.Vectors_VectorsMap{VectorsMap: &qdrant.NamedVectors{Vectors: vectors}}},
		Payload: payload,
	}, nil
}

func sparseToVector(entries []SparseEntry) *qdrant.Vector {
	indices := make([]uint32, len(entries))
	values := make([]float32, len(entries))
	for i, e := range entries {
		indices[i] = e.Index
		values[i] = e.Value
	}
	return &qdrant.Vector{
		Data:    values,
		Indices: &qdrant.SparseIndices{Data: indices},
	}
}

// UpsertPoints issues a single bulk upsert for all points (§4.3.2 "Vector
// upsert").
func (q *QdrantVectorDB) UpsertPoints(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	structs := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		ps, err := toPointStruct(p)
		if err != nil {
			return fmt.Errorf("user error: %w", err)
		}
		structs = append(structs, ps)
	}

	_, err := q.pointsSvc.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points:         structs,
	})
	if err != nil {
		return fmt.Errorf("upsert %d points: %w", len(points), err)
	}
	log.Printf("UpsertPoints: upserted %d points into %s", len(points), q.collection)
	return nil
}

// UpdatePoint overwrites vectors and payload for an existing point id
// (§4.3.6 Update path).
func (q *QdrantVectorDB) UpdatePoint(ctx context.Context, point Point) error {
	return q.UpsertPoints(ctx, []Point{point})
}

// DeletePoints removes points by id.
func (q *QdrantVectorDB) DeletePoints(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: id.String()}}
	}
	_, err := q.pointsSvc.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         &qdrant.PointsSelector{PointsSelectorOneOf: &qdrant.PointsSelector_Points{Points: &qdrant.PointsIdsList{Ids: pointIDs}}},
	})
	if err != nil {
		return fmt.Errorf("delete %d points: %w", len(ids), err)
	}
	return nil
}

// GetPointCount returns the collection's point count, used by testable
// property 1 of §8.
func (q *QdrantVectorDB) GetPointCount(ctx context.Context) (int, error) {
	info, err := q.collectionsSvc.Get(ctx, &qdrant.GetCollectionInfoRequest{CollectionName: q.collection})
	if err != nil {
		return 0, fmt.Errorf("get collection info: %w", err)
	}
	if info.Result == nil || info.Result.PointsCount == nil {
		return 0, nil
	}
	return int(*info.Result.PointsCount), nil
}

func ptr[T any](v T) *T { return &v }

func toQdrantValue(v any) *qdrant.Value {
	switch val := v.(type) {
	case string:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: val}}
	case bool:
		return &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: val}}
	case int:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(val)}}
	case int64:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: val}}
	case float64:
		return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: val}}
	case []string:
		values := make([]*qdrant.Value, len(val))
		for i, s := range val {
			values[i] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
		}
		return &qdrant.Value{Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: values}}}
	default:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: fmt.Sprint(val)}}
	}
}
