// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package vectordb

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestDenseVectorName(t *testing.T) {
	cases := map[int]string{
		384:  "384_vectors",
		512:  "512_vectors",
		768:  "768_vectors",
		1024: "1024_vectors",
		1536: "1536_vectors",
		3072: "3072_vectors",
	}
	for dim, want := range cases {
		got, err := DenseVectorName(dim)
		if err != nil {
			t.Fatalf("DenseVectorName(%d): %v", dim, err)
		}
		if got != want {
			t.Errorf("DenseVectorName(%d) = %s, want %s", dim, got, want)
		}
	}
}

func TestDenseVectorName_Unsupported(t *testing.T) {
	if _, err := DenseVectorName(999); err == nil {
		t.Error("expected error for unsupported dimensionality")
	}
}

func TestMockVectorDB_UpsertAndCount(t *testing.T) {
	ctx := context.Background()
	db := NewMockVectorDB()

	id := uuid.New()
	err := db.UpsertPoints(ctx, []Point{{
		ID:       id,
		Dense:    []float32{0.1, 0.2, 0.3},
		DenseDim: 3, // deliberately unsupported: store-level upsert doesn't validate, point assembly does
		Payload:  map[string]any{"dataset_id": "d1"},
	}})
	if err != nil {
		t.Fatalf("UpsertPoints: %v", err)
	}

	count, err := db.GetPointCount(ctx)
	if err != nil {
		t.Fatalf("GetPointCount: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 point, got %d", count)
	}

	if err := db.DeletePoints(ctx, []uuid.UUID{id}); err != nil {
		t.Fatalf("DeletePoints: %v", err)
	}
	count, _ = db.GetPointCount(ctx)
	if count != 0 {
		t.Errorf("expected 0 points after delete, got %d", count)
	}
}
