// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package vectordb

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MockVectorDB is an in-memory VectorDB for tests that don't need a live
// Qdrant instance.
type MockVectorDB struct {
	mu     sync.Mutex
	points map[uuid.UUID]Point
}

// NewMockVectorDB creates an empty in-memory vector store.
func NewMockVectorDB() *MockVectorDB {
	return &MockVectorDB{points: make(map[uuid.UUID]Point)}
}

func (m *MockVectorDB) EnsureCollection(ctx context.Context) error { return nil }

func (m *MockVectorDB) UpsertPoints(ctx context.Context, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range points {
		m.points[p.ID] = p
	}
	return nil
}

func (m *MockVectorDB) UpdatePoint(ctx context.Context, point Point) error {
	return m.UpsertPoints(ctx, []Point{point})
}

func (m *MockVectorDB) DeletePoints(ctx context.Context, ids []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.points, id)
	}
	return nil
}

func (m *MockVectorDB) GetPointCount(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.points), nil
}

// Get exposes the stored point for assertions in tests.
func (m *MockVectorDB) Get(id uuid.UUID) (Point, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.points[id]
	return p, ok
}
