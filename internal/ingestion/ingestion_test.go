// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package ingestion

import (
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/northbound-system/hive-ingest/internal/models"
)

func TestUniqueIDs_PreservesFirstSeenOrder(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	ids := uniqueIDs([]uuid.UUID{a, b, a})
	if len(ids) != 2 || ids[0] != a || ids[1] != b {
		t.Fatalf("expected [a b], got %v", ids)
	}
}

func TestMeanNormalize_UnitLength(t *testing.T) {
	vecs := [][]float32{{1, 0}, {0, 1}}
	mean := meanNormalize(vecs)
	var sumSquares float64
	for _, x := range mean {
		sumSquares += float64(x) * float64(x)
	}
	if math.Abs(sumSquares-1) > 1e-6 {
		t.Errorf("expected unit-length vector, got sum of squares %f", sumSquares)
	}
}

func TestMeanNormalize_Empty(t *testing.T) {
	if got := meanNormalize(nil); got != nil {
		t.Errorf("expected nil for no input vectors, got %v", got)
	}
}

func TestBoostedText_AbsentBoostReturnsContentUnchanged(t *testing.T) {
	if got := boostedText("hello world", nil); got != "hello world" {
		t.Errorf("expected unchanged content, got %q", got)
	}
}

func TestBoostedText_EmptyPhraseTreatedAsAbsent(t *testing.T) {
	boost := &models.Boost{Phrase: "", Factor: 5}
	if got := boostedText("hello world", boost); got != "hello world" {
		t.Errorf("expected unchanged content for empty phrase, got %q", got)
	}
}

func TestBoostedText_RepeatsPhraseByFactor(t *testing.T) {
	boost := &models.Boost{Phrase: "urgent", Factor: 3}
	got := boostedText("content", boost)
	want := "urgent urgent urgent content"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestFilterGroupTagSets(t *testing.T) {
	g1, g2, g3 := uuid.New(), uuid.New(), uuid.New()
	all := map[uuid.UUID][]string{
		g1: {"a"},
		g2: {"b"},
		g3: {"c"},
	}
	filtered := filterGroupTagSets(all, []uuid.UUID{g1, g3})
	if len(filtered) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(filtered))
	}
	if _, ok := filtered[g2]; ok {
		t.Error("expected g2 to be excluded")
	}
}
