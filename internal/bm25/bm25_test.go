// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package bm25

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVector_EmptyText(t *testing.T) {
	v := Vector("", Params{AvgLen: 256, B: 0.75, K: 1.2})
	require.Nil(t, v, "expected nil vector for empty text")
}

func TestVector_DistinctTokensGetEntries(t *testing.T) {
	v := Vector("alpha beta beta gamma", Params{AvgLen: 256, B: 0.75, K: 1.2})
	require.Len(t, v, 3, "expected 3 distinct tokens")
}

func TestVector_RepeatedTokenWeighsHigherThanSingleton(t *testing.T) {
	p := Params{AvgLen: 4, B: 0.75, K: 1.2}
	repeated := Vector("alpha alpha alpha beta", p)

	var alphaWeight, betaWeight float32
	for _, e := range repeated {
		if e.Index == TokenIndex("alpha") {
			alphaWeight = e.Value
		}
		if e.Index == TokenIndex("beta") {
			betaWeight = e.Value
		}
	}
	require.Greater(t, alphaWeight, betaWeight, "expected repeated token to weigh more than a singleton")
}

func TestVector_DeterministicIndex(t *testing.T) {
	a := Vector("alpha beta", Params{AvgLen: 10, B: 0.75, K: 1.2})
	b := Vector("beta alpha", Params{AvgLen: 10, B: 0.75, K: 1.2})
	require.Len(t, b, len(a), "expected same entry count regardless of input order")

	idx := map[uint32]bool{}
	for _, e := range a {
		idx[e.Index] = true
	}
	for _, e := range b {
		require.True(t, idx[e.Index], "token index %d not stable across input order", e.Index)
	}
}
