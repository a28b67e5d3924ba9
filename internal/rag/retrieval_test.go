package rag

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	apperr "github.com/quirehq/quire/internal/pkg/errors"
)

func floatPtr(v float64) *float64 { return &v }

func TestSearch_NormalizesDistanceScores(t *testing.T) {
	index := newFakeIndex()
	index.hits = []IndexHit{
		{SourceID: "a", ChunkIndex: 0, Text: "t1", Distance: 0.0},
		{SourceID: "a", ChunkIndex: 1, Text: "t2", Distance: 1.0},
		{SourceID: "b", ChunkIndex: 0, Text: "t3", Certainty: floatPtr(0.9)},
	}
	engine := NewEngine(index)

	results, err := engine.Search(context.Background(), "nb1", "query", 10, 0.0)
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.InDelta(t, 1.0, results[0].RelevanceScore, 1e-9)
	require.InDelta(t, 0.9, results[1].RelevanceScore, 1e-9)
	require.InDelta(t, 0.5, results[2].RelevanceScore, 1e-9)
}

func TestSearch_DeterministicOrdering(t *testing.T) {
	index := newFakeIndex()
	// Equal scores tie-break on chunk index, then source id.
	index.hits = []IndexHit{
		{SourceID: "b", ChunkIndex: 2, Distance: 1.0},
		{SourceID: "a", ChunkIndex: 2, Distance: 1.0},
		{SourceID: "a", ChunkIndex: 1, Distance: 1.0},
		{SourceID: "c", ChunkIndex: 0, Distance: 0.5},
	}
	engine := NewEngine(index)

	results, err := engine.Search(context.Background(), "nb1", "query", 10, 0.0)
	require.NoError(t, err)
	require.Len(t, results, 4)
	require.Equal(t, "c", results[0].SourceID)
	require.Equal(t, "a", results[1].SourceID)
	require.Equal(t, 1, results[1].ChunkIndex)
	require.Equal(t, "a", results[2].SourceID)
	require.Equal(t, 2, results[2].ChunkIndex)
	require.Equal(t, "b", results[3].SourceID)
}

func TestSearch_CollapsesDuplicateChunks(t *testing.T) {
	index := newFakeIndex()
	index.hits = []IndexHit{
		{SourceID: "a", ChunkIndex: 0, Distance: 0.5},
		{SourceID: "a", ChunkIndex: 0, Distance: 0.1},
	}
	engine := NewEngine(index)

	results, err := engine.Search(context.Background(), "nb1", "query", 10, 0.0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.InDelta(t, 1.0/1.1, results[0].RelevanceScore, 1e-9)
}

func TestSearch_MinRelevanceFilters(t *testing.T) {
	index := newFakeIndex()
	index.hits = []IndexHit{
		{SourceID: "a", ChunkIndex: 0, Distance: 0.0}, // score 1.0
		{SourceID: "a", ChunkIndex: 1, Distance: 3.0}, // score 0.25
	}
	engine := NewEngine(index)

	results, err := engine.Search(context.Background(), "nb1", "query", 10, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, 0, results[0].ChunkIndex)
}

func TestSearch_EmptyIndexIsNotAnError(t *testing.T) {
	engine := NewEngine(newFakeIndex())
	results, err := engine.Search(context.Background(), "nb1", "query", 10, 0.0)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestSearch_ProviderErrorWrapped(t *testing.T) {
	index := newFakeIndex()
	index.queryEr = fmt.Errorf("connection refused")
	engine := NewEngine(index)

	_, err := engine.Search(context.Background(), "nb1", "query", 10, 0.0)
	require.ErrorIs(t, err, apperr.ErrRetrieval)
}

func TestSearch_DefaultLimit(t *testing.T) {
	index := newFakeIndex()
	for i := 0; i < 20; i++ {
		index.hits = append(index.hits, IndexHit{SourceID: "a", ChunkIndex: i, Distance: float64(i)})
	}
	engine := NewEngine(index)

	results, err := engine.Search(context.Background(), "nb1", "query", 0, 0.0)
	require.NoError(t, err)
	require.Len(t, results, 10)
}
