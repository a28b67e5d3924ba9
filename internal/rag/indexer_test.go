package rag

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quirehq/quire/internal/model"
	apperr "github.com/quirehq/quire/internal/pkg/errors"
)

func TestIndex_SplitsAndStores(t *testing.T) {
	index := newFakeIndex()
	indexer := NewIndexer(index, ChunkOptions{ChunkSize: 1000, Overlap: 200})

	src := &model.Source{ID: "src1", Name: "doc", Content: strings.Repeat("a", 3000), ContentHash: "h1"}
	report, err := indexer.Index(context.Background(), IndexRequest{
		NotebookID: "nb1",
		Sources:    []*model.Source{src},
	})
	require.NoError(t, err)
	require.Equal(t, 4, report.ChunksIndexed)
	require.Zero(t, report.SourcesSkipped)
	require.Len(t, index.stored["src1"], 4)
}

func TestIndex_SecondRunSkipsUnchangedSources(t *testing.T) {
	index := newFakeIndex()
	indexer := NewIndexer(index, ChunkOptions{})
	src := &model.Source{ID: "src1", Name: "doc", Content: "some text to index.", ContentHash: "h1"}
	req := IndexRequest{NotebookID: "nb1", Sources: []*model.Source{src}}

	first, err := indexer.Index(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 1, first.ChunksIndexed)

	second, err := indexer.Index(context.Background(), req)
	require.NoError(t, err)
	require.Zero(t, second.ChunksIndexed)
	require.Equal(t, 1, second.SourcesSkipped)
}

func TestIndex_ChangedHashReindexes(t *testing.T) {
	index := newFakeIndex()
	indexer := NewIndexer(index, ChunkOptions{})
	src := &model.Source{ID: "src1", Name: "doc", Content: "some text to index.", ContentHash: "h1"}

	_, err := indexer.Index(context.Background(), IndexRequest{NotebookID: "nb1", Sources: []*model.Source{src}})
	require.NoError(t, err)

	changed := &model.Source{ID: "src1", Name: "doc", Content: "entirely new text.", ContentHash: "h2"}
	report, err := indexer.Index(context.Background(), IndexRequest{NotebookID: "nb1", Sources: []*model.Source{changed}})
	require.NoError(t, err)
	require.Equal(t, 1, report.ChunksIndexed)
}

func TestIndex_ForceReindexes(t *testing.T) {
	index := newFakeIndex()
	indexer := NewIndexer(index, ChunkOptions{})
	src := &model.Source{ID: "src1", Name: "doc", Content: "some text to index.", ContentHash: "h1"}

	_, err := indexer.Index(context.Background(), IndexRequest{NotebookID: "nb1", Sources: []*model.Source{src}})
	require.NoError(t, err)

	report, err := indexer.Index(context.Background(), IndexRequest{NotebookID: "nb1", Sources: []*model.Source{src}, Force: true})
	require.NoError(t, err)
	require.Equal(t, 1, report.ChunksIndexed)
}

func TestIndex_SkipsWhitespaceSources(t *testing.T) {
	indexer := NewIndexer(newFakeIndex(), ChunkOptions{})
	report, err := indexer.Index(context.Background(), IndexRequest{
		NotebookID: "nb1",
		Sources: []*model.Source{
			{ID: "blank", Name: "blank", Content: "  \n \t "},
		},
	})
	require.NoError(t, err)
	require.Zero(t, report.ChunksIndexed)
	require.Equal(t, 1, report.SourcesSkipped)
}

func TestIndex_UpsertFailureReportsPartialProgress(t *testing.T) {
	index := newFakeIndex()
	indexer := NewIndexer(index, ChunkOptions{})

	good := &model.Source{ID: "good", Name: "g", Content: "fine text.", ContentHash: "h1"}
	_, err := indexer.Index(context.Background(), IndexRequest{NotebookID: "nb1", Sources: []*model.Source{good}})
	require.NoError(t, err)

	index.upsertE = fmt.Errorf("provider down")
	bad := &model.Source{ID: "bad", Name: "b", Content: "more text.", ContentHash: "h2"}
	report, err := indexer.Index(context.Background(), IndexRequest{
		NotebookID: "nb1",
		Sources:    []*model.Source{bad},
	})
	require.ErrorIs(t, err, apperr.ErrIndexing)
	require.NotNil(t, report)
	// Already-indexed material survives the failure.
	require.Len(t, index.stored["good"], 1)
}
