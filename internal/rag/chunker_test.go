package rag

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/quirehq/quire/internal/model"
)

func textSource(content string) *model.Source {
	return &model.Source{ID: "src1", Name: "doc", Content: content}
}

func TestSplitSource_HardCutOffsets(t *testing.T) {
	// 3000 chars without a single boundary candidate forces hard cuts.
	src := textSource(strings.Repeat("a", 3000))
	chunks := SplitSource(src, ChunkOptions{ChunkSize: 1000, Overlap: 200})

	require.Len(t, chunks, 4)
	wantStarts := []int{0, 800, 1600, 2400}
	wantEnds := []int{1000, 1800, 2600, 3000}
	for i, chunk := range chunks {
		require.Equal(t, i, chunk.Index)
		require.Equal(t, wantStarts[i], chunk.CharStart)
		require.Equal(t, wantEnds[i], chunk.CharEnd)
		require.Equal(t, "src1", chunk.SourceID)
	}
}

func TestSplitSource_OverlapClampedToHalfChunk(t *testing.T) {
	src := textSource(strings.Repeat("b", 2500))
	chunks := SplitSource(src, ChunkOptions{ChunkSize: 1000, Overlap: 900})

	require.True(t, len(chunks) >= 2)
	// Effective overlap is 500, so the second chunk starts at 500.
	require.Equal(t, 500, chunks[1].CharStart)
}

func TestSplitSource_PrefersParagraphBoundary(t *testing.T) {
	para := strings.Repeat("x", 700) + "\n\n" + strings.Repeat("y", 600)
	src := textSource(para)
	chunks := SplitSource(src, ChunkOptions{ChunkSize: 1000, Overlap: 100})

	require.True(t, len(chunks) >= 2)
	// The first cut lands on the paragraph break, not at offset 1000.
	require.True(t, chunks[0].CharEnd <= 702, "cut at %d, want paragraph boundary", chunks[0].CharEnd)
}

func TestSplitSource_SentenceBoundary(t *testing.T) {
	sentence := strings.Repeat("w", 800) + ". " + strings.Repeat("v", 500)
	src := textSource(sentence)
	chunks := SplitSource(src, ChunkOptions{ChunkSize: 1000, Overlap: 100})

	require.True(t, len(chunks) >= 2)
	require.Equal(t, 802, chunks[0].CharEnd)
}

func TestSplitSource_ShortText(t *testing.T) {
	src := textSource("short note")
	chunks := SplitSource(src, ChunkOptions{})
	require.Len(t, chunks, 1)
	require.Equal(t, "short note", chunks[0].Text)
	require.Equal(t, 0, chunks[0].CharStart)
	require.Equal(t, len("short note"), chunks[0].CharEnd)
}

func TestSplitSource_WhitespaceOnly(t *testing.T) {
	require.Nil(t, SplitSource(textSource("   \n\t  "), ChunkOptions{}))
	require.Nil(t, SplitSource(textSource(""), ChunkOptions{}))
}

func TestSplitSource_NeverSplitsRunes(t *testing.T) {
	src := textSource(strings.Repeat("界", 1200))
	chunks := SplitSource(src, ChunkOptions{ChunkSize: 1000, Overlap: 200})

	require.NotEmpty(t, chunks)
	require.True(t, len(chunks) >= 2, "need an overlap start to exercise")
	for _, chunk := range chunks {
		require.True(t, utf8.ValidString(chunk.Text), "chunk %d splits a rune", chunk.Index)
		require.True(t, utf8.RuneStart(src.Content[chunk.CharStart]), "chunk %d starts mid-rune", chunk.Index)
	}
}

func TestSplitSource_ChunksCoverWholeText(t *testing.T) {
	text := strings.Repeat("line one of the note.\n", 200)
	src := textSource(text)
	chunks := SplitSource(src, ChunkOptions{ChunkSize: 500, Overlap: 100})

	require.NotEmpty(t, chunks)
	require.Equal(t, 0, chunks[0].CharStart)
	require.Equal(t, len(text), chunks[len(chunks)-1].CharEnd)
	for i := 1; i < len(chunks); i++ {
		require.True(t, chunks[i].CharStart < chunks[i-1].CharEnd,
			"chunk %d does not overlap its predecessor", i)
	}
}
