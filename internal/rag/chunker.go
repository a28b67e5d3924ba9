package rag

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gtext "github.com/yuin/goldmark/text"

	"github.com/quirehq/quire/internal/model"
)

const (
	defaultChunkSize = 1000
	defaultOverlap   = 200
)

type ChunkOptions struct {
	ChunkSize int
	Overlap   int
}

// normalized applies defaults and clamps the overlap to half a chunk so a
// re-ingested tail never resamples more than 50% of the previous chunk.
func (o ChunkOptions) normalized() ChunkOptions {
	if o.ChunkSize <= 0 {
		o.ChunkSize = defaultChunkSize
	}
	if o.Overlap <= 0 {
		o.Overlap = defaultOverlap
	}
	if o.Overlap > o.ChunkSize/2 {
		o.Overlap = o.ChunkSize / 2
	}
	return o
}

// SplitSource slices a source's text into overlapping chunks. Cuts prefer
// semantic boundaries (markdown blocks, paragraphs, sentence enders) and
// fall back to hard character slicing only when no boundary exists inside
// the window. Each chunk after the first starts at the previous chunk's
// end minus the overlap, backed off to a rune boundary. Whitespace-only
// sources yield no chunks.
func SplitSource(src *model.Source, opts ChunkOptions) []model.Chunk {
	opts = opts.normalized()
	text := src.Content
	if strings.TrimSpace(text) == "" {
		return nil
	}

	points := cutPoints(text)
	var chunks []model.Chunk
	start := 0
	for start < len(text) {
		end := start + opts.ChunkSize
		if end >= len(text) {
			end = len(text)
		} else {
			if cut := furthestCut(points, start, end); cut > start {
				end = cut
			} else {
				end = alignRune(text, end)
			}
		}
		piece := text[start:end]
		if strings.TrimSpace(piece) != "" {
			chunks = append(chunks, model.Chunk{
				SourceID:   src.ID,
				SourceName: src.Name,
				Index:      len(chunks),
				Text:       piece,
				CharStart:  start,
				CharEnd:    end,
			})
		}
		if end >= len(text) {
			break
		}
		next := end - opts.Overlap
		if next > 0 {
			next = alignRune(text, next)
		}
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// cutPoints collects candidate cut offsets: the end of every markdown
// block (goldmark parses plain text into paragraph blocks too), plus
// newlines and sentence enders.
func cutPoints(text string) []int {
	set := make(map[int]struct{})
	src := []byte(text)
	doc := goldmark.New().Parser().Parse(gtext.NewReader(src))
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Type() != ast.TypeBlock {
			return ast.WalkContinue, nil
		}
		if lines := n.Lines(); lines != nil && lines.Len() > 0 {
			stop := lines.At(lines.Len() - 1).Stop
			if stop > 0 && stop <= len(text) {
				set[stop] = struct{}{}
			}
		}
		return ast.WalkContinue, nil
	})
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n':
			set[i+1] = struct{}{}
		case '.', '!', '?':
			if i+1 < len(text) && (text[i+1] == ' ' || text[i+1] == '\n') {
				set[i+2] = struct{}{}
			}
		}
	}
	points := make([]int, 0, len(set))
	for p := range set {
		if p > 0 && p <= len(text) {
			points = append(points, p)
		}
	}
	sort.Ints(points)
	return points
}

// furthestCut returns the largest cut point in (start, limit], or -1.
func furthestCut(points []int, start, limit int) int {
	idx := sort.SearchInts(points, limit+1) - 1
	if idx < 0 {
		return -1
	}
	if p := points[idx]; p > start {
		return p
	}
	return -1
}

// alignRune backs a byte offset off to the nearest rune start so a hard
// slice never splits a multi-byte character.
func alignRune(text string, pos int) int {
	for pos > 0 && !utf8.RuneStart(text[pos]) {
		pos--
	}
	return pos
}
