package rag

import (
	"context"
	"fmt"
	"sort"

	"github.com/quirehq/quire/internal/model"
	apperr "github.com/quirehq/quire/internal/pkg/errors"
)

const defaultSearchLimit = 10

// Engine shapes raw vector store hits into ranked retrieval results:
// score normalization, min-relevance filtering, duplicate collapse and a
// deterministic ordering so identical queries produce identical prompts.
type Engine struct {
	index EmbeddingIndex
}

func NewEngine(index EmbeddingIndex) *Engine {
	return &Engine{index: index}
}

// Search runs a similarity query. A notebook with no indexed vectors
// yields an empty result set, not an error.
func (e *Engine) Search(ctx context.Context, notebookID, query string, limit int, minRelevance float64) ([]model.RetrievalResult, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	hits, err := e.index.Query(ctx, notebookID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrRetrieval, err)
	}

	type key struct {
		sourceID string
		chunk    int
	}
	best := make(map[key]model.RetrievalResult, len(hits))
	for _, hit := range hits {
		score := normalizeScore(hit)
		if score < minRelevance {
			continue
		}
		k := key{sourceID: hit.SourceID, chunk: hit.ChunkIndex}
		if prev, ok := best[k]; ok && prev.RelevanceScore >= score {
			continue
		}
		best[k] = model.RetrievalResult{
			SourceID:       hit.SourceID,
			SourceName:     hit.SourceName,
			ChunkIndex:     hit.ChunkIndex,
			Text:           hit.Text,
			Distance:       hit.Distance,
			RelevanceScore: score,
		}
	}

	results := make([]model.RetrievalResult, 0, len(best))
	for _, r := range best {
		results = append(results, r)
	}
	sortResults(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// normalizeScore maps provider metrics into [0,1]: certainty is taken as
// is when reported, otherwise distance is folded through 1/(1+d).
func normalizeScore(hit IndexHit) float64 {
	var score float64
	if hit.Certainty != nil {
		score = *hit.Certainty
	} else {
		score = 1.0 / (1.0 + hit.Distance)
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// sortResults orders by relevance desc, then chunk index asc, then source
// id asc. The ordering is part of the prompt reproducibility contract.
func sortResults(results []model.RetrievalResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].RelevanceScore != results[j].RelevanceScore {
			return results[i].RelevanceScore > results[j].RelevanceScore
		}
		if results[i].ChunkIndex != results[j].ChunkIndex {
			return results[i].ChunkIndex < results[j].ChunkIndex
		}
		return results[i].SourceID < results[j].SourceID
	})
}
