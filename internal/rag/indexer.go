package rag

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/quirehq/quire/internal/model"
	apperr "github.com/quirehq/quire/internal/pkg/errors"
	"github.com/quirehq/quire/internal/pkg/logutil"
)

// Indexer splits sources into chunks and hands them to the embedding
// index. Indexing is per-source atomic: a provider failure keeps every
// source indexed so far and reports the rest as failed.
type Indexer struct {
	index EmbeddingIndex
	opts  ChunkOptions

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewIndexer(index EmbeddingIndex, opts ChunkOptions) *Indexer {
	return &Indexer{
		index: index,
		opts:  opts.normalized(),
		locks: make(map[string]*sync.Mutex),
	}
}

type IndexRequest struct {
	NotebookID string
	Sources    []*model.Source
	ChunkSize  int
	Overlap    int
	Force      bool
}

// Index chunks and embeds the given sources. Sources whose content hash is
// already indexed are skipped unless Force is set; double-running is safe
// but wasteful, so concurrent calls for the same notebook are serialized.
func (ix *Indexer) Index(ctx context.Context, req IndexRequest) (*model.IndexReport, error) {
	lock := ix.notebookLock(req.NotebookID)
	lock.Lock()
	defer lock.Unlock()

	opts := ChunkOptions{ChunkSize: req.ChunkSize, Overlap: req.Overlap}
	if req.ChunkSize <= 0 && req.Overlap <= 0 {
		opts = ix.opts
	}
	opts = opts.normalized()

	logger := logutil.GetLogger(ctx).With(zap.String("notebook_id", req.NotebookID))
	report := &model.IndexReport{}
	for _, src := range req.Sources {
		if strings.TrimSpace(src.Content) == "" {
			logger.Info("source has no text, skipping", zap.String("source_id", src.ID))
			report.SourcesSkipped++
			continue
		}
		if !req.Force {
			n, err := ix.index.CountSource(ctx, req.NotebookID, src.ID, src.ContentHash)
			if err != nil {
				return report, fmt.Errorf("%w: count source %s: %v", apperr.ErrIndexing, src.ID, err)
			}
			if n > 0 {
				report.SourcesSkipped++
				continue
			}
		}
		chunks := SplitSource(src, opts)
		if len(chunks) == 0 {
			report.SourcesSkipped++
			continue
		}
		if err := ix.index.Upsert(ctx, req.NotebookID, src, chunks); err != nil {
			logger.Error("indexing source failed", zap.String("source_id", src.ID), zap.Error(err))
			return report, fmt.Errorf("%w: source %s: %v", apperr.ErrIndexing, src.ID, err)
		}
		report.ChunksIndexed += len(chunks)
		logger.Info("source indexed", zap.String("source_id", src.ID), zap.Int("chunks", len(chunks)))
	}
	return report, nil
}

func (ix *Indexer) notebookLock(notebookID string) *sync.Mutex {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	lock, ok := ix.locks[notebookID]
	if !ok {
		lock = &sync.Mutex{}
		ix.locks[notebookID] = lock
	}
	return lock
}
