package rag

import (
	"context"

	"github.com/quirehq/quire/internal/model"
)

// IndexHit is a raw nearest-neighbor result as returned by the vector
// store, before score normalization. Certainty is set only by providers
// that report a 0..1 similarity directly.
type IndexHit struct {
	SourceID   string
	SourceName string
	ChunkIndex int
	Text       string
	Distance   float64
	Certainty  *float64
}

// EmbeddingIndex is the vector store contract. Implementations own chunk
// persistence keyed by (notebook_id, source_id, chunk_index) and perform
// query embedding themselves.
type EmbeddingIndex interface {
	Upsert(ctx context.Context, notebookID string, source *model.Source, chunks []model.Chunk) error
	Query(ctx context.Context, notebookID string, query string, limit int) ([]IndexHit, error)
	DeleteSource(ctx context.Context, notebookID, sourceID string) error
	Delete(ctx context.Context, notebookID string) error
	Count(ctx context.Context, notebookID string) (int, error)
	CountSource(ctx context.Context, notebookID, sourceID, contentHash string) (int, error)
}

// SourceStore provides read access to the notebook's current sources.
type SourceStore interface {
	ListActive(ctx context.Context, notebookID string) ([]*model.Source, error)
	GetByIDs(ctx context.Context, notebookID string, ids []string) ([]*model.Source, error)
}

// OutputStore persists outputs. ClaimGenerating is the conditional
// transition primitive: it succeeds only from a non-GENERATING status,
// bumping the version when claiming from a terminal state, and reports
// errors.ErrConflict otherwise.
type OutputStore interface {
	Get(ctx context.Context, id string) (*model.Output, error)
	Create(ctx context.Context, output *model.Output) error
	ClaimGenerating(ctx context.Context, id string) (*model.Output, error)
	Complete(ctx context.Context, output *model.Output) error
	Fail(ctx context.Context, id string, message string, mtime int64) error
}

// TemplateStore resolves persisted output templates by id.
type TemplateStore interface {
	GetByID(ctx context.Context, id string) (*model.OutputTemplate, error)
}
