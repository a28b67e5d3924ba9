package vectorstore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/quirehq/quire/internal/ai"
	"github.com/quirehq/quire/internal/model"
	"github.com/quirehq/quire/internal/pkg/logutil"
	"github.com/quirehq/quire/internal/pkg/timeutil"
	"github.com/quirehq/quire/internal/rag"
)

type Config struct {
	// EmbedRatePerSec throttles embedding provider calls; zero disables.
	EmbedRatePerSec float64
	QueryCacheSize  int
	QueryCacheTTL   time.Duration
}

func (c Config) normalized() Config {
	if c.QueryCacheSize <= 0 {
		c.QueryCacheSize = 4096
	}
	if c.QueryCacheTTL <= 0 {
		c.QueryCacheTTL = 2 * time.Hour
	}
	return c
}

// PgVector stores chunk embeddings in a Postgres pgvector table keyed by
// (notebook_id, source_id, chunk_index). It embeds both documents and
// queries itself; query embeddings are cached since users repeat searches.
type PgVector struct {
	db         *sql.DB
	embedder   ai.EmbedProvider
	limiter    *rate.Limiter
	queryCache *expirable.LRU[string, []float32]
}

var _ rag.EmbeddingIndex = (*PgVector)(nil)

func New(db *sql.DB, embedder ai.EmbedProvider, cfg Config) *PgVector {
	cfg = cfg.normalized()
	var limiter *rate.Limiter
	if cfg.EmbedRatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.EmbedRatePerSec), int(cfg.EmbedRatePerSec)+1)
	}
	return &PgVector{
		db:         db,
		embedder:   embedder,
		limiter:    limiter,
		queryCache: expirable.NewLRU[string, []float32](cfg.QueryCacheSize, nil, cfg.QueryCacheTTL),
	}
}

// Upsert replaces a source's chunks in one transaction, so indexing is
// atomic per source: a mid-source failure rolls the whole source back.
func (s *PgVector) Upsert(ctx context.Context, notebookID string, source *model.Source, chunks []model.Chunk) error {
	logger := logutil.GetLogger(ctx).With(
		zap.String("notebook_id", notebookID),
		zap.String("source_id", source.ID),
	)

	vectors := make([]pgvector.Vector, 0, len(chunks))
	for _, chunk := range chunks {
		vec, err := s.embed(ctx, chunk.Text, ai.TaskTypeDocument)
		if err != nil {
			return fmt.Errorf("embed chunk %d: %w", chunk.Index, err)
		}
		vectors = append(vectors, pgvector.NewVector(vec))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const deleteStmt = `DELETE FROM notebook_chunks WHERE notebook_id = $1 AND source_id = $2`
	if _, err := tx.ExecContext(ctx, deleteStmt, notebookID, source.ID); err != nil {
		return err
	}
	const insertStmt = `
		INSERT INTO notebook_chunks
			(notebook_id, source_id, source_name, chunk_index, text, char_start, char_end, content_hash, embedding, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	now := timeutil.NowMilli()
	for i, chunk := range chunks {
		_, err := tx.ExecContext(ctx, insertStmt,
			notebookID,
			source.ID,
			source.Name,
			chunk.Index,
			chunk.Text,
			chunk.CharStart,
			chunk.CharEnd,
			source.ContentHash,
			vectors[i],
			now,
		)
		if err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	logger.Debug("chunks upserted", zap.Int("count", len(chunks)))
	return nil
}

func (s *PgVector) Query(ctx context.Context, notebookID string, query string, limit int) ([]rag.IndexHit, error) {
	vec, err := s.queryEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}
	const stmt = `
		SELECT source_id, source_name, chunk_index, text, embedding <=> $1 AS distance
		FROM notebook_chunks
		WHERE notebook_id = $2
		ORDER BY distance
		LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, stmt, pgvector.NewVector(vec), notebookID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []rag.IndexHit
	for rows.Next() {
		var hit rag.IndexHit
		if err := rows.Scan(&hit.SourceID, &hit.SourceName, &hit.ChunkIndex, &hit.Text, &hit.Distance); err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

func (s *PgVector) DeleteSource(ctx context.Context, notebookID, sourceID string) error {
	const stmt = `DELETE FROM notebook_chunks WHERE notebook_id = $1 AND source_id = $2`
	_, err := s.db.ExecContext(ctx, stmt, notebookID, sourceID)
	return err
}

func (s *PgVector) Delete(ctx context.Context, notebookID string) error {
	const stmt = `DELETE FROM notebook_chunks WHERE notebook_id = $1`
	_, err := s.db.ExecContext(ctx, stmt, notebookID)
	return err
}

func (s *PgVector) Count(ctx context.Context, notebookID string) (int, error) {
	const stmt = `SELECT count(*) FROM notebook_chunks WHERE notebook_id = $1`
	var count int
	err := s.db.QueryRowContext(ctx, stmt, notebookID).Scan(&count)
	return count, err
}

func (s *PgVector) CountSource(ctx context.Context, notebookID, sourceID, contentHash string) (int, error) {
	const stmt = `
		SELECT count(*) FROM notebook_chunks
		WHERE notebook_id = $1 AND source_id = $2 AND content_hash = $3
	`
	var count int
	err := s.db.QueryRowContext(ctx, stmt, notebookID, sourceID, contentHash).Scan(&count)
	return count, err
}

func (s *PgVector) queryEmbedding(ctx context.Context, query string) ([]float32, error) {
	key := cacheKey(query)
	if vec, ok := s.queryCache.Get(key); ok {
		return vec, nil
	}
	vec, err := s.embed(ctx, query, ai.TaskTypeQuery)
	if err != nil {
		return nil, err
	}
	s.queryCache.Add(key, vec)
	return vec, nil
}

func (s *PgVector) embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return s.embedder.Embed(ctx, text, taskType)
}

func cacheKey(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:])
}
