package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/quirehq/quire/internal/model"
	apperr "github.com/quirehq/quire/internal/pkg/errors"
	"github.com/quirehq/quire/internal/pkg/timeutil"
	"github.com/quirehq/quire/internal/rag"
	"github.com/quirehq/quire/internal/repo"
)

// OutputService fronts the retrieval-augmented generation pipeline for the
// API: indexing, similarity search, output generation and question
// answering, plus output reads.
type OutputService struct {
	notebooks    *repo.NotebookRepo
	sources      *repo.SourceRepo
	outputs      *repo.OutputRepo
	indexer      *rag.Indexer
	retrieval    *rag.Engine
	orchestrator *rag.Orchestrator
	qa           *rag.Synthesizer
}

func NewOutputService(
	notebooks *repo.NotebookRepo,
	sources *repo.SourceRepo,
	outputs *repo.OutputRepo,
	indexer *rag.Indexer,
	retrieval *rag.Engine,
	orchestrator *rag.Orchestrator,
	qa *rag.Synthesizer,
) *OutputService {
	return &OutputService{
		notebooks:    notebooks,
		sources:      sources,
		outputs:      outputs,
		indexer:      indexer,
		retrieval:    retrieval,
		orchestrator: orchestrator,
		qa:           qa,
	}
}

type IndexOptions struct {
	SourceIDs []string
	ChunkSize int
	Overlap   int
	Force     bool
}

// Index chunks and embeds the notebook's sources, all of them by default or
// the requested subset.
func (s *OutputService) Index(ctx context.Context, notebookID string, opts IndexOptions) (*model.IndexReport, error) {
	if _, err := s.notebooks.GetByID(ctx, notebookID); err != nil {
		return nil, err
	}
	var (
		srcs []*model.Source
		err  error
	)
	if len(opts.SourceIDs) > 0 {
		srcs, err = s.sources.GetByIDs(ctx, notebookID, opts.SourceIDs)
	} else {
		srcs, err = s.sources.ListActive(ctx, notebookID)
	}
	if err != nil {
		return nil, err
	}
	return s.indexer.Index(ctx, rag.IndexRequest{
		NotebookID: notebookID,
		Sources:    srcs,
		ChunkSize:  opts.ChunkSize,
		Overlap:    opts.Overlap,
		Force:      opts.Force,
	})
}

func (s *OutputService) Search(ctx context.Context, notebookID, query string, limit int, minRelevance float64) ([]model.RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", apperr.ErrInvalid)
	}
	if _, err := s.notebooks.GetByID(ctx, notebookID); err != nil {
		return nil, err
	}
	return s.retrieval.Search(ctx, notebookID, query, limit, minRelevance)
}

func (s *OutputService) Generate(ctx context.Context, req model.GenerationRequest) (*model.Output, error) {
	if _, err := s.notebooks.GetByID(ctx, req.NotebookID); err != nil {
		return nil, err
	}
	return s.orchestrator.Generate(ctx, req)
}

func (s *OutputService) Regenerate(ctx context.Context, notebookID, outputID string, overrides *rag.RegenerateOverrides) (*model.Output, error) {
	out, err := s.outputs.Get(ctx, outputID)
	if err != nil {
		return nil, err
	}
	if out.NotebookID != notebookID {
		return nil, apperr.ErrNotFound
	}
	return s.orchestrator.Regenerate(ctx, outputID, overrides)
}

func (s *OutputService) Ask(ctx context.Context, req rag.AskRequest) (*model.QaAnswer, error) {
	if _, err := s.notebooks.GetByID(ctx, req.NotebookID); err != nil {
		return nil, err
	}
	return s.qa.Ask(ctx, req)
}

func (s *OutputService) Get(ctx context.Context, notebookID, id string) (*model.Output, error) {
	out, err := s.outputs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if out.NotebookID != notebookID {
		return nil, apperr.ErrNotFound
	}
	return out, nil
}

func (s *OutputService) List(ctx context.Context, notebookID string) ([]*model.Output, error) {
	if _, err := s.notebooks.GetByID(ctx, notebookID); err != nil {
		return nil, err
	}
	return s.outputs.ListByNotebook(ctx, notebookID)
}

func (s *OutputService) Delete(ctx context.Context, notebookID, id string) error {
	return s.outputs.Delete(ctx, notebookID, id, timeutil.NowUnix())
}
