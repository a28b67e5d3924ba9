package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/quirehq/quire/internal/model"
	apperr "github.com/quirehq/quire/internal/pkg/errors"
	"github.com/quirehq/quire/internal/pkg/logutil"
	"github.com/quirehq/quire/internal/pkg/timeutil"
	"github.com/quirehq/quire/internal/rag"
	"github.com/quirehq/quire/internal/repo"
)

type NotebookService struct {
	notebooks *repo.NotebookRepo
	index     rag.EmbeddingIndex
}

func NewNotebookService(notebooks *repo.NotebookRepo, index rag.EmbeddingIndex) *NotebookService {
	return &NotebookService{notebooks: notebooks, index: index}
}

func (s *NotebookService) Create(ctx context.Context, name, description string) (*model.Notebook, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", apperr.ErrInvalid)
	}
	now := timeutil.NowUnix()
	nb := &model.Notebook{
		ID:          newID(),
		Name:        name,
		Description: description,
		State:       model.StateNormal,
		Ctime:       now,
		Mtime:       now,
	}
	if err := s.notebooks.Create(ctx, nb); err != nil {
		return nil, err
	}
	return nb, nil
}

func (s *NotebookService) Get(ctx context.Context, id string) (*model.Notebook, error) {
	return s.notebooks.GetByID(ctx, id)
}

func (s *NotebookService) List(ctx context.Context) ([]model.Notebook, error) {
	return s.notebooks.List(ctx)
}

func (s *NotebookService) Update(ctx context.Context, id, name, description string) (*model.Notebook, error) {
	nb, err := s.notebooks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if name = strings.TrimSpace(name); name != "" {
		nb.Name = name
	}
	if description != "" {
		nb.Description = description
	}
	nb.Mtime = timeutil.NowUnix()
	if err := s.notebooks.Update(ctx, nb); err != nil {
		return nil, err
	}
	return nb, nil
}

// Delete soft-deletes the notebook and drops its chunk index. Sources stay
// in place under the deleted notebook; they are unreachable through the API
// and keep no embeddings.
func (s *NotebookService) Delete(ctx context.Context, id string) error {
	if err := s.notebooks.Delete(ctx, id, timeutil.NowUnix()); err != nil {
		return err
	}
	if err := s.index.Delete(ctx, id); err != nil {
		logutil.GetLogger(ctx).Error("drop notebook index failed",
			zap.String("notebook_id", id), zap.Error(err))
	}
	return nil
}
