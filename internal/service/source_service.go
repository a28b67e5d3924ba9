package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/quirehq/quire/internal/filestore"
	"github.com/quirehq/quire/internal/model"
	apperr "github.com/quirehq/quire/internal/pkg/errors"
	"github.com/quirehq/quire/internal/pkg/logutil"
	"github.com/quirehq/quire/internal/pkg/timeutil"
	"github.com/quirehq/quire/internal/rag"
	"github.com/quirehq/quire/internal/repo"
)

type SourceService struct {
	notebooks *repo.NotebookRepo
	sources   *repo.SourceRepo
	index     rag.EmbeddingIndex
	files     filestore.Store
}

func NewSourceService(notebooks *repo.NotebookRepo, sources *repo.SourceRepo, index rag.EmbeddingIndex, files filestore.Store) *SourceService {
	return &SourceService{notebooks: notebooks, sources: sources, index: index, files: files}
}

// AddSourceRequest carries the extracted text of a new source. For file
// sources the original upload is kept in the file store alongside the text.
type AddSourceRequest struct {
	NotebookID string
	Name       string
	Type       string
	Content    string
	File       filestore.ReadSeekCloser
	FileSize   int64
}

func (s *SourceService) Add(ctx context.Context, req AddSourceRequest) (*model.Source, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name is required", apperr.ErrInvalid)
	}
	switch req.Type {
	case model.SourceTypeText, model.SourceTypeURL, model.SourceTypeFile:
	default:
		return nil, fmt.Errorf("%w: unsupported source type: %s", apperr.ErrInvalid, req.Type)
	}
	if _, err := s.notebooks.GetByID(ctx, req.NotebookID); err != nil {
		return nil, err
	}

	now := timeutil.NowUnix()
	src := &model.Source{
		ID:          newID(),
		NotebookID:  req.NotebookID,
		Name:        req.Name,
		Type:        req.Type,
		Content:     req.Content,
		ContentHash: contentHash(req.Content),
		State:       model.StateNormal,
		Ctime:       now,
		Mtime:       now,
	}
	if req.Type == model.SourceTypeFile && req.File != nil {
		key := "sources/" + src.ID
		if err := s.files.Save(ctx, key, req.File, req.FileSize); err != nil {
			return nil, fmt.Errorf("store upload: %w", err)
		}
		src.FileKey = key
	}
	if err := s.sources.Create(ctx, src); err != nil {
		return nil, err
	}
	return src, nil
}

func (s *SourceService) Get(ctx context.Context, notebookID, id string) (*model.Source, error) {
	return s.sources.GetByID(ctx, notebookID, id)
}

func (s *SourceService) List(ctx context.Context, notebookID string) ([]*model.Source, error) {
	if _, err := s.notebooks.GetByID(ctx, notebookID); err != nil {
		return nil, err
	}
	return s.sources.ListActive(ctx, notebookID)
}

// OpenFile streams the original upload of a file source.
func (s *SourceService) OpenFile(ctx context.Context, notebookID, id string) (io.ReadCloser, error) {
	src, err := s.sources.GetByID(ctx, notebookID, id)
	if err != nil {
		return nil, err
	}
	if src.FileKey == "" {
		return nil, apperr.ErrNotFound
	}
	return s.files.Open(ctx, src.FileKey)
}

// Delete soft-deletes the source and removes its chunks from the index so
// later retrievals never cite deleted material.
func (s *SourceService) Delete(ctx context.Context, notebookID, id string) error {
	if err := s.sources.Delete(ctx, notebookID, id, timeutil.NowUnix()); err != nil {
		return err
	}
	if err := s.index.DeleteSource(ctx, notebookID, id); err != nil {
		logutil.GetLogger(ctx).Error("drop source chunks failed",
			zap.String("notebook_id", notebookID), zap.String("source_id", id), zap.Error(err))
	}
	return nil
}

func contentHash(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}
