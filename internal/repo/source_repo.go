package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/quirehq/quire/internal/model"
	"github.com/quirehq/quire/internal/pkg/dbutil"
	apperr "github.com/quirehq/quire/internal/pkg/errors"
)

type SourceRepo struct {
	db *sql.DB
}

func NewSourceRepo(db *sql.DB) *SourceRepo {
	return &SourceRepo{db: db}
}

var sourceFields = []string{"id", "notebook_id", "name", "type", "content", "content_hash", "file_key", "state", "ctime", "mtime"}

func scanSource(scanner interface{ Scan(...interface{}) error }) (*model.Source, error) {
	var src model.Source
	err := scanner.Scan(&src.ID, &src.NotebookID, &src.Name, &src.Type, &src.Content,
		&src.ContentHash, &src.FileKey, &src.State, &src.Ctime, &src.Mtime)
	if err != nil {
		return nil, err
	}
	return &src, nil
}

func (r *SourceRepo) Create(ctx context.Context, src *model.Source) error {
	data := map[string]interface{}{
		"id":           src.ID,
		"notebook_id":  src.NotebookID,
		"name":         src.Name,
		"type":         src.Type,
		"content":      src.Content,
		"content_hash": src.ContentHash,
		"file_key":     src.FileKey,
		"state":        src.State,
		"ctime":        src.Ctime,
		"mtime":        src.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("sources", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, dbutil.Rebind(sqlStr), args...)
	if dbutil.IsUniqueViolation(err) {
		return apperr.ErrConflict
	}
	return err
}

func (r *SourceRepo) GetByID(ctx context.Context, notebookID, id string) (*model.Source, error) {
	where := map[string]interface{}{
		"id":          id,
		"notebook_id": notebookID,
		"state":       model.StateNormal,
	}
	sqlStr, args, err := builder.BuildSelect("sources", where, sourceFields)
	if err != nil {
		return nil, err
	}
	src, err := scanSource(r.db.QueryRowContext(ctx, dbutil.Rebind(sqlStr), args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return src, nil
}

// ListActive returns the notebook's current non-deleted sources.
func (r *SourceRepo) ListActive(ctx context.Context, notebookID string) ([]*model.Source, error) {
	where := map[string]interface{}{
		"notebook_id": notebookID,
		"state":       model.StateNormal,
		"_orderby":    "ctime asc",
	}
	return r.list(ctx, where)
}

func (r *SourceRepo) GetByIDs(ctx context.Context, notebookID string, ids []string) ([]*model.Source, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	idsAny := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		idsAny = append(idsAny, id)
	}
	where := map[string]interface{}{
		"notebook_id": notebookID,
		"id in":       idsAny,
		"state":       model.StateNormal,
		"_orderby":    "ctime asc",
	}
	return r.list(ctx, where)
}

func (r *SourceRepo) list(ctx context.Context, where map[string]interface{}) ([]*model.Source, error) {
	sqlStr, args, err := builder.BuildSelect("sources", where, sourceFields)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, dbutil.Rebind(sqlStr), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sources []*model.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

func (r *SourceRepo) Delete(ctx context.Context, notebookID, id string, mtime int64) error {
	where := map[string]interface{}{
		"id":          id,
		"notebook_id": notebookID,
		"state":       model.StateNormal,
	}
	update := map[string]interface{}{
		"state": model.StateDeleted,
		"mtime": mtime,
	}
	sqlStr, args, err := builder.BuildUpdate("sources", where, update)
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, dbutil.Rebind(sqlStr), args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
