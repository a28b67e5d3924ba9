package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/quirehq/quire/internal/model"
	"github.com/quirehq/quire/internal/pkg/dbutil"
	apperr "github.com/quirehq/quire/internal/pkg/errors"
)

type NotebookRepo struct {
	db *sql.DB
}

func NewNotebookRepo(db *sql.DB) *NotebookRepo {
	return &NotebookRepo{db: db}
}

var notebookFields = []string{"id", "name", "description", "state", "ctime", "mtime"}

func (r *NotebookRepo) Create(ctx context.Context, nb *model.Notebook) error {
	data := map[string]interface{}{
		"id":          nb.ID,
		"name":        nb.Name,
		"description": nb.Description,
		"state":       nb.State,
		"ctime":       nb.Ctime,
		"mtime":       nb.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("notebooks", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, dbutil.Rebind(sqlStr), args...)
	if dbutil.IsUniqueViolation(err) {
		return apperr.ErrConflict
	}
	return err
}

func (r *NotebookRepo) GetByID(ctx context.Context, id string) (*model.Notebook, error) {
	where := map[string]interface{}{
		"id":    id,
		"state": model.StateNormal,
	}
	sqlStr, args, err := builder.BuildSelect("notebooks", where, notebookFields)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx, dbutil.Rebind(sqlStr), args...)
	var nb model.Notebook
	if err := row.Scan(&nb.ID, &nb.Name, &nb.Description, &nb.State, &nb.Ctime, &nb.Mtime); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &nb, nil
}

func (r *NotebookRepo) List(ctx context.Context) ([]model.Notebook, error) {
	where := map[string]interface{}{
		"state":    model.StateNormal,
		"_orderby": "mtime desc",
	}
	sqlStr, args, err := builder.BuildSelect("notebooks", where, notebookFields)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, dbutil.Rebind(sqlStr), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var notebooks []model.Notebook
	for rows.Next() {
		var nb model.Notebook
		if err := rows.Scan(&nb.ID, &nb.Name, &nb.Description, &nb.State, &nb.Ctime, &nb.Mtime); err != nil {
			return nil, err
		}
		notebooks = append(notebooks, nb)
	}
	return notebooks, rows.Err()
}

func (r *NotebookRepo) Update(ctx context.Context, nb *model.Notebook) error {
	where := map[string]interface{}{
		"id":    nb.ID,
		"state": model.StateNormal,
	}
	update := map[string]interface{}{
		"name":        nb.Name,
		"description": nb.Description,
		"mtime":       nb.Mtime,
	}
	sqlStr, args, err := builder.BuildUpdate("notebooks", where, update)
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

func (r *NotebookRepo) Delete(ctx context.Context, id string, mtime int64) error {
	where := map[string]interface{}{
		"id":    id,
		"state": model.StateNormal,
	}
	update := map[string]interface{}{
		"state": model.StateDeleted,
		"mtime": mtime,
	}
	sqlStr, args, err := builder.BuildUpdate("notebooks", where, update)
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
