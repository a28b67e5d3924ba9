package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/didi/gendry/builder"

	"github.com/quirehq/quire/internal/model"
	"github.com/quirehq/quire/internal/pkg/dbutil"
	apperr "github.com/quirehq/quire/internal/pkg/errors"
)

type OutputRepo struct {
	db *sql.DB
}

func NewOutputRepo(db *sql.DB) *OutputRepo {
	return &OutputRepo{db: db}
}

const outputColumns = `id, notebook_id, title, content, output_type, status, version,
	source_refs, word_count, last_error, request, metadata, generated_at, state, ctime, mtime`

func (r *OutputRepo) Create(ctx context.Context, out *model.Output) error {
	refs, err := json.Marshal(out.SourceRefs)
	if err != nil {
		return err
	}
	request, err := json.Marshal(out.Request)
	if err != nil {
		return err
	}
	metadata, err := json.Marshal(out.Metadata)
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"id":           out.ID,
		"notebook_id":  out.NotebookID,
		"title":        out.Title,
		"content":      out.Content,
		"output_type":  out.OutputType,
		"status":       out.Status,
		"version":      out.Version,
		"source_refs":  string(refs),
		"word_count":   out.WordCount,
		"last_error":   out.LastError,
		"request":      string(request),
		"metadata":     string(metadata),
		"generated_at": out.GeneratedAt,
		"state":        out.State,
		"ctime":        out.Ctime,
		"mtime":        out.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("outputs", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, dbutil.Rebind(sqlStr), args...)
	if dbutil.IsUniqueViolation(err) {
		return apperr.ErrConflict
	}
	return err
}

func (r *OutputRepo) Get(ctx context.Context, id string) (*model.Output, error) {
	const query = `
		SELECT ` + outputColumns + `
		FROM outputs
		WHERE id = $1 AND state = $2
	`
	out, err := scanOutput(r.db.QueryRowContext(ctx, query, id, model.StateNormal))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return out, nil
}

func (r *OutputRepo) ListByNotebook(ctx context.Context, notebookID string) ([]*model.Output, error) {
	const query = `
		SELECT ` + outputColumns + `
		FROM outputs
		WHERE notebook_id = $1 AND state = $2
		ORDER BY ctime DESC
	`
	rows, err := r.db.QueryContext(ctx, query, notebookID, model.StateNormal)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var outputs []*model.Output
	for rows.Next() {
		out, err := scanOutput(rows)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, out)
	}
	return outputs, rows.Err()
}

// ClaimGenerating is the conditional transition primitive backing the
// one-in-flight-generation-per-output guarantee. It succeeds only from a
// non-GENERATING status; claiming from a terminal status bumps the
// version. A concurrent claim observes ErrConflict.
func (r *OutputRepo) ClaimGenerating(ctx context.Context, id string) (*model.Output, error) {
	const query = `
		UPDATE outputs
		SET status = $1,
			version = version + (CASE WHEN status = $2 THEN 0 ELSE 1 END),
			last_error = '',
			mtime = extract(epoch from now())::bigint
		WHERE id = $3 AND status <> $1 AND state = $4
		RETURNING ` + outputColumns + `
	`
	out, err := scanOutput(r.db.QueryRowContext(ctx, query,
		model.OutputStatusGenerating, model.OutputStatusDraft, id, model.StateNormal))
	if err == nil {
		return out, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}
	// Zero rows: either the output does not exist or it is already
	// GENERATING. Distinguish for the caller.
	if _, getErr := r.Get(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, apperr.ErrConflict
}

// Complete persists a finished generation in one write: content, cited
// source references, word count and request (regenerate may have replayed
// it with overrides).
func (r *OutputRepo) Complete(ctx context.Context, out *model.Output) error {
	refs, err := json.Marshal(out.SourceRefs)
	if err != nil {
		return err
	}
	request, err := json.Marshal(out.Request)
	if err != nil {
		return err
	}
	const query = `
		UPDATE outputs
		SET status = $1, title = $2, content = $3, source_refs = $4, word_count = $5,
			last_error = '', request = $6, generated_at = $7, mtime = $8
		WHERE id = $9 AND status = $10 AND state = $11
	`
	result, err := r.db.ExecContext(ctx, query,
		model.OutputStatusCompleted, out.Title, out.Content, string(refs), out.WordCount,
		string(request), out.GeneratedAt, out.Mtime,
		out.ID, model.OutputStatusGenerating, model.StateNormal)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperr.ErrConflict
	}
	return nil
}

// Fail records a terminal failure; generated content is never partially
// persisted, only the error message.
func (r *OutputRepo) Fail(ctx context.Context, id string, message string, mtime int64) error {
	const query = `
		UPDATE outputs
		SET status = $1, last_error = $2, mtime = $3
		WHERE id = $4 AND status = $5 AND state = $6
	`
	result, err := r.db.ExecContext(ctx, query,
		model.OutputStatusFailed, message, mtime,
		id, model.OutputStatusGenerating, model.StateNormal)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperr.ErrConflict
	}
	return nil
}

// FailStaleGenerating is the reconciliation sweep: any output stuck in
// GENERATING longer than the cutoff (crashed worker, abandoned call) is
// marked FAILED. Returns the number of outputs swept.
func (r *OutputRepo) FailStaleGenerating(ctx context.Context, cutoff int64, message string, mtime int64) (int64, error) {
	const query = `
		UPDATE outputs
		SET status = $1, last_error = $2, mtime = $3
		WHERE status = $4 AND mtime < $5 AND state = $6
	`
	result, err := r.db.ExecContext(ctx, query,
		model.OutputStatusFailed, message, mtime,
		model.OutputStatusGenerating, cutoff, model.StateNormal)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *OutputRepo) Delete(ctx context.Context, notebookID, id string, mtime int64) error {
	where := map[string]interface{}{
		"id":          id,
		"notebook_id": notebookID,
		"state":       model.StateNormal,
	}
	update := map[string]interface{}{
		"state": model.StateDeleted,
		"mtime": mtime,
	}
	sqlStr, args, err := builder.BuildUpdate("outputs", where, update)
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

func scanOutput(scanner interface{ Scan(...interface{}) error }) (*model.Output, error) {
	var (
		out      model.Output
		refs     []byte
		request  []byte
		metadata []byte
	)
	err := scanner.Scan(&out.ID, &out.NotebookID, &out.Title, &out.Content, &out.OutputType,
		&out.Status, &out.Version, &refs, &out.WordCount, &out.LastError, &request,
		&metadata, &out.GeneratedAt, &out.State, &out.Ctime, &out.Mtime)
	if err != nil {
		return nil, err
	}
	if len(refs) > 0 {
		if err := json.Unmarshal(refs, &out.SourceRefs); err != nil {
			return nil, err
		}
	}
	if len(request) > 0 {
		if err := json.Unmarshal(request, &out.Request); err != nil {
			return nil, err
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &out.Metadata); err != nil {
			return nil, err
		}
	}
	return &out, nil
}
