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

type TemplateRepo struct {
	db *sql.DB
}

func NewTemplateRepo(db *sql.DB) *TemplateRepo {
	return &TemplateRepo{db: db}
}

const templateColumns = `id, name, output_type, system_prompt, sections, state, ctime, mtime`

func (r *TemplateRepo) Create(ctx context.Context, tpl *model.OutputTemplate) error {
	sections, err := json.Marshal(tpl.Sections)
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"id":            tpl.ID,
		"name":          tpl.Name,
		"output_type":   tpl.OutputType,
		"system_prompt": tpl.SystemPrompt,
		"sections":      string(sections),
		"state":         tpl.State,
		"ctime":         tpl.Ctime,
		"mtime":         tpl.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("output_templates", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, dbutil.Rebind(sqlStr), args...)
	if dbutil.IsUniqueViolation(err) {
		return apperr.ErrConflict
	}
	return err
}

func (r *TemplateRepo) GetByID(ctx context.Context, id string) (*model.OutputTemplate, error) {
	const query = `
		SELECT ` + templateColumns + `
		FROM output_templates
		WHERE id = $1 AND state = $2
	`
	tpl, err := scanTemplate(r.db.QueryRowContext(ctx, query, id, model.StateNormal))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return tpl, nil
}

func (r *TemplateRepo) List(ctx context.Context) ([]*model.OutputTemplate, error) {
	const query = `
		SELECT ` + templateColumns + `
		FROM output_templates
		WHERE state = $1
		ORDER BY ctime ASC
	`
	rows, err := r.db.QueryContext(ctx, query, model.StateNormal)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var templates []*model.OutputTemplate
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, tpl)
	}
	return templates, rows.Err()
}

func (r *TemplateRepo) Update(ctx context.Context, tpl *model.OutputTemplate) error {
	sections, err := json.Marshal(tpl.Sections)
	if err != nil {
		return err
	}
	where := map[string]interface{}{
		"id":    tpl.ID,
		"state": model.StateNormal,
	}
	update := map[string]interface{}{
		"name":          tpl.Name,
		"output_type":   tpl.OutputType,
		"system_prompt": tpl.SystemPrompt,
		"sections":      string(sections),
		"mtime":         tpl.Mtime,
	}
	sqlStr, args, err := builder.BuildUpdate("output_templates", where, update)
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

func (r *TemplateRepo) Delete(ctx context.Context, id string, mtime int64) error {
	where := map[string]interface{}{
		"id":    id,
		"state": model.StateNormal,
	}
	update := map[string]interface{}{
		"state": model.StateDeleted,
		"mtime": mtime,
	}
	sqlStr, args, err := builder.BuildUpdate("output_templates", where, update)
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

func scanTemplate(scanner interface{ Scan(...interface{}) error }) (*model.OutputTemplate, error) {
	var (
		tpl      model.OutputTemplate
		sections []byte
	)
	err := scanner.Scan(&tpl.ID, &tpl.Name, &tpl.OutputType, &tpl.SystemPrompt,
		&sections, &tpl.State, &tpl.Ctime, &tpl.Mtime)
	if err != nil {
		return nil, err
	}
	if len(sections) > 0 {
		if err := json.Unmarshal(sections, &tpl.Sections); err != nil {
			return nil, err
		}
	}
	return &tpl, nil
}
