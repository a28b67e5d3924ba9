package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/quirehq/quire/internal/model"
	apperr "github.com/quirehq/quire/internal/pkg/errors"
	"github.com/quirehq/quire/internal/pkg/timeutil"
	"github.com/quirehq/quire/internal/repo"
)

type TemplateService struct {
	templates *repo.TemplateRepo
}

func NewTemplateService(templates *repo.TemplateRepo) *TemplateService {
	return &TemplateService{templates: templates}
}

func (s *TemplateService) Create(ctx context.Context, tpl *model.OutputTemplate) (*model.OutputTemplate, error) {
	if err := validateTemplate(tpl); err != nil {
		return nil, err
	}
	now := timeutil.NowUnix()
	tpl.ID = newID()
	tpl.State = model.StateNormal
	tpl.Ctime = now
	tpl.Mtime = now
	if err := s.templates.Create(ctx, tpl); err != nil {
		return nil, err
	}
	return tpl, nil
}

func (s *TemplateService) Get(ctx context.Context, id string) (*model.OutputTemplate, error) {
	return s.templates.GetByID(ctx, id)
}

func (s *TemplateService) List(ctx context.Context) ([]*model.OutputTemplate, error) {
	return s.templates.List(ctx)
}

func (s *TemplateService) Update(ctx context.Context, tpl *model.OutputTemplate) (*model.OutputTemplate, error) {
	existing, err := s.templates.GetByID(ctx, tpl.ID)
	if err != nil {
		return nil, err
	}
	if tpl.Name == "" {
		tpl.Name = existing.Name
	}
	if tpl.OutputType == "" {
		tpl.OutputType = existing.OutputType
	}
	if tpl.SystemPrompt == "" {
		tpl.SystemPrompt = existing.SystemPrompt
	}
	if tpl.Sections == nil {
		tpl.Sections = existing.Sections
	}
	if err := validateTemplate(tpl); err != nil {
		return nil, err
	}
	tpl.Mtime = timeutil.NowUnix()
	if err := s.templates.Update(ctx, tpl); err != nil {
		return nil, err
	}
	tpl.State = existing.State
	tpl.Ctime = existing.Ctime
	return tpl, nil
}

func (s *TemplateService) Delete(ctx context.Context, id string) error {
	return s.templates.Delete(ctx, id, timeutil.NowUnix())
}

func validateTemplate(tpl *model.OutputTemplate) error {
	if strings.TrimSpace(tpl.Name) == "" {
		return fmt.Errorf("%w: name is required", apperr.ErrInvalid)
	}
	if len(tpl.Sections) == 0 {
		return fmt.Errorf("%w: template %q has no sections", apperr.ErrTemplateValidation, tpl.Name)
	}
	for _, section := range tpl.Sections {
		if strings.TrimSpace(section.Name) == "" {
			return fmt.Errorf("%w: section name is required", apperr.ErrTemplateValidation)
		}
		if section.MinLength > 0 && section.MaxLength > 0 && section.MinLength > section.MaxLength {
			return fmt.Errorf("%w: section %q: min_length %d exceeds max_length %d",
				apperr.ErrTemplateValidation, section.Name, section.MinLength, section.MaxLength)
		}
	}
	return nil
}
