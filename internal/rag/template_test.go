package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quirehq/quire/internal/model"
	apperr "github.com/quirehq/quire/internal/pkg/errors"
)

func TestResolve_EmptyIDUsesBuiltin(t *testing.T) {
	resolver := NewTemplateResolver(&fakeTemplateStore{})
	tpl, err := resolver.Resolve(context.Background(), "", model.OutputTypeBriefing)
	require.NoError(t, err)
	require.Equal(t, "default-briefing", tpl.Name)
	require.NotEmpty(t, tpl.Sections)
}

func TestResolve_MissingTemplateFallsBack(t *testing.T) {
	resolver := NewTemplateResolver(&fakeTemplateStore{templates: map[string]*model.OutputTemplate{}})
	tpl, err := resolver.Resolve(context.Background(), "nope", model.OutputTypeSummary)
	require.NoError(t, err)
	require.Equal(t, "default-summary", tpl.Name)
}

func TestResolve_StoredTemplate(t *testing.T) {
	store := &fakeTemplateStore{templates: map[string]*model.OutputTemplate{
		"tpl1": {
			ID:           "tpl1",
			Name:         "weekly-recap",
			SystemPrompt: "recap prompt",
			Sections:     []model.TemplateSection{{Name: "recap", Instructions: "recap it"}},
		},
	}}
	resolver := NewTemplateResolver(store)
	tpl, err := resolver.Resolve(context.Background(), "tpl1", model.OutputTypeSummary)
	require.NoError(t, err)
	require.Equal(t, "weekly-recap", tpl.Name)
	require.Equal(t, "recap prompt", tpl.SystemPrompt)
}

func TestResolve_RejectsEmptySections(t *testing.T) {
	store := &fakeTemplateStore{templates: map[string]*model.OutputTemplate{
		"bad": {ID: "bad", Name: "bad", SystemPrompt: "p"},
	}}
	resolver := NewTemplateResolver(store)
	_, err := resolver.Resolve(context.Background(), "bad", model.OutputTypeSummary)
	require.ErrorIs(t, err, apperr.ErrTemplateValidation)
}

func TestResolve_RejectsInvertedLengthBounds(t *testing.T) {
	store := &fakeTemplateStore{templates: map[string]*model.OutputTemplate{
		"bad": {
			ID:   "bad",
			Name: "bad",
			Sections: []model.TemplateSection{
				{Name: "s", Instructions: "i", MinLength: 500, MaxLength: 100},
			},
		},
	}}
	resolver := NewTemplateResolver(store)
	_, err := resolver.Resolve(context.Background(), "bad", model.OutputTypeSummary)
	require.ErrorIs(t, err, apperr.ErrTemplateValidation)
}

func TestBuiltinTemplates_CoverAllOutputTypes(t *testing.T) {
	for _, outputType := range []string{
		model.OutputTypeSummary,
		model.OutputTypeBlogPost,
		model.OutputTypeBriefing,
		model.OutputTypeMindMap,
		model.OutputTypeQA,
		"something-new",
	} {
		tpl := builtinTemplate(outputType)
		require.NotEmpty(t, tpl.SystemPrompt, outputType)
		require.NotEmpty(t, tpl.Sections, outputType)
	}
}
