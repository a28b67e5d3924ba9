package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quirehq/quire/internal/model"
	apperr "github.com/quirehq/quire/internal/pkg/errors"
)

func TestValidateTemplate_RequiresName(t *testing.T) {
	err := validateTemplate(&model.OutputTemplate{
		Sections: []model.TemplateSection{{Name: "s", Instructions: "i"}},
	})
	require.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestValidateTemplate_RequiresSections(t *testing.T) {
	err := validateTemplate(&model.OutputTemplate{Name: "t"})
	require.ErrorIs(t, err, apperr.ErrTemplateValidation)
}

func TestValidateTemplate_RejectsInvertedBounds(t *testing.T) {
	err := validateTemplate(&model.OutputTemplate{
		Name: "t",
		Sections: []model.TemplateSection{
			{Name: "s", Instructions: "i", MinLength: 300, MaxLength: 100},
		},
	})
	require.ErrorIs(t, err, apperr.ErrTemplateValidation)
}

func TestValidateTemplate_AcceptsValid(t *testing.T) {
	err := validateTemplate(&model.OutputTemplate{
		Name: "weekly-recap",
		Sections: []model.TemplateSection{
			{Name: "recap", Instructions: "summarize the week", MinLength: 100, MaxLength: 400},
		},
	})
	require.NoError(t, err)
}
