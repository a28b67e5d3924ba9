package rag

import (
	"context"
	"fmt"

	"github.com/quirehq/quire/internal/model"
	apperr "github.com/quirehq/quire/internal/pkg/errors"
)

// ResolvedTemplate is the instruction set handed to the prompt assembler:
// a base system prompt plus ordered section instructions.
type ResolvedTemplate struct {
	Name         string
	SystemPrompt string
	Sections     []model.TemplateSection
}

// TemplateResolver turns a template id (or just an output type) into a
// ResolvedTemplate. A missing template is never an error: the built-in
// default for the output type is used instead.
type TemplateResolver struct {
	store TemplateStore
}

func NewTemplateResolver(store TemplateStore) *TemplateResolver {
	return &TemplateResolver{store: store}
}

func (r *TemplateResolver) Resolve(ctx context.Context, templateID, outputType string) (*ResolvedTemplate, error) {
	if templateID == "" || r.store == nil {
		return builtinTemplate(outputType), nil
	}
	tpl, err := r.store.GetByID(ctx, templateID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return builtinTemplate(outputType), nil
		}
		return nil, err
	}
	resolved := &ResolvedTemplate{
		Name:         tpl.Name,
		SystemPrompt: tpl.SystemPrompt,
		Sections:     tpl.Sections,
	}
	if err := validateTemplate(resolved); err != nil {
		return nil, err
	}
	return resolved, nil
}

func validateTemplate(tpl *ResolvedTemplate) error {
	if len(tpl.Sections) == 0 {
		return fmt.Errorf("%w: template %q has no sections", apperr.ErrTemplateValidation, tpl.Name)
	}
	for _, section := range tpl.Sections {
		if section.MinLength > 0 && section.MaxLength > 0 && section.MinLength > section.MaxLength {
			return fmt.Errorf("%w: section %q: min_length %d exceeds max_length %d",
				apperr.ErrTemplateValidation, section.Name, section.MinLength, section.MaxLength)
		}
	}
	return nil
}

// builtinTemplate returns the default template for an output type. Unknown
// types fall through to the summary template.
func builtinTemplate(outputType string) *ResolvedTemplate {
	switch outputType {
	case model.OutputTypeBlogPost:
		return &ResolvedTemplate{
			Name:         "default-blog-post",
			SystemPrompt: "You are a writer producing a well-structured blog post grounded strictly in the provided source excerpts. Cite excerpts by repeating their markers.",
			Sections: []model.TemplateSection{
				{Name: "introduction", Instructions: "Open with a hook that frames the topic.", MaxLength: 150},
				{Name: "body", Instructions: "Develop the main points with evidence from the sources, one idea per paragraph."},
				{Name: "conclusion", Instructions: "Close with the key takeaway.", MaxLength: 120},
			},
		}
	case model.OutputTypeBriefing:
		return &ResolvedTemplate{
			Name:         "default-briefing",
			SystemPrompt: "You are an analyst writing an executive briefing grounded strictly in the provided source excerpts. Cite excerpts by repeating their markers.",
			Sections: []model.TemplateSection{
				{Name: "overview", Instructions: "Two or three sentences stating what this briefing covers.", MaxLength: 80},
				{Name: "key findings", Instructions: "Bullet the most important facts, each backed by a citation."},
				{Name: "implications", Instructions: "What the findings mean and what to watch next."},
			},
		}
	case model.OutputTypeMindMap:
		return &ResolvedTemplate{
			Name:         "default-mind-map",
			SystemPrompt: "You produce a hierarchical mind map as nested markdown lists, grounded strictly in the provided source excerpts. Cite excerpts by repeating their markers.",
			Sections: []model.TemplateSection{
				{Name: "map", Instructions: "One root node for the central topic, branches for major themes, leaves for supporting details."},
			},
		}
	case model.OutputTypeQA:
		return &ResolvedTemplate{
			Name:         "default-qa",
			SystemPrompt: "You answer questions using only the provided context. If the context does not contain the answer, say so. Cite excerpts by repeating their markers.",
			Sections: []model.TemplateSection{
				{Name: "answer", Instructions: "Answer the question using only the provided context."},
			},
		}
	default:
		return &ResolvedTemplate{
			Name:         "default-summary",
			SystemPrompt: "You summarize the provided source excerpts faithfully and concisely. Cite excerpts by repeating their markers.",
			Sections: []model.TemplateSection{
				{Name: "summary", Instructions: "Summarize the main points across all sources, most important first."},
			},
		}
	}
}
