package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quirehq/quire/internal/model"
	apperr "github.com/quirehq/quire/internal/pkg/errors"
)

// charCounter makes the budget arithmetic exact: one token per byte.
type charCounter struct{}

func (charCounter) CountTokens(text string) int { return len(text) }

func summaryTemplate() *ResolvedTemplate {
	return builtinTemplate(model.OutputTypeSummary)
}

func someResults(texts ...string) []model.RetrievalResult {
	results := make([]model.RetrievalResult, 0, len(texts))
	for i, text := range texts {
		results = append(results, model.RetrievalResult{
			SourceID:       "src",
			SourceName:     "doc",
			ChunkIndex:     i,
			Text:           text,
			RelevanceScore: 1.0 - float64(i)*0.1,
		})
	}
	return results
}

func TestAssemble_Deterministic(t *testing.T) {
	assembler := NewAssembler(charCounter{}, AssemblerConfig{})
	req := model.GenerationRequest{Tone: "formal", TargetLength: "short", MaxTokens: 4096}
	results := someResults("first excerpt", "second excerpt")

	p1, err := assembler.Assemble(req, results, summaryTemplate())
	require.NoError(t, err)
	p2, err := assembler.Assemble(req, results, summaryTemplate())
	require.NoError(t, err)
	require.Equal(t, p1.Text, p2.Text)
	require.Equal(t, p1.EstimatedTokens, p2.EstimatedTokens)
}

func TestAssemble_SegmentOrder(t *testing.T) {
	assembler := NewAssembler(charCounter{}, AssemblerConfig{})
	req := model.GenerationRequest{
		Tone:         "casual",
		TargetLength: "about 500 words",
		CustomPrompt: "Focus on the second chapter.",
		MaxTokens:    8192,
	}
	prompt, err := assembler.Assemble(req, someResults("the excerpt body"), summaryTemplate())
	require.NoError(t, err)

	text := prompt.Text
	idxSystem := strings.Index(text, summaryTemplate().SystemPrompt)
	idxSection := strings.Index(text, "## summary")
	idxTone := strings.Index(text, "Tone: casual")
	idxLength := strings.Index(text, "Target length: about 500 words")
	idxCustom := strings.Index(text, "USER INSTRUCTIONS:\nFocus on the second chapter.")
	idxExcerpts := strings.Index(text, "SOURCE EXCERPTS:")
	idxMarker := strings.Index(text, "[Ssrc:0]\nthe excerpt body")

	require.True(t, idxSystem == 0)
	require.True(t, idxSystem < idxSection)
	require.True(t, idxSection < idxTone)
	require.True(t, idxTone < idxLength)
	require.True(t, idxLength < idxCustom)
	require.True(t, idxCustom < idxExcerpts)
	require.True(t, idxExcerpts < idxMarker)
}

func TestAssemble_WholeExcerptAdmission(t *testing.T) {
	assembler := NewAssembler(charCounter{}, AssemblerConfig{ReservedCompletion: 10})
	tpl := &ResolvedTemplate{
		Name:         "tiny",
		SystemPrompt: "sys",
		Sections:     []model.TemplateSection{{Name: "s", Instructions: "i"}},
	}
	// Instruction text: "sys\n\n## s\ni\n\n\nSOURCE EXCERPTS:\n" = 31 chars.
	// Budget = 200 - 10 - 31 = 159 tokens for excerpts.
	big := strings.Repeat("z", 120)   // block = 9 + 120 + 2 = 131
	second := strings.Repeat("y", 50) // block = 61, 131+61 > 159
	req := model.GenerationRequest{MaxTokens: 200}

	prompt, err := assembler.Assemble(req, someResults(big, second), tpl)
	require.NoError(t, err)
	require.Len(t, prompt.Excerpts, 1)
	require.Equal(t, big, prompt.Excerpts[0].Text)
	require.NotContains(t, prompt.Text, second)
}

func TestAssemble_EmptyContext(t *testing.T) {
	assembler := NewAssembler(charCounter{}, AssemblerConfig{})
	req := model.GenerationRequest{MaxTokens: 4096}

	_, err := assembler.Assemble(req, nil, summaryTemplate())
	require.ErrorIs(t, err, apperr.ErrEmptyContext)
}

func TestAssemble_CustomPromptSurvivesEmptyRetrieval(t *testing.T) {
	assembler := NewAssembler(charCounter{}, AssemblerConfig{})
	req := model.GenerationRequest{CustomPrompt: "Write a haiku about databases.", MaxTokens: 4096}

	prompt, err := assembler.Assemble(req, nil, summaryTemplate())
	require.NoError(t, err)
	require.Empty(t, prompt.Excerpts)
	require.Contains(t, prompt.Text, "Write a haiku about databases.")
}

func TestAssemble_RejectsOversizedInstructions(t *testing.T) {
	assembler := NewAssembler(charCounter{}, AssemblerConfig{ReservedCompletion: 10})
	req := model.GenerationRequest{
		CustomPrompt: strings.Repeat("p", 200),
		MaxTokens:    50,
	}
	_, err := assembler.Assemble(req, someResults("the excerpt"), summaryTemplate())
	require.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestAssemble_EstimateNeverExceedsBudget(t *testing.T) {
	assembler := NewAssembler(charCounter{}, AssemblerConfig{ReservedCompletion: 10})
	tpl := &ResolvedTemplate{
		Name:         "tiny",
		SystemPrompt: "sys",
		Sections:     []model.TemplateSection{{Name: "s", Instructions: "i"}},
	}
	// Instruction text is 31 chars, each excerpt block is 15, so only three
	// of the five excerpts fit inside 100 - 10 - 31 = 59.
	req := model.GenerationRequest{MaxTokens: 100}

	prompt, err := assembler.Assemble(req, someResults("aaaa", "bbbb", "cccc", "dddd", "eeee"), tpl)
	require.NoError(t, err)
	require.Len(t, prompt.Excerpts, 3)
	require.LessOrEqual(t, prompt.EstimatedTokens, req.MaxTokens-10)
}

func TestCitationMarker(t *testing.T) {
	require.Equal(t, "[Sabc:3]", CitationMarker("abc", 3))
}

func TestMatchCitations(t *testing.T) {
	assembler := NewAssembler(charCounter{}, AssemblerConfig{})
	req := model.GenerationRequest{MaxTokens: 8192}
	prompt, err := assembler.Assemble(req, someResults("one", "two"), summaryTemplate())
	require.NoError(t, err)

	content := "Claim [Ssrc:0]. Another claim [Ssrc:0] again, plus [Ssrc:9] which was never included."
	cited, unmatched := prompt.MatchCitations(content)
	require.Len(t, cited, 1)
	require.Equal(t, 0, cited[0].ChunkIndex)
	require.Equal(t, 1, unmatched)
}

func TestMatchCitations_NoMarkers(t *testing.T) {
	assembler := NewAssembler(charCounter{}, AssemblerConfig{})
	prompt, err := assembler.Assemble(model.GenerationRequest{MaxTokens: 8192}, someResults("one"), summaryTemplate())
	require.NoError(t, err)

	cited, unmatched := prompt.MatchCitations("no citations here")
	require.Empty(t, cited)
	require.Zero(t, unmatched)
}
