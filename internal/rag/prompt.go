package rag

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/quirehq/quire/internal/model"
	apperr "github.com/quirehq/quire/internal/pkg/errors"
)

const (
	defaultReservedCompletion = 1024
	defaultMaxTokens          = 8192
)

// TokenCounter estimates prompt size in provider token units.
type TokenCounter interface {
	CountTokens(text string) int
}

type AssemblerConfig struct {
	ReservedCompletion int
	DefaultMaxTokens   int
}

// Assembler builds token-budgeted prompts from retrieved excerpts. Excerpts
// are admitted whole, in relevance order, until the next one would exceed
// the budget; a prompt is never truncated mid-excerpt.
type Assembler struct {
	counter TokenCounter
	cfg     AssemblerConfig
}

func NewAssembler(counter TokenCounter, cfg AssemblerConfig) *Assembler {
	if cfg.ReservedCompletion <= 0 {
		cfg.ReservedCompletion = defaultReservedCompletion
	}
	if cfg.DefaultMaxTokens <= 0 {
		cfg.DefaultMaxTokens = defaultMaxTokens
	}
	return &Assembler{counter: counter, cfg: cfg}
}

type PromptExcerpt struct {
	Marker         string
	SourceID       string
	SourceName     string
	ChunkIndex     int
	RelevanceScore float64
	Text           string
}

type Prompt struct {
	System          string
	Text            string
	EstimatedTokens int
	MaxTokens       int
	Excerpts        []PromptExcerpt
}

// CitationMarker is the stable tag prepended to each excerpt so citations
// the model echoes back can be mapped to concrete sources.
func CitationMarker(sourceID string, chunkIndex int) string {
	return fmt.Sprintf("[S%s:%d]", sourceID, chunkIndex)
}

// Assemble builds the prompt. The segment order is a contract: template
// base prompt, section instructions, tone and length directives, the user's
// custom prompt, then source excerpts. Changing it changes model behavior.
func (a *Assembler) Assemble(req model.GenerationRequest, retrieved []model.RetrievalResult, tpl *ResolvedTemplate) (*Prompt, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = a.cfg.DefaultMaxTokens
	}

	var instr strings.Builder
	instr.WriteString(tpl.SystemPrompt)
	instr.WriteString("\n\n")
	for _, section := range tpl.Sections {
		instr.WriteString("## ")
		instr.WriteString(section.Name)
		instr.WriteString("\n")
		instr.WriteString(section.Instructions)
		if hint := lengthHint(section); hint != "" {
			instr.WriteString(" ")
			instr.WriteString(hint)
		}
		instr.WriteString("\n\n")
	}
	if req.Tone != "" {
		instr.WriteString("Tone: ")
		instr.WriteString(req.Tone)
		instr.WriteString("\n")
	}
	if req.TargetLength != "" {
		instr.WriteString("Target length: ")
		instr.WriteString(req.TargetLength)
		instr.WriteString("\n")
	}
	customPrompt := strings.TrimSpace(req.CustomPrompt)
	if customPrompt != "" {
		instr.WriteString("\nUSER INSTRUCTIONS:\n")
		instr.WriteString(customPrompt)
		instr.WriteString("\n")
	}
	instr.WriteString("\nSOURCE EXCERPTS:\n")
	instrText := instr.String()
	instrTokens := a.counter.CountTokens(instrText)

	// The instruction segment must fit the budget on its own; otherwise the
	// prompt would already overflow before any excerpt is admitted.
	promptBudget := maxTokens - a.cfg.ReservedCompletion
	if instrTokens > promptBudget {
		return nil, fmt.Errorf("%w: instructions use %d tokens, prompt budget is %d", apperr.ErrInvalid, instrTokens, promptBudget)
	}
	budget := promptBudget - instrTokens
	var (
		excerpts   []PromptExcerpt
		excerptBuf strings.Builder
		usedTokens int
	)
	for _, r := range retrieved {
		marker := CitationMarker(r.SourceID, r.ChunkIndex)
		block := marker + "\n" + r.Text + "\n\n"
		tokens := a.counter.CountTokens(block)
		if usedTokens+tokens > budget {
			break
		}
		excerptBuf.WriteString(block)
		usedTokens += tokens
		excerpts = append(excerpts, PromptExcerpt{
			Marker:         marker,
			SourceID:       r.SourceID,
			SourceName:     r.SourceName,
			ChunkIndex:     r.ChunkIndex,
			RelevanceScore: r.RelevanceScore,
			Text:           r.Text,
		})
	}
	if len(excerpts) == 0 && customPrompt == "" {
		return nil, fmt.Errorf("%w: no excerpts fit the token budget and no custom prompt was given", apperr.ErrEmptyContext)
	}

	text := instrText + excerptBuf.String()
	return &Prompt{
		System:          tpl.SystemPrompt,
		Text:            text,
		EstimatedTokens: instrTokens + usedTokens,
		MaxTokens:       maxTokens,
		Excerpts:        excerpts,
	}, nil
}

func lengthHint(section model.TemplateSection) string {
	switch {
	case section.MinLength > 0 && section.MaxLength > 0:
		return fmt.Sprintf("(between %d and %d words)", section.MinLength, section.MaxLength)
	case section.MinLength > 0:
		return fmt.Sprintf("(at least %d words)", section.MinLength)
	case section.MaxLength > 0:
		return fmt.Sprintf("(at most %d words)", section.MaxLength)
	default:
		return ""
	}
}

var citationRe = regexp.MustCompile(`\[S([^\[\]:]+):(\d+)\]`)

// MatchCitations scans generated content for citation markers and maps
// them back to the excerpts this prompt actually contained. Markers that
// do not correspond to an included excerpt are counted as unmatched, never
// guessed at.
func (p *Prompt) MatchCitations(content string) (cited []PromptExcerpt, unmatched int) {
	byMarker := make(map[string]PromptExcerpt, len(p.Excerpts))
	for _, e := range p.Excerpts {
		byMarker[e.Marker] = e
	}
	seen := make(map[string]struct{})
	for _, match := range citationRe.FindAllStringSubmatch(content, -1) {
		marker := match[0]
		if _, dup := seen[marker]; dup {
			continue
		}
		seen[marker] = struct{}{}
		if e, ok := byMarker[marker]; ok {
			cited = append(cited, e)
		} else {
			unmatched++
		}
	}
	return cited, unmatched
}
