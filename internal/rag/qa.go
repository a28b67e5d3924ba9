package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/quirehq/quire/internal/ai"
	"github.com/quirehq/quire/internal/model"
	apperr "github.com/quirehq/quire/internal/pkg/errors"
	"github.com/quirehq/quire/internal/pkg/logutil"
)

const (
	defaultQaMaxSources = 5

	// noAnswerText distinguishes "the notebook has nothing relevant" from a
	// system failure; the former is a normal answer with zero confidence.
	noAnswerText = "No relevant information was found in this notebook's sources."
)

// Synthesizer is the single-turn question answering path: retrieve, ground,
// answer, cite, score.
type Synthesizer struct {
	retrieval *Engine
	assembler *Assembler
	llm       ai.LlmProvider
	cfg       OrchestratorConfig

	sleep func(ctx context.Context, d time.Duration) error
}

func NewSynthesizer(retrieval *Engine, assembler *Assembler, llm ai.LlmProvider, cfg OrchestratorConfig) *Synthesizer {
	return &Synthesizer{
		retrieval: retrieval,
		assembler: assembler,
		llm:       llm,
		cfg:       cfg.normalized(),
		sleep:     sleepCtx,
	}
}

type AskRequest struct {
	NotebookID  string
	Question    string
	MaxSources  int
	Temperature float32
	MaxTokens   int
}

// Ask answers a question using only indexed source material. Grounding is
// mandatory: with no relevant chunks the synthesizer answers "not found"
// with confidence 0.0 rather than letting the model speculate.
func (s *Synthesizer) Ask(ctx context.Context, req AskRequest) (*model.QaAnswer, error) {
	start := time.Now()
	question := strings.TrimSpace(req.Question)
	if strings.TrimSpace(req.NotebookID) == "" || question == "" {
		return nil, fmt.Errorf("%w: notebook_id and question are required", apperr.ErrInvalid)
	}
	maxSources := req.MaxSources
	if maxSources <= 0 {
		maxSources = defaultQaMaxSources
	}
	logger := logutil.GetLogger(ctx).With(zap.String("notebook_id", req.NotebookID))

	results, err := s.retrieval.Search(ctx, req.NotebookID, question, maxSources, 0.0)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		logger.Info("no relevant chunks for question")
		return noAnswer(question, start), nil
	}

	genReq := model.GenerationRequest{
		NotebookID:   req.NotebookID,
		OutputType:   model.OutputTypeQA,
		CustomPrompt: "Question: " + question,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
	}
	prompt, err := s.assembler.Assemble(genReq, results, builtinTemplate(model.OutputTypeQA))
	if err != nil {
		if apperr.IsEmptyContext(err) {
			return noAnswer(question, start), nil
		}
		return nil, err
	}
	if len(prompt.Excerpts) == 0 {
		// The question itself kept assembly alive, but nothing fit the budget.
		return noAnswer(question, start), nil
	}

	answer, err := completeWithRetry(ctx, s.llm, s.cfg, s.sleep, prompt.Text, req.Temperature, req.MaxTokens)
	if err != nil {
		return nil, err
	}

	cited, unmatched := prompt.MatchCitations(answer)
	qa := &model.QaAnswer{
		Question:         question,
		Answer:           answer,
		Sources:          make([]model.QaSourceItem, 0, len(cited)),
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}
	for _, e := range cited {
		qa.Sources = append(qa.Sources, model.QaSourceItem{
			Text:           e.Text,
			SourceID:       e.SourceID,
			ChunkIndex:     e.ChunkIndex,
			RelevanceScore: e.RelevanceScore,
		})
	}
	qa.ConfidenceScore = confidence(cited, unmatched)
	return qa, nil
}

func noAnswer(question string, start time.Time) *model.QaAnswer {
	zero := 0.0
	return &model.QaAnswer{
		Question:         question,
		Answer:           noAnswerText,
		Sources:          []model.QaSourceItem{},
		ConfidenceScore:  &zero,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}
}

// confidence is the mean relevance of matched citations, scaled down by
// the share of markers that could not be mapped back to an excerpt.
// An answer with no citation markers at all has no confidence score.
func confidence(cited []PromptExcerpt, unmatched int) *float64 {
	total := len(cited) + unmatched
	if total == 0 {
		return nil
	}
	if len(cited) == 0 {
		zero := 0.0
		return &zero
	}
	var sum float64
	for _, e := range cited {
		sum += e.RelevanceScore
	}
	score := (sum / float64(len(cited))) * (float64(len(cited)) / float64(total))
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return &score
}
