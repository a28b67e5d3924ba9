package rag

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/quirehq/quire/internal/ai"
	"github.com/quirehq/quire/internal/model"
	apperr "github.com/quirehq/quire/internal/pkg/errors"
	"github.com/quirehq/quire/internal/pkg/logutil"
	"github.com/quirehq/quire/internal/pkg/timeutil"
)

type OrchestratorConfig struct {
	// MaxAttempts bounds LLM calls per generation; only transient provider
	// failures are retried, with exponential backoff between attempts.
	MaxAttempts int
	BackoffBase time.Duration
	CallTimeout time.Duration
	// DefaultMaxSources caps distinct cited sources when the request leaves
	// MaxSources negative. Zero in the request means literally zero.
	DefaultMaxSources int
	// RetrievalFan is how many chunks are fetched per allowed source slot.
	RetrievalFan int
}

func (c OrchestratorConfig) normalized() OrchestratorConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 500 * time.Millisecond
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 120 * time.Second
	}
	if c.DefaultMaxSources <= 0 {
		c.DefaultMaxSources = 10
	}
	if c.RetrievalFan <= 0 {
		c.RetrievalFan = 4
	}
	return c
}

// Orchestrator drives the output state machine: DRAFT -> GENERATING ->
// {COMPLETED, FAILED}, with regenerate re-entering GENERATING from a
// terminal state at version+1. The GENERATING transition is persisted
// before the LLM is called so a crash leaves a durable record for the
// reconciliation sweep instead of silently losing the request.
type Orchestrator struct {
	outputs   OutputStore
	sources   SourceStore
	retrieval *Engine
	templates *TemplateResolver
	assembler *Assembler
	llm       ai.LlmProvider
	cfg       OrchestratorConfig

	sleep func(ctx context.Context, d time.Duration) error
}

func NewOrchestrator(
	outputs OutputStore,
	sources SourceStore,
	retrieval *Engine,
	templates *TemplateResolver,
	assembler *Assembler,
	llm ai.LlmProvider,
	cfg OrchestratorConfig,
) *Orchestrator {
	return &Orchestrator{
		outputs:   outputs,
		sources:   sources,
		retrieval: retrieval,
		templates: templates,
		assembler: assembler,
		llm:       llm,
		cfg:       cfg.normalized(),
		sleep:     sleepCtx,
	}
}

// Generate creates a new output for the request and runs generation to a
// terminal state. A generation that exhausts its retries is a normal
// business outcome: the output comes back FAILED, not as an error.
func (o *Orchestrator) Generate(ctx context.Context, req model.GenerationRequest) (*model.Output, error) {
	if strings.TrimSpace(req.NotebookID) == "" {
		return nil, fmt.Errorf("%w: notebook_id is required", apperr.ErrInvalid)
	}
	if req.OutputType == "" {
		req.OutputType = model.OutputTypeSummary
	}
	tpl, err := o.templates.Resolve(ctx, req.TemplateID, req.OutputType)
	if err != nil {
		return nil, err
	}

	now := timeutil.NowUnix()
	output := &model.Output{
		ID:         newID(),
		NotebookID: req.NotebookID,
		Title:      outputTitle(req),
		OutputType: req.OutputType,
		Status:     model.OutputStatusDraft,
		Version:    1,
		Request:    req,
		State:      model.StateNormal,
		Ctime:      now,
		Mtime:      now,
	}
	if err := o.outputs.Create(ctx, output); err != nil {
		return nil, err
	}
	claimed, err := o.outputs.ClaimGenerating(ctx, output.ID)
	if err != nil {
		return nil, err
	}
	return o.run(ctx, claimed, tpl)
}

// RegenerateOverrides replaces individual request fields on regenerate;
// nil fields keep the stored value.
type RegenerateOverrides struct {
	TemplateID   *string
	CustomPrompt *string
	Tone         *string
	TargetLength *string
	MaxSources   *int
	Temperature  *float32
	MaxTokens    *int
	SourceIDs    []string
}

// Regenerate re-runs generation for an existing output. Exactly one
// regeneration can be in flight per output id: a concurrent call observes
// ErrConflict instead of queueing. The version always increments, even
// when the model returns identical content.
func (o *Orchestrator) Regenerate(ctx context.Context, outputID string, overrides *RegenerateOverrides) (*model.Output, error) {
	existing, err := o.outputs.Get(ctx, outputID)
	if err != nil {
		return nil, err
	}
	req := existing.Request
	req.NotebookID = existing.NotebookID
	req.OutputType = existing.OutputType
	applyOverrides(&req, overrides)

	tpl, err := o.templates.Resolve(ctx, req.TemplateID, req.OutputType)
	if err != nil {
		return nil, err
	}
	claimed, err := o.outputs.ClaimGenerating(ctx, outputID)
	if err != nil {
		return nil, err
	}
	claimed.Request = req
	return o.run(ctx, claimed, tpl)
}

func (o *Orchestrator) run(ctx context.Context, output *model.Output, tpl *ResolvedTemplate) (*model.Output, error) {
	logger := logutil.GetLogger(ctx).With(
		zap.String("output_id", output.ID),
		zap.String("notebook_id", output.NotebookID),
		zap.String("output_type", output.OutputType),
		zap.Int("version", output.Version),
	)
	req := output.Request

	allowed, err := o.allowedSources(ctx, req)
	if err != nil {
		o.failClaim(ctx, output.ID, err)
		return nil, err
	}
	retrieved, err := o.retrieveForRequest(ctx, req, tpl, allowed)
	if err != nil {
		o.failClaim(ctx, output.ID, err)
		return nil, err
	}
	prompt, err := o.assembler.Assemble(req, retrieved, tpl)
	if err != nil {
		o.failClaim(ctx, output.ID, err)
		return nil, err
	}
	logger.Info("prompt assembled",
		zap.Int("excerpts", len(prompt.Excerpts)),
		zap.Int("estimated_tokens", prompt.EstimatedTokens),
	)

	content, err := o.completeWithRetry(ctx, prompt.Text, req.Temperature, req.MaxTokens)
	if err != nil {
		if ctx.Err() != nil {
			// Cooperative cancellation: abandon the call and leave the output
			// GENERATING for the reconciliation sweep.
			return nil, ctx.Err()
		}
		now := timeutil.NowUnix()
		if failErr := o.outputs.Fail(ctx, output.ID, err.Error(), now); failErr != nil {
			return nil, failErr
		}
		logger.Warn("generation failed", zap.Error(err))
		output.Status = model.OutputStatusFailed
		output.LastError = err.Error()
		output.Mtime = now
		return output, nil
	}

	cited, unmatched := prompt.MatchCitations(content)
	if unmatched > 0 {
		logger.Info("unmatched citation markers in output", zap.Int("unmatched", unmatched))
	}
	now := timeutil.NowUnix()
	output.Content = content
	output.SourceRefs = uniqueSourceIDs(cited)
	output.WordCount = len(strings.Fields(content))
	output.Status = model.OutputStatusCompleted
	output.LastError = ""
	output.GeneratedAt = now
	output.Mtime = now
	if err := o.outputs.Complete(ctx, output); err != nil {
		return nil, err
	}
	logger.Info("generation completed",
		zap.Int("word_count", output.WordCount),
		zap.Int("source_refs", len(output.SourceRefs)),
	)
	return output, nil
}

// failClaim moves a claimed output to FAILED when generation dies before
// the LLM call. These errors are surfaced to the caller synchronously, so
// the claim must not linger GENERATING until the reconciliation sweep.
func (o *Orchestrator) failClaim(ctx context.Context, id string, cause error) {
	if err := o.outputs.Fail(ctx, id, cause.Error(), timeutil.NowUnix()); err != nil {
		logutil.GetLogger(ctx).Warn("fail claimed output",
			zap.String("output_id", id),
			zap.Error(err),
		)
	}
}

// allowedSources resolves the request's source scope against the
// notebook's current non-deleted sources.
func (o *Orchestrator) allowedSources(ctx context.Context, req model.GenerationRequest) (map[string]struct{}, error) {
	var (
		srcs []*model.Source
		err  error
	)
	if len(req.SourceIDs) > 0 {
		srcs, err = o.sources.GetByIDs(ctx, req.NotebookID, req.SourceIDs)
	} else {
		srcs, err = o.sources.ListActive(ctx, req.NotebookID)
	}
	if err != nil {
		return nil, err
	}
	allowed := make(map[string]struct{}, len(srcs))
	for _, s := range srcs {
		allowed[s.ID] = struct{}{}
	}
	return allowed, nil
}

func (o *Orchestrator) retrieveForRequest(ctx context.Context, req model.GenerationRequest, tpl *ResolvedTemplate, allowed map[string]struct{}) ([]model.RetrievalResult, error) {
	maxSources := req.MaxSources
	if maxSources < 0 {
		maxSources = o.cfg.DefaultMaxSources
	}
	if maxSources == 0 {
		return nil, nil
	}
	query := retrievalQuery(req, tpl)
	results, err := o.retrieval.Search(ctx, req.NotebookID, query, maxSources*o.cfg.RetrievalFan, 0.0)
	if err != nil {
		return nil, err
	}

	distinct := make(map[string]struct{})
	filtered := results[:0]
	for _, r := range results {
		if _, ok := allowed[r.SourceID]; !ok {
			continue
		}
		if _, ok := distinct[r.SourceID]; !ok {
			if len(distinct) >= maxSources {
				continue
			}
			distinct[r.SourceID] = struct{}{}
		}
		filtered = append(filtered, r)
	}
	return filtered, nil
}

// retrievalQuery derives the similarity query: the user's custom prompt
// when present, otherwise the template's joined section instructions.
func retrievalQuery(req model.GenerationRequest, tpl *ResolvedTemplate) string {
	if q := strings.TrimSpace(req.CustomPrompt); q != "" {
		return q
	}
	parts := make([]string, 0, len(tpl.Sections)+1)
	if req.Title != "" {
		parts = append(parts, req.Title)
	}
	for _, s := range tpl.Sections {
		parts = append(parts, s.Instructions)
	}
	return strings.Join(parts, " ")
}

func (o *Orchestrator) completeWithRetry(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, error) {
	return completeWithRetry(ctx, o.llm, o.cfg, o.sleep, prompt, temperature, maxTokens)
}

// completeWithRetry runs one bounded retry loop against the LLM. Only
// transient failures (timeouts, rate limits, 5xx) are retried; everything
// else fails immediately. Parent context cancellation aborts the loop
// without consuming the remaining attempts.
func completeWithRetry(
	ctx context.Context,
	llm ai.LlmProvider,
	cfg OrchestratorConfig,
	sleep func(ctx context.Context, d time.Duration) error,
	prompt string,
	temperature float32,
	maxTokens int,
) (string, error) {
	logger := logutil.GetLogger(ctx)
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, cfg.CallTimeout)
		text, err := llm.Complete(callCtx, prompt, temperature, maxTokens)
		cancel()
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
		if err == nil {
			err = fmt.Errorf("empty completion")
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !ai.IsTransient(err) {
			break
		}
		if attempt < cfg.MaxAttempts {
			backoff := cfg.BackoffBase << (attempt - 1)
			logger.Warn("llm call failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(err),
			)
			if err := sleep(ctx, backoff); err != nil {
				return "", err
			}
		}
	}
	return "", fmt.Errorf("%w: %v", apperr.ErrGeneration, lastErr)
}

func applyOverrides(req *model.GenerationRequest, overrides *RegenerateOverrides) {
	if overrides == nil {
		return
	}
	if overrides.TemplateID != nil {
		req.TemplateID = *overrides.TemplateID
	}
	if overrides.CustomPrompt != nil {
		req.CustomPrompt = *overrides.CustomPrompt
	}
	if overrides.Tone != nil {
		req.Tone = *overrides.Tone
	}
	if overrides.TargetLength != nil {
		req.TargetLength = *overrides.TargetLength
	}
	if overrides.MaxSources != nil {
		req.MaxSources = *overrides.MaxSources
	}
	if overrides.Temperature != nil {
		req.Temperature = *overrides.Temperature
	}
	if overrides.MaxTokens != nil {
		req.MaxTokens = *overrides.MaxTokens
	}
	if overrides.SourceIDs != nil {
		req.SourceIDs = overrides.SourceIDs
	}
}

func outputTitle(req model.GenerationRequest) string {
	if strings.TrimSpace(req.Title) != "" {
		return strings.TrimSpace(req.Title)
	}
	switch req.OutputType {
	case model.OutputTypeBlogPost:
		return "Untitled blog post"
	case model.OutputTypeBriefing:
		return "Untitled briefing"
	case model.OutputTypeMindMap:
		return "Untitled mind map"
	default:
		return "Untitled " + req.OutputType
	}
}

func uniqueSourceIDs(excerpts []PromptExcerpt) []string {
	seen := make(map[string]struct{}, len(excerpts))
	ids := make([]string, 0, len(excerpts))
	for _, e := range excerpts {
		if _, ok := seen[e.SourceID]; ok {
			continue
		}
		seen[e.SourceID] = struct{}{}
		ids = append(ids, e.SourceID)
	}
	return ids
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func newID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
