package rag

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quirehq/quire/internal/ai"
	"github.com/quirehq/quire/internal/model"
	apperr "github.com/quirehq/quire/internal/pkg/errors"
)

func newTestOrchestrator(outputs *fakeOutputStore, index *fakeIndex, llm *fakeLLM) *Orchestrator {
	sources := &fakeSourceStore{sources: []*model.Source{
		{ID: "src", NotebookID: "nb1", Name: "doc"},
	}}
	o := NewOrchestrator(
		outputs,
		sources,
		NewEngine(index),
		NewTemplateResolver(&fakeTemplateStore{}),
		NewAssembler(charCounter{}, AssemblerConfig{}),
		llm,
		OrchestratorConfig{MaxAttempts: 3},
	)
	o.sleep = noSleep
	return o
}

func indexWithHits() *fakeIndex {
	index := newFakeIndex()
	index.hits = []IndexHit{
		{SourceID: "src", SourceName: "doc", ChunkIndex: 0, Text: "the fact", Distance: 0.1},
	}
	return index
}

func TestGenerate_CompletesWithCitations(t *testing.T) {
	outputs := newFakeOutputStore()
	llm := &fakeLLM{responses: []string{"A summary citing [Ssrc:0]."}}
	o := newTestOrchestrator(outputs, indexWithHits(), llm)

	out, err := o.Generate(context.Background(), model.GenerationRequest{
		NotebookID: "nb1",
		OutputType: model.OutputTypeSummary,
		MaxSources: -1,
		MaxTokens:  4096,
	})
	require.NoError(t, err)
	require.Equal(t, model.OutputStatusCompleted, out.Status)
	require.Equal(t, 1, out.Version)
	require.Equal(t, []string{"src"}, out.SourceRefs)
	require.Equal(t, 4, out.WordCount)
	require.NotZero(t, out.GeneratedAt)

	stored, err := outputs.Get(context.Background(), out.ID)
	require.NoError(t, err)
	require.Equal(t, model.OutputStatusCompleted, stored.Status)
}

func TestGenerate_NonTransientFailureIsTerminal(t *testing.T) {
	outputs := newFakeOutputStore()
	llm := &fakeLLM{errs: []error{fmt.Errorf("invalid api key")}}
	o := newTestOrchestrator(outputs, indexWithHits(), llm)

	out, err := o.Generate(context.Background(), model.GenerationRequest{
		NotebookID: "nb1",
		MaxSources: -1,
		MaxTokens:  4096,
	})
	require.NoError(t, err)
	require.Equal(t, model.OutputStatusFailed, out.Status)
	require.NotEmpty(t, out.LastError)
	require.Empty(t, out.Content)
	// Only one call: non-transient errors are never retried.
	require.Equal(t, 1, llm.calls)
}

func TestGenerate_TransientErrorsRetriedThenFail(t *testing.T) {
	outputs := newFakeOutputStore()
	llm := &fakeLLM{errs: []error{
		ai.Transient(fmt.Errorf("429")),
		ai.Transient(fmt.Errorf("503")),
		ai.Transient(fmt.Errorf("timeout")),
	}}
	o := newTestOrchestrator(outputs, indexWithHits(), llm)

	out, err := o.Generate(context.Background(), model.GenerationRequest{
		NotebookID: "nb1",
		MaxSources: -1,
		MaxTokens:  4096,
	})
	require.NoError(t, err)
	require.Equal(t, model.OutputStatusFailed, out.Status)
	require.Equal(t, 3, llm.calls)
}

func TestGenerate_TransientThenSuccess(t *testing.T) {
	outputs := newFakeOutputStore()
	llm := &fakeLLM{
		errs:      []error{ai.Transient(fmt.Errorf("429")), nil},
		responses: []string{"", "Recovered answer [Ssrc:0]."},
	}
	o := newTestOrchestrator(outputs, indexWithHits(), llm)

	out, err := o.Generate(context.Background(), model.GenerationRequest{
		NotebookID: "nb1",
		MaxSources: -1,
		MaxTokens:  4096,
	})
	require.NoError(t, err)
	require.Equal(t, model.OutputStatusCompleted, out.Status)
	require.Equal(t, 2, llm.calls)
}

func TestGenerate_ZeroMaxSourcesNoCustomPrompt(t *testing.T) {
	outputs := newFakeOutputStore()
	llm := &fakeLLM{}
	o := newTestOrchestrator(outputs, indexWithHits(), llm)

	_, err := o.Generate(context.Background(), model.GenerationRequest{
		NotebookID: "nb1",
		MaxSources: 0,
		MaxTokens:  4096,
	})
	require.ErrorIs(t, err, apperr.ErrEmptyContext)
	require.Zero(t, llm.calls)

	// The claimed output must still have reached a terminal state.
	var stored *model.Output
	for _, out := range outputs.outputs {
		stored = out
	}
	require.NotNil(t, stored)
	require.Equal(t, model.OutputStatusFailed, stored.Status)
}

func TestGenerate_RetrievalFailureFailsClaimedOutput(t *testing.T) {
	outputs := newFakeOutputStore()
	index := newFakeIndex()
	index.queryEr = fmt.Errorf("index offline")
	llm := &fakeLLM{}
	o := newTestOrchestrator(outputs, index, llm)

	_, err := o.Generate(context.Background(), model.GenerationRequest{
		NotebookID: "nb1",
		MaxSources: -1,
		MaxTokens:  4096,
	})
	require.ErrorIs(t, err, apperr.ErrRetrieval)
	require.Zero(t, llm.calls)

	// The claimed output must not stay GENERATING for the sweep to find.
	for _, out := range outputs.outputs {
		require.Equal(t, model.OutputStatusFailed, out.Status)
		require.NotEmpty(t, out.LastError)
	}
}

func TestGenerate_RequiresNotebookID(t *testing.T) {
	o := newTestOrchestrator(newFakeOutputStore(), indexWithHits(), &fakeLLM{})
	_, err := o.Generate(context.Background(), model.GenerationRequest{})
	require.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestRegenerate_IncrementsVersion(t *testing.T) {
	outputs := newFakeOutputStore()
	llm := &fakeLLM{responses: []string{"First [Ssrc:0].", "Second [Ssrc:0]."}}
	o := newTestOrchestrator(outputs, indexWithHits(), llm)

	first, err := o.Generate(context.Background(), model.GenerationRequest{
		NotebookID: "nb1",
		MaxSources: -1,
		MaxTokens:  4096,
	})
	require.NoError(t, err)
	require.Equal(t, 1, first.Version)

	second, err := o.Regenerate(context.Background(), first.ID, nil)
	require.NoError(t, err)
	require.Equal(t, 2, second.Version)
	require.Equal(t, "Second [Ssrc:0].", second.Content)
}

func TestRegenerate_OverridesReplayRequest(t *testing.T) {
	outputs := newFakeOutputStore()
	llm := &fakeLLM{responses: []string{"First [Ssrc:0].", "Second [Ssrc:0]."}}
	o := newTestOrchestrator(outputs, indexWithHits(), llm)

	first, err := o.Generate(context.Background(), model.GenerationRequest{
		NotebookID: "nb1",
		MaxSources: -1,
		MaxTokens:  4096,
	})
	require.NoError(t, err)

	tone := "formal"
	second, err := o.Regenerate(context.Background(), first.ID, &RegenerateOverrides{Tone: &tone})
	require.NoError(t, err)
	require.Equal(t, "formal", second.Request.Tone)
	// The replayed prompt carries the override.
	require.Contains(t, llm.prompts[1], "Tone: formal")
}

func TestRegenerate_ConflictWhileGenerating(t *testing.T) {
	outputs := newFakeOutputStore()
	require.NoError(t, outputs.Create(context.Background(), &model.Output{
		ID:         "out1",
		NotebookID: "nb1",
		OutputType: model.OutputTypeSummary,
		Status:     model.OutputStatusGenerating,
		Version:    1,
		Request:    model.GenerationRequest{NotebookID: "nb1", MaxSources: -1},
	}))
	o := newTestOrchestrator(outputs, indexWithHits(), &fakeLLM{})

	_, err := o.Regenerate(context.Background(), "out1", nil)
	require.ErrorIs(t, err, apperr.ErrConflict)
}

func TestGenerate_CancellationLeavesGenerating(t *testing.T) {
	outputs := newFakeOutputStore()
	llm := &fakeLLM{errs: []error{ai.Transient(fmt.Errorf("slow"))}}
	o := newTestOrchestrator(outputs, indexWithHits(), llm)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Generate(ctx, model.GenerationRequest{
		NotebookID: "nb1",
		MaxSources: -1,
		MaxTokens:  4096,
	})
	require.ErrorIs(t, err, context.Canceled)

	for _, out := range outputs.outputs {
		require.Equal(t, model.OutputStatusGenerating, out.Status)
	}
}
