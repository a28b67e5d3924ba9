package rag

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/quirehq/quire/internal/model"
	apperr "github.com/quirehq/quire/internal/pkg/errors"
)

// fakeIndex serves canned hits and records upserted chunks in memory.
type fakeIndex struct {
	mu      sync.Mutex
	hits    []IndexHit
	queryEr error
	upsertE error
	stored  map[string][]model.Chunk // keyed by source id
	hashes  map[string]string
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		stored: make(map[string][]model.Chunk),
		hashes: make(map[string]string),
	}
}

func (f *fakeIndex) Upsert(ctx context.Context, notebookID string, source *model.Source, chunks []model.Chunk) error {
	if f.upsertE != nil {
		return f.upsertE
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored[source.ID] = chunks
	f.hashes[source.ID] = source.ContentHash
	return nil
}

func (f *fakeIndex) Query(ctx context.Context, notebookID string, query string, limit int) ([]IndexHit, error) {
	if f.queryEr != nil {
		return nil, f.queryEr
	}
	if limit < len(f.hits) {
		return f.hits[:limit], nil
	}
	return f.hits, nil
}

func (f *fakeIndex) DeleteSource(ctx context.Context, notebookID, sourceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.stored, sourceID)
	delete(f.hashes, sourceID)
	return nil
}

func (f *fakeIndex) Delete(ctx context.Context, notebookID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = make(map[string][]model.Chunk)
	f.hashes = make(map[string]string)
	return nil
}

func (f *fakeIndex) Count(ctx context.Context, notebookID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, chunks := range f.stored {
		total += len(chunks)
	}
	return total, nil
}

func (f *fakeIndex) CountSource(ctx context.Context, notebookID, sourceID, contentHash string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hashes[sourceID] != contentHash {
		return 0, nil
	}
	return len(f.stored[sourceID]), nil
}

type fakeSourceStore struct {
	sources []*model.Source
}

func (f *fakeSourceStore) ListActive(ctx context.Context, notebookID string) ([]*model.Source, error) {
	return f.sources, nil
}

func (f *fakeSourceStore) GetByIDs(ctx context.Context, notebookID string, ids []string) ([]*model.Source, error) {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []*model.Source
	for _, s := range f.sources {
		if _, ok := want[s.ID]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// fakeOutputStore implements the conditional claim in memory.
type fakeOutputStore struct {
	mu      sync.Mutex
	outputs map[string]*model.Output
}

func newFakeOutputStore() *fakeOutputStore {
	return &fakeOutputStore{outputs: make(map[string]*model.Output)}
}

func (f *fakeOutputStore) clone(out *model.Output) *model.Output {
	c := *out
	return &c
}

func (f *fakeOutputStore) Get(ctx context.Context, id string) (*model.Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out, ok := f.outputs[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return f.clone(out), nil
}

func (f *fakeOutputStore) Create(ctx context.Context, output *model.Output) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.outputs[output.ID]; exists {
		return apperr.ErrConflict
	}
	f.outputs[output.ID] = f.clone(output)
	return nil
}

func (f *fakeOutputStore) ClaimGenerating(ctx context.Context, id string) (*model.Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out, ok := f.outputs[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if out.Status == model.OutputStatusGenerating {
		return nil, apperr.ErrConflict
	}
	if out.Status != model.OutputStatusDraft {
		out.Version++
	}
	out.Status = model.OutputStatusGenerating
	out.LastError = ""
	return f.clone(out), nil
}

func (f *fakeOutputStore) Complete(ctx context.Context, output *model.Output) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	out, ok := f.outputs[output.ID]
	if !ok {
		return nil
	}
	if out.Status != model.OutputStatusGenerating {
		return apperr.ErrConflict
	}
	f.outputs[output.ID] = f.clone(output)
	return nil
}

func (f *fakeOutputStore) Fail(ctx context.Context, id string, message string, mtime int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	out, ok := f.outputs[id]
	if !ok {
		return nil
	}
	if out.Status != model.OutputStatusGenerating {
		return apperr.ErrConflict
	}
	out.Status = model.OutputStatusFailed
	out.LastError = message
	out.Mtime = mtime
	return nil
}

// fakeLLM replays scripted responses; an empty script entry means error.
type fakeLLM struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) Complete(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if idx < len(f.errs) && f.errs[idx] != nil {
		return "", f.errs[idx]
	}
	if idx < len(f.responses) {
		return f.responses[idx], nil
	}
	return "", fmt.Errorf("no scripted response for call %d", idx)
}

func (f *fakeLLM) CountTokens(text string) int {
	return len([]rune(text)) / 4
}

type fakeTemplateStore struct {
	templates map[string]*model.OutputTemplate
}

func (f *fakeTemplateStore) GetByID(ctx context.Context, id string) (*model.OutputTemplate, error) {
	tpl, ok := f.templates[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return tpl, nil
}

func noSleep(ctx context.Context, d time.Duration) error { return nil }
