package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrUnavailable is returned when a provider is not configured.
var ErrUnavailable = errors.New("ai provider unavailable")

// LlmProvider is the completion contract consumed by the generation
// pipeline. CountTokens is used for prompt budgeting and must be cheap;
// providers that cannot count exactly fall back to EstimateTokens.
type LlmProvider interface {
	Name() string
	Complete(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, error)
	CountTokens(text string) int
}

// EmbedProvider turns text into vectors. taskType distinguishes document
// embeddings from query embeddings for providers that care.
type EmbedProvider interface {
	Name() string
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
	ModelName() string
}

const (
	TaskTypeDocument = "RETRIEVAL_DOCUMENT"
	TaskTypeQuery    = "RETRIEVAL_QUERY"
)

type transientError struct {
	err error
}

func (e *transientError) Error() string {
	return e.err.Error()
}

func (e *transientError) Unwrap() error {
	return e.err
}

// Transient marks err as retryable (timeouts, rate limits, 5xx).
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err is worth retrying with backoff.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *transientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// EstimateTokens is a cheap heuristic: one token per word for ASCII text,
// one per rune for CJK and other wide scripts.
func EstimateTokens(text string) int {
	count := 0
	for _, r := range text {
		if r > 127 {
			count++
		}
	}
	count += len(strings.Fields(text))
	if count == 0 && len(text) > 0 {
		return 1
	}
	return count
}

type LlmFactory func(args interface{}) (LlmProvider, error)
type EmbedFactory func(args interface{}) (EmbedProvider, error)

var (
	llmRegistry   = map[string]LlmFactory{}
	embedRegistry = map[string]EmbedFactory{}
)

func Register(name string, factory LlmFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	llmRegistry[key] = factory
}

func RegisterEmbed(name string, factory EmbedFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	embedRegistry[key] = factory
}

func NewLlmProvider(name string, args interface{}) (LlmProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	factory := llmRegistry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported ai provider: %s", name)
	}
	return factory(args)
}

func NewEmbedProvider(name string, args interface{}) (EmbedProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("ai.embed_provider is required")
	}
	factory := embedRegistry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported embed provider: %s", name)
	}
	return factory(args)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("ai provider config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode ai provider config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode ai provider config: %w", err)
	}
	return nil
}
