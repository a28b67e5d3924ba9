package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/quirehq/quire/internal/ai"
	"github.com/quirehq/quire/internal/pkg/logutil"
)

// Wrap layers an in-memory LRU over an embed provider. Re-indexing with
// force=true replays identical chunk texts; the cache spares the provider
// those calls. Disabled when size or ttl is zero.
func Wrap(e ai.EmbedProvider, size int, ttl time.Duration) ai.EmbedProvider {
	if e == nil || size <= 0 || ttl <= 0 {
		return e
	}
	return &lruEmbedder{
		next:  e,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

type lruEmbedder struct {
	next  ai.EmbedProvider
	cache *expirable.LRU[string, []float32]
}

func (l *lruEmbedder) Name() string {
	return l.next.Name()
}

func (l *lruEmbedder) ModelName() string {
	return l.next.ModelName()
}

func (l *lruEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	key := cacheKey(l.next.ModelName(), taskType, text)
	if cached, ok := l.cache.Get(key); ok {
		logutil.GetLogger(ctx).Debug("embedding cache hit", zap.String("task_type", taskType))
		return cloneEmbedding(cached), nil
	}
	res, err := l.next.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	l.cache.Add(key, cloneEmbedding(res))
	return res, nil
}

func cacheKey(model, taskType, text string) string {
	hash := sha256.Sum256([]byte(text))
	return strings.Join([]string{model, taskType, hex.EncodeToString(hash[:])}, "|")
}

func cloneEmbedding(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
