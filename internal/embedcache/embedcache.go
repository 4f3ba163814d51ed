package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/docvault/docvault/internal/ai"
)

// Wrap puts an LRU in front of an embedder keyed by (model, chunk hash) so
// re-uploading unchanged content never re-embeds it.
func Wrap(next ai.IEmbedder, size int) ai.IEmbedder {
	if next == nil || size <= 0 {
		return next
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return next
	}
	return &lruEmbedder{next: next, cache: cache}
}

type lruEmbedder struct {
	next  ai.IEmbedder
	cache *lru.Cache[string, []float32]
}

func (l *lruEmbedder) ModelName() string {
	return l.next.ModelName()
}

func (l *lruEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(l.next.ModelName(), text)
	if cached, ok := l.cache.Get(key); ok {
		logutil.GetLogger(ctx).Debug("embedding cache hit", zap.String("model", l.next.ModelName()))
		return clone(cached), nil
	}
	values, err := l.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	l.cache.Add(key, clone(values))
	return values, nil
}

func cacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

func clone(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	out := make([]float32, len(values))
	copy(out, values)
	return out
}
