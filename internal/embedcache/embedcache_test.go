package embedcache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls int
	fail  bool
}

func (c *countingEmbedder) ModelName() string { return "test-model" }

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	if c.fail {
		return nil, errors.New("provider down")
	}
	return []float32{float32(len(text)), 2, 3}, nil
}

func TestWrapCachesRepeatedChunks(t *testing.T) {
	inner := &countingEmbedder{}
	embedder := Wrap(inner, 8)

	first, err := embedder.Embed(context.Background(), "same chunk")
	require.NoError(t, err)
	second, err := embedder.Embed(context.Background(), "same chunk")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, inner.calls)

	_, err = embedder.Embed(context.Background(), "different chunk")
	require.NoError(t, err)
	require.Equal(t, 2, inner.calls)
}

func TestWrapDoesNotCacheFailures(t *testing.T) {
	inner := &countingEmbedder{fail: true}
	embedder := Wrap(inner, 8)

	_, err := embedder.Embed(context.Background(), "chunk")
	require.Error(t, err)
	inner.fail = false
	_, err = embedder.Embed(context.Background(), "chunk")
	require.NoError(t, err)
	require.Equal(t, 2, inner.calls)
}

func TestWrapReturnsCopies(t *testing.T) {
	inner := &countingEmbedder{}
	embedder := Wrap(inner, 8)

	first, err := embedder.Embed(context.Background(), "chunk")
	require.NoError(t, err)
	first[0] = 999

	second, err := embedder.Embed(context.Background(), "chunk")
	require.NoError(t, err)
	require.NotEqual(t, float32(999), second[0])
}

func TestWrapDegradesGracefully(t *testing.T) {
	require.Nil(t, Wrap(nil, 8))
	inner := &countingEmbedder{}
	require.Equal(t, inner, Wrap(inner, 0))
}
