package ai

import (
	"context"
	"errors"
)

var ErrUnavailable = errors.New("ai provider unavailable")

// IEmbedder turns a chunk of extracted document text into a vector.
type IEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	ModelName() string
}
