package job

import (
	"context"

	"github.com/docvault/docvault/internal/service"
)

// EmbeddingJob periodically drains documents still waiting for their
// embeddings, pushing processing events as it goes.
type EmbeddingJob struct {
	processing *service.ProcessingService
}

func NewEmbeddingJob(processing *service.ProcessingService) *EmbeddingJob {
	return &EmbeddingJob{processing: processing}
}

func (j *EmbeddingJob) Name() string {
	return "embedding"
}

func (j *EmbeddingJob) Run(ctx context.Context) error {
	if j.processing == nil {
		return nil
	}
	return j.processing.Drain(ctx)
}
