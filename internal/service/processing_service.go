package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/docvault/docvault/internal/ai"
	"github.com/docvault/docvault/internal/model"
	"github.com/docvault/docvault/internal/repo"
)

// EventPublisher pushes per-document processing events to connected
// clients; events.Hub is the production implementation.
type EventPublisher interface {
	PublishProgress(userID, documentID string, progress int, message string)
	PublishReady(userID, documentID, filename string)
	PublishFailed(userID, documentID, errMsg string)
}

type ProcessingService struct {
	docs       *repo.DocumentRepo
	embeddings *repo.EmbeddingRepo
	embedder   ai.IEmbedder
	publisher  EventPublisher
	batchSize  uint
}

func NewProcessingService(docs *repo.DocumentRepo, embeddings *repo.EmbeddingRepo, embedder ai.IEmbedder, publisher EventPublisher, batchSize uint) *ProcessingService {
	if batchSize == 0 {
		batchSize = 10
	}
	return &ProcessingService{docs: docs, embeddings: embeddings, embedder: embedder, publisher: publisher, batchSize: batchSize}
}

// Drain processes every embeddings-pending document it can find. One
// document failing marks that document failed and moves on; the drain
// itself only errors when the pending list cannot be read.
func (s *ProcessingService) Drain(ctx context.Context) error {
	pending, err := s.docs.ListPending(ctx, s.batchSize)
	if err != nil {
		return err
	}
	for _, doc := range pending {
		if err := s.processOne(ctx, &doc); err != nil {
			logutil.GetLogger(ctx).Error("document processing failed",
				zap.String("document_id", doc.ID),
				zap.Error(err),
			)
			s.markFailed(ctx, &doc, err)
		}
	}
	return nil
}

func (s *ProcessingService) processOne(ctx context.Context, doc *model.Document) error {
	s.publisher.PublishProgress(doc.UserID, doc.ID, 5, "Preparing document")

	// Encrypted uploads carry ciphertext only; there is nothing the server
	// can index, so they complete without embeddings.
	text := doc.ExtractedText
	if doc.Encrypted || text == "" || s.embedder == nil {
		return s.markCompleted(ctx, doc, false)
	}

	chunks := ai.ChunkText(text)
	if len(chunks) == 0 {
		return s.markCompleted(ctx, doc, false)
	}
	s.publisher.PublishProgress(doc.UserID, doc.ID, 20, "Indexing document")

	now := time.Now().Unix()
	rows := make([]model.ChunkEmbedding, 0, len(chunks))
	for i, chunk := range chunks {
		values, err := s.embedder.Embed(ctx, chunk)
		if err != nil {
			return fmt.Errorf("embed chunk %d: %w", i, err)
		}
		rows = append(rows, model.ChunkEmbedding{
			ID:         newID(),
			DocumentID: doc.ID,
			UserID:     doc.UserID,
			Position:   i,
			Content:    chunk,
			ChunkHash:  chunkHash(chunk),
			Embedding:  values,
			Ctime:      now,
		})
		progress := 20 + (i+1)*70/len(chunks)
		s.publisher.PublishProgress(doc.UserID, doc.ID, progress, fmt.Sprintf("Indexing chunk %d/%d", i+1, len(chunks)))
	}
	if err := s.embeddings.ReplaceForDocument(ctx, doc.ID, rows); err != nil {
		return fmt.Errorf("store embeddings: %w", err)
	}
	return s.markCompleted(ctx, doc, true)
}

func (s *ProcessingService) markCompleted(ctx context.Context, doc *model.Document, aiReady bool) error {
	if err := s.docs.UpdateProcessing(ctx, doc.UserID, doc.ID, model.ProcessingCompleted, "", aiReady, time.Now().Unix()); err != nil {
		return err
	}
	s.publisher.PublishProgress(doc.UserID, doc.ID, 100, "Processing complete")
	s.publisher.PublishReady(doc.UserID, doc.ID, doc.Filename)
	return nil
}

func (s *ProcessingService) markFailed(ctx context.Context, doc *model.Document, cause error) {
	msg := cause.Error()
	if err := s.docs.UpdateProcessing(ctx, doc.UserID, doc.ID, model.ProcessingFailed, msg, false, time.Now().Unix()); err != nil {
		logutil.GetLogger(ctx).Error("mark failed errored", zap.String("document_id", doc.ID), zap.Error(err))
	}
	s.publisher.PublishFailed(doc.UserID, doc.ID, msg)
}

func chunkHash(chunk string) string {
	sum := sha256.Sum256([]byte(chunk))
	return hex.EncodeToString(sum[:])
}
