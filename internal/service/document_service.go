package service

import (
	"context"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/docvault/docvault/internal/filestore"
	"github.com/docvault/docvault/internal/model"
	appErr "github.com/docvault/docvault/internal/pkg/errors"
	"github.com/docvault/docvault/internal/repo"
)

type DocumentService struct {
	docs       *repo.DocumentRepo
	folders    *repo.FolderRepo
	embeddings *repo.EmbeddingRepo
	store      filestore.Store
}

func NewDocumentService(docs *repo.DocumentRepo, folders *repo.FolderRepo, embeddings *repo.EmbeddingRepo, store filestore.Store) *DocumentService {
	return &DocumentService{docs: docs, folders: folders, embeddings: embeddings, store: store}
}

func (s *DocumentService) List(ctx context.Context, userID string) ([]model.Document, error) {
	return s.docs.List(ctx, userID)
}

func (s *DocumentService) Get(ctx context.Context, userID, docID string) (*model.Document, error) {
	return s.docs.GetByID(ctx, userID, docID)
}

func (s *DocumentService) Rename(ctx context.Context, userID, docID, filename string) error {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return appErr.ErrInvalid
	}
	return s.docs.Rename(ctx, userID, docID, filename, time.Now().Unix())
}

func (s *DocumentService) Move(ctx context.Context, userID, docID string, folderID *string) error {
	if folderID != nil {
		if _, err := s.folders.GetByID(ctx, userID, *folderID); err != nil {
			return err
		}
	}
	return s.docs.Move(ctx, userID, docID, folderID, time.Now().Unix())
}

// Delete soft-deletes the record, then clears derived state. Blob and
// embedding cleanup failures are logged, not surfaced: the record is
// already gone from the user's view.
func (s *DocumentService) Delete(ctx context.Context, userID, docID string) error {
	doc, err := s.docs.GetByID(ctx, userID, docID)
	if err != nil {
		return err
	}
	if err := s.docs.Delete(ctx, userID, docID, time.Now().Unix()); err != nil {
		return err
	}
	if err := s.embeddings.DeleteByDocument(ctx, docID); err != nil {
		logutil.GetLogger(ctx).Warn("delete embeddings failed", zap.String("document_id", docID), zap.Error(err))
	}
	if err := s.store.Delete(ctx, doc.FileKey); err != nil {
		logutil.GetLogger(ctx).Warn("delete blob failed", zap.String("file_key", doc.FileKey), zap.Error(err))
	}
	return nil
}

// FindDuplicate reports an existing live document with the same content
// digest, or nil. Duplicates are informational only; uploads proceed.
func (s *DocumentService) FindDuplicate(ctx context.Context, userID, contentHash string) (*model.Document, error) {
	if contentHash == "" {
		return nil, nil
	}
	doc, err := s.docs.GetByHash(ctx, userID, contentHash)
	if appErr.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}
