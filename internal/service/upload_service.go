package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/docvault/docvault/internal/filestore"
	"github.com/docvault/docvault/internal/model"
	appErr "github.com/docvault/docvault/internal/pkg/errors"
	"github.com/docvault/docvault/internal/repo"
)

type UploadService struct {
	docs       *DocumentService
	folders    *FolderService
	docRepo    *repo.DocumentRepo
	sessions   *repo.UploadSessionRepo
	store      filestore.Store
	presignTTL time.Duration
}

func NewUploadService(docs *DocumentService, folders *FolderService, docRepo *repo.DocumentRepo, sessions *repo.UploadSessionRepo, store filestore.Store, presignTTL time.Duration) *UploadService {
	return &UploadService{docs: docs, folders: folders, docRepo: docRepo, sessions: sessions, store: store, presignTTL: presignTTL}
}

type UploadInput struct {
	Filename      string
	FileSize      int64
	MimeType      string
	ContentHash   string
	Category      string
	Encrypted     bool
	Envelope      *model.EncryptionEnvelope
	ExtractedText string
}

type UploadResult struct {
	Document    *model.Document `json:"document"`
	DuplicateOf string          `json:"duplicate_of,omitempty"`
}

// UploadMultipart is the single-call transport: bytes plus metadata in one
// request, document record back.
func (s *UploadService) UploadMultipart(ctx context.Context, userID string, input UploadInput, r filestore.ReadSeekCloser) (*UploadResult, error) {
	if strings.TrimSpace(input.Filename) == "" {
		return nil, appErr.ErrInvalid
	}
	key := newFileKey()
	if err := s.store.Save(ctx, key, r, input.FileSize); err != nil {
		return nil, err
	}
	return s.createDocument(ctx, userID, key, input)
}

type PresignedUpload struct {
	SessionID string `json:"session_id"`
	UploadURL string `json:"upload_url"`
	ExpiresAt int64  `json:"expires_at"`
}

// IssueUploadURL is step one of the presigned transport: the client gets a
// direct-to-storage PUT URL and a session to confirm afterwards.
func (s *UploadService) IssueUploadURL(ctx context.Context, userID string, input UploadInput) (*PresignedUpload, error) {
	if strings.TrimSpace(input.Filename) == "" {
		return nil, appErr.ErrInvalid
	}
	key := newFileKey()
	url, err := s.store.PresignPut(ctx, key, s.presignTTL)
	if errors.Is(err, filestore.ErrPresignUnsupported) {
		return nil, appErr.ErrInvalid
	}
	if err != nil {
		return nil, err
	}
	now := time.Now()
	session := &model.UploadSession{
		ID:          newID(),
		UserID:      userID,
		FileKey:     key,
		Filename:    input.Filename,
		FileSize:    input.FileSize,
		MimeType:    input.MimeType,
		ContentHash: input.ContentHash,
		Status:      model.UploadSessionIssued,
		ExpiresAt:   now.Add(s.presignTTL).Unix(),
		Ctime:       now.Unix(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	return &PresignedUpload{
		SessionID: session.ID,
		UploadURL: url,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// ConfirmUpload is step two: the client reports the PUT finished and the
// document record is created from the session metadata.
func (s *UploadService) ConfirmUpload(ctx context.Context, userID, sessionID string, input UploadInput) (*UploadResult, error) {
	session, err := s.sessions.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == model.UploadSessionConfirmed {
		return nil, appErr.ErrUploadConfirmed
	}
	if session.ExpiresAt < time.Now().Unix() {
		return nil, appErr.ErrUploadExpired
	}
	if err := s.sessions.MarkConfirmed(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	input.Filename = session.Filename
	input.FileSize = session.FileSize
	if input.MimeType == "" {
		input.MimeType = session.MimeType
	}
	if input.ContentHash == "" {
		input.ContentHash = session.ContentHash
	}
	return s.createDocument(ctx, userID, session.FileKey, input)
}

func (s *UploadService) createDocument(ctx context.Context, userID, fileKey string, input UploadInput) (*UploadResult, error) {
	folder, err := s.resolveFolder(ctx, userID, input.Category)
	if err != nil {
		return nil, err
	}
	duplicate, err := s.docs.FindDuplicate(ctx, userID, input.ContentHash)
	if err != nil {
		return nil, err
	}
	now := time.Now().Unix()
	doc := &model.Document{
		ID:               newID(),
		UserID:           userID,
		Filename:         input.Filename,
		FileSize:         input.FileSize,
		MimeType:         input.MimeType,
		ContentHash:      input.ContentHash,
		FileKey:          fileKey,
		FolderID:         &folder.ID,
		ProcessingStatus: model.ProcessingPending,
		Encrypted:        input.Encrypted,
		ExtractedText:    input.ExtractedText,
		State:            repo.DocumentStateNormal,
		Ctime:            now,
		Mtime:            now,
	}
	if err := s.docRepo.Create(ctx, doc, input.Envelope); err != nil {
		return nil, err
	}
	result := &UploadResult{Document: doc}
	if duplicate != nil {
		result.DuplicateOf = duplicate.ID
		logutil.GetLogger(ctx).Info("duplicate content uploaded",
			zap.String("document_id", doc.ID),
			zap.String("duplicate_of", duplicate.ID),
		)
	}
	return result, nil
}

func (s *UploadService) resolveFolder(ctx context.Context, userID, category string) (*model.Folder, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return s.folders.EnsureReserved(ctx, userID)
	}
	folder, err := s.folders.GetByName(ctx, userID, category)
	if appErr.IsNotFound(err) {
		return s.folders.Create(ctx, userID, FolderCreateInput{Name: category})
	}
	return folder, err
}

func (s *UploadService) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx, time.Now().Unix())
}
