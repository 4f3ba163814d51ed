package service_test

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/docvault/docvault/internal/config"
	"github.com/docvault/docvault/internal/filestore"
	"github.com/docvault/docvault/internal/model"
	appErr "github.com/docvault/docvault/internal/pkg/errors"
	"github.com/docvault/docvault/internal/repo"
	"github.com/docvault/docvault/internal/service"
	"github.com/docvault/docvault/test/testutil"
)

type memFile struct {
	*bytes.Reader
}

func (memFile) Close() error { return nil }

func newMemFile(content string) memFile {
	return memFile{Reader: bytes.NewReader([]byte(content))}
}

type env struct {
	auth       *service.AuthService
	folders    *service.FolderService
	documents  *service.DocumentService
	uploads    *service.UploadService
	processing *service.ProcessingService
	publisher  *recordingPublisher
	docRepo    *repo.DocumentRepo
}

type recordingPublisher struct {
	mu     sync.Mutex
	ready  []string
	failed []string
}

func (p *recordingPublisher) PublishProgress(userID, documentID string, progress int, message string) {
}

func (p *recordingPublisher) PublishReady(userID, documentID, filename string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ready = append(p.ready, documentID)
}

func (p *recordingPublisher) PublishFailed(userID, documentID, errMsg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed = append(p.failed, documentID)
}

type fixedEmbedder struct{}

func (fixedEmbedder) ModelName() string { return "fixed" }

func (fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	values := make([]float32, 768)
	for i := range values {
		values[i] = float32(len(text) % 7)
	}
	return values, nil
}

func newEnv(t *testing.T) (*env, func()) {
	t.Helper()
	db, cleanup := testutil.OpenTestDB(t)

	store, err := filestore.New(config.FileStoreConfig{
		Type: "local",
		Data: map[string]interface{}{"dir": t.TempDir()},
	})
	require.NoError(t, err)

	userRepo := repo.NewUserRepo(db)
	folderRepo := repo.NewFolderRepo(db)
	docRepo := repo.NewDocumentRepo(db)
	sessionRepo := repo.NewUploadSessionRepo(db)
	embeddingRepo := repo.NewEmbeddingRepo(db)

	publisher := &recordingPublisher{}
	folders := service.NewFolderService(folderRepo, docRepo)
	documents := service.NewDocumentService(docRepo, folderRepo, embeddingRepo, store)
	return &env{
		auth:       service.NewAuthService(userRepo, folders, []byte("test-secret"), time.Hour),
		folders:    folders,
		documents:  documents,
		uploads:    service.NewUploadService(documents, folders, docRepo, sessionRepo, store, 15*time.Minute),
		processing: service.NewProcessingService(docRepo, embeddingRepo, fixedEmbedder{}, publisher, 100),
		publisher:  publisher,
		docRepo:    docRepo,
	}, cleanup
}

func TestRegisterCreatesReservedFolder(t *testing.T) {
	e, cleanup := newEnv(t)
	defer cleanup()
	ctx := context.Background()

	email := testutil.NewID("user") + "@example.com"
	user, token, err := e.auth.Register(ctx, email, "hunter22")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	reserved, err := e.folders.GetByName(ctx, user.ID, model.ReservedFolderName)
	require.NoError(t, err)
	require.Nil(t, reserved.ParentFolderID)

	// The reserved folder never shows up as a category and resists
	// rename and delete.
	categories, err := e.folders.Categories(ctx, user.ID)
	require.NoError(t, err)
	for _, category := range categories {
		require.NotEqual(t, model.ReservedFolderName, category.Name)
	}
	newName := "Renamed"
	require.ErrorIs(t, e.folders.Update(ctx, user.ID, reserved.ID, service.FolderUpdateInput{Name: &newName}), appErr.ErrReservedFolder)
	require.ErrorIs(t, e.folders.Delete(ctx, user.ID, reserved.ID), appErr.ErrReservedFolder)

	_, _, err = e.auth.Login(ctx, email, "hunter22")
	require.NoError(t, err)
	_, _, err = e.auth.Login(ctx, email, "wrong")
	require.Error(t, err)
}

func TestUploadFlowWithCategoryAndDuplicate(t *testing.T) {
	e, cleanup := newEnv(t)
	defer cleanup()
	ctx := context.Background()

	user, _, err := e.auth.Register(ctx, testutil.NewID("user")+"@example.com", "hunter22")
	require.NoError(t, err)

	content := "quarterly numbers, plain text"
	input := service.UploadInput{
		Filename:      "numbers.txt",
		FileSize:      int64(len(content)),
		MimeType:      "text/plain",
		ContentHash:   testutil.NewID("hash"),
		Category:      "Taxes",
		ExtractedText: content,
	}
	result, err := e.uploads.UploadMultipart(ctx, user.ID, input, newMemFile(content))
	require.NoError(t, err)
	require.Empty(t, result.DuplicateOf)
	require.Equal(t, model.ProcessingPending, result.Document.ProcessingStatus)

	// The category folder was auto-created and counts the document.
	categories, err := e.folders.Categories(ctx, user.ID)
	require.NoError(t, err)
	var taxes *model.Category
	for i := range categories {
		if categories[i].Name == "Taxes" {
			taxes = &categories[i]
		}
	}
	require.NotNil(t, taxes)
	require.Equal(t, 1, taxes.FileCount)

	// Same content again: accepted, but flagged as a duplicate.
	dup, err := e.uploads.UploadMultipart(ctx, user.ID, input, newMemFile(content))
	require.NoError(t, err)
	require.Equal(t, result.Document.ID, dup.DuplicateOf)
	require.NotEqual(t, result.Document.ID, dup.Document.ID)
}

func TestUploadWithoutCategoryLandsInReserved(t *testing.T) {
	e, cleanup := newEnv(t)
	defer cleanup()
	ctx := context.Background()

	user, _, err := e.auth.Register(ctx, testutil.NewID("user")+"@example.com", "hunter22")
	require.NoError(t, err)

	result, err := e.uploads.UploadMultipart(ctx, user.ID, service.UploadInput{
		Filename:    "inbox.txt",
		FileSize:    4,
		MimeType:    "text/plain",
		ContentHash: testutil.NewID("hash"),
	}, newMemFile("data"))
	require.NoError(t, err)
	require.NotNil(t, result.Document.FolderID)

	reserved, err := e.folders.GetByName(ctx, user.ID, model.ReservedFolderName)
	require.NoError(t, err)
	require.Equal(t, reserved.ID, *result.Document.FolderID)
}

func TestIssueUploadURLUnsupportedOnLocalStore(t *testing.T) {
	e, cleanup := newEnv(t)
	defer cleanup()
	ctx := context.Background()

	user, _, err := e.auth.Register(ctx, testutil.NewID("user")+"@example.com", "hunter22")
	require.NoError(t, err)

	_, err = e.uploads.IssueUploadURL(ctx, user.ID, service.UploadInput{
		Filename:    "big.bin",
		FileSize:    1024,
		MimeType:    "application/octet-stream",
		ContentHash: testutil.NewID("hash"),
	})
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestProcessingDrainEmbedsAndPublishes(t *testing.T) {
	e, cleanup := newEnv(t)
	defer cleanup()
	ctx := context.Background()

	user, _, err := e.auth.Register(ctx, testutil.NewID("user")+"@example.com", "hunter22")
	require.NoError(t, err)

	text := "A long enough paragraph of extracted text that clears the minimum chunk size and gets embedded."
	result, err := e.uploads.UploadMultipart(ctx, user.ID, service.UploadInput{
		Filename:      "prose.txt",
		FileSize:      int64(len(text)),
		MimeType:      "text/plain",
		ContentHash:   testutil.NewID("hash"),
		ExtractedText: text,
	}, newMemFile(text))
	require.NoError(t, err)

	var doc *model.Document
	for i := 0; i < 5; i++ {
		require.NoError(t, e.processing.Drain(ctx))
		doc, err = e.documents.Get(ctx, user.ID, result.Document.ID)
		require.NoError(t, err)
		if doc.ProcessingStatus != model.ProcessingPending {
			break
		}
	}
	require.Equal(t, model.ProcessingCompleted, doc.ProcessingStatus)
	require.True(t, doc.AIChatReady)

	e.publisher.mu.Lock()
	defer e.publisher.mu.Unlock()
	require.Contains(t, e.publisher.ready, doc.ID)
}

func TestProcessingEncryptedCompletesWithoutEmbeddings(t *testing.T) {
	e, cleanup := newEnv(t)
	defer cleanup()
	ctx := context.Background()

	user, _, err := e.auth.Register(ctx, testutil.NewID("user")+"@example.com", "hunter22")
	require.NoError(t, err)

	result, err := e.uploads.UploadMultipart(ctx, user.ID, service.UploadInput{
		Filename:    "encrypted-abc123",
		FileSize:    10,
		MimeType:    "text/plain",
		ContentHash: testutil.NewID("hash"),
		Encrypted:   true,
		Envelope: &model.EncryptionEnvelope{
			FilenameCipher: "AAAA",
			FilenameSalt:   "BBBB",
			FilenameIV:     "CCCC",
			ContentSalt:    "DDDD",
			ContentIV:      "EEEE",
		},
	}, newMemFile("ciphertext"))
	require.NoError(t, err)

	var doc *model.Document
	for i := 0; i < 5; i++ {
		require.NoError(t, e.processing.Drain(ctx))
		doc, err = e.documents.Get(ctx, user.ID, result.Document.ID)
		require.NoError(t, err)
		if doc.ProcessingStatus != model.ProcessingPending {
			break
		}
	}
	require.Equal(t, model.ProcessingCompleted, doc.ProcessingStatus)
	require.False(t, doc.AIChatReady)
	require.True(t, doc.Encrypted)
}

func TestDocumentDeleteCascadesCleanup(t *testing.T) {
	e, cleanup := newEnv(t)
	defer cleanup()
	ctx := context.Background()

	user, _, err := e.auth.Register(ctx, testutil.NewID("user")+"@example.com", "hunter22")
	require.NoError(t, err)

	result, err := e.uploads.UploadMultipart(ctx, user.ID, service.UploadInput{
		Filename:    "gone.txt",
		FileSize:    4,
		MimeType:    "text/plain",
		ContentHash: testutil.NewID("hash"),
	}, newMemFile("data"))
	require.NoError(t, err)

	require.NoError(t, e.documents.Delete(ctx, user.ID, result.Document.ID))
	_, err = e.documents.Get(ctx, user.ID, result.Document.ID)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}
