package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/docvault/docvault/internal/model"
	appErr "github.com/docvault/docvault/internal/pkg/errors"
	"github.com/docvault/docvault/internal/repo"
	"github.com/docvault/docvault/test/testutil"
)

func newDocument(userID, filename, hash string, folderID *string) *model.Document {
	now := time.Now().Unix()
	return &model.Document{
		ID:               testutil.NewID("doc"),
		UserID:           userID,
		Filename:         filename,
		FileSize:         128,
		MimeType:         "text/plain",
		ContentHash:      hash,
		FileKey:          testutil.NewID("key"),
		FolderID:         folderID,
		ProcessingStatus: model.ProcessingPending,
		State:            repo.DocumentStateNormal,
		Ctime:            now,
		Mtime:            now,
	}
}

func TestDocumentRepoLifecycle(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	docs := repo.NewDocumentRepo(db)
	userID := testutil.NewID("user")
	ctx := context.Background()

	doc := newDocument(userID, "a.txt", testutil.NewID("hash"), nil)
	require.NoError(t, docs.Create(ctx, doc, nil))

	got, err := docs.GetByID(ctx, userID, doc.ID)
	require.NoError(t, err)
	require.Equal(t, "a.txt", got.Filename)
	require.Nil(t, got.FolderID)

	require.NoError(t, docs.Rename(ctx, userID, doc.ID, "renamed.txt", time.Now().Unix()))
	got, err = docs.GetByID(ctx, userID, doc.ID)
	require.NoError(t, err)
	require.Equal(t, "renamed.txt", got.Filename)

	// Another user cannot see it.
	_, err = docs.GetByID(ctx, testutil.NewID("user"), doc.ID)
	require.ErrorIs(t, err, appErr.ErrNotFound)

	// Soft delete hides it from reads and listings.
	require.NoError(t, docs.Delete(ctx, userID, doc.ID, time.Now().Unix()))
	_, err = docs.GetByID(ctx, userID, doc.ID)
	require.ErrorIs(t, err, appErr.ErrNotFound)
	listed, err := docs.List(ctx, userID)
	require.NoError(t, err)
	require.Empty(t, listed)
}

func TestDocumentRepoGetByHash(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	docs := repo.NewDocumentRepo(db)
	userID := testutil.NewID("user")
	hash := testutil.NewID("hash")
	ctx := context.Background()

	_, err := docs.GetByHash(ctx, userID, hash)
	require.ErrorIs(t, err, appErr.ErrNotFound)

	first := newDocument(userID, "first.txt", hash, nil)
	require.NoError(t, docs.Create(ctx, first, nil))

	found, err := docs.GetByHash(ctx, userID, hash)
	require.NoError(t, err)
	require.Equal(t, first.ID, found.ID)

	// The same hash under another user is no match.
	_, err = docs.GetByHash(ctx, testutil.NewID("user"), hash)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestDocumentRepoCountByFolder(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	docs := repo.NewDocumentRepo(db)
	folders := repo.NewFolderRepo(db)
	userID := testutil.NewID("user")
	ctx := context.Background()
	now := time.Now().Unix()

	folder := &model.Folder{
		ID:     testutil.NewID("folder"),
		UserID: userID,
		Name:   "Work",
		State:  repo.FolderStateNormal,
		Ctime:  now,
		Mtime:  now,
	}
	require.NoError(t, folders.Create(ctx, folder))

	require.NoError(t, docs.Create(ctx, newDocument(userID, "a.txt", testutil.NewID("h"), &folder.ID), nil))
	require.NoError(t, docs.Create(ctx, newDocument(userID, "b.txt", testutil.NewID("h"), &folder.ID), nil))
	require.NoError(t, docs.Create(ctx, newDocument(userID, "loose.txt", testutil.NewID("h"), nil), nil))

	counts, err := docs.CountByFolder(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, 2, counts[folder.ID])
}

func TestFolderRepoDeleteSubtreeCascades(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	docs := repo.NewDocumentRepo(db)
	folders := repo.NewFolderRepo(db)
	userID := testutil.NewID("user")
	ctx := context.Background()
	now := time.Now().Unix()

	parent := &model.Folder{ID: testutil.NewID("folder"), UserID: userID, Name: "Parent", State: repo.FolderStateNormal, Ctime: now, Mtime: now}
	require.NoError(t, folders.Create(ctx, parent))
	child := &model.Folder{ID: testutil.NewID("folder"), UserID: userID, Name: "Child", ParentFolderID: &parent.ID, State: repo.FolderStateNormal, Ctime: now, Mtime: now}
	require.NoError(t, folders.Create(ctx, child))

	inChild := newDocument(userID, "deep.txt", testutil.NewID("h"), &child.ID)
	require.NoError(t, docs.Create(ctx, inChild, nil))
	outside := newDocument(userID, "outside.txt", testutil.NewID("h"), nil)
	require.NoError(t, docs.Create(ctx, outside, nil))

	all, err := folders.ListAll(ctx, userID)
	require.NoError(t, err)
	subtree := model.SubtreeFolderIDs(all, parent.ID)
	require.NoError(t, folders.DeleteSubtree(ctx, userID, subtree, time.Now().Unix()))

	_, err = folders.GetByID(ctx, userID, parent.ID)
	require.ErrorIs(t, err, appErr.ErrNotFound)
	_, err = folders.GetByID(ctx, userID, child.ID)
	require.ErrorIs(t, err, appErr.ErrNotFound)
	_, err = docs.GetByID(ctx, userID, inChild.ID)
	require.ErrorIs(t, err, appErr.ErrNotFound)

	survivor, err := docs.GetByID(ctx, userID, outside.ID)
	require.NoError(t, err)
	require.Equal(t, "outside.txt", survivor.Filename)
}

func TestUploadSessionRepoConfirmOnce(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	sessions := repo.NewUploadSessionRepo(db)
	userID := testutil.NewID("user")
	ctx := context.Background()

	session := &model.UploadSession{
		ID:          testutil.NewID("session"),
		UserID:      userID,
		FileKey:     testutil.NewID("key"),
		Filename:    "a.txt",
		FileSize:    10,
		MimeType:    "text/plain",
		ContentHash: testutil.NewID("hash"),
		Status:      model.UploadSessionIssued,
		ExpiresAt:   time.Now().Add(15 * time.Minute).Unix(),
		Ctime:       time.Now().Unix(),
	}
	require.NoError(t, sessions.Create(ctx, session))

	require.NoError(t, sessions.MarkConfirmed(ctx, userID, session.ID))
	// Double confirm must not succeed.
	require.ErrorIs(t, sessions.MarkConfirmed(ctx, userID, session.ID), appErr.ErrNotFound)
}

func TestUploadSessionRepoDeleteExpired(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	sessions := repo.NewUploadSessionRepo(db)
	userID := testutil.NewID("user")
	ctx := context.Background()

	expired := &model.UploadSession{
		ID:        testutil.NewID("session"),
		UserID:    userID,
		FileKey:   testutil.NewID("key"),
		Filename:  "old.txt",
		Status:    model.UploadSessionIssued,
		ExpiresAt: time.Now().Add(-time.Hour).Unix(),
		Ctime:     time.Now().Unix(),
	}
	require.NoError(t, sessions.Create(ctx, expired))

	removed, err := sessions.DeleteExpired(ctx, time.Now().Unix())
	require.NoError(t, err)
	require.GreaterOrEqual(t, removed, int64(1))

	_, err = sessions.Get(ctx, userID, expired.ID)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}
