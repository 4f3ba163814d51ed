package state

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docvault/docvault/internal/model"
)

// fakeRemote fails any call whose action name is listed in failing.
type fakeRemote struct {
	failing map[string]bool
	created *model.Folder
}

func (f *fakeRemote) err(action string) error {
	if f.failing[action] {
		return errors.New(action + " rejected")
	}
	return nil
}

func (f *fakeRemote) DeleteDocument(ctx context.Context, id string) error {
	return f.err("delete_document")
}

func (f *fakeRemote) RenameDocument(ctx context.Context, id, filename string) error {
	return f.err("rename_document")
}

func (f *fakeRemote) MoveDocument(ctx context.Context, id string, folderID *string) error {
	return f.err("move_document")
}

func (f *fakeRemote) CreateFolder(ctx context.Context, name string, parentID *string, emoji string) (*model.Folder, error) {
	if err := f.err("create_folder"); err != nil {
		return nil, err
	}
	f.created = &model.Folder{ID: "server-id", Name: name, ParentFolderID: parentID, Emoji: emoji}
	return f.created, nil
}

func (f *fakeRemote) RenameFolder(ctx context.Context, id, name string) error {
	return f.err("rename_folder")
}

func (f *fakeRemote) DeleteFolder(ctx context.Context, id string) error {
	return f.err("delete_folder")
}

func strPtr(s string) *string { return &s }

func seedStore(remote Remote) *Store {
	store := NewStore(remote)
	store.Load(
		[]model.Document{
			{ID: "d1", Filename: "a.pdf", FolderID: strPtr("f1")},
			{ID: "d2", Filename: "b.pdf", FolderID: strPtr("f2")},
			{ID: "d3", Filename: "c.pdf"},
		},
		[]model.Folder{
			{ID: "f1", Name: "Work", Emoji: "💼"},
			{ID: "f2", Name: "Sub", ParentFolderID: strPtr("f1")},
			{ID: "f3", Name: "Personal"},
			{ID: "fr", Name: model.ReservedFolderName},
		},
	)
	return store
}

func TestStoreOptimisticDeleteAndRollback(t *testing.T) {
	remote := &fakeRemote{failing: map[string]bool{"delete_document": true}}
	store := seedStore(remote)
	before := store.Snapshot()

	err := store.DeleteDocument(context.Background(), "d1")
	require.Error(t, err)
	require.Equal(t, before, store.Snapshot())

	remote.failing["delete_document"] = false
	require.NoError(t, store.DeleteDocument(context.Background(), "d1"))
	after := store.Snapshot()
	require.Len(t, after.Documents, 2)
	for _, doc := range after.Documents {
		require.NotEqual(t, "d1", doc.ID)
	}
}

func TestStoreRollbackRestoresEveryMutation(t *testing.T) {
	mutations := []struct {
		action string
		invoke func(ctx context.Context, store *Store) error
	}{
		{"rename_document", func(ctx context.Context, s *Store) error {
			return s.RenameDocument(ctx, "d1", "renamed.pdf")
		}},
		{"move_document", func(ctx context.Context, s *Store) error {
			return s.MoveDocument(ctx, "d1", strPtr("f3"))
		}},
		{"delete_document", func(ctx context.Context, s *Store) error {
			return s.DeleteDocument(ctx, "d2")
		}},
		{"create_folder", func(ctx context.Context, s *Store) error {
			return s.CreateFolder(ctx, "New", nil, "📁")
		}},
		{"rename_folder", func(ctx context.Context, s *Store) error {
			return s.RenameFolder(ctx, "f3", "Renamed")
		}},
		{"delete_folder", func(ctx context.Context, s *Store) error {
			return s.DeleteFolderCascade(ctx, "f1")
		}},
	}
	for _, mutation := range mutations {
		remote := &fakeRemote{failing: map[string]bool{mutation.action: true}}
		store := seedStore(remote)
		before := store.Snapshot()

		err := mutation.invoke(context.Background(), store)
		require.Error(t, err, mutation.action)
		require.Equal(t, before, store.Snapshot(), "rollback mismatch for %s", mutation.action)
	}
}

func TestStoreObserverSeesOptimisticThenRollback(t *testing.T) {
	remote := &fakeRemote{failing: map[string]bool{"rename_document": true}}
	store := seedStore(remote)

	var names []string
	store.Subscribe(func(snap Snapshot) {
		for _, doc := range snap.Documents {
			if doc.ID == "d1" {
				names = append(names, doc.Filename)
			}
		}
	})

	_ = store.RenameDocument(context.Background(), "d1", "optimistic.pdf")
	require.Equal(t, []string{"optimistic.pdf", "a.pdf"}, names)
}

func TestStoreCreateFolderSwapsInServerRecord(t *testing.T) {
	remote := &fakeRemote{failing: map[string]bool{}}
	store := seedStore(remote)

	require.NoError(t, store.CreateFolder(context.Background(), "Taxes", nil, "🧾"))
	snap := store.Snapshot()
	var found *model.Folder
	for i := range snap.Folders {
		if snap.Folders[i].Name == "Taxes" {
			found = &snap.Folders[i]
		}
	}
	require.NotNil(t, found)
	require.Equal(t, "server-id", found.ID)
}

func TestStoreDeleteFolderCascade(t *testing.T) {
	remote := &fakeRemote{failing: map[string]bool{}}
	store := seedStore(remote)

	require.NoError(t, store.DeleteFolderCascade(context.Background(), "f1"))
	snap := store.Snapshot()

	// f1 and its child f2 are gone, and so are the documents inside them.
	require.Len(t, snap.Folders, 2)
	for _, folder := range snap.Folders {
		require.NotContains(t, []string{"f1", "f2"}, folder.ID)
	}
	require.Len(t, snap.Documents, 1)
	require.Equal(t, "d3", snap.Documents[0].ID)
}

func TestStoreCategoriesProjection(t *testing.T) {
	remote := &fakeRemote{failing: map[string]bool{}}
	store := seedStore(remote)

	categories := store.Categories()
	// Reserved folder and the nested one are excluded.
	require.Len(t, categories, 2)
	byName := make(map[string]model.Category)
	for _, category := range categories {
		byName[category.Name] = category
	}
	require.Equal(t, 1, byName["Work"].FileCount)
	require.Equal(t, 0, byName["Personal"].FileCount)
}
