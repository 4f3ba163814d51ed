package state

import (
	"context"
	"sync"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/docvault/docvault/internal/model"
)

// Remote is the server surface the store mutates through. It is satisfied
// by ingest.Client; tests plug in fakes.
type Remote interface {
	DeleteDocument(ctx context.Context, id string) error
	RenameDocument(ctx context.Context, id, filename string) error
	MoveDocument(ctx context.Context, id string, folderID *string) error
	CreateFolder(ctx context.Context, name string, parentID *string, emoji string) (*model.Folder, error)
	RenameFolder(ctx context.Context, id, name string) error
	DeleteFolder(ctx context.Context, id string) error
}

// Snapshot is a consistent copy of the store's contents.
type Snapshot struct {
	Documents []model.Document
	Folders   []model.Folder
}

// Store keeps the client's view of documents and folders and applies
// mutations optimistically: the local copy changes first, observers see
// the result immediately, and a server failure rolls the whole mutation
// back to the exact prior state.
type Store struct {
	remote Remote

	mu        sync.Mutex
	documents []model.Document
	folders   []model.Folder
	subs      []func(Snapshot)
}

func NewStore(remote Remote) *Store {
	return &Store{remote: remote}
}

// Load replaces the store contents wholesale, e.g. after the initial
// fetch or a manual refresh.
func (s *Store) Load(documents []model.Document, folders []model.Folder) {
	s.mu.Lock()
	s.documents = cloneDocuments(documents)
	s.folders = cloneFolders(folders)
	s.mu.Unlock()
	s.publish()
}

// Subscribe registers an observer invoked after every state change,
// including rollbacks.
func (s *Store) Subscribe(fn func(Snapshot)) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Documents: cloneDocuments(s.documents),
		Folders:   cloneFolders(s.folders),
	}
}

// Categories projects top-level non-reserved folders with their direct
// document counts, same shape the server serves on /folders/categories.
func (s *Store) Categories() []model.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int)
	for _, doc := range s.documents {
		if doc.FolderID != nil {
			counts[*doc.FolderID]++
		}
	}
	categories := make([]model.Category, 0)
	for _, folder := range s.folders {
		if folder.ParentFolderID != nil || folder.Name == model.ReservedFolderName {
			continue
		}
		categories = append(categories, model.Category{
			ID:        folder.ID,
			Name:      folder.Name,
			Emoji:     folder.Emoji,
			FileCount: counts[folder.ID],
		})
	}
	return categories
}

// UpsertDocument merges a server-confirmed document into the store, used
// when an upload completes or a processing event updates the record.
func (s *Store) UpsertDocument(doc model.Document) {
	s.mu.Lock()
	replaced := false
	for i := range s.documents {
		if s.documents[i].ID == doc.ID {
			s.documents[i] = doc
			replaced = true
			break
		}
	}
	if !replaced {
		s.documents = append(s.documents, doc)
	}
	s.mu.Unlock()
	s.publish()
}

func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	return s.mutate(ctx, "delete document", func() {
		kept := s.documents[:0]
		for _, doc := range s.documents {
			if doc.ID != id {
				kept = append(kept, doc)
			}
		}
		s.documents = kept
	}, func() error {
		return s.remote.DeleteDocument(ctx, id)
	})
}

func (s *Store) RenameDocument(ctx context.Context, id, filename string) error {
	return s.mutate(ctx, "rename document", func() {
		for i := range s.documents {
			if s.documents[i].ID == id {
				s.documents[i].Filename = filename
				break
			}
		}
	}, func() error {
		return s.remote.RenameDocument(ctx, id, filename)
	})
}

func (s *Store) MoveDocument(ctx context.Context, id string, folderID *string) error {
	return s.mutate(ctx, "move document", func() {
		for i := range s.documents {
			if s.documents[i].ID == id {
				if folderID == nil {
					s.documents[i].FolderID = nil
				} else {
					target := *folderID
					s.documents[i].FolderID = &target
				}
				break
			}
		}
	}, func() error {
		return s.remote.MoveDocument(ctx, id, folderID)
	})
}

// CreateFolder inserts a provisional folder immediately and swaps in the
// server-assigned record once the call succeeds.
func (s *Store) CreateFolder(ctx context.Context, name string, parentID *string, emoji string) error {
	provisionalID := "pending-" + name
	err := s.mutate(ctx, "create folder", func() {
		s.folders = append(s.folders, model.Folder{
			ID:             provisionalID,
			Name:           name,
			ParentFolderID: parentID,
			Emoji:          emoji,
		})
	}, func() error {
		created, err := s.remote.CreateFolder(ctx, name, parentID, emoji)
		if err != nil {
			return err
		}
		s.mu.Lock()
		for i := range s.folders {
			if s.folders[i].ID == provisionalID {
				s.folders[i] = *created
				break
			}
		}
		s.mu.Unlock()
		return nil
	})
	if err != nil {
		return err
	}
	s.publish()
	return nil
}

func (s *Store) RenameFolder(ctx context.Context, id, name string) error {
	return s.mutate(ctx, "rename folder", func() {
		for i := range s.folders {
			if s.folders[i].ID == id {
				s.folders[i].Name = name
				break
			}
		}
	}, func() error {
		return s.remote.RenameFolder(ctx, id, name)
	})
}

// DeleteFolderCascade removes the folder, every descendant folder and all
// documents filed anywhere in that subtree, matching the server's cascade.
func (s *Store) DeleteFolderCascade(ctx context.Context, id string) error {
	return s.mutate(ctx, "delete folder", func() {
		subtree := model.SubtreeFolderIDs(s.folders, id)
		doomed := make(map[string]bool, len(subtree))
		for _, folderID := range subtree {
			doomed[folderID] = true
		}
		keptFolders := s.folders[:0]
		for _, folder := range s.folders {
			if !doomed[folder.ID] {
				keptFolders = append(keptFolders, folder)
			}
		}
		s.folders = keptFolders
		keptDocs := s.documents[:0]
		for _, doc := range s.documents {
			if doc.FolderID != nil && doomed[*doc.FolderID] {
				continue
			}
			keptDocs = append(keptDocs, doc)
		}
		s.documents = keptDocs
	}, func() error {
		return s.remote.DeleteFolder(ctx, id)
	})
}

// mutate applies the optimistic change, notifies, then runs the remote
// call. On remote failure the pre-mutation state is restored verbatim and
// observers are notified again.
func (s *Store) mutate(ctx context.Context, action string, apply func(), remote func() error) error {
	s.mu.Lock()
	prior := s.snapshotLocked()
	apply()
	s.mu.Unlock()
	s.publish()

	if err := remote(); err != nil {
		logutil.GetLogger(ctx).Warn("rolling back optimistic change",
			zap.String("action", action), zap.Error(err))
		s.mu.Lock()
		s.documents = prior.Documents
		s.folders = prior.Folders
		s.mu.Unlock()
		s.publish()
		return err
	}
	return nil
}

func (s *Store) publish() {
	s.mu.Lock()
	snapshot := s.snapshotLocked()
	subs := make([]func(Snapshot), len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()
	for _, fn := range subs {
		fn(snapshot)
	}
}

func cloneDocuments(in []model.Document) []model.Document {
	out := make([]model.Document, len(in))
	copy(out, in)
	for i := range out {
		if out[i].FolderID != nil {
			id := *out[i].FolderID
			out[i].FolderID = &id
		}
	}
	return out
}

func cloneFolders(in []model.Folder) []model.Folder {
	out := make([]model.Folder, len(in))
	copy(out, in)
	for i := range out {
		if out[i].ParentFolderID != nil {
			id := *out[i].ParentFolderID
			out[i].ParentFolderID = &id
		}
	}
	return out
}
