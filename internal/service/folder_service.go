package service

import (
	"context"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/docvault/docvault/internal/model"
	appErr "github.com/docvault/docvault/internal/pkg/errors"
	"github.com/docvault/docvault/internal/repo"
)

type FolderService struct {
	folders *repo.FolderRepo
	docs    *repo.DocumentRepo
}

func NewFolderService(folders *repo.FolderRepo, docs *repo.DocumentRepo) *FolderService {
	return &FolderService{folders: folders, docs: docs}
}

type FolderCreateInput struct {
	Name           string
	ParentFolderID *string
	Emoji          string
}

func (s *FolderService) Create(ctx context.Context, userID string, input FolderCreateInput) (*model.Folder, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, appErr.ErrInvalid
	}
	if name == model.ReservedFolderName {
		return nil, appErr.ErrReservedFolder
	}
	if input.ParentFolderID != nil {
		if _, err := s.folders.GetByID(ctx, userID, *input.ParentFolderID); err != nil {
			return nil, err
		}
	}
	now := time.Now().Unix()
	folder := &model.Folder{
		ID:             newID(),
		UserID:         userID,
		Name:           name,
		ParentFolderID: input.ParentFolderID,
		Emoji:          input.Emoji,
		State:          repo.FolderStateNormal,
		Ctime:          now,
		Mtime:          now,
	}
	if err := s.folders.Create(ctx, folder); err != nil {
		return nil, err
	}
	return folder, nil
}

// EnsureReserved creates the per-user "Recently Added" system folder if it
// does not exist yet and returns it.
func (s *FolderService) EnsureReserved(ctx context.Context, userID string) (*model.Folder, error) {
	existing, err := s.folders.GetByName(ctx, userID, model.ReservedFolderName)
	if err == nil {
		return existing, nil
	}
	if !appErr.IsNotFound(err) {
		return nil, err
	}
	now := time.Now().Unix()
	folder := &model.Folder{
		ID:             newID(),
		UserID:         userID,
		Name:           model.ReservedFolderName,
		ParentFolderID: nil,
		Emoji:          "🕒",
		State:          repo.FolderStateNormal,
		Ctime:          now,
		Mtime:          now,
	}
	if err := s.folders.Create(ctx, folder); err != nil {
		return nil, err
	}
	return folder, nil
}

type FolderUpdateInput struct {
	Name  *string
	Emoji *string
}

func (s *FolderService) Update(ctx context.Context, userID, folderID string, input FolderUpdateInput) error {
	folder, err := s.folders.GetByID(ctx, userID, folderID)
	if err != nil {
		return err
	}
	if folder.Name == model.ReservedFolderName {
		return appErr.ErrReservedFolder
	}
	update := map[string]interface{}{"mtime": time.Now().Unix()}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return appErr.ErrInvalid
		}
		if name == model.ReservedFolderName {
			return appErr.ErrReservedFolder
		}
		update["name"] = name
	}
	if input.Emoji != nil {
		update["emoji"] = *input.Emoji
	}
	return s.folders.Update(ctx, userID, folderID, update)
}

func (s *FolderService) Get(ctx context.Context, userID, folderID string) (*model.Folder, error) {
	return s.folders.GetByID(ctx, userID, folderID)
}

func (s *FolderService) GetByName(ctx context.Context, userID, name string) (*model.Folder, error) {
	return s.folders.GetByName(ctx, userID, name)
}

func (s *FolderService) List(ctx context.Context, userID string) ([]model.Folder, error) {
	return s.folders.ListAll(ctx, userID)
}

// Delete removes the folder and its whole subtree, documents included, in
// one transaction. The reserved system folder is not deletable.
func (s *FolderService) Delete(ctx context.Context, userID, folderID string) error {
	folder, err := s.folders.GetByID(ctx, userID, folderID)
	if err != nil {
		return err
	}
	if folder.Name == model.ReservedFolderName {
		return appErr.ErrReservedFolder
	}
	all, err := s.folders.ListAll(ctx, userID)
	if err != nil {
		return err
	}
	subtree := model.SubtreeFolderIDs(all, folderID)
	logutil.GetLogger(ctx).Info("cascade folder delete",
		zap.String("user_id", userID),
		zap.String("folder_id", folderID),
		zap.Int("subtree_size", len(subtree)),
	)
	return s.folders.DeleteSubtree(ctx, userID, subtree, time.Now().Unix())
}

// Categories projects top-level non-reserved folders with their direct
// document counts for the dashboard grid.
func (s *FolderService) Categories(ctx context.Context, userID string) ([]model.Category, error) {
	folders, err := s.folders.ListAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	counts, err := s.docs.CountByFolder(ctx, userID)
	if err != nil {
		return nil, err
	}
	categories := make([]model.Category, 0)
	for _, folder := range folders {
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
	return categories, nil
}
