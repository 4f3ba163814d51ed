package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/docvault/docvault/internal/model"
	"github.com/docvault/docvault/internal/pkg/dbutil"
	appErr "github.com/docvault/docvault/internal/pkg/errors"
)

const (
	FolderStateNormal  = 1
	FolderStateDeleted = 2
)

var folderFields = []string{"id", "user_id", "name", "parent_folder_id", "emoji", "state", "ctime", "mtime"}

type FolderRepo struct {
	db *sql.DB
}

func NewFolderRepo(db *sql.DB) *FolderRepo {
	return &FolderRepo{db: db}
}

func (r *FolderRepo) Create(ctx context.Context, folder *model.Folder) error {
	data := map[string]interface{}{
		"id":               folder.ID,
		"user_id":          folder.UserID,
		"name":             folder.Name,
		"parent_folder_id": folder.ParentFolderID,
		"emoji":            folder.Emoji,
		"state":            folder.State,
		"ctime":            folder.Ctime,
		"mtime":            folder.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("folders", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil && dbutil.IsConflict(err) {
		return appErr.ErrConflict
	}
	return err
}

func (r *FolderRepo) Update(ctx context.Context, userID, folderID string, update map[string]interface{}) error {
	where := map[string]interface{}{
		"id":      folderID,
		"user_id": userID,
		"state":   FolderStateNormal,
	}
	sqlStr, args, err := builder.BuildUpdate("folders", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *FolderRepo) GetByID(ctx context.Context, userID, folderID string) (*model.Folder, error) {
	return r.queryOne(ctx, map[string]interface{}{
		"id":      folderID,
		"user_id": userID,
		"state":   FolderStateNormal,
	})
}

func (r *FolderRepo) GetByName(ctx context.Context, userID, name string) (*model.Folder, error) {
	return r.queryOne(ctx, map[string]interface{}{
		"user_id":  userID,
		"name":     name,
		"state":    FolderStateNormal,
		"_orderby": "ctime asc",
		"_limit":   []uint{0, 1},
	})
}

func (r *FolderRepo) ListAll(ctx context.Context, userID string) ([]model.Folder, error) {
	where := map[string]interface{}{
		"user_id":  userID,
		"state":    FolderStateNormal,
		"_orderby": "ctime asc",
	}
	sqlStr, args, err := builder.BuildSelect("folders", where, folderFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	folders := make([]model.Folder, 0)
	for rows.Next() {
		folder, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		folders = append(folders, *folder)
	}
	return folders, rows.Err()
}

// DeleteSubtree soft-deletes the given folders and every document filed
// under them in one transaction, so a cascade either lands fully or not
// at all.
func (r *FolderRepo) DeleteSubtree(ctx context.Context, userID string, folderIDs []string, mtime int64) error {
	if len(folderIDs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ids := make([]interface{}, 0, len(folderIDs))
	for _, id := range folderIDs {
		ids = append(ids, id)
	}
	sqlStr, args, err := builder.BuildUpdate("folders", map[string]interface{}{
		"user_id": userID,
		"state":   FolderStateNormal,
		"id in":   ids,
	}, map[string]interface{}{
		"state": FolderStateDeleted,
		"mtime": mtime,
	})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
		return err
	}

	sqlStr, args, err = builder.BuildUpdate("documents", map[string]interface{}{
		"user_id":      userID,
		"state":        DocumentStateNormal,
		"folder_id in": ids,
	}, map[string]interface{}{
		"state": DocumentStateDeleted,
		"mtime": mtime,
	})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *FolderRepo) queryOne(ctx context.Context, where map[string]interface{}) (*model.Folder, error) {
	sqlStr, args, err := builder.BuildSelect("folders", where, folderFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	return scanFolder(rows)
}

func scanFolder(rows *sql.Rows) (*model.Folder, error) {
	var folder model.Folder
	var parentID sql.NullString
	if err := rows.Scan(&folder.ID, &folder.UserID, &folder.Name, &parentID, &folder.Emoji,
		&folder.State, &folder.Ctime, &folder.Mtime); err != nil {
		return nil, err
	}
	if parentID.Valid {
		folder.ParentFolderID = &parentID.String
	}
	return &folder, nil
}
