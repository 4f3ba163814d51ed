package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/docvault/docvault/internal/model"
	"github.com/docvault/docvault/internal/pkg/dbutil"
	appErr "github.com/docvault/docvault/internal/pkg/errors"
)

var uploadSessionFields = []string{"id", "user_id", "file_key", "filename", "file_size", "mime_type", "content_hash", "status", "expires_at", "ctime"}

type UploadSessionRepo struct {
	db *sql.DB
}

func NewUploadSessionRepo(db *sql.DB) *UploadSessionRepo {
	return &UploadSessionRepo{db: db}
}

func (r *UploadSessionRepo) Create(ctx context.Context, session *model.UploadSession) error {
	data := map[string]interface{}{
		"id":           session.ID,
		"user_id":      session.UserID,
		"file_key":     session.FileKey,
		"filename":     session.Filename,
		"file_size":    session.FileSize,
		"mime_type":    session.MimeType,
		"content_hash": session.ContentHash,
		"status":       session.Status,
		"expires_at":   session.ExpiresAt,
		"ctime":        session.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("upload_sessions", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *UploadSessionRepo) Get(ctx context.Context, userID, sessionID string) (*model.UploadSession, error) {
	where := map[string]interface{}{
		"id":      sessionID,
		"user_id": userID,
	}
	sqlStr, args, err := builder.BuildSelect("upload_sessions", where, uploadSessionFields)
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
	var s model.UploadSession
	if err := rows.Scan(&s.ID, &s.UserID, &s.FileKey, &s.Filename, &s.FileSize, &s.MimeType,
		&s.ContentHash, &s.Status, &s.ExpiresAt, &s.Ctime); err != nil {
		return nil, err
	}
	return &s, nil
}

// MarkConfirmed flips an issued session to confirmed; a second confirm on
// the same session reports not found so double confirmation cannot create
// a second document.
func (r *UploadSessionRepo) MarkConfirmed(ctx context.Context, userID, sessionID string) error {
	sqlStr, args, err := builder.BuildUpdate("upload_sessions", map[string]interface{}{
		"id":      sessionID,
		"user_id": userID,
		"status":  model.UploadSessionIssued,
	}, map[string]interface{}{
		"status": model.UploadSessionConfirmed,
	})
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

func (r *UploadSessionRepo) DeleteExpired(ctx context.Context, now int64) (int64, error) {
	sqlStr, args := dbutil.Finalize(
		"DELETE FROM upload_sessions WHERE status = ? AND expires_at < ?",
		[]interface{}{model.UploadSessionIssued, now},
	)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
