package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/didi/gendry/builder"

	"github.com/docvault/docvault/internal/model"
	"github.com/docvault/docvault/internal/pkg/dbutil"
	appErr "github.com/docvault/docvault/internal/pkg/errors"
)

const (
	DocumentStateNormal  = 1
	DocumentStateDeleted = 2
)

var documentFields = []string{
	"id", "user_id", "filename", "file_size", "mime_type", "content_hash",
	"file_key", "folder_id", "processing_status", "processing_error",
	"ai_chat_ready", "encrypted", "extracted_text", "state", "ctime", "mtime",
}

type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) Create(ctx context.Context, doc *model.Document, envelope *model.EncryptionEnvelope) error {
	envelopeJSON := ""
	if envelope != nil {
		blob, err := json.Marshal(envelope)
		if err != nil {
			return err
		}
		envelopeJSON = string(blob)
	}
	data := map[string]interface{}{
		"id":                  doc.ID,
		"user_id":             doc.UserID,
		"filename":            doc.Filename,
		"file_size":           doc.FileSize,
		"mime_type":           doc.MimeType,
		"content_hash":        doc.ContentHash,
		"file_key":            doc.FileKey,
		"folder_id":           doc.FolderID,
		"processing_status":   doc.ProcessingStatus,
		"processing_error":    doc.ProcessingError,
		"ai_chat_ready":       doc.AIChatReady,
		"encrypted":           doc.Encrypted,
		"extracted_text":      doc.ExtractedText,
		"encryption_envelope": envelopeJSON,
		"state":               doc.State,
		"ctime":               doc.Ctime,
		"mtime":               doc.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("documents", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *DocumentRepo) update(ctx context.Context, userID, docID string, update map[string]interface{}) error {
	where := map[string]interface{}{
		"id":      docID,
		"user_id": userID,
		"state":   DocumentStateNormal,
	}
	sqlStr, args, err := builder.BuildUpdate("documents", where, update)
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

func (r *DocumentRepo) Rename(ctx context.Context, userID, docID, filename string, mtime int64) error {
	return r.update(ctx, userID, docID, map[string]interface{}{
		"filename": filename,
		"mtime":    mtime,
	})
}

func (r *DocumentRepo) Move(ctx context.Context, userID, docID string, folderID *string, mtime int64) error {
	return r.update(ctx, userID, docID, map[string]interface{}{
		"folder_id": folderID,
		"mtime":     mtime,
	})
}

func (r *DocumentRepo) UpdateProcessing(ctx context.Context, userID, docID, status, processingError string, aiChatReady bool, mtime int64) error {
	return r.update(ctx, userID, docID, map[string]interface{}{
		"processing_status": status,
		"processing_error":  processingError,
		"ai_chat_ready":     aiChatReady,
		"mtime":             mtime,
	})
}

func (r *DocumentRepo) Delete(ctx context.Context, userID, docID string, mtime int64) error {
	return r.update(ctx, userID, docID, map[string]interface{}{
		"state": DocumentStateDeleted,
		"mtime": mtime,
	})
}

func (r *DocumentRepo) queryOne(ctx context.Context, where map[string]interface{}) (*model.Document, error) {
	sqlStr, args, err := builder.BuildSelect("documents", where, documentFields)
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
	return scanDocument(rows)
}

func (r *DocumentRepo) GetByID(ctx context.Context, userID, docID string) (*model.Document, error) {
	return r.queryOne(ctx, map[string]interface{}{
		"id":      docID,
		"user_id": userID,
		"state":   DocumentStateNormal,
	})
}

// GetByHash reports an existing live document with the same content digest;
// the caller uses it for duplicate detection, never for rejecting uploads.
func (r *DocumentRepo) GetByHash(ctx context.Context, userID, contentHash string) (*model.Document, error) {
	return r.queryOne(ctx, map[string]interface{}{
		"user_id":      userID,
		"content_hash": contentHash,
		"state":        DocumentStateNormal,
		"_orderby":     "ctime desc",
		"_limit":       []uint{0, 1},
	})
}

func (r *DocumentRepo) List(ctx context.Context, userID string) ([]model.Document, error) {
	return r.queryMany(ctx, map[string]interface{}{
		"user_id":  userID,
		"state":    DocumentStateNormal,
		"_orderby": "ctime desc",
	})
}

func (r *DocumentRepo) ListByFolderIDs(ctx context.Context, userID string, folderIDs []string) ([]model.Document, error) {
	if len(folderIDs) == 0 {
		return []model.Document{}, nil
	}
	ids := make([]interface{}, 0, len(folderIDs))
	for _, id := range folderIDs {
		ids = append(ids, id)
	}
	return r.queryMany(ctx, map[string]interface{}{
		"user_id":     userID,
		"state":       DocumentStateNormal,
		"_custom_fid": builder.In{"folder_id": ids},
		"_orderby":    "ctime desc",
	})
}

func (r *DocumentRepo) ListPending(ctx context.Context, limit uint) ([]model.Document, error) {
	return r.queryMany(ctx, map[string]interface{}{
		"processing_status": model.ProcessingPending,
		"state":             DocumentStateNormal,
		"_orderby":          "ctime asc",
		"_limit":            []uint{0, limit},
	})
}

func (r *DocumentRepo) queryMany(ctx context.Context, where map[string]interface{}) ([]model.Document, error) {
	sqlStr, args, err := builder.BuildSelect("documents", where, documentFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	docs := make([]model.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// CountByFolder returns document counts per folder id for the category grid.
func (r *DocumentRepo) CountByFolder(ctx context.Context, userID string) (map[string]int, error) {
	sqlStr, args := dbutil.Finalize(
		"SELECT folder_id, COUNT(1) FROM documents WHERE user_id = ? AND state = ? AND folder_id IS NOT NULL GROUP BY folder_id",
		[]interface{}{userID, DocumentStateNormal},
	)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var folderID string
		var count int
		if err := rows.Scan(&folderID, &count); err != nil {
			return nil, err
		}
		counts[folderID] = count
	}
	return counts, rows.Err()
}

func scanDocument(rows *sql.Rows) (*model.Document, error) {
	var doc model.Document
	var folderID sql.NullString
	if err := rows.Scan(&doc.ID, &doc.UserID, &doc.Filename, &doc.FileSize, &doc.MimeType,
		&doc.ContentHash, &doc.FileKey, &folderID, &doc.ProcessingStatus, &doc.ProcessingError,
		&doc.AIChatReady, &doc.Encrypted, &doc.ExtractedText, &doc.State, &doc.Ctime, &doc.Mtime); err != nil {
		return nil, err
	}
	if folderID.Valid {
		doc.FolderID = &folderID.String
	}
	return &doc, nil
}
