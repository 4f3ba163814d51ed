package repo

import (
	"context"
	"database/sql"

	"github.com/pgvector/pgvector-go"

	"github.com/docvault/docvault/internal/model"
	"github.com/docvault/docvault/internal/pkg/dbutil"
)

type EmbeddingRepo struct {
	db *sql.DB
}

func NewEmbeddingRepo(db *sql.DB) *EmbeddingRepo {
	return &EmbeddingRepo{db: db}
}

func (r *EmbeddingRepo) ReplaceForDocument(ctx context.Context, documentID string, chunks []model.ChunkEmbedding) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	sqlStr, args := dbutil.Finalize(
		"DELETE FROM document_embeddings WHERE document_id = ?",
		[]interface{}{documentID},
	)
	if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
		return err
	}
	for _, chunk := range chunks {
		sqlStr, args := dbutil.Finalize(
			"INSERT INTO document_embeddings (id, document_id, user_id, position, content, chunk_hash, embedding, ctime) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			[]interface{}{chunk.ID, chunk.DocumentID, chunk.UserID, chunk.Position, chunk.Content, chunk.ChunkHash, pgvector.NewVector(chunk.Embedding), chunk.Ctime},
		)
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *EmbeddingRepo) SearchByVector(ctx context.Context, userID string, query []float32, limit int) ([]model.ChunkEmbedding, error) {
	sqlStr, args := dbutil.Finalize(
		"SELECT id, document_id, user_id, position, content, chunk_hash, ctime FROM document_embeddings WHERE user_id = ? ORDER BY embedding <=> ? LIMIT ?",
		[]interface{}{userID, pgvector.NewVector(query), limit},
	)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	chunks := make([]model.ChunkEmbedding, 0)
	for rows.Next() {
		var chunk model.ChunkEmbedding
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.UserID, &chunk.Position,
			&chunk.Content, &chunk.ChunkHash, &chunk.Ctime); err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func (r *EmbeddingRepo) DeleteByDocument(ctx context.Context, documentID string) error {
	sqlStr, args := dbutil.Finalize(
		"DELETE FROM document_embeddings WHERE document_id = ?",
		[]interface{}{documentID},
	)
	_, err := r.db.ExecContext(ctx, sqlStr, args...)
	return err
}
