package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/docvault/docvault/internal/config"
)

func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		return nil, err
	}
	return conn, nil
}

func ApplyMigrations(conn *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := conn.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		ctime BIGINT NOT NULL,
		mtime BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS folders (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		parent_folder_id TEXT,
		emoji TEXT NOT NULL DEFAULT '',
		state INT NOT NULL DEFAULT 1,
		ctime BIGINT NOT NULL,
		mtime BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_folders_user ON folders (user_id, state)`,
	`CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		file_size BIGINT NOT NULL,
		mime_type TEXT NOT NULL DEFAULT '',
		content_hash TEXT NOT NULL DEFAULT '',
		file_key TEXT NOT NULL,
		folder_id TEXT,
		processing_status TEXT NOT NULL DEFAULT 'embeddings-pending',
		processing_error TEXT NOT NULL DEFAULT '',
		ai_chat_ready BOOLEAN NOT NULL DEFAULT FALSE,
		encrypted BOOLEAN NOT NULL DEFAULT FALSE,
		extracted_text TEXT NOT NULL DEFAULT '',
		encryption_envelope TEXT NOT NULL DEFAULT '',
		state INT NOT NULL DEFAULT 1,
		ctime BIGINT NOT NULL,
		mtime BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_user ON documents (user_id, state)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents (user_id, content_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_pending ON documents (processing_status) WHERE processing_status = 'embeddings-pending'`,
	`CREATE TABLE IF NOT EXISTS upload_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		file_key TEXT NOT NULL,
		filename TEXT NOT NULL,
		file_size BIGINT NOT NULL,
		mime_type TEXT NOT NULL DEFAULT '',
		content_hash TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'issued',
		expires_at BIGINT NOT NULL,
		ctime BIGINT NOT NULL
	)`,
	`CREATE EXTENSION IF NOT EXISTS vector`,
	`CREATE TABLE IF NOT EXISTS document_embeddings (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		position INT NOT NULL,
		content TEXT NOT NULL,
		chunk_hash TEXT NOT NULL,
		embedding vector(768),
		ctime BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_embeddings_document ON document_embeddings (document_id)`,
}
