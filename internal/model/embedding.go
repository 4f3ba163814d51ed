package model

type ChunkEmbedding struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	UserID     string    `json:"user_id"`
	Position   int       `json:"position"`
	Content    string    `json:"content"`
	ChunkHash  string    `json:"chunk_hash"`
	Embedding  []float32 `json:"embedding"`
	Ctime      int64     `json:"ctime"`
}
