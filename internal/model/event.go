package model

// WebSocket event names pushed to clients while a document is processed.
const (
	EventProcessingUpdate = "document-processing-update"
	EventEmbeddingsReady  = "document-embeddings-ready"
	EventEmbeddingsFailed = "document-embeddings-failed"
)

type ProcessingUpdate struct {
	DocumentID string `json:"documentId"`
	Progress   int    `json:"progress"`
	Message    string `json:"message"`
}

type EmbeddingsReady struct {
	DocumentID string `json:"documentId"`
	Filename   string `json:"filename"`
}

type EmbeddingsFailed struct {
	DocumentID string `json:"documentId"`
	Error      string `json:"error"`
}

// Event is the wire envelope: the event name plus its payload.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}
