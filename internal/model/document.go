package model

const (
	ProcessingPending   = "embeddings-pending"
	ProcessingCompleted = "completed"
	ProcessingFailed    = "failed"
)

type Document struct {
	ID               string  `json:"id"`
	UserID           string  `json:"user_id"`
	Filename         string  `json:"filename"`
	FileSize         int64   `json:"file_size"`
	MimeType         string  `json:"mime_type"`
	ContentHash      string  `json:"content_hash"`
	FileKey          string  `json:"file_key"`
	FolderID         *string `json:"folder_id"`
	ProcessingStatus string  `json:"processing_status"`
	ProcessingError  string  `json:"processing_error,omitempty"`
	AIChatReady      bool    `json:"ai_chat_ready"`
	Encrypted        bool    `json:"encrypted"`
	ExtractedText    string  `json:"-"`
	State            int     `json:"-"`
	Ctime            int64   `json:"ctime"`
	Mtime            int64   `json:"mtime"`
}

// EncryptionEnvelope carries the client-side encryption parameters that the
// server stores verbatim; the plaintext never reaches the server when set.
type EncryptionEnvelope struct {
	FilenameCipher string `json:"filename_cipher"`
	FilenameSalt   string `json:"filename_salt"`
	FilenameIV     string `json:"filename_iv"`
	ContentSalt    string `json:"content_salt"`
	ContentIV      string `json:"content_iv"`
	TextCipher     string `json:"text_cipher,omitempty"`
	TextSalt       string `json:"text_salt,omitempty"`
	TextIV         string `json:"text_iv,omitempty"`
}
