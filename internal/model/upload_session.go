package model

const (
	UploadSessionIssued    = "issued"
	UploadSessionConfirmed = "confirmed"
)

// UploadSession tracks a presigned direct-to-storage upload between the
// upload-url issue call and the confirm call.
type UploadSession struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	FileKey     string `json:"file_key"`
	Filename    string `json:"filename"`
	FileSize    int64  `json:"file_size"`
	MimeType    string `json:"mime_type"`
	ContentHash string `json:"content_hash"`
	Status      string `json:"status"`
	ExpiresAt   int64  `json:"expires_at"`
	Ctime       int64  `json:"ctime"`
}
