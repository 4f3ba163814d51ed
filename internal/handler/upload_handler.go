package handler

import (
	"encoding/json"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/docvault/docvault/internal/model"
	"github.com/docvault/docvault/internal/pkg/errcode"
	"github.com/docvault/docvault/internal/pkg/response"
	"github.com/docvault/docvault/internal/service"
)

type UploadHandler struct {
	uploads  *service.UploadService
	maxBytes int64
}

func NewUploadHandler(uploads *service.UploadService, maxBytes int64) *UploadHandler {
	return &UploadHandler{uploads: uploads, maxBytes: maxBytes}
}

// Multipart handles POST /documents/upload: bytes in the "file" part,
// metadata in plain form fields, the encryption envelope as a JSON field.
func (h *UploadHandler) Multipart(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "file is required")
		return
	}
	if h.maxBytes > 0 && file.Size > h.maxBytes {
		response.Error(c, errcode.ErrInvalidFile, "file exceeds upload limit")
		return
	}
	opened, err := file.Open()
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to open file")
		return
	}
	defer opened.Close()

	input := service.UploadInput{
		Filename:      c.PostForm("filename"),
		FileSize:      file.Size,
		MimeType:      c.PostForm("mime_type"),
		ContentHash:   c.PostForm("content_hash"),
		Category:      c.PostForm("category"),
		ExtractedText: c.PostForm("extracted_text"),
	}
	if input.Filename == "" {
		input.Filename = file.Filename
	}
	if envelopeJSON := c.PostForm("encryption_envelope"); envelopeJSON != "" {
		var envelope model.EncryptionEnvelope
		if err := json.Unmarshal([]byte(envelopeJSON), &envelope); err != nil {
			response.Error(c, errcode.ErrInvalid, "invalid encryption envelope")
			return
		}
		input.Encrypted = true
		input.Envelope = &envelope
	}
	result, err := h.uploads.UploadMultipart(c.Request.Context(), getUserID(c), input, opened)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

type uploadURLRequest struct {
	Filename    string `json:"filename"`
	FileSize    int64  `json:"file_size"`
	MimeType    string `json:"mime_type"`
	ContentHash string `json:"content_hash"`
}

func (h *UploadHandler) IssueURL(c *gin.Context) {
	var req uploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if h.maxBytes > 0 && req.FileSize > h.maxBytes {
		response.Error(c, errcode.ErrInvalidFile, "file exceeds upload limit ("+strconv.FormatInt(h.maxBytes/(1024*1024), 10)+"MB)")
		return
	}
	issued, err := h.uploads.IssueUploadURL(c.Request.Context(), getUserID(c), service.UploadInput{
		Filename:    req.Filename,
		FileSize:    req.FileSize,
		MimeType:    req.MimeType,
		ContentHash: req.ContentHash,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, issued)
}

type confirmUploadRequest struct {
	Category           string                    `json:"category"`
	ExtractedText      string                    `json:"extracted_text"`
	EncryptionEnvelope *model.EncryptionEnvelope `json:"encryption_envelope"`
}

func (h *UploadHandler) Confirm(c *gin.Context) {
	var req confirmUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	input := service.UploadInput{
		Category:      req.Category,
		ExtractedText: req.ExtractedText,
	}
	if req.EncryptionEnvelope != nil {
		input.Encrypted = true
		input.Envelope = req.EncryptionEnvelope
	}
	result, err := h.uploads.ConfirmUpload(c.Request.Context(), getUserID(c), c.Param("id"), input)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}
