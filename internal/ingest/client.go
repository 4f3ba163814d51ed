package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/docvault/docvault/internal/model"
	"github.com/docvault/docvault/internal/service"
)

// Client talks to the docvault REST API with a bearer token. All
// responses come wrapped in the {code, message, data} envelope; a
// non-zero code surfaces as an error.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 5 * time.Minute},
	}
}

type apiEnvelope struct {
	Code    uint32          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	var envelope apiEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("%s %s: status %d, undecodable body", method, path, resp.StatusCode)
	}
	if envelope.Code != 0 {
		return fmt.Errorf("%s %s: server code %d: %s", method, path, envelope.Code, envelope.Message)
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(payload), "application/json", out)
}

func (c *Client) patchJSON(ctx context.Context, path string, in interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return c.do(ctx, http.MethodPatch, path, bytes.NewReader(payload), "application/json", nil)
}

// MultipartUpload carries everything the single-call upload endpoint
// accepts: raw bytes plus metadata, with the envelope set only for
// encrypted payloads.
type MultipartUpload struct {
	Filename      string
	MimeType      string
	ContentHash   string
	Category      string
	ExtractedText string
	Envelope      *model.EncryptionEnvelope
	Content       []byte
}

func (c *Client) Upload(ctx context.Context, up MultipartUpload) (*service.UploadResult, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", up.Filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(up.Content); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}
	fields := map[string]string{
		"filename":       up.Filename,
		"mime_type":      up.MimeType,
		"content_hash":   up.ContentHash,
		"category":       up.Category,
		"extracted_text": up.ExtractedText,
	}
	if up.Envelope != nil {
		envelopeJSON, err := json.Marshal(up.Envelope)
		if err != nil {
			return nil, fmt.Errorf("encode envelope: %w", err)
		}
		fields["encryption_envelope"] = string(envelopeJSON)
	}
	for key, value := range fields {
		if value == "" {
			continue
		}
		if err := writer.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("write field %s: %w", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}
	var result service.UploadResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/documents/upload", &buf, writer.FormDataContentType(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) IssueUploadURL(ctx context.Context, filename, mimeType, contentHash string, fileSize int64) (*service.PresignedUpload, error) {
	var issued service.PresignedUpload
	err := c.postJSON(ctx, "/api/v1/documents/upload-url", map[string]interface{}{
		"filename":     filename,
		"file_size":    fileSize,
		"mime_type":    mimeType,
		"content_hash": contentHash,
	}, &issued)
	if err != nil {
		return nil, err
	}
	return &issued, nil
}

// PutPresigned uploads bytes straight to storage, bypassing the API.
func (c *Client) PutPresigned(ctx context.Context, url, mimeType string, content []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(content))
	if err != nil {
		return fmt.Errorf("build presigned put: %w", err)
	}
	if mimeType != "" {
		req.Header.Set("Content-Type", mimeType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("presigned put: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("presigned put: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) ConfirmUpload(ctx context.Context, sessionID, category, extractedText string, envelope *model.EncryptionEnvelope) (*service.UploadResult, error) {
	var result service.UploadResult
	err := c.postJSON(ctx, "/api/v1/documents/"+sessionID+"/confirm-upload", map[string]interface{}{
		"category":            category,
		"extracted_text":      extractedText,
		"encryption_envelope": envelope,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ListDocuments(ctx context.Context) ([]model.Document, error) {
	var docs []model.Document
	if err := c.do(ctx, http.MethodGet, "/api/v1/documents", nil, "", &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *Client) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	var doc model.Document
	if err := c.do(ctx, http.MethodGet, "/api/v1/documents/"+id, nil, "", &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) RenameDocument(ctx context.Context, id, filename string) error {
	return c.patchJSON(ctx, "/api/v1/documents/"+id, map[string]interface{}{"filename": filename})
}

func (c *Client) MoveDocument(ctx context.Context, id string, folderID *string) error {
	if folderID == nil {
		return c.patchJSON(ctx, "/api/v1/documents/"+id, map[string]interface{}{"move_to_root": true})
	}
	return c.patchJSON(ctx, "/api/v1/documents/"+id, map[string]interface{}{"folder_id": *folderID})
}

func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/documents/"+id, nil, "", nil)
}

func (c *Client) ListFolders(ctx context.Context) ([]model.Folder, error) {
	var folders []model.Folder
	if err := c.do(ctx, http.MethodGet, "/api/v1/folders", nil, "", &folders); err != nil {
		return nil, err
	}
	return folders, nil
}

func (c *Client) ListCategories(ctx context.Context) ([]model.Category, error) {
	var categories []model.Category
	if err := c.do(ctx, http.MethodGet, "/api/v1/folders/categories", nil, "", &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

func (c *Client) CreateFolder(ctx context.Context, name string, parentID *string, emoji string) (*model.Folder, error) {
	var folder model.Folder
	err := c.postJSON(ctx, "/api/v1/folders", map[string]interface{}{
		"name":             name,
		"parent_folder_id": parentID,
		"emoji":            emoji,
	}, &folder)
	if err != nil {
		return nil, err
	}
	return &folder, nil
}

func (c *Client) RenameFolder(ctx context.Context, id, name string) error {
	return c.patchJSON(ctx, "/api/v1/folders/"+id, map[string]interface{}{"name": name})
}

func (c *Client) DeleteFolder(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/folders/"+id, nil, "", nil)
}

// Login fetches a token for the given credentials; used by the CLI when
// no token flag is supplied.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	err := c.postJSON(ctx, "/api/v1/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return "", err
	}
	c.token = out.Token
	return out.Token, nil
}
