package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/docvault/docvault/internal/pkg/errcode"
	"github.com/docvault/docvault/internal/pkg/response"
	"github.com/docvault/docvault/internal/service"
)

type DocumentHandler struct {
	documents *service.DocumentService
}

func NewDocumentHandler(documents *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.documents.List(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, docs)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.documents.Get(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

type documentPatchRequest struct {
	Filename *string `json:"filename"`
	FolderID *string `json:"folder_id"`
	// MoveToRoot distinguishes "clear the folder" from "leave it alone",
	// which a nullable folder_id alone cannot express.
	MoveToRoot bool `json:"move_to_root"`
}

func (h *DocumentHandler) Patch(c *gin.Context) {
	var req documentPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	userID := getUserID(c)
	docID := c.Param("id")
	ctx := c.Request.Context()
	if req.Filename != nil {
		if err := h.documents.Rename(ctx, userID, docID, *req.Filename); err != nil {
			handleError(c, err)
			return
		}
	}
	if req.FolderID != nil || req.MoveToRoot {
		target := req.FolderID
		if req.MoveToRoot {
			target = nil
		}
		if err := h.documents.Move(ctx, userID, docID, target); err != nil {
			handleError(c, err)
			return
		}
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.documents.Delete(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}
