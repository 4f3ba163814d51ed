package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/docvault/docvault/internal/pkg/errcode"
	"github.com/docvault/docvault/internal/pkg/response"
	"github.com/docvault/docvault/internal/service"
)

type FolderHandler struct {
	folders *service.FolderService
}

func NewFolderHandler(folders *service.FolderService) *FolderHandler {
	return &FolderHandler{folders: folders}
}

type folderCreateRequest struct {
	Name           string  `json:"name"`
	ParentFolderID *string `json:"parent_folder_id"`
	Emoji          string  `json:"emoji"`
}

func (h *FolderHandler) Create(c *gin.Context) {
	var req folderCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	folder, err := h.folders.Create(c.Request.Context(), getUserID(c), service.FolderCreateInput{
		Name:           req.Name,
		ParentFolderID: req.ParentFolderID,
		Emoji:          req.Emoji,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, folder)
}

func (h *FolderHandler) List(c *gin.Context) {
	folders, err := h.folders.List(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, folders)
}

func (h *FolderHandler) Categories(c *gin.Context) {
	categories, err := h.folders.Categories(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, categories)
}

type folderPatchRequest struct {
	Name  *string `json:"name"`
	Emoji *string `json:"emoji"`
}

func (h *FolderHandler) Patch(c *gin.Context) {
	var req folderPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	err := h.folders.Update(c.Request.Context(), getUserID(c), c.Param("id"), service.FolderUpdateInput{
		Name:  req.Name,
		Emoji: req.Emoji,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *FolderHandler) Delete(c *gin.Context) {
	if err := h.folders.Delete(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}
