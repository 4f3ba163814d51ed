package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/docvault/docvault/internal/middleware"
)

type RouterDeps struct {
	Auth      *AuthHandler
	Documents *DocumentHandler
	Folders   *FolderHandler
	Uploads   *UploadHandler
	Events    *WSHandler
	JWTSecret []byte
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/auth/register", deps.Auth.Register)
	api.POST("/auth/login", deps.Auth.Login)

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))

	authGroup.GET("/documents", deps.Documents.List)
	authGroup.GET("/documents/:id", deps.Documents.Get)
	authGroup.PATCH("/documents/:id", deps.Documents.Patch)
	authGroup.DELETE("/documents/:id", deps.Documents.Delete)

	authGroup.POST("/documents/upload", deps.Uploads.Multipart)
	authGroup.POST("/documents/upload-url", deps.Uploads.IssueURL)
	authGroup.POST("/documents/:id/confirm-upload", deps.Uploads.Confirm)

	authGroup.GET("/folders", deps.Folders.List)
	authGroup.GET("/folders/categories", deps.Folders.Categories)
	authGroup.POST("/folders", deps.Folders.Create)
	authGroup.PATCH("/folders/:id", deps.Folders.Patch)
	authGroup.DELETE("/folders/:id", deps.Folders.Delete)

	authGroup.GET("/events", deps.Events.Subscribe)
}
