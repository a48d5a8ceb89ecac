package api

import (
	"errors"
	"log/slog"
	"net/http"

	"taskmanager/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// createFileRequest 登记文件元数据的请求参数。
type createFileRequest struct {
	Name        string `json:"name" binding:"required"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// handleCreateFile 登记一条文件元数据，存储键由服务端生成。
//
// POST /api/file/
//
// 字节内容的上传走对象存储，不经过这里。
func (s *Server) handleCreateFile(c *gin.Context) {
	var req createFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	file := model.File{
		Name:        req.Name,
		StorageKey:  uuid.NewString(),
		ContentType: req.ContentType,
		Size:        req.Size,
	}
	if err := s.db.WithContext(c.Request.Context()).Create(&file).Error; err != nil {
		s.logger.Error("create file failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create file failed"})
		return
	}

	c.JSON(http.StatusOK, file)
}

// handleGetFile 按 ID 获取文件元数据。
//
// GET /api/file/:id
func (s *Server) handleGetFile(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var file model.File
	if err := s.db.WithContext(c.Request.Context()).First(&file, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
			return
		}
		s.logger.Error("get file failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get file failed"})
		return
	}

	c.JSON(http.StatusOK, file)
}
