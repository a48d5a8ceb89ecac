package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"taskmanager/internal/model"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// createProjectRequest 创建项目的请求参数。
type createProjectRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// addUserToProjectRequest 向项目添加成员的请求参数。
type addUserToProjectRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}

// updateProjectRequest 项目的部分更新参数。
//
// 字段缺失或为空串都表示保持原值不变。
type updateProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IconID      *uint   `json:"icon_id"`
}

// projectPreload 展开项目的全部关联。
func projectPreload(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Users").
		Preload("TaskTypes").
		Preload("Teams").
		Preload("CreatedBy").
		Preload("Icon")
}

// handleCreateProject 处理创建项目的请求。
//
// POST /api/project/
//
// 新项目固定附带三个任务类型标签，创建时间取当前 UTC 时间。
func (s *Server) handleCreateProject(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := s.resolveCaller(c)
	if err != nil {
		if errors.Is(err, errCallerUnresolved) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		s.logger.Error("resolve caller failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query user failed"})
		return
	}

	project := model.Project{
		Name:        req.Name,
		Description: req.Description,
		CreatedByID: user.ID,
		CreatedAt:   time.Now().UTC(),
		TaskTypes: []model.TaskType{
			{Name: model.TaskTypeInProgress},
			{Name: model.TaskTypeTodo},
			{Name: model.TaskTypeDone},
		},
		Users: []model.User{},
		Teams: []model.Team{},
	}

	if err := s.db.WithContext(c.Request.Context()).Create(&project).Error; err != nil {
		s.logger.Error("create project failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create project failed"})
		return
	}

	project.CreatedBy = user
	c.JSON(http.StatusOK, project)
}

// handleGetProject 按 ID 获取项目，关联全部展开。
//
// GET /api/project/:id
func (s *Server) handleGetProject(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var project model.Project
	err := projectPreload(s.db.WithContext(c.Request.Context())).First(&project, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}
		s.logger.Error("get project failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get project failed"})
		return
	}

	c.JSON(http.StatusOK, project)
}

// handleListProjects 列出项目，可按名称做全文检索。
//
// GET /api/project/?name=
//
// name 走 PostgreSQL 的 tsvector 匹配（分词匹配，不是子串匹配）。
func (s *Server) handleListProjects(c *gin.Context) {
	name := c.Query("name")

	query := projectPreload(s.db.WithContext(c.Request.Context()))
	if name != "" {
		query = query.Where("to_tsvector('simple', name) @@ plainto_tsquery('simple', ?)", name)
	}

	projects := []model.Project{}
	if err := query.Find(&projects).Error; err != nil {
		s.logger.Error("list projects failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list projects failed"})
		return
	}

	c.JSON(http.StatusOK, projects)
}

// handleAddUserToProject 向项目添加成员。
//
// POST /api/project/:id/add/
//
// 重复添加不是幂等空操作，而是 400 拒绝。
func (s *Server) handleAddUserToProject(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req addUserToProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	var project model.Project
	if err := s.db.WithContext(ctx).Preload("Users").First(&project, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}
		s.logger.Error("get project failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get project failed"})
		return
	}

	var user model.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", req.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		s.logger.Error("get user failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get user failed"})
		return
	}

	for _, member := range project.Users {
		if member.ID == user.ID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user already in project"})
			return
		}
	}

	if err := s.db.WithContext(ctx).Model(&project).Association("Users").Append(&user); err != nil {
		s.logger.Error("add user to project failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "add user failed"})
		return
	}

	c.JSON(http.StatusOK, project)
}

// handleUpdateProject 部分更新项目。
//
// PATCH /api/project/:id
//
// 指定 icon_id 时，对应的文件记录必须已存在。
func (s *Server) handleUpdateProject(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req updateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	var project model.Project
	if err := s.db.WithContext(ctx).First(&project, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}
		s.logger.Error("get project failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get project failed"})
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil && *req.Name != "" {
		updates["name"] = *req.Name
	}
	if req.Description != nil && *req.Description != "" {
		updates["description"] = *req.Description
	}
	if req.IconID != nil {
		var icon model.File
		if err := s.db.WithContext(ctx).First(&icon, "id = ?", *req.IconID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
				return
			}
			s.logger.Error("get file failed", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "get file failed"})
			return
		}
		updates["icon_id"] = icon.ID
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&model.Project{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			s.logger.Error("update project failed", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update project failed"})
			return
		}
	}

	var updated model.Project
	if err := projectPreload(s.db.WithContext(ctx)).First(&updated, "id = ?", id).Error; err != nil {
		s.logger.Error("reload project failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get project failed"})
		return
	}

	c.JSON(http.StatusOK, updated)
}

// handleListTaskStatuses 返回项目内所有任务的状态字符串。
//
// GET /api/project/:id/task/status
//
// 不去重，与任务类型标签无关。
func (s *Server) handleListTaskStatuses(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	statuses := []string{}
	err := s.db.WithContext(c.Request.Context()).
		Model(&model.Task{}).
		Where("project_id = ?", id).
		Order("id").
		Pluck("status", &statuses).Error
	if err != nil {
		s.logger.Error("list task statuses failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list task statuses failed"})
		return
	}

	c.JSON(http.StatusOK, statuses)
}
