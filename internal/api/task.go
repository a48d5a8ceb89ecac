package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"taskmanager/internal/model"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// createTaskRequest 创建任务的请求参数。
type createTaskRequest struct {
	ProjectID      uint       `json:"project_id" binding:"required"`
	Title          string     `json:"title" binding:"required"`
	Description    string     `json:"description"`
	Status         string     `json:"status"`
	StartsAt       *time.Time `json:"starts_at"`
	EndsAt         *time.Time `json:"ends_at"`
	AssignToUserID *uint      `json:"assign_to_user_id"`
}

// assignUserRequest 指派任务执行人的请求参数。
type assignUserRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}

// updateTaskRequest 任务的部分更新参数。
//
// 字段缺失或为空串都表示保持原值不变。
type updateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

// createCommentRequest 任务评论的请求参数。
type createCommentRequest struct {
	Body string `json:"body" binding:"required"`
}

// taskPreload 展开任务的全部关联。
func taskPreload(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Tags").
		Preload("Project").
		Preload("AssignedUser").
		Preload("CreatedBy")
}

// handleCreateTask 处理创建任务的请求。
//
// POST /api/task/
//
// 未指定时间窗口时默认开始 = 当前时间，结束 = 当前时间 + 7 天。
// 认证通过但用户记录缺失属于不变量破坏，记录错误并返回 500，与普通 404 区分。
func (s *Server) handleCreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	var project model.Project
	if err := s.db.WithContext(ctx).First(&project, "id = ?", req.ProjectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}
		s.logger.Error("get project failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get project failed"})
		return
	}

	creator, err := s.resolveCaller(c)
	if err != nil {
		s.logger.Error("authenticated caller missing from store",
			slog.String("email", c.GetString("email")),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "identity resolution failed"})
		return
	}

	now := time.Now().UTC()
	startedAt := now
	if req.StartsAt != nil {
		startedAt = *req.StartsAt
	}
	endsAt := now.Add(7 * 24 * time.Hour)
	if req.EndsAt != nil {
		endsAt = *req.EndsAt
	}

	task := model.Task{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		StartedAt:   startedAt,
		EndsAt:      endsAt,
		ProjectID:   project.ID,
		CreatedByID: creator.ID,
		Tags:        []model.TaskTag{},
	}

	if req.AssignToUserID != nil {
		var assignee model.User
		if err := s.db.WithContext(ctx).First(&assignee, "id = ?", *req.AssignToUserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
				return
			}
			s.logger.Error("get user failed", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "get user failed"})
			return
		}
		task.AssignedUserID = &assignee.ID
		task.AssignedUser = &assignee
	}

	if err := s.db.WithContext(ctx).Omit("AssignedUser").Create(&task).Error; err != nil {
		s.logger.Error("create task failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create task failed"})
		return
	}

	task.Project = &project
	task.CreatedBy = creator
	c.JSON(http.StatusOK, task)
}

// handleGetTask 按 ID 获取任务，关联全部展开。
//
// GET /api/task/:id
func (s *Server) handleGetTask(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var task model.Task
	err := taskPreload(s.db.WithContext(c.Request.Context())).First(&task, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		s.logger.Error("get task failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get task failed"})
		return
	}

	c.JSON(http.StatusOK, task)
}

// handleListTasks 列出任务。
//
// GET /api/task/?user_tasks=&project_id=
//
// 两种互斥的过滤模式：user_tasks=true 返回调用者创建或被指派的任务，
// 否则按 project_id 过滤。两者不能组合。
func (s *Server) handleListTasks(c *gin.Context) {
	ctx := c.Request.Context()
	query := taskPreload(s.db.WithContext(ctx))

	if c.Query("user_tasks") == "true" {
		caller, err := s.resolveCaller(c)
		if err != nil {
			s.logger.Error("authenticated caller missing from store",
				slog.String("email", c.GetString("email")),
				slog.String("error", err.Error()),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "identity resolution failed"})
			return
		}
		query = query.Where("assigned_user_id = ? OR created_by_id = ?", caller.ID, caller.ID)
	} else {
		projectID, err := strconv.ParseUint(c.Query("project_id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project_id"})
			return
		}
		query = query.Where("project_id = ?", uint(projectID))
	}

	tasks := []model.Task{}
	if err := query.Order("id").Find(&tasks).Error; err != nil {
		s.logger.Error("list tasks failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list tasks failed"})
		return
	}

	c.JSON(http.StatusOK, tasks)
}

// handleAssignUserToTask 指派任务执行人，无条件覆盖旧值。
//
// POST /api/task/:id
func (s *Server) handleAssignUserToTask(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req assignUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	var task model.Task
	if err := s.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		s.logger.Error("get task failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get task failed"})
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

	if err := s.db.WithContext(ctx).Model(&task).Update("assigned_user_id", user.ID).Error; err != nil {
		s.logger.Error("assign user failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "assign user failed"})
		return
	}

	task.AssignedUserID = &user.ID
	task.AssignedUser = &user
	c.JSON(http.StatusOK, task)
}

// handleUpdateTask 部分更新任务。
//
// PATCH /api/task/:id
func (s *Server) handleUpdateTask(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	var task model.Task
	if err := s.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		s.logger.Error("get task failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get task failed"})
		return
	}

	updates := map[string]interface{}{}
	if req.Title != nil && *req.Title != "" {
		updates["title"] = *req.Title
	}
	if req.Description != nil && *req.Description != "" {
		updates["description"] = *req.Description
	}
	if req.Status != nil && *req.Status != "" {
		updates["status"] = *req.Status
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&model.Task{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			s.logger.Error("update task failed", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update task failed"})
			return
		}
	}

	var updated model.Task
	if err := taskPreload(s.db.WithContext(ctx)).First(&updated, "id = ?", id).Error; err != nil {
		s.logger.Error("reload task failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get task failed"})
		return
	}

	c.JSON(http.StatusOK, updated)
}

// handleDeleteTask 硬删除任务，返回删除前的最后状态。
//
// DELETE /api/task/:id
func (s *Server) handleDeleteTask(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var task model.Task
	if err := taskPreload(s.db.WithContext(ctx)).First(&task, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		s.logger.Error("get task failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get task failed"})
		return
	}

	if err := s.db.WithContext(ctx).Select("Tags").Delete(&model.Task{ID: task.ID}).Error; err != nil {
		s.logger.Error("delete task failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete task failed"})
		return
	}

	c.JSON(http.StatusOK, task)
}

// handleCreateComment 在任务下创建评论，作者为调用者。
//
// POST /api/task/:id/comment
func (s *Server) handleCreateComment(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req createCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	var task model.Task
	if err := s.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		s.logger.Error("get task failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get task failed"})
		return
	}

	author, err := s.resolveCaller(c)
	if err != nil {
		s.logger.Error("authenticated caller missing from store",
			slog.String("email", c.GetString("email")),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "identity resolution failed"})
		return
	}

	comment := model.Comment{
		TaskID:   task.ID,
		AuthorID: author.ID,
		Body:     req.Body,
	}
	if err := s.db.WithContext(ctx).Create(&comment).Error; err != nil {
		s.logger.Error("create comment failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create comment failed"})
		return
	}

	comment.Author = author
	c.JSON(http.StatusOK, comment)
}

// handleListComments 按时间顺序列出任务的评论。
//
// GET /api/task/:id/comment
func (s *Server) handleListComments(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var task model.Task
	if err := s.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		s.logger.Error("get task failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get task failed"})
		return
	}

	comments := []model.Comment{}
	err := s.db.WithContext(ctx).
		Preload("Author").
		Where("task_id = ?", task.ID).
		Order("created_at, id").
		Find(&comments).Error
	if err != nil {
		s.logger.Error("list comments failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list comments failed"})
		return
	}

	c.JSON(http.StatusOK, comments)
}
