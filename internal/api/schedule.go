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

// createVisitRequest 创建到访记录的请求参数。
type createVisitRequest struct {
	DayTimetableID uint       `json:"day_timetable_id" binding:"required"`
	VisitedAt      *time.Time `json:"visited_at"`
	EndedAt        *time.Time `json:"ended_at"`
}

// handleDefaultTimetable 返回生成的默认一周时间表，不落库。
//
// GET /api/timetable/default
func (s *Server) handleDefaultTimetable(c *gin.Context) {
	c.JSON(http.StatusOK, model.DefaultWeek(time.Now().UTC()))
}

// handleSeedTimetable 将默认一周时间表持久化并返回落库后的记录。
//
// POST /api/timetable/default
func (s *Server) handleSeedTimetable(c *gin.Context) {
	days := model.DefaultWeek(time.Now().UTC())
	if err := s.db.WithContext(c.Request.Context()).Create(&days).Error; err != nil {
		s.logger.Error("seed timetable failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "seed timetable failed"})
		return
	}
	c.JSON(http.StatusOK, days)
}

// handleListTimetable 列出已持久化的时间表条目。
//
// GET /api/timetable/
func (s *Server) handleListTimetable(c *gin.Context) {
	days := []model.DayTimetable{}
	if err := s.db.WithContext(c.Request.Context()).Order("id").Find(&days).Error; err != nil {
		s.logger.Error("list timetable failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list timetable failed"})
		return
	}
	c.JSON(http.StatusOK, days)
}

// handleCreateVisit 创建到访记录，必须引用已存在的时间表条目。
//
// POST /api/visit/
//
// 未指定窗口时默认从当前时间起一个完整的 8 小时时段。
func (s *Server) handleCreateVisit(c *gin.Context) {
	var req createVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	var day model.DayTimetable
	if err := s.db.WithContext(ctx).First(&day, "id = ?", req.DayTimetableID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "day timetable not found"})
			return
		}
		s.logger.Error("get day timetable failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get day timetable failed"})
		return
	}

	now := time.Now().UTC()
	visitedAt := now
	if req.VisitedAt != nil {
		visitedAt = *req.VisitedAt
	}
	endedAt := visitedAt.Add(8 * time.Hour)
	if req.EndedAt != nil {
		endedAt = *req.EndedAt
	}

	visit := model.WorkVisit{
		VisitedAt:      visitedAt,
		EndedAt:        endedAt,
		DayTimetableID: day.ID,
	}
	if err := s.db.WithContext(ctx).Create(&visit).Error; err != nil {
		s.logger.Error("create work visit failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create work visit failed"})
		return
	}

	visit.DayTimetable = &day
	c.JSON(http.StatusOK, visit)
}

// handleGetVisit 按 ID 获取到访记录。
//
// GET /api/visit/:id
func (s *Server) handleGetVisit(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var visit model.WorkVisit
	err := s.db.WithContext(c.Request.Context()).
		Preload("DayTimetable").
		First(&visit, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "work visit not found"})
			return
		}
		s.logger.Error("get work visit failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get work visit failed"})
		return
	}

	c.JSON(http.StatusOK, visit)
}
