package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"taskmanager/internal/model"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// createTeamRequest 创建团队的请求参数。
type createTeamRequest struct {
	Name    string `json:"name" binding:"required"`
	UserIDs []uint `json:"user_ids"`
}

// handleCreateTeam 处理创建团队的请求。
//
// POST /api/team/
//
// 团队固定带两个 employee 分组：一个按 user_ids 填充（无法解析的 ID 静默跳过），
// 另一个为空。分组与团队在同一个事务里落库，避免出现没有团队引用的孤儿分组。
func (s *Server) handleCreateTeam(c *gin.Context) {
	var req createTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	owner, err := s.resolveCaller(c)
	if err != nil {
		if errors.Is(err, errCallerUnresolved) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		s.logger.Error("resolve caller failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query user failed"})
		return
	}

	ctx := c.Request.Context()
	members := []model.User{}
	if len(req.UserIDs) > 0 {
		if err := s.db.WithContext(ctx).Where("id IN ?", req.UserIDs).Find(&members).Error; err != nil {
			s.logger.Error("resolve team members failed", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query users failed"})
			return
		}
	}

	team := model.Team{
		Name:        req.Name,
		CreatedByID: owner.ID,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&team).Error; err != nil {
			return err
		}

		seeded := model.Group{
			TeamID:  &team.ID,
			Role:    model.GroupRoleEmployee,
			OwnerID: owner.ID,
			Users:   members,
		}
		empty := model.Group{
			TeamID:  &team.ID,
			Role:    model.GroupRoleEmployee,
			OwnerID: owner.ID,
			Users:   []model.User{},
		}

		if err := tx.Create(&seeded).Error; err != nil {
			return err
		}
		if err := tx.Create(&empty).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		s.logger.Error("create team failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create team failed"})
		return
	}

	var created model.Team
	err = s.db.WithContext(ctx).
		Preload("Groups.Users").
		Preload("Groups.Owner").
		Preload("CreatedBy").
		First(&created, "id = ?", team.ID).Error
	if err != nil {
		s.logger.Error("reload team failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get team failed"})
		return
	}

	c.JSON(http.StatusOK, created)
}

// handleListTeams 列出团队。
//
// GET /api/team/?user_id=
//
// 指定 user_id 时只返回该用户通过分组属于的团队，或由其创建的团队。
func (s *Server) handleListTeams(c *gin.Context) {
	ctx := c.Request.Context()
	query := s.db.WithContext(ctx).Preload("Groups").Preload("CreatedBy")

	if raw := c.Query("user_id"); raw != "" {
		userID, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
			return
		}
		query = query.
			Distinct("teams.*").
			Joins("LEFT JOIN groups ON groups.team_id = teams.id").
			Joins("LEFT JOIN group_users ON group_users.group_id = groups.id").
			Where("group_users.user_id = ? OR teams.created_by_id = ?", uint(userID), uint(userID))
	}

	teams := []model.Team{}
	if err := query.Find(&teams).Error; err != nil {
		s.logger.Error("list teams failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list teams failed"})
		return
	}

	c.JSON(http.StatusOK, teams)
}

// handleGetTeamGroup 按 ID 获取分组。
//
// GET /api/team/:id
//
// 历史遗留的接口：名字叫 get-team，返回的却是分组，且缺失时不报 404，
// 直接返回空结果。调用方依赖这个行为，保持不变。
func (s *Server) handleGetTeamGroup(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var group model.Group
	err := s.db.WithContext(c.Request.Context()).
		Preload("Users").
		Preload("Owner").
		First(&group, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusOK, nil)
			return
		}
		s.logger.Error("get group failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get group failed"})
		return
	}

	c.JSON(http.StatusOK, group)
}
