package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"taskmanager/internal/api/auth"
	"taskmanager/internal/api/middleware"
	"taskmanager/internal/config"
	"taskmanager/internal/model"
	"taskmanager/internal/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// errCallerUnresolved 表示通过了认证但在用户表里找不到对应记录。
//
// 这是授权与数据之间的不变量被破坏，不是调用方输入错误。
var errCallerUnresolved = errors.New("caller identity could not be resolved")

// Server 封装了 API 服务所需的依赖和路由处理。
//
// 它持有数据库连接、Redis 客户端以及 Gin 路由引擎。
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *gorm.DB
	rdb    *redis.Client
	router *gin.Engine
	auth   *auth.Handler
}

// NewServer 初始化 API 服务器。
//
// 它负责：
// 1. 连接 PostgreSQL 数据库并执行自动迁移
// 2. 连接 Redis
// 3. 初始化 Gin 路由引擎
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent), // 关闭GORM调试日志
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	metrics.InitMetrics()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))

	s := &Server{
		cfg:    cfg,
		logger: logger,
		db:     db,
		rdb:    rdb,
		router: r,
		auth:   auth.NewHandler(db, cfg.Security.JWTSecret, logger),
	}
	s.registerRoutes()
	return s, nil
}

// AutoMigrate 迁移全部实体表。
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.File{},
		&model.Team{},
		&model.Group{},
		&model.Project{},
		&model.TaskType{},
		&model.TaskTag{},
		&model.Task{},
		&model.Comment{},
		&model.DayTimetable{},
		&model.WorkVisit{},
		&model.Notification{},
	)
}

// Run 启动 HTTP 服务器并开始监听请求。
func (s *Server) Run() error {
	s.logger.Info("api server listening", slog.String("addr", s.cfg.App.HTTPAddr))
	return s.router.Run(s.cfg.App.HTTPAddr)
}

// Router 返回 HTTP 路由处理器。
func (s *Server) Router() http.Handler {
	return s.router
}

// Close 关闭数据库与缓存连接。
func (s *Server) Close() error {
	var firstErr error
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			firstErr = err
		}
	}
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else {
			if closeErr := sqlDB.Close(); closeErr != nil {
				if firstErr == nil {
					firstErr = closeErr
				}
			}
		}
	}
	return firstErr
}

// registerRoutes 注册所有的 API 路由。
func (s *Server) registerRoutes() {
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/healthz", s.handleHealthz)

	s.router.POST("/register", s.auth.Register)
	s.router.POST("/login", s.auth.Login)

	limiter := middleware.NewUserRateLimiter(s.rdb, s.logger, s.cfg.App.RateLimit, s.cfg.App.RateBurst)

	api := s.router.Group("/api")
	api.Use(middleware.AuthMiddleware(s.cfg.Security.JWTSecret))
	api.Use(middleware.RateLimit(limiter))

	project := api.Group("/project")
	project.POST("/", s.handleCreateProject)
	project.GET("/", s.handleListProjects)
	project.GET("/:id", s.handleGetProject)
	project.PATCH("/:id", s.handleUpdateProject)
	project.POST("/:id/add", s.handleAddUserToProject)
	project.GET("/:id/task/status", s.handleListTaskStatuses)

	task := api.Group("/task")
	task.POST("/", s.handleCreateTask)
	task.GET("/", s.handleListTasks)
	task.GET("/:id", s.handleGetTask)
	task.POST("/:id", s.handleAssignUserToTask)
	task.PATCH("/:id", s.handleUpdateTask)
	task.DELETE("/:id", s.handleDeleteTask)
	task.POST("/:id/comment", s.handleCreateComment)
	task.GET("/:id/comment", s.handleListComments)

	team := api.Group("/team")
	team.GET("/", s.handleListTeams)
	team.POST("/", s.handleCreateTeam)
	team.GET("/:id", s.handleGetTeamGroup)

	timetable := api.Group("/timetable")
	timetable.GET("/", s.handleListTimetable)
	timetable.GET("/default", s.handleDefaultTimetable)
	timetable.POST("/default", s.handleSeedTimetable)

	visit := api.Group("/visit")
	visit.POST("/", s.handleCreateVisit)
	visit.GET("/:id", s.handleGetVisit)

	file := api.Group("/file")
	file.POST("/", s.handleCreateFile)
	file.GET("/:id", s.handleGetFile)
}

func (s *Server) handleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.db == nil || s.rdb == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	var one int
	if err := s.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// resolveCaller 按认证中间件写入的邮箱查找调用者。
//
// 找不到记录时返回 errCallerUnresolved，由各端点决定映射成 404 还是 500。
func (s *Server) resolveCaller(c *gin.Context) (*model.User, error) {
	email := c.GetString("email")
	if email == "" {
		return nil, errCallerUnresolved
	}
	var user model.User
	if err := s.db.WithContext(c.Request.Context()).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", errCallerUnresolved, email)
		}
		return nil, err
	}
	return &user, nil
}

// parseIDParam 解析路径中的数字 ID。
func parseIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}
