package app

import (
	"fmt"
	"time"

	"course_progress_backend/docs"
	"course_progress_backend/internal/config"
	"course_progress_backend/internal/middleware"
	"course_progress_backend/internal/util"
	"course_progress_backend/pkg/monitoring"
	"course_progress_backend/pkg/security"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	router.GET("/api/health", c.health.HealthCheck)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg.JWT.Secret))
	if cfg.RateLimit.LearnerMaxRequests > 0 {
		window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
		authGroup.Use(security.KeyedRateLimiter(cfg.RateLimit.LearnerMaxRequests, window, learnerKey))
	}
	{
		a.registerLearningRoutes(authGroup, c)
		a.registerAnalyticsRoutes(authGroup, c)
	}
}

func (a *App) registerLearningRoutes(group *gin.RouterGroup, c *controllers) {
	learning := group.Group("/learning")
	{
		learning.POST("/sessions", c.learning.StartSession)
		learning.GET("/sessions/:sessionId", c.learning.GetSession)
		learning.POST("/sessions/:sessionId/end", c.learning.EndSession)
		learning.GET("/sessions/:sessionId/interactions", c.learning.ListInteractions)
		learning.POST("/sessions/:sessionId/interactions", c.learning.RecordInteraction)

		learning.PUT("/lessons/:lessonId/progress", c.learning.UpdateProgress)
		learning.GET("/lessons/:lessonId/progress", c.learning.GetProgress)
		learning.GET("/courses/:courseId/progress", c.learning.ListCourseProgress)

		learning.GET("/summary", c.learning.GetSummary)
		learning.GET("/streak", c.learning.GetStreak)
	}
}

// 教师与管理员
func (a *App) registerAnalyticsRoutes(group *gin.RouterGroup, c *controllers) {
	analytics := group.Group("/analytics")
	analytics.Use(middleware.RoleMiddleware(util.RoleInstructor))
	{
		analytics.GET("/courses/:courseId", c.analytics.GetCourseMetrics)
		analytics.POST("/courses/:courseId/reports", c.analytics.ExportCourseReport)
		analytics.GET("/lessons/:lessonId", c.analytics.GetLessonMetrics)
	}
}

func learnerKey(c *gin.Context) string {
	user := util.GetUserFromContext(c)
	if user == nil {
		return ""
	}
	return fmt.Sprintf("user:%d", user.UserID)
}
