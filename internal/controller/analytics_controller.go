package controller

import (
	"course_progress_backend/internal/service"
	"course_progress_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AnalyticsController struct {
	AnalyticsService *service.AnalyticsService
	ReportService    *service.ReportService
}

func NewAnalyticsController(analyticsService *service.AnalyticsService, reportService *service.ReportService) *AnalyticsController {
	return &AnalyticsController{
		AnalyticsService: analyticsService,
		ReportService:    reportService,
	}
}

// @Summary 课程学习分析
// @Description 报名人数、活跃人数、完成率、流失点、参与度与学员分层
// @Tags 学习分析
// @Produce json
// @Security BearerAuth
// @Param courseId path int true "课程ID"
// @Success 200 {object} util.Response{data=model.CourseMetrics}
// @Failure 404 {object} util.Response
// @Router /analytics/courses/{courseId} [get]
func (c *AnalyticsController) GetCourseMetrics(ctx *gin.Context) {
	courseID, ok := parseID(ctx, "courseId")
	if !ok {
		return
	}

	metrics, err := c.AnalyticsService.GetCourseMetrics(ctx.Request.Context(), courseID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, metrics)
}

// @Summary 课时学习分析
// @Description 平均观看时长、完成率、常见退出位置与交互热点
// @Tags 学习分析
// @Produce json
// @Security BearerAuth
// @Param lessonId path int true "课时ID"
// @Success 200 {object} util.Response{data=model.LessonMetrics}
// @Failure 404 {object} util.Response
// @Router /analytics/lessons/{lessonId} [get]
func (c *AnalyticsController) GetLessonMetrics(ctx *gin.Context) {
	lessonID, ok := parseID(ctx, "lessonId")
	if !ok {
		return
	}

	metrics, err := c.AnalyticsService.GetLessonMetrics(ctx.Request.Context(), lessonID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, metrics)
}

// @Summary 导出课程报表
// @Description 把当前课程指标保存为 JSON 文件并返回访问地址
// @Tags 学习分析
// @Produce json
// @Security BearerAuth
// @Param courseId path int true "课程ID"
// @Success 201 {object} util.Response
// @Router /analytics/courses/{courseId}/reports [post]
func (c *AnalyticsController) ExportCourseReport(ctx *gin.Context) {
	courseID, ok := parseID(ctx, "courseId")
	if !ok {
		return
	}

	url, err := c.ReportService.ExportCourseReport(ctx.Request.Context(), courseID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Created(ctx, gin.H{"url": url})
}
