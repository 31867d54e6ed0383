package controller

import (
	"course_progress_backend/internal/model"
	"course_progress_backend/internal/service"
	"course_progress_backend/internal/util"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
)

type LearningController struct {
	SessionService  *service.SessionService
	ProgressService *service.ProgressService
	SummaryService  *service.SummaryService
	StreakService   *service.StreakService
}

func NewLearningController(
	sessionService *service.SessionService,
	progressService *service.ProgressService,
	summaryService *service.SummaryService,
	streakService *service.StreakService,
) *LearningController {
	return &LearningController{
		SessionService:  sessionService,
		ProgressService: progressService,
		SummaryService:  summaryService,
		StreakService:   streakService,
	}
}

type StartSessionRequest struct {
	LessonID uint `json:"lessonId" binding:"required"`
}

func parseID(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil || id == 0 {
		util.BadRequest(ctx, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// @Summary 开始学习会话
// @Description 建立或累加课时进度，并打开一个新的学习会话
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body StartSessionRequest true "课时ID"
// @Success 201 {object} util.Response{data=model.SessionStartResult}
// @Failure 404 {object} util.Response
// @Router /learning/sessions [post]
func (c *LearningController) StartSession(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req StartSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.SessionService.StartSession(ctx.Request.Context(), user.UserID, req.LessonID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Created(ctx, result)
}

// @Summary 结束学习会话
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "会话ID"
// @Success 200 {object} util.Response{data=model.SessionRecord}
// @Failure 404 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /learning/sessions/{sessionId}/end [post]
func (c *LearningController) EndSession(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	record, err := c.SessionService.EndSession(ctx.Request.Context(), user.UserID, ctx.Param("sessionId"))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, record)
}

// @Summary 获取学习会话
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "会话ID"
// @Success 200 {object} util.Response{data=model.SessionRecord}
// @Router /learning/sessions/{sessionId} [get]
func (c *LearningController) GetSession(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	record, err := c.SessionService.GetSession(ctx.Request.Context(), user.UserID, ctx.Param("sessionId"))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, record)
}

// @Summary 查询会话交互日志
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "会话ID"
// @Success 200 {object} util.Response{data=[]model.SessionInteraction}
// @Failure 404 {object} util.Response
// @Router /learning/sessions/{sessionId}/interactions [get]
func (c *LearningController) ListInteractions(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	rows, err := c.SessionService.ListInteractions(ctx.Request.Context(), user.UserID, ctx.Param("sessionId"))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, rows)
}

// @Summary 上报交互事件
// @Description 只追加日志，写入失败不影响播放，除类型非法外总是返回 202
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "会话ID"
// @Param request body service.InteractionInput true "交互事件"
// @Success 202 {object} util.Response
// @Failure 400 {object} util.Response
// @Router /learning/sessions/{sessionId}/interactions [post]
func (c *LearningController) RecordInteraction(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.InteractionInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	err := c.SessionService.RecordInteraction(ctx.Request.Context(), user.UserID, ctx.Param("sessionId"), req)
	if errors.Is(err, util.ErrInvalidInteraction) {
		util.BadRequest(ctx, err.Error())
		return
	}

	util.Accepted(ctx)
}

// @Summary 上报播放进度
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param lessonId path int true "课时ID"
// @Param request body model.PlaybackUpdate true "播放进度"
// @Success 200 {object} util.Response{data=model.Progress}
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /learning/lessons/{lessonId}/progress [put]
func (c *LearningController) UpdateProgress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	lessonID, ok := parseID(ctx, "lessonId")
	if !ok {
		return
	}

	var req model.PlaybackUpdate
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	progress, err := c.ProgressService.UpdateProgress(ctx.Request.Context(), user.UserID, lessonID, req)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, progress)
}

// @Summary 获取课时进度
// @Description 用于续播，返回 lastPosition
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Param lessonId path int true "课时ID"
// @Success 200 {object} util.Response{data=model.Progress}
// @Failure 404 {object} util.Response
// @Router /learning/lessons/{lessonId}/progress [get]
func (c *LearningController) GetProgress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	lessonID, ok := parseID(ctx, "lessonId")
	if !ok {
		return
	}

	progress, err := c.ProgressService.GetProgress(ctx.Request.Context(), user.UserID, lessonID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, progress)
}

// @Summary 获取课程内各课时进度
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Param courseId path int true "课程ID"
// @Success 200 {object} util.Response{data=[]model.Progress}
// @Router /learning/courses/{courseId}/progress [get]
func (c *LearningController) ListCourseProgress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	courseID, ok := parseID(ctx, "courseId")
	if !ok {
		return
	}

	rows, err := c.ProgressService.ListCourseProgress(ctx.Request.Context(), user.UserID, courseID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, rows)
}

// @Summary 学习汇总
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Param courseId query int false "限定课程"
// @Success 200 {object} util.Response{data=model.ProgressSummary}
// @Router /learning/summary [get]
func (c *LearningController) GetSummary(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var courseID *uint
	if raw := ctx.Query("courseId"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			util.BadRequest(ctx, "Invalid courseId")
			return
		}
		v := uint(id)
		courseID = &v
	}

	summary, err := c.SummaryService.GetProgressSummary(ctx.Request.Context(), user.UserID, courseID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, summary)
}

// @Summary 连续学习天数
// @Tags 学习进度
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=model.StreakStats}
// @Router /learning/streak [get]
func (c *LearningController) GetStreak(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	stats, err := c.StreakService.Stats(ctx.Request.Context(), user.UserID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, stats)
}
