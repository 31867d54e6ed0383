package service

import (
	"context"
	"course_progress_backend/internal/model"
	"course_progress_backend/internal/repository"
	"course_progress_backend/internal/util"
	"course_progress_backend/pkg/logger"
	"course_progress_backend/pkg/monitoring"
	"course_progress_backend/pkg/tracing"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

var sessionEndPayload = datatypes.JSON(`{"event":"session_end"}`)

type SessionService struct {
	SessionRepo     *repository.SessionRepository
	InteractionRepo *repository.InteractionRepository
	CatalogRepo     *repository.CatalogRepository
	ProgressRepo    *repository.ProgressRepository
	Progress        *ProgressService
	Now             Clock
}

func NewSessionService(
	sessionRepo *repository.SessionRepository,
	interactionRepo *repository.InteractionRepository,
	catalogRepo *repository.CatalogRepository,
	progressRepo *repository.ProgressRepository,
	progress *ProgressService,
	now Clock,
) *SessionService {
	return &SessionService{
		SessionRepo:     sessionRepo,
		InteractionRepo: interactionRepo,
		CatalogRepo:     catalogRepo,
		ProgressRepo:    progressRepo,
		Progress:        progress,
		Now:             now,
	}
}

// InteractionInput 播放器上报的交互事件
type InteractionInput struct {
	Type      model.InteractionType `json:"type" binding:"required"`
	Timestamp *time.Time            `json:"timestamp,omitempty"`
	Position  *float64              `json:"position,omitempty"`
	Data      json.RawMessage       `json:"data,omitempty" swaggertype:"object"`
}

// StartSession 开始一次学习：建立或累加进度记录，新建会话并记录 START
func (s *SessionService) StartSession(ctx context.Context, userID, lessonID uint) (_ *model.SessionStartResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "SessionService.StartSession",
		attribute.Int64("user.id", int64(userID)),
		attribute.Int64("lesson.id", int64(lessonID)),
	)
	defer func() { tracing.End(span, err) }()

	if _, err := s.CatalogRepo.FindLesson(ctx, lessonID); err != nil {
		return nil, err
	}

	progress, err := s.Progress.BeginAttempt(ctx, userID, lessonID)
	if err != nil {
		return nil, err
	}

	now := s.Now.now()
	session := &model.LearningSession{
		UserID:     userID,
		LessonID:   lessonID,
		ProgressID: progress.ID,
		StartedAt:  now,
	}
	if err := s.SessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	monitoring.SessionsStarted.Inc()

	s.appendInteraction(ctx, &model.SessionInteraction{
		SessionID: session.ID,
		Type:      model.InteractionStart,
		Timestamp: now,
		Position:  &progress.LastPosition,
	})

	return &model.SessionStartResult{
		SessionID:  session.ID,
		ProgressID: progress.ID,
		Attempts:   progress.Attempts,
	}, nil
}

// EndSession 关闭会话，时长取墙钟差值，completed 取自此刻的进度记录
func (s *SessionService) EndSession(ctx context.Context, userID uint, sessionID string) (_ *model.SessionRecord, err error) {
	ctx, span := tracing.StartSpan(ctx, "SessionService.EndSession",
		attribute.Int64("user.id", int64(userID)),
		attribute.String("session.id", sessionID),
	)
	defer func() { tracing.End(span, err) }()

	session, err := s.SessionRepo.FindByIDAndUserID(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if !session.IsOpen() {
		return nil, util.ErrSessionAlreadyEnded
	}

	progress, err := s.ProgressRepo.FindByID(ctx, session.ProgressID)
	if err != nil {
		return nil, err
	}

	now := s.Now.now()
	duration := int(math.Max(0, math.Round(now.Sub(session.StartedAt).Seconds())))

	closed, err := s.SessionRepo.Close(ctx, session.ID, now, duration, progress.Completed)
	if err != nil {
		return nil, fmt.Errorf("close session: %w", err)
	}
	if !closed {
		// 另一个请求抢先关闭了会话
		return nil, util.ErrSessionAlreadyEnded
	}
	monitoring.SessionsEnded.Inc()

	s.appendInteraction(ctx, &model.SessionInteraction{
		SessionID: session.ID,
		Type:      model.InteractionComplete,
		Timestamp: now,
		Position:  &progress.LastPosition,
		Data:      sessionEndPayload,
	})

	return s.record(ctx, session.ID)
}

// GetSession 查询学员自己的会话
func (s *SessionService) GetSession(ctx context.Context, userID uint, sessionID string) (*model.SessionRecord, error) {
	if _, err := s.SessionRepo.FindByIDAndUserID(ctx, sessionID, userID); err != nil {
		return nil, err
	}
	return s.record(ctx, sessionID)
}

func (s *SessionService) record(ctx context.Context, sessionID string) (*model.SessionRecord, error) {
	session, err := s.SessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	count, err := s.InteractionRepo.CountBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("count interactions: %w", err)
	}
	return &model.SessionRecord{LearningSession: *session, InteractionCount: count}, nil
}

// ListInteractions 按时间顺序返回学员自己某个会话的交互日志
func (s *SessionService) ListInteractions(ctx context.Context, userID uint, sessionID string) ([]model.SessionInteraction, error) {
	if _, err := s.SessionRepo.FindByIDAndUserID(ctx, sessionID, userID); err != nil {
		return nil, err
	}
	return s.InteractionRepo.ListBySession(ctx, sessionID)
}

// RecordInteraction 追加交互日志。只校验事件类型，
// 会话不存在或写入失败都只记日志，调用方不应因此阻塞播放。
func (s *SessionService) RecordInteraction(ctx context.Context, userID uint, sessionID string, in InteractionInput) error {
	if !in.Type.Valid() {
		monitoring.InteractionsRecorded.WithLabelValues("INVALID", "rejected").Inc()
		return util.ErrInvalidInteraction
	}

	if _, err := s.SessionRepo.FindByIDAndUserID(ctx, sessionID, userID); err != nil {
		monitoring.InteractionsRecorded.WithLabelValues(string(in.Type), "dropped").Inc()
		logger.Log.Warn("丢弃交互事件",
			zap.String("session_id", sessionID),
			zap.Uint("user_id", userID),
			zap.Error(err),
		)
		return nil
	}

	ts := s.Now.now()
	if in.Timestamp != nil && !in.Timestamp.IsZero() {
		ts = *in.Timestamp
	}

	position := in.Position
	if position != nil && !ValidPosition(*position) {
		logger.Log.Debug("交互位置越界，按无位置记录",
			zap.String("session_id", sessionID),
			zap.Float64("position", *position),
		)
		position = nil
	}

	interaction := &model.SessionInteraction{
		SessionID: sessionID,
		Type:      in.Type,
		Timestamp: ts,
		Position:  position,
	}
	if len(in.Data) > 0 && json.Valid(in.Data) {
		interaction.Data = datatypes.JSON(in.Data)
	}

	s.appendInteraction(ctx, interaction)
	return nil
}

func (s *SessionService) appendInteraction(ctx context.Context, interaction *model.SessionInteraction) {
	if err := s.InteractionRepo.Create(ctx, interaction); err != nil {
		monitoring.InteractionsRecorded.WithLabelValues(string(interaction.Type), "dropped").Inc()
		logger.Log.Warn("写入交互事件失败",
			zap.String("session_id", interaction.SessionID),
			zap.String("type", string(interaction.Type)),
			zap.Error(err),
		)
		return
	}
	monitoring.InteractionsRecorded.WithLabelValues(string(interaction.Type), "stored").Inc()
}
