package repository

import (
	"context"
	"course_progress_backend/internal/model"
	"course_progress_backend/internal/util"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type SessionRepository struct {
	DB *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{DB: db}
}

func (r *SessionRepository) Create(ctx context.Context, session *model.LearningSession) error {
	return r.DB.WithContext(ctx).Create(session).Error
}

func (r *SessionRepository) FindByID(ctx context.Context, sessionID string) (*model.LearningSession, error) {
	var session model.LearningSession
	err := r.DB.WithContext(ctx).Where("id = ?", sessionID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find session %s: %w", sessionID, err)
	}
	return &session, nil
}

func (r *SessionRepository) FindByIDAndUserID(ctx context.Context, sessionID string, userID uint) (*model.LearningSession, error) {
	var session model.LearningSession
	err := r.DB.WithContext(ctx).Where("id = ? AND user_id = ?", sessionID, userID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find session %s: %w", sessionID, err)
	}
	return &session, nil
}

// Close 只关闭仍未结束的会话，返回 false 表示会话已被关闭过
func (r *SessionRepository) Close(ctx context.Context, sessionID string, endedAt time.Time, duration int, completed bool) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.LearningSession{}).
		Where("id = ? AND ended_at IS NULL", sessionID).
		Updates(map[string]interface{}{
			"ended_at":  endedAt,
			"duration":  duration,
			"completed": completed,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// StartTimesSince 学员 since 之后开始的会话时间，按开始时间倒序
func (r *SessionRepository) StartTimesSince(ctx context.Context, userID uint, since time.Time) ([]time.Time, error) {
	var sessions []model.LearningSession
	err := r.DB.WithContext(ctx).
		Select("started_at").
		Where("user_id = ? AND started_at >= ?", userID, since).
		Order("started_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}

	starts := make([]time.Time, 0, len(sessions))
	for _, s := range sessions {
		starts = append(starts, s.StartedAt)
	}
	return starts, nil
}

// CountByUser lessonIDs 为 nil 时统计全部课时
func (r *SessionRepository) CountByUser(ctx context.Context, userID uint, lessonIDs []uint) (int64, error) {
	var count int64
	q := r.DB.WithContext(ctx).Model(&model.LearningSession{}).Where("user_id = ?", userID)
	if lessonIDs != nil {
		if len(lessonIDs) == 0 {
			return 0, nil
		}
		q = q.Where("lesson_id IN ?", lessonIDs)
	}
	err := q.Count(&count).Error
	return count, err
}

// SessionTotals 一组课时下的会话数与总时长（秒）
type SessionTotals struct {
	SessionCount  int64
	TotalDuration int64
}

func (r *SessionRepository) TotalsByLessons(ctx context.Context, lessonIDs []uint) (SessionTotals, error) {
	var totals SessionTotals
	if len(lessonIDs) == 0 {
		return totals, nil
	}
	err := r.DB.WithContext(ctx).Model(&model.LearningSession{}).
		Select("COUNT(*) AS session_count, COALESCE(SUM(duration), 0) AS total_duration").
		Where("lesson_id IN ?", lessonIDs).
		Scan(&totals).Error
	return totals, err
}
