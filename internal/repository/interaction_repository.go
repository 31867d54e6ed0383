package repository

import (
	"context"
	"course_progress_backend/internal/model"

	"gorm.io/gorm"
)

type InteractionRepository struct {
	DB *gorm.DB
}

func NewInteractionRepository(db *gorm.DB) *InteractionRepository {
	return &InteractionRepository{DB: db}
}

func (r *InteractionRepository) Create(ctx context.Context, interaction *model.SessionInteraction) error {
	return r.DB.WithContext(ctx).Create(interaction).Error
}

func (r *InteractionRepository) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.SessionInteraction{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error
	return count, err
}

func (r *InteractionRepository) ListBySession(ctx context.Context, sessionID string) ([]model.SessionInteraction, error) {
	var rows []model.SessionInteraction
	err := r.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("timestamp ASC, id ASC").
		Find(&rows).Error
	return rows, err
}

// CountByLessons 一组课时下全部会话的交互总数
func (r *InteractionRepository) CountByLessons(ctx context.Context, lessonIDs []uint) (int64, error) {
	var count int64
	if len(lessonIDs) == 0 {
		return 0, nil
	}
	err := r.DB.WithContext(ctx).Model(&model.SessionInteraction{}).
		Joins("JOIN learning_sessions ON learning_sessions.id = session_interactions.session_id").
		Where("learning_sessions.lesson_id IN ?", lessonIDs).
		Count(&count).Error
	return count, err
}

// ListPositionedByLesson 该课时下所有带播放位置的交互，用于热点分桶
func (r *InteractionRepository) ListPositionedByLesson(ctx context.Context, lessonID uint) ([]model.SessionInteraction, error) {
	var rows []model.SessionInteraction
	err := r.DB.WithContext(ctx).
		Select("session_interactions.*").
		Joins("JOIN learning_sessions ON learning_sessions.id = session_interactions.session_id").
		Where("learning_sessions.lesson_id = ? AND session_interactions.position IS NOT NULL", lessonID).
		Find(&rows).Error
	return rows, err
}
