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

type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

func (r *ProgressRepository) FindByID(ctx context.Context, id uint) (*model.Progress, error) {
	var progress model.Progress
	err := r.DB.WithContext(ctx).First(&progress, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrProgressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find progress %d: %w", id, err)
	}
	return &progress, nil
}

func (r *ProgressRepository) FindByUserAndLesson(ctx context.Context, userID, lessonID uint) (*model.Progress, error) {
	var progress model.Progress
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND lesson_id = ?", userID, lessonID).
		First(&progress).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrProgressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find progress user=%d lesson=%d: %w", userID, lessonID, err)
	}
	return &progress, nil
}

func (r *ProgressRepository) Create(ctx context.Context, progress *model.Progress) error {
	return r.DB.WithContext(ctx).Create(progress).Error
}

// Touch 新的一次学习开始：attempts+1，刷新最后访问时间
func (r *ProgressRepository) Touch(ctx context.Context, id uint, now time.Time) error {
	return r.DB.WithContext(ctx).Model(&model.Progress{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":         gorm.Expr("attempts + ?", 1),
			"last_accessed_at": now,
		}).Error
}

// ApplyPlayback 在一条 UPDATE 里累加观看时长并写入位置。
// time_spent 使用自增表达式，多个标签页并发上报不会丢失增量；
// last_position / percent_watched 为最后写入者生效。
func (r *ProgressRepository) ApplyPlayback(ctx context.Context, id uint, delta int, position, percent float64, now time.Time) error {
	if delta < 0 {
		delta = 0
	}
	return r.DB.WithContext(ctx).Model(&model.Progress{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"time_spent":       gorm.Expr("time_spent + ?", delta),
			"last_position":    position,
			"percent_watched":  percent,
			"last_accessed_at": now,
		}).Error
}

// MarkCompleted 仅当记录尚未完成时写入完成标记，返回本次是否发生了状态翻转
func (r *ProgressRepository) MarkCompleted(ctx context.Context, id uint, now time.Time) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.Progress{}).
		Where("id = ? AND completed = ?", id, false).
		Updates(map[string]interface{}{
			"completed":    true,
			"completed_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListByUser lessonIDs 为 nil 时返回该学员全部记录
func (r *ProgressRepository) ListByUser(ctx context.Context, userID uint, lessonIDs []uint) ([]model.Progress, error) {
	var rows []model.Progress
	q := r.DB.WithContext(ctx).Where("user_id = ?", userID)
	if lessonIDs != nil {
		if len(lessonIDs) == 0 {
			return rows, nil
		}
		q = q.Where("lesson_id IN ?", lessonIDs)
	}
	err := q.Order("lesson_id ASC").Find(&rows).Error
	return rows, err
}

func (r *ProgressRepository) ListByLesson(ctx context.Context, lessonID uint) ([]model.Progress, error) {
	var rows []model.Progress
	err := r.DB.WithContext(ctx).Where("lesson_id = ?", lessonID).Find(&rows).Error
	return rows, err
}

func (r *ProgressRepository) ListByLessons(ctx context.Context, lessonIDs []uint) ([]model.Progress, error) {
	var rows []model.Progress
	if len(lessonIDs) == 0 {
		return rows, nil
	}
	err := r.DB.WithContext(ctx).Where("lesson_id IN ?", lessonIDs).Find(&rows).Error
	return rows, err
}

// CountLearnersByLesson 每个课时有进度记录的不同学员数
func (r *ProgressRepository) CountLearnersByLesson(ctx context.Context, lessonIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(lessonIDs))
	if len(lessonIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		LessonID uint
		Learners int64
	}
	err := r.DB.WithContext(ctx).Model(&model.Progress{}).
		Select("lesson_id, COUNT(DISTINCT user_id) AS learners").
		Where("lesson_id IN ?", lessonIDs).
		Group("lesson_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		counts[row.LessonID] = row.Learners
	}
	return counts, nil
}

func (r *ProgressRepository) CountCompletedForUser(ctx context.Context, userID uint, lessonIDs []uint) (int64, error) {
	var count int64
	if len(lessonIDs) == 0 {
		return 0, nil
	}
	err := r.DB.WithContext(ctx).Model(&model.Progress{}).
		Where("user_id = ? AND lesson_id IN ? AND completed = ?", userID, lessonIDs, true).
		Count(&count).Error
	return count, err
}

// CountActiveLearners since 之后访问过任一课时的不同学员数
func (r *ProgressRepository) CountActiveLearners(ctx context.Context, lessonIDs []uint, since time.Time) (int64, error) {
	var count int64
	if len(lessonIDs) == 0 {
		return 0, nil
	}
	err := r.DB.WithContext(ctx).Model(&model.Progress{}).
		Where("lesson_id IN ? AND last_accessed_at >= ?", lessonIDs, since).
		Distinct("user_id").
		Count(&count).Error
	return count, err
}
