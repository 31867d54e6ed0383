package repository

import (
	"context"
	"course_progress_backend/internal/model"
	"course_progress_backend/internal/util"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// CatalogRepository 课程 -> 模块 -> 课时 层级的只读访问
type CatalogRepository struct {
	DB *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{DB: db}
}

func (r *CatalogRepository) FindCourse(ctx context.Context, courseID uint) (*model.Course, error) {
	var course model.Course
	err := r.DB.WithContext(ctx).First(&course, courseID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCourseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find course %d: %w", courseID, err)
	}
	return &course, nil
}

func (r *CatalogRepository) FindLesson(ctx context.Context, lessonID uint) (*model.Lesson, error) {
	var lesson model.Lesson
	err := r.DB.WithContext(ctx).First(&lesson, lessonID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrLessonNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find lesson %d: %w", lessonID, err)
	}
	return &lesson, nil
}

// OrderedLessons 按 (模块顺序, 课时顺序) 返回课程下的课时
func (r *CatalogRepository) OrderedLessons(ctx context.Context, courseID uint) ([]model.OrderedLesson, error) {
	var rows []model.OrderedLesson
	err := r.DB.WithContext(ctx).Model(&model.Lesson{}).
		Select("lessons.id AS lesson_id, lessons.title AS title, course_modules.sort_order AS module_order, lessons.sort_order AS lesson_order").
		Joins("JOIN course_modules ON course_modules.id = lessons.module_id AND course_modules.deleted_at IS NULL").
		Where("lessons.course_id = ?", courseID).
		Order("course_modules.sort_order ASC, lessons.sort_order ASC, lessons.id ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *CatalogRepository) LessonIDs(ctx context.Context, courseID uint) ([]uint, error) {
	ids := []uint{}
	err := r.DB.WithContext(ctx).Model(&model.Lesson{}).
		Where("course_id = ?", courseID).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}
