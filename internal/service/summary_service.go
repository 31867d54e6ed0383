package service

import (
	"context"
	"course_progress_backend/internal/model"
	"course_progress_backend/internal/repository"
	"course_progress_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
)

type SummaryService struct {
	ProgressRepo *repository.ProgressRepository
	SessionRepo  *repository.SessionRepository
	CatalogRepo  *repository.CatalogRepository
	Streaks      *StreakService
}

func NewSummaryService(
	progressRepo *repository.ProgressRepository,
	sessionRepo *repository.SessionRepository,
	catalogRepo *repository.CatalogRepository,
	streaks *StreakService,
) *SummaryService {
	return &SummaryService{
		ProgressRepo: progressRepo,
		SessionRepo:  sessionRepo,
		CatalogRepo:  catalogRepo,
		Streaks:      streaks,
	}
}

// Summarize 在一组进度记录上计算汇总字段，totalLessons 为 0 时比率均为 0
func Summarize(rows []model.Progress, totalLessons int) model.ProgressSummary {
	summary := model.ProgressSummary{TotalLessons: totalLessons}
	for i := range rows {
		p := &rows[i]
		summary.TotalTimeSpent += p.TimeSpent
		switch p.State() {
		case model.StateCompleted:
			summary.CompletedLessons++
		case model.StateInProgress:
			summary.InProgressLessons++
		}
		if summary.LastAccessedAt == nil || p.LastAccessedAt.After(*summary.LastAccessedAt) {
			t := p.LastAccessedAt
			summary.LastAccessedAt = &t
		}
	}

	if totalLessons > 0 {
		summary.CompletionRate = float64(summary.CompletedLessons) / float64(totalLessons) * 100
	}
	if summary.CompletedLessons > 0 {
		summary.AverageCompletionTime = float64(summary.TotalTimeSpent) / float64(summary.CompletedLessons)
	}
	return summary
}

// GetProgressSummary courseID 为空时汇总学员全部课时；
// 限定课程时分母取课程下的课时总数，未开始的课时也计入。
func (s *SummaryService) GetProgressSummary(ctx context.Context, userID uint, courseID *uint) (_ *model.ProgressSummary, err error) {
	ctx, span := tracing.StartSpan(ctx, "SummaryService.GetProgressSummary", attribute.Int64("user.id", int64(userID)))
	defer func() { tracing.End(span, err) }()

	var lessonIDs []uint
	if courseID != nil {
		if _, err := s.CatalogRepo.FindCourse(ctx, *courseID); err != nil {
			return nil, err
		}
		if lessonIDs, err = s.CatalogRepo.LessonIDs(ctx, *courseID); err != nil {
			return nil, err
		}
	}

	rows, err := s.ProgressRepo.ListByUser(ctx, userID, lessonIDs)
	if err != nil {
		return nil, err
	}

	total := len(rows)
	if courseID != nil {
		total = len(lessonIDs)
	}

	summary := Summarize(rows, total)
	summary.UserID = userID
	summary.CourseID = courseID

	if summary.CurrentStreak, err = s.Streaks.CurrentStreak(ctx, userID); err != nil {
		return nil, err
	}
	if summary.TotalSessions, err = s.SessionRepo.CountByUser(ctx, userID, lessonIDs); err != nil {
		return nil, err
	}
	return &summary, nil
}
