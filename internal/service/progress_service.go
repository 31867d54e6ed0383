package service

import (
	"context"
	"course_progress_backend/internal/model"
	"course_progress_backend/internal/repository"
	"course_progress_backend/internal/util"
	"course_progress_backend/pkg/logger"
	"course_progress_backend/pkg/monitoring"
	"course_progress_backend/pkg/tracing"
	"errors"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// MetricsInvalidator 课时完成后清理分析缓存
type MetricsInvalidator interface {
	Invalidate(ctx context.Context, courseID, lessonID uint)
}

type ProgressService struct {
	ProgressRepo   *repository.ProgressRepository
	CatalogRepo    *repository.CatalogRepository
	EnrollmentRepo *repository.EnrollmentRepository
	Invalidator    MetricsInvalidator
	Settings       *Settings
	Now            Clock
}

func NewProgressService(
	progressRepo *repository.ProgressRepository,
	catalogRepo *repository.CatalogRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	settings *Settings,
	now Clock,
) *ProgressService {
	return &ProgressService{
		ProgressRepo:   progressRepo,
		CatalogRepo:    catalogRepo,
		EnrollmentRepo: enrollmentRepo,
		Settings:       settings,
		Now:            now,
	}
}

// BeginAttempt 会话开始时调用：首次学习创建进度记录，否则 attempts+1
func (s *ProgressService) BeginAttempt(ctx context.Context, userID, lessonID uint) (*model.Progress, error) {
	now := s.Now.now()

	progress, err := s.ProgressRepo.FindByUserAndLesson(ctx, userID, lessonID)
	if errors.Is(err, util.ErrProgressNotFound) {
		progress, created, err := s.create(ctx, userID, lessonID, now)
		if err != nil || created {
			return progress, err
		}
		// 并发首次开始时另一请求已建好记录，按再次学习处理
		return s.touch(ctx, progress, now)
	}
	if err != nil {
		return nil, err
	}
	return s.touch(ctx, progress, now)
}

func (s *ProgressService) touch(ctx context.Context, progress *model.Progress, now time.Time) (*model.Progress, error) {
	if err := s.ProgressRepo.Touch(ctx, progress.ID, now); err != nil {
		return nil, fmt.Errorf("touch progress %d: %w", progress.ID, err)
	}
	return s.ProgressRepo.FindByID(ctx, progress.ID)
}

// create 新建进度记录；唯一索引冲突时回读已有记录，created=false
func (s *ProgressService) create(ctx context.Context, userID, lessonID uint, now time.Time) (*model.Progress, bool, error) {
	progress := &model.Progress{
		UserID:         userID,
		LessonID:       lessonID,
		Attempts:       1,
		FirstStartedAt: now,
		LastAccessedAt: now,
	}
	createErr := s.ProgressRepo.Create(ctx, progress)
	if createErr == nil {
		return progress, true, nil
	}

	existing, err := s.ProgressRepo.FindByUserAndLesson(ctx, userID, lessonID)
	if err != nil {
		return nil, false, fmt.Errorf("create progress: %w", createErr)
	}
	return existing, false, nil
}

// MaxPlaybackSeconds 单个课时视频时长与播放位置的上限
const MaxPlaybackSeconds = 24 * 60 * 60

// ValidPosition 播放位置须为有限值且落在 [0, MaxPlaybackSeconds]
func ValidPosition(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0 && v <= MaxPlaybackSeconds
}

func validPlayback(upd model.PlaybackUpdate) bool {
	if !ValidPosition(upd.CurrentTime) || !ValidPosition(upd.Duration) {
		return false
	}
	if upd.PercentWatched != nil {
		pw := *upd.PercentWatched
		return !math.IsNaN(pw) && !math.IsInf(pw, 0)
	}
	return true
}

// playbackPosition 已知时长时位置不超过时长
func playbackPosition(upd model.PlaybackUpdate) float64 {
	if upd.Duration > 0 {
		return math.Min(upd.CurrentTime, upd.Duration)
	}
	return upd.CurrentTime
}

// normalizePercent 钳制到 [0, 100]；仅在未上报百分比且有时长时按位置推算
func normalizePercent(upd model.PlaybackUpdate, position float64) float64 {
	var percent float64
	switch {
	case upd.PercentWatched != nil:
		percent = *upd.PercentWatched
	case upd.Duration > 0:
		percent = position / upd.Duration * 100
	}
	return math.Min(math.Max(percent, 0), 100)
}

// WatchDelta 只有向前播放才累计时长，回退拖动记为 0，单次最多 MaxPlaybackSeconds
func WatchDelta(lastPosition, currentTime float64) int {
	delta := math.Min(math.Max(0, currentTime-lastPosition), MaxPlaybackSeconds)
	if math.IsNaN(delta) {
		return 0
	}
	return int(math.Round(delta))
}

// UpdateProgress 处理播放器上报的位置
func (s *ProgressService) UpdateProgress(ctx context.Context, userID, lessonID uint, upd model.PlaybackUpdate) (_ *model.Progress, err error) {
	ctx, span := tracing.StartSpan(ctx, "ProgressService.UpdateProgress",
		attribute.Int64("user.id", int64(userID)),
		attribute.Int64("lesson.id", int64(lessonID)),
	)
	defer func() { tracing.End(span, err) }()

	if !validPlayback(upd) {
		return nil, util.ErrInvalidProgress
	}

	lesson, err := s.CatalogRepo.FindLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}

	now := s.Now.now()
	cfg := s.Settings.Get()

	progress, err := s.ProgressRepo.FindByUserAndLesson(ctx, userID, lessonID)
	if errors.Is(err, util.ErrProgressNotFound) {
		// 未经 startSession 直接上报时补建记录
		progress, _, err = s.create(ctx, userID, lessonID, now)
	}
	if err != nil {
		return nil, err
	}

	position := playbackPosition(upd)
	delta := WatchDelta(progress.LastPosition, position)
	percent := normalizePercent(upd, position)

	if err := s.ProgressRepo.ApplyPlayback(ctx, progress.ID, delta, position, percent, now); err != nil {
		return nil, fmt.Errorf("apply playback: %w", err)
	}
	monitoring.ProgressUpdates.Inc()
	monitoring.WatchSeconds.Add(float64(delta))

	explicit := upd.Completed != nil && *upd.Completed
	if (explicit || percent >= cfg.CompletionThreshold) && !progress.Completed {
		flipped, err := s.ProgressRepo.MarkCompleted(ctx, progress.ID, now)
		if err != nil {
			return nil, fmt.Errorf("mark completed: %w", err)
		}
		if flipped {
			s.onLessonCompleted(ctx, userID, lesson, now)
		}
	}

	return s.ProgressRepo.FindByID(ctx, progress.ID)
}

// onLessonCompleted 课时首次完成后的附带动作，失败只记日志不影响本次进度写入
func (s *ProgressService) onLessonCompleted(ctx context.Context, userID uint, lesson *model.Lesson, now time.Time) {
	monitoring.LessonsCompleted.Inc()
	logger.Log.Debug("课时完成",
		zap.Uint("user_id", userID),
		zap.Uint("lesson_id", lesson.ID),
	)

	if _, err := s.checkCourseCompletion(ctx, userID, lesson.CourseID, now); err != nil {
		logger.Log.Error("课程完成检查失败",
			zap.Uint("user_id", userID),
			zap.Uint("course_id", lesson.CourseID),
			zap.Error(err),
		)
	}

	if s.Invalidator != nil {
		s.Invalidator.Invalidate(ctx, lesson.CourseID, lesson.ID)
	}
}

// IsCourseComplete 课程下每个课时都已完成时返回 true，并写入报名完成时间（可重复调用）
func (s *ProgressService) IsCourseComplete(ctx context.Context, userID, courseID uint) (bool, error) {
	return s.checkCourseCompletion(ctx, userID, courseID, s.Now.now())
}

func (s *ProgressService) checkCourseCompletion(ctx context.Context, userID, courseID uint, now time.Time) (bool, error) {
	lessonIDs, err := s.CatalogRepo.LessonIDs(ctx, courseID)
	if err != nil {
		return false, err
	}
	if len(lessonIDs) == 0 {
		return false, nil
	}

	completed, err := s.ProgressRepo.CountCompletedForUser(ctx, userID, lessonIDs)
	if err != nil {
		return false, err
	}
	if completed < int64(len(lessonIDs)) {
		return false, nil
	}

	stamped, err := s.EnrollmentRepo.MarkCompleted(ctx, userID, courseID, now)
	if err != nil {
		return true, fmt.Errorf("stamp enrollment completion: %w", err)
	}
	if stamped {
		monitoring.CoursesCompleted.Inc()
		logger.Log.Info("课程完成",
			zap.Uint("user_id", userID),
			zap.Uint("course_id", courseID),
		)
	}
	return true, nil
}

func (s *ProgressService) GetProgress(ctx context.Context, userID, lessonID uint) (*model.Progress, error) {
	if _, err := s.CatalogRepo.FindLesson(ctx, lessonID); err != nil {
		return nil, err
	}
	return s.ProgressRepo.FindByUserAndLesson(ctx, userID, lessonID)
}

// ListCourseProgress 按课程顺序返回学员已开始的课时进度
func (s *ProgressService) ListCourseProgress(ctx context.Context, userID, courseID uint) ([]model.Progress, error) {
	if _, err := s.CatalogRepo.FindCourse(ctx, courseID); err != nil {
		return nil, err
	}

	ordered, err := s.CatalogRepo.OrderedLessons(ctx, courseID)
	if err != nil {
		return nil, err
	}
	lessonIDs := make([]uint, 0, len(ordered))
	for _, l := range ordered {
		lessonIDs = append(lessonIDs, l.LessonID)
	}

	rows, err := s.ProgressRepo.ListByUser(ctx, userID, lessonIDs)
	if err != nil {
		return nil, err
	}

	byLesson := make(map[uint]model.Progress, len(rows))
	for _, p := range rows {
		byLesson[p.LessonID] = p
	}

	result := make([]model.Progress, 0, len(rows))
	for _, id := range lessonIDs {
		if p, ok := byLesson[id]; ok {
			result = append(result, p)
		}
	}
	return result, nil
}
