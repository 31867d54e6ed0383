package service

import (
	"context"
	"course_progress_backend/internal/model"
	"course_progress_backend/internal/repository"
	"course_progress_backend/pkg/logger"
	"course_progress_backend/pkg/monitoring"
	"course_progress_backend/pkg/tracing"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	courseMetricsKey = "analytics:course:%d"
	lessonMetricsKey = "analytics:lesson:%d"
)

type AnalyticsService struct {
	ProgressRepo    *repository.ProgressRepository
	SessionRepo     *repository.SessionRepository
	InteractionRepo *repository.InteractionRepository
	CatalogRepo     *repository.CatalogRepository
	EnrollmentRepo  *repository.EnrollmentRepository
	Cache           MetricsCache
	Settings        *Settings
	Now             Clock
}

func NewAnalyticsService(
	progressRepo *repository.ProgressRepository,
	sessionRepo *repository.SessionRepository,
	interactionRepo *repository.InteractionRepository,
	catalogRepo *repository.CatalogRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	cache MetricsCache,
	settings *Settings,
	now Clock,
) *AnalyticsService {
	return &AnalyticsService{
		ProgressRepo:    progressRepo,
		SessionRepo:     sessionRepo,
		InteractionRepo: interactionRepo,
		CatalogRepo:     catalogRepo,
		EnrollmentRepo:  enrollmentRepo,
		Cache:           cache,
		Settings:        settings,
		Now:             now,
	}
}

// GetCourseMetrics 课程维度统计，启用缓存时先读缓存
func (s *AnalyticsService) GetCourseMetrics(ctx context.Context, courseID uint) (_ *model.CourseMetrics, err error) {
	ctx, span := tracing.StartSpan(ctx, "AnalyticsService.GetCourseMetrics", attribute.Int64("course.id", int64(courseID)))
	defer func() { tracing.End(span, err) }()

	key := fmt.Sprintf(courseMetricsKey, courseID)
	var cached model.CourseMetrics
	if s.cacheGet(ctx, "course", key, &cached) {
		return &cached, nil
	}

	metrics, err := s.computeCourseMetrics(ctx, courseID)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, key, metrics)
	return metrics, nil
}

func (s *AnalyticsService) computeCourseMetrics(ctx context.Context, courseID uint) (*model.CourseMetrics, error) {
	course, err := s.CatalogRepo.FindCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	cfg := s.Settings.Get()
	now := s.Now.now()
	metrics := &model.CourseMetrics{
		CourseID:      course.ID,
		CourseTitle:   course.Title,
		DropoffPoints: []model.DropoffPoint{},
		GeneratedAt:   now,
	}

	lessonIDs, err := s.CatalogRepo.LessonIDs(ctx, courseID)
	if err != nil {
		return nil, err
	}
	ordered, err := s.CatalogRepo.OrderedLessons(ctx, courseID)
	if err != nil {
		return nil, err
	}

	if metrics.TotalStudents, err = s.EnrollmentRepo.CountByCourse(ctx, courseID); err != nil {
		return nil, err
	}

	since := now.AddDate(0, 0, -cfg.ActiveWindowDays)
	if metrics.ActiveStudents, err = s.ProgressRepo.CountActiveLearners(ctx, lessonIDs, since); err != nil {
		return nil, err
	}

	learners, err := s.EnrollmentRepo.LearnerIDs(ctx, courseID)
	if err != nil {
		return nil, err
	}
	rows, err := s.ProgressRepo.ListByLessons(ctx, lessonIDs)
	if err != nil {
		return nil, err
	}

	byLearner := make(map[uint][]model.Progress, len(learners))
	for _, p := range rows {
		byLearner[p.UserID] = append(byLearner[p.UserID], p)
	}

	// 每个报名学员在本课程上的汇总
	var completedLearners int
	var totalSeconds int
	for _, userID := range learners {
		summary := Summarize(byLearner[userID], len(lessonIDs))
		if len(lessonIDs) > 0 && summary.CompletedLessons == len(lessonIDs) {
			completedLearners++
		}
		totalSeconds += summary.TotalTimeSpent
	}
	if n := len(learners); n > 0 {
		metrics.CompletionRate = float64(completedLearners) / float64(n) * 100
		metrics.AverageCompletionTime = float64(totalSeconds) / float64(n) / 3600
	}
	metrics.PerformanceDistribution = PerformanceBuckets(len(learners))

	counts, err := s.ProgressRepo.CountLearnersByLesson(ctx, lessonIDs)
	if err != nil {
		return nil, err
	}
	metrics.DropoffPoints = ComputeDropoffPoints(ordered, counts, cfg.DropoffThreshold, cfg.DropoffLimit)

	if metrics.EngagementMetrics, err = s.engagement(ctx, lessonIDs); err != nil {
		return nil, err
	}
	return metrics, nil
}

func (s *AnalyticsService) engagement(ctx context.Context, lessonIDs []uint) (model.EngagementMetrics, error) {
	var m model.EngagementMetrics

	totals, err := s.SessionRepo.TotalsByLessons(ctx, lessonIDs)
	if err != nil {
		return m, err
	}
	interactions, err := s.InteractionRepo.CountByLessons(ctx, lessonIDs)
	if err != nil {
		return m, err
	}

	m.TotalSessions = totals.SessionCount
	m.TotalInteractions = interactions
	m.TotalViewTime = float64(totals.TotalDuration) / 60
	if totals.SessionCount > 0 {
		m.AverageSessionLength = m.TotalViewTime / float64(totals.SessionCount)
		m.InteractionRate = float64(interactions) / float64(totals.SessionCount)
	}
	return m, nil
}

// GetLessonMetrics 课时维度统计，启用缓存时先读缓存
func (s *AnalyticsService) GetLessonMetrics(ctx context.Context, lessonID uint) (_ *model.LessonMetrics, err error) {
	ctx, span := tracing.StartSpan(ctx, "AnalyticsService.GetLessonMetrics", attribute.Int64("lesson.id", int64(lessonID)))
	defer func() { tracing.End(span, err) }()

	key := fmt.Sprintf(lessonMetricsKey, lessonID)
	var cached model.LessonMetrics
	if s.cacheGet(ctx, "lesson", key, &cached) {
		return &cached, nil
	}

	metrics, err := s.computeLessonMetrics(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, key, metrics)
	return metrics, nil
}

func (s *AnalyticsService) computeLessonMetrics(ctx context.Context, lessonID uint) (*model.LessonMetrics, error) {
	lesson, err := s.CatalogRepo.FindLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}

	cfg := s.Settings.Get()
	rows, err := s.ProgressRepo.ListByLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}

	metrics := &model.LessonMetrics{
		LessonID:      lesson.ID,
		LessonTitle:   lesson.Title,
		TotalLearners: len(rows),
		GeneratedAt:   s.Now.now(),
	}

	if n := len(rows); n > 0 {
		var watch, attempts, completed int
		for _, p := range rows {
			watch += p.TimeSpent
			attempts += p.Attempts
			if p.Completed {
				completed++
			}
		}
		metrics.AverageWatchTime = float64(watch) / float64(n)
		metrics.AverageAttempts = float64(attempts) / float64(n)
		metrics.CompletionRate = float64(completed) / float64(n) * 100
	}

	metrics.CommonDropoffPoints = CommonDropoffPoints(rows, cfg.DropoffBucketSeconds, cfg.DropoffMinLearners, cfg.DropoffLimit)

	interactions, err := s.InteractionRepo.ListPositionedByLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	metrics.InteractionHotspots = InteractionHotspots(interactions, cfg.HotspotBucketSeconds, cfg.HotspotMinInteractions, cfg.HotspotLimit)
	return metrics, nil
}

// Invalidate 课时完成后删除相关缓存，失败只记日志
func (s *AnalyticsService) Invalidate(ctx context.Context, courseID, lessonID uint) {
	if s.Cache == nil {
		return
	}
	keys := []string{fmt.Sprintf(courseMetricsKey, courseID), fmt.Sprintf(lessonMetricsKey, lessonID)}
	if err := s.Cache.Delete(ctx, keys...); err != nil {
		logger.Log.Warn("清理分析缓存失败", zap.Strings("keys", keys), zap.Error(err))
	}
}

func (s *AnalyticsService) cacheGet(ctx context.Context, kind, key string, dst interface{}) bool {
	if s.Cache == nil || s.Settings.Get().CacheTTL() <= 0 {
		return false
	}

	raw, err := s.Cache.Get(ctx, key)
	switch {
	case errors.Is(err, ErrCacheMiss):
		monitoring.AnalyticsCache.WithLabelValues(kind, "miss").Inc()
		return false
	case err != nil:
		monitoring.AnalyticsCache.WithLabelValues(kind, "error").Inc()
		logger.Log.Warn("读取分析缓存失败", zap.String("key", key), zap.Error(err))
		return false
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		monitoring.AnalyticsCache.WithLabelValues(kind, "error").Inc()
		return false
	}
	monitoring.AnalyticsCache.WithLabelValues(kind, "hit").Inc()
	return true
}

func (s *AnalyticsService) cacheSet(ctx context.Context, key string, value interface{}) {
	ttl := s.Settings.Get().CacheTTL()
	if s.Cache == nil || ttl <= 0 {
		return
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.Cache.Set(ctx, key, raw, ttl); err != nil {
		logger.Log.Warn("写入分析缓存失败", zap.String("key", key), zap.Error(err))
	}
}

// ComputeDropoffPoints 按课程顺序比较相邻课时的学员数，
// 保留流失率超过 threshold 的条目，按流失率降序取前 limit 个。
func ComputeDropoffPoints(ordered []model.OrderedLesson, counts map[uint]int64, threshold float64, limit int) []model.DropoffPoint {
	points := []model.DropoffPoint{}
	for i := 0; i+1 < len(ordered); i++ {
		cur, next := ordered[i], ordered[i+1]
		reached := counts[cur.LessonID]
		if reached == 0 {
			continue
		}
		continued := counts[next.LessonID]
		rate := float64(reached-continued) / float64(reached) * 100
		if rate <= threshold {
			continue
		}
		points = append(points, model.DropoffPoint{
			LessonID:          cur.LessonID,
			LessonTitle:       cur.Title,
			NextLessonID:      next.LessonID,
			NextLessonTitle:   next.Title,
			StudentsReached:   reached,
			StudentsContinued: continued,
			DropoffRate:       rate,
		})
	}

	sort.SliceStable(points, func(i, j int) bool { return points[i].DropoffRate > points[j].DropoffRate })
	if limit > 0 && len(points) > limit {
		points = points[:limit]
	}
	return points
}

// PerformanceBuckets 前后各取 ceil(n/4)，小样本时后段让位，三档之和恒为 n
func PerformanceBuckets(n int) model.PerformanceDistribution {
	if n <= 0 {
		return model.PerformanceDistribution{}
	}
	quarter := int(math.Ceil(float64(n) * 0.25))
	high := quarter
	struggling := quarter
	if struggling > n-high {
		struggling = n - high
	}
	return model.PerformanceDistribution{
		HighPerformers:     high,
		AveragePerformers:  n - high - struggling,
		StrugglingStudents: struggling,
	}
}

// bucketStart 位置越界时返回 false，调用方跳过该条记录
func bucketStart(position float64, size int) (int, bool) {
	if !ValidPosition(position) {
		return 0, false
	}
	return int(position/float64(size)) * size, true
}

// CommonDropoffPoints 未完成学员最后停留位置的分桶，
// 至少 minLearners 人的桶按人数降序取前 limit 个桶起点。
func CommonDropoffPoints(rows []model.Progress, bucket, minLearners, limit int) []int {
	points := []int{}
	if bucket <= 0 {
		return points
	}

	counts := make(map[int]int)
	for _, p := range rows {
		if p.Completed {
			continue
		}
		if start, ok := bucketStart(p.LastPosition, bucket); ok {
			counts[start]++
		}
	}

	for start, c := range counts {
		if c >= minLearners {
			points = append(points, start)
		}
	}
	sort.Slice(points, func(i, j int) bool {
		if counts[points[i]] != counts[points[j]] {
			return counts[points[i]] > counts[points[j]]
		}
		return points[i] < points[j]
	})
	if limit > 0 && len(points) > limit {
		points = points[:limit]
	}
	return points
}

// InteractionHotspots 按播放位置分桶统计交互，次数相同时按事件类型的固定顺序取最常见类型
func InteractionHotspots(interactions []model.SessionInteraction, bucket, minCount, limit int) []model.InteractionHotspot {
	hotspots := []model.InteractionHotspot{}
	if bucket <= 0 {
		return hotspots
	}

	byBucket := make(map[int]map[model.InteractionType]int)
	for _, it := range interactions {
		if it.Position == nil {
			continue
		}
		start, ok := bucketStart(*it.Position, bucket)
		if !ok {
			continue
		}
		if byBucket[start] == nil {
			byBucket[start] = make(map[model.InteractionType]int)
		}
		byBucket[start][it.Type]++
	}

	for start, types := range byBucket {
		total := 0
		for _, c := range types {
			total += c
		}
		if total < minCount {
			continue
		}

		var common model.InteractionType
		best := 0
		for _, t := range model.InteractionTypes {
			if types[t] > best {
				common, best = t, types[t]
			}
		}
		hotspots = append(hotspots, model.InteractionHotspot{Position: start, Count: total, MostCommon: common})
	}

	sort.Slice(hotspots, func(i, j int) bool {
		if hotspots[i].Count != hotspots[j].Count {
			return hotspots[i].Count > hotspots[j].Count
		}
		return hotspots[i].Position < hotspots[j].Position
	})
	if limit > 0 && len(hotspots) > limit {
		hotspots = hotspots[:limit]
	}
	return hotspots
}
