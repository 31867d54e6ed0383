package service

import (
	"context"
	"course_progress_backend/internal/model"
	"course_progress_backend/internal/repository"
	"course_progress_backend/internal/util"
	"course_progress_backend/pkg/tracing"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// 连续学习天数统一按自然日计算：相邻两个有学习记录的日期相差超过 1 天即视为中断。

// ActiveDates 把会话开始时间折叠成去重后的自然日，按时间升序返回
func ActiveDates(starts []time.Time, loc *time.Location) []time.Time {
	seen := make(map[string]bool, len(starts))
	days := make([]time.Time, 0, len(starts))
	for _, s := range starts {
		t := s.In(loc)
		key := t.Format(util.DateFormat)
		if seen[key] {
			continue
		}
		seen[key] = true
		days = append(days, time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc))
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

// daysBetween 两个零点之间相差的自然日数，夏令时的 ±1 小时通过四舍五入抵消
func daysBetween(a, b time.Time) int {
	h := b.Sub(a).Hours()
	if h >= 0 {
		return int(h/24 + 0.5)
	}
	return -int(-h/24 + 0.5)
}

// CurrentStreak 最近一次学习必须是今天或昨天，否则为 0；
// 然后从最近的学习日开始逐日向前，遇到第一个空档为止。
func CurrentStreak(starts []time.Time, now time.Time) int {
	loc := now.Location()
	days := ActiveDates(starts, loc)
	if len(days) == 0 {
		return 0
	}

	active := make(map[string]bool, len(days))
	for _, d := range days {
		active[d.Format(util.DateFormat)] = true
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	anchor := today
	if !active[today.Format(util.DateFormat)] {
		anchor = today.AddDate(0, 0, -1)
		if !active[anchor.Format(util.DateFormat)] {
			return 0
		}
	}

	streak := 0
	for d := anchor; active[d.Format(util.DateFormat)]; d = d.AddDate(0, 0, -1) {
		streak++
	}
	return streak
}

// ComputeStreakStats 在给定的会话集合上计算当前/最长连续天数与中断次数
func ComputeStreakStats(starts []time.Time, now time.Time) model.StreakStats {
	days := ActiveDates(starts, now.Location())
	stats := model.StreakStats{
		CurrentStreak: CurrentStreak(starts, now),
		ActiveDays:    len(days),
	}
	if len(days) == 0 {
		return stats
	}

	run := 1
	stats.LongestStreak = 1
	for i := 1; i < len(days); i++ {
		if daysBetween(days[i-1], days[i]) > 1 {
			stats.StreakBreaks++
			run = 1
			continue
		}
		run++
		if run > stats.LongestStreak {
			stats.LongestStreak = run
		}
	}

	last := days[len(days)-1].Format(util.DateFormat)
	stats.LastActiveDate = &last
	return stats
}

type StreakService struct {
	SessionRepo *repository.SessionRepository
	Settings    *Settings
	Now         Clock
}

func NewStreakService(sessionRepo *repository.SessionRepository, settings *Settings, now Clock) *StreakService {
	return &StreakService{
		SessionRepo: sessionRepo,
		Settings:    settings,
		Now:         now,
	}
}

func (s *StreakService) recentStarts(ctx context.Context, userID uint) ([]time.Time, time.Time, error) {
	cfg := s.Settings.Get()
	now := s.Now.now().In(cfg.Location())

	lookback := cfg.StreakLookbackDays
	if lookback <= 0 {
		lookback = 30
	}
	since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, -lookback)

	starts, err := s.SessionRepo.StartTimesSince(ctx, userID, since)
	if err != nil {
		return nil, now, err
	}
	return starts, now, nil
}

// CurrentStreak 学员当前连续学习天数
func (s *StreakService) CurrentStreak(ctx context.Context, userID uint) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "StreakService.CurrentStreak", attribute.Int64("user.id", int64(userID)))
	starts, now, err := s.recentStarts(ctx, userID)
	tracing.End(span, err)
	if err != nil {
		return 0, err
	}
	return CurrentStreak(starts, now), nil
}

func (s *StreakService) Stats(ctx context.Context, userID uint) (*model.StreakStats, error) {
	ctx, span := tracing.StartSpan(ctx, "StreakService.Stats", attribute.Int64("user.id", int64(userID)))
	starts, now, err := s.recentStarts(ctx, userID)
	tracing.End(span, err)
	if err != nil {
		return nil, err
	}
	stats := ComputeStreakStats(starts, now)
	return &stats, nil
}
