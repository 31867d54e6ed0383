package service

import (
	"context"
	"testing"
	"time"

	"course_progress_backend/internal/model"
	"course_progress_backend/internal/testutil"
)

func daysAgo(now time.Time, days ...int) []time.Time {
	out := make([]time.Time, 0, len(days))
	for _, d := range days {
		out = append(out, now.AddDate(0, 0, -d))
	}
	return out
}

func TestCurrentStreak(t *testing.T) {
	now := testNow

	cases := []struct {
		name string
		days []int
		want int
	}{
		{"no sessions", nil, 0},
		{"today and two previous days", []int{0, 1, 2}, 3},
		{"only two days ago", []int{2}, 0},
		{"anchored on yesterday", []int{1, 2, 3}, 3},
		{"gap stops the walk", []int{0, 1, 3, 4}, 2},
		{"several sessions on one day", []int{0, 0, 0, 1}, 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CurrentStreak(daysAgo(now, tc.days...), now)
			if got != tc.want {
				t.Fatalf("CurrentStreak = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestCurrentStreakUsesCalendarDays(t *testing.T) {
	// 23:30 与次日 00:10 属于两个自然日
	now := time.Date(2024, 3, 14, 0, 10, 0, 0, time.UTC)
	starts := []time.Time{
		time.Date(2024, 3, 13, 23, 30, 0, 0, time.UTC),
		now,
	}
	if got := CurrentStreak(starts, now); got != 2 {
		t.Fatalf("CurrentStreak = %d, want 2", got)
	}
}

func TestComputeStreakStats(t *testing.T) {
	now := testNow
	// 活跃日：-9 -8 -7 | -4 -3 | -1 0
	stats := ComputeStreakStats(daysAgo(now, 9, 8, 7, 4, 3, 1, 0), now)

	if stats.CurrentStreak != 2 {
		t.Fatalf("CurrentStreak = %d, want 2", stats.CurrentStreak)
	}
	if stats.LongestStreak != 3 {
		t.Fatalf("LongestStreak = %d, want 3", stats.LongestStreak)
	}
	if stats.StreakBreaks != 2 {
		t.Fatalf("StreakBreaks = %d, want 2", stats.StreakBreaks)
	}
	if stats.ActiveDays != 7 {
		t.Fatalf("ActiveDays = %d, want 7", stats.ActiveDays)
	}
	if stats.LastActiveDate == nil || *stats.LastActiveDate != "2024-03-14" {
		t.Fatalf("LastActiveDate = %v", stats.LastActiveDate)
	}
}

func TestComputeStreakStatsEmpty(t *testing.T) {
	stats := ComputeStreakStats(nil, testNow)
	if stats != (model.StreakStats{}) {
		t.Fatalf("stats = %+v, want zero value", stats)
	}
}

func TestStreakServiceHonoursLookbackWindow(t *testing.T) {
	f := newFixture(t)
	_, lessons := f.course(t, 1)
	lessonID := lessons[0].ID

	for _, d := range []int{0, 1, 2, 40} {
		testutil.SeedSession(t, f.db, &model.LearningSession{
			UserID:    7,
			LessonID:  lessonID,
			StartedAt: testNow.AddDate(0, 0, -d),
		})
	}

	streak, err := f.streaks.CurrentStreak(context.Background(), 7)
	if err != nil {
		t.Fatalf("CurrentStreak: %v", err)
	}
	if streak != 3 {
		t.Fatalf("CurrentStreak = %d, want 3", streak)
	}

	stats, err := f.streaks.Stats(context.Background(), 7)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	// 40 天前的会话在回看窗口之外
	if stats.ActiveDays != 3 || stats.StreakBreaks != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}
