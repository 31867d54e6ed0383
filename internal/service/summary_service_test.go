package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"course_progress_backend/internal/model"
	"course_progress_backend/internal/testutil"
	"course_progress_backend/internal/util"
)

func TestSummarizeZeroRows(t *testing.T) {
	for _, total := range []int{0, 5} {
		s := Summarize(nil, total)
		if s.CompletionRate != 0 || s.AverageCompletionTime != 0 {
			t.Fatalf("Summarize(nil, %d) = %+v", total, s)
		}
		if s.LastAccessedAt != nil {
			t.Fatalf("lastAccessedAt should be nil")
		}
	}
}

func TestSummarize(t *testing.T) {
	early := testNow.Add(-time.Hour)
	rows := []model.Progress{
		{TimeSpent: 100, Completed: true, LastAccessedAt: early},
		{TimeSpent: 200, Completed: true, LastAccessedAt: testNow},
		{TimeSpent: 60, LastAccessedAt: early},
	}

	s := Summarize(rows, 4)
	if s.CompletedLessons != 2 || s.InProgressLessons != 1 || s.TotalTimeSpent != 360 {
		t.Fatalf("summary = %+v", s)
	}
	if s.CompletionRate != 50 {
		t.Fatalf("completionRate = %v, want 50", s.CompletionRate)
	}
	if s.AverageCompletionTime != 180 {
		t.Fatalf("averageCompletionTime = %v, want 180", s.AverageCompletionTime)
	}
	if s.LastAccessedAt == nil || !s.LastAccessedAt.Equal(testNow) {
		t.Fatalf("lastAccessedAt = %v", s.LastAccessedAt)
	}
}

func TestGetProgressSummaryForNewLearner(t *testing.T) {
	f := newFixture(t)

	s, err := f.summaries.GetProgressSummary(context.Background(), 99, nil)
	if err != nil {
		t.Fatalf("GetProgressSummary: %v", err)
	}
	if s.TotalLessons != 0 || s.CompletionRate != 0 || s.AverageCompletionTime != 0 || s.CurrentStreak != 0 || s.TotalSessions != 0 {
		t.Fatalf("summary = %+v", s)
	}
}

func TestGetProgressSummaryScopedToCourse(t *testing.T) {
	f := newFixture(t)
	course, lessons := f.course(t, 4)
	other, otherLessons := f.course(t, 1)
	ctx := context.Background()

	for _, l := range []*model.Lesson{lessons[0], lessons[1], otherLessons[0]} {
		if _, err := f.sessions.StartSession(ctx, 1, l.ID); err != nil {
			t.Fatalf("StartSession: %v", err)
		}
	}
	f.update(t, 1, lessons[0].ID, model.PlaybackUpdate{CurrentTime: 300, Duration: 300})
	f.update(t, 1, lessons[1].ID, model.PlaybackUpdate{CurrentTime: 60, Duration: 300})
	f.update(t, 1, otherLessons[0].ID, model.PlaybackUpdate{CurrentTime: 300, Duration: 300})

	s, err := f.summaries.GetProgressSummary(ctx, 1, testutil.PtrUint(course.ID))
	if err != nil {
		t.Fatalf("GetProgressSummary: %v", err)
	}
	if s.TotalLessons != 4 || s.CompletedLessons != 1 || s.InProgressLessons != 1 {
		t.Fatalf("summary = %+v", s)
	}
	if s.CompletionRate != 25 {
		t.Fatalf("completionRate = %v, want 25", s.CompletionRate)
	}
	if s.TotalTimeSpent != 360 || s.AverageCompletionTime != 360 {
		t.Fatalf("time = %d avg = %v", s.TotalTimeSpent, s.AverageCompletionTime)
	}
	if s.TotalSessions != 2 {
		t.Fatalf("totalSessions = %d, want 2", s.TotalSessions)
	}
	if s.CurrentStreak != 1 {
		t.Fatalf("currentStreak = %d, want 1", s.CurrentStreak)
	}

	all, err := f.summaries.GetProgressSummary(ctx, 1, nil)
	if err != nil {
		t.Fatalf("GetProgressSummary: %v", err)
	}
	if all.TotalLessons != 3 || all.CompletedLessons != 2 || all.TotalSessions != 3 {
		t.Fatalf("unscoped summary = %+v", all)
	}

	if _, err := f.summaries.GetProgressSummary(ctx, 1, testutil.PtrUint(other.ID+100)); !errors.Is(err, util.ErrCourseNotFound) {
		t.Fatalf("err = %v, want ErrCourseNotFound", err)
	}
}
