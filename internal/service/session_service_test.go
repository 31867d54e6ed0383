package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"course_progress_backend/internal/model"
	"course_progress_backend/internal/testutil"
	"course_progress_backend/internal/util"

	"github.com/google/uuid"
)

func TestSessionEndToEnd(t *testing.T) {
	f := newFixture(t)
	_, lessons := f.course(t, 1)
	lessonID := lessons[0].ID
	ctx := context.Background()

	started, err := f.sessions.StartSession(ctx, 1, lessonID)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if started.Attempts != 1 || started.ProgressID == 0 || started.SessionID == "" {
		t.Fatalf("start result = %+v", started)
	}

	f.clock.Advance(30 * time.Second)
	p := f.update(t, 1, lessonID, model.PlaybackUpdate{CurrentTime: 30, Duration: 300, PercentWatched: testutil.PtrFloat(10)})
	if p.TimeSpent != 30 || p.Completed {
		t.Fatalf("after first update: %+v", p)
	}

	f.clock.Advance(4 * time.Minute)
	p = f.update(t, 1, lessonID, model.PlaybackUpdate{CurrentTime: 270, Duration: 300, PercentWatched: testutil.PtrFloat(90)})
	if p.TimeSpent != 270 || !p.Completed || p.CompletedAt == nil {
		t.Fatalf("after second update: %+v", p)
	}

	f.clock.Advance(30 * time.Second)
	record, err := f.sessions.EndSession(ctx, 1, started.SessionID)
	if err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if record.Duration != 300 {
		t.Fatalf("duration = %d, want 300", record.Duration)
	}
	if !record.Completed {
		t.Fatalf("session completed flag not copied from progress")
	}
	if record.EndedAt == nil || !record.EndedAt.Equal(f.clock.Now) {
		t.Fatalf("endedAt = %v", record.EndedAt)
	}
	// START + 关闭时追加的 COMPLETE
	if record.InteractionCount != 2 {
		t.Fatalf("interactionCount = %d, want 2", record.InteractionCount)
	}

	metrics, err := f.analytics.GetLessonMetrics(ctx, lessonID)
	if err != nil {
		t.Fatalf("GetLessonMetrics: %v", err)
	}
	if metrics.CompletionRate != 100 || metrics.AverageAttempts != 1 {
		t.Fatalf("lesson metrics = %+v", metrics)
	}
	if metrics.AverageWatchTime != 270 {
		t.Fatalf("averageWatchTime = %v, want 270", metrics.AverageWatchTime)
	}
}

func TestStartSessionTwiceCountsAttempts(t *testing.T) {
	f := newFixture(t)
	_, lessons := f.course(t, 1)
	ctx := context.Background()

	first, err := f.sessions.StartSession(ctx, 1, lessons[0].ID)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	second, err := f.sessions.StartSession(ctx, 1, lessons[0].ID)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	if first.SessionID == second.SessionID {
		t.Fatalf("concurrent opens must get distinct sessions")
	}
	if first.ProgressID != second.ProgressID {
		t.Fatalf("sessions should share one progress row")
	}
	if second.Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", second.Attempts)
	}
}

func TestStartSessionUnknownLesson(t *testing.T) {
	f := newFixture(t)
	if _, err := f.sessions.StartSession(context.Background(), 1, 42); !errors.Is(err, util.ErrLessonNotFound) {
		t.Fatalf("err = %v, want ErrLessonNotFound", err)
	}
}

func TestEndSessionErrors(t *testing.T) {
	f := newFixture(t)
	_, lessons := f.course(t, 1)
	ctx := context.Background()

	if _, err := f.sessions.EndSession(ctx, 1, "missing"); !errors.Is(err, util.ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}

	started, err := f.sessions.StartSession(ctx, 1, lessons[0].ID)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	// 其他学员看不到这个会话
	if _, err := f.sessions.EndSession(ctx, 2, started.SessionID); !errors.Is(err, util.ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}

	if _, err := f.sessions.EndSession(ctx, 1, started.SessionID); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if _, err := f.sessions.EndSession(ctx, 1, started.SessionID); !errors.Is(err, util.ErrSessionAlreadyEnded) {
		t.Fatalf("err = %v, want ErrSessionAlreadyEnded", err)
	}

	record, err := f.sessions.GetSession(ctx, 1, started.SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if record.InteractionCount != 2 {
		t.Fatalf("a second close must not append another interaction, count = %d", record.InteractionCount)
	}
}

func TestRecordInteraction(t *testing.T) {
	f := newFixture(t)
	_, lessons := f.course(t, 1)
	ctx := context.Background()

	started, err := f.sessions.StartSession(ctx, 1, lessons[0].ID)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	ts := testNow.Add(5 * time.Second)
	err = f.sessions.RecordInteraction(ctx, 1, started.SessionID, InteractionInput{
		Type:      model.InteractionSeek,
		Timestamp: &ts,
		Position:  testutil.PtrFloat(95.5),
		Data:      json.RawMessage(`{"from":10,"to":95.5}`),
	})
	if err != nil {
		t.Fatalf("RecordInteraction: %v", err)
	}

	err = f.sessions.RecordInteraction(ctx, 1, started.SessionID, InteractionInput{Type: "REWIND"})
	if !errors.Is(err, util.ErrInvalidInteraction) {
		t.Fatalf("err = %v, want ErrInvalidInteraction", err)
	}

	// 未知会话不报错，只丢弃
	if err := f.sessions.RecordInteraction(ctx, 1, "unknown", InteractionInput{Type: model.InteractionPause}); err != nil {
		t.Fatalf("unknown session should be swallowed, got %v", err)
	}

	rows, err := f.interactionRepo.ListBySession(ctx, started.SessionID)
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("interactions = %d, want 2", len(rows))
	}
	if rows[0].Type != model.InteractionStart {
		t.Fatalf("first interaction = %s, want START", rows[0].Type)
	}
	seek := rows[1]
	if seek.Type != model.InteractionSeek || seek.Position == nil || *seek.Position != 95.5 {
		t.Fatalf("seek interaction = %+v", seek)
	}
	if !seek.Timestamp.Equal(ts) {
		t.Fatalf("timestamp = %v, want %v", seek.Timestamp, ts)
	}
	if string(seek.Data) != `{"from":10,"to":95.5}` {
		t.Fatalf("data = %s", seek.Data)
	}

	var progress model.Progress
	if err := f.db.First(&progress, started.ProgressID).Error; err != nil {
		t.Fatalf("load progress: %v", err)
	}
	if progress.TimeSpent != 0 || progress.LastPosition != 0 {
		t.Fatalf("interaction log must not touch progress: %+v", progress)
	}
}

func TestRecordInteractionDropsOutOfRangePosition(t *testing.T) {
	f := newFixture(t)
	_, lessons := f.course(t, 1)
	ctx := context.Background()

	started, err := f.sessions.StartSession(ctx, 1, lessons[0].ID)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	for i := 0; i < 5; i++ {
		err := f.sessions.RecordInteraction(ctx, 1, started.SessionID, InteractionInput{
			Type:     model.InteractionSeek,
			Position: testutil.PtrFloat(1e19),
		})
		if err != nil {
			t.Fatalf("RecordInteraction: %v", err)
		}
	}
	if err := f.sessions.RecordInteraction(ctx, 1, started.SessionID, InteractionInput{
		Type:     model.InteractionPause,
		Position: testutil.PtrFloat(-3),
	}); err != nil {
		t.Fatalf("RecordInteraction: %v", err)
	}

	rows, err := f.sessions.ListInteractions(ctx, 1, started.SessionID)
	if err != nil {
		t.Fatalf("ListInteractions: %v", err)
	}
	if len(rows) != 7 {
		t.Fatalf("interactions = %d, want 7", len(rows))
	}
	for _, it := range rows[1:] {
		if it.Position != nil {
			t.Fatalf("%s stored position %v, want nil", it.Type, *it.Position)
		}
	}

	m, err := f.analytics.GetLessonMetrics(ctx, lessons[0].ID)
	if err != nil {
		t.Fatalf("GetLessonMetrics: %v", err)
	}
	if len(m.InteractionHotspots) != 0 {
		t.Fatalf("hotspots = %+v, want none", m.InteractionHotspots)
	}
}

func TestListInteractionsIsScopedToOwner(t *testing.T) {
	f := newFixture(t)
	_, lessons := f.course(t, 1)
	ctx := context.Background()

	started, err := f.sessions.StartSession(ctx, 1, lessons[0].ID)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if _, err := uuid.Parse(started.SessionID); err != nil {
		t.Fatalf("session id %q is not a uuid: %v", started.SessionID, err)
	}

	if _, err := f.sessions.ListInteractions(ctx, 2, started.SessionID); !errors.Is(err, util.ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}

	rows, err := f.sessions.ListInteractions(ctx, 1, started.SessionID)
	if err != nil {
		t.Fatalf("ListInteractions: %v", err)
	}
	if len(rows) != 1 || rows[0].Type != model.InteractionStart {
		t.Fatalf("interactions = %+v", rows)
	}
}
