package testutil

import (
	"testing"
	"time"

	"course_progress_backend/internal/model"

	"gorm.io/gorm"
)

func SeedCourse(tb testing.TB, db *gorm.DB, title string) *model.Course {
	tb.Helper()
	c := &model.Course{Title: title}
	if err := db.Create(c).Error; err != nil {
		tb.Fatalf("seed course: %v", err)
	}
	return c
}

func SeedModule(tb testing.TB, db *gorm.DB, courseID uint, order int) *model.CourseModule {
	tb.Helper()
	m := &model.CourseModule{CourseID: courseID, Title: "module", Order: order}
	if err := db.Create(m).Error; err != nil {
		tb.Fatalf("seed module: %v", err)
	}
	return m
}

func SeedLesson(tb testing.TB, db *gorm.DB, module *model.CourseModule, order int, title string) *model.Lesson {
	tb.Helper()
	l := &model.Lesson{
		CourseID:        module.CourseID,
		ModuleID:        module.ID,
		Title:           title,
		Order:           order,
		DurationSeconds: 300,
	}
	if err := db.Create(l).Error; err != nil {
		tb.Fatalf("seed lesson: %v", err)
	}
	return l
}

func SeedEnrollment(tb testing.TB, db *gorm.DB, userID, courseID uint) *model.Enrollment {
	tb.Helper()
	e := &model.Enrollment{UserID: userID, CourseID: courseID, EnrolledAt: time.Now()}
	if err := db.Create(e).Error; err != nil {
		tb.Fatalf("seed enrollment: %v", err)
	}
	return e
}

func SeedProgress(tb testing.TB, db *gorm.DB, p *model.Progress) *model.Progress {
	tb.Helper()
	if p.Attempts == 0 {
		p.Attempts = 1
	}
	if p.FirstStartedAt.IsZero() {
		p.FirstStartedAt = time.Now()
	}
	if p.LastAccessedAt.IsZero() {
		p.LastAccessedAt = p.FirstStartedAt
	}
	if err := db.Create(p).Error; err != nil {
		tb.Fatalf("seed progress: %v", err)
	}
	return p
}

func SeedSession(tb testing.TB, db *gorm.DB, s *model.LearningSession) *model.LearningSession {
	tb.Helper()
	if err := db.Create(s).Error; err != nil {
		tb.Fatalf("seed session: %v", err)
	}
	return s
}

func SeedInteraction(tb testing.TB, db *gorm.DB, sessionID string, typ model.InteractionType, position *float64) *model.SessionInteraction {
	tb.Helper()
	i := &model.SessionInteraction{
		SessionID: sessionID,
		Type:      typ,
		Timestamp: time.Now(),
		Position:  position,
	}
	if err := db.Create(i).Error; err != nil {
		tb.Fatalf("seed interaction: %v", err)
	}
	return i
}

// Clock 可手动拨动的测试时钟
type Clock struct {
	Now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{Now: now}
}

func (c *Clock) Func() func() time.Time {
	return func() time.Time { return c.Now }
}

func (c *Clock) Advance(d time.Duration) {
	c.Now = c.Now.Add(d)
}

func PtrFloat(v float64) *float64 { return &v }

func PtrBool(v bool) *bool { return &v }

func PtrUint(v uint) *uint { return &v }
