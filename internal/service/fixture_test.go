package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"course_progress_backend/internal/config"
	"course_progress_backend/internal/model"
	"course_progress_backend/internal/repository"
	"course_progress_backend/internal/testutil"

	"gorm.io/gorm"
)

var testNow = time.Date(2024, 3, 14, 15, 0, 0, 0, time.UTC)

type fixture struct {
	db    *gorm.DB
	clock *testutil.Clock
	cache *memoryCache

	progressRepo    *repository.ProgressRepository
	sessionRepo     *repository.SessionRepository
	interactionRepo *repository.InteractionRepository
	catalogRepo     *repository.CatalogRepository
	enrollmentRepo  *repository.EnrollmentRepository

	settings  *Settings
	progress  *ProgressService
	sessions  *SessionService
	streaks   *StreakService
	summaries *SummaryService
	analytics *AnalyticsService
}

func testAnalyticsConfig() config.AnalyticsConfig {
	cfg := config.DefaultAnalytics()
	cfg.Timezone = "UTC"
	return cfg
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		db:    testutil.DB(t),
		clock: testutil.NewClock(testNow),
		cache: newMemoryCache(),
	}
	now := Clock(f.clock.Func())

	f.progressRepo = repository.NewProgressRepository(f.db)
	f.sessionRepo = repository.NewSessionRepository(f.db)
	f.interactionRepo = repository.NewInteractionRepository(f.db)
	f.catalogRepo = repository.NewCatalogRepository(f.db)
	f.enrollmentRepo = repository.NewEnrollmentRepository(f.db)

	f.settings = NewSettings(testAnalyticsConfig())
	f.streaks = NewStreakService(f.sessionRepo, f.settings, now)
	f.analytics = NewAnalyticsService(f.progressRepo, f.sessionRepo, f.interactionRepo, f.catalogRepo, f.enrollmentRepo, f.cache, f.settings, now)
	f.progress = NewProgressService(f.progressRepo, f.catalogRepo, f.enrollmentRepo, f.settings, now)
	f.progress.Invalidator = f.analytics
	f.sessions = NewSessionService(f.sessionRepo, f.interactionRepo, f.catalogRepo, f.progressRepo, f.progress, now)
	f.summaries = NewSummaryService(f.progressRepo, f.sessionRepo, f.catalogRepo, f.streaks)
	return f
}

// course 建立一门课程，按顺序放入 n 个课时
func (f *fixture) course(t *testing.T, n int) (*model.Course, []*model.Lesson) {
	t.Helper()
	c := testutil.SeedCourse(t, f.db, "Go 并发")
	m := testutil.SeedModule(t, f.db, c.ID, 1)
	lessons := make([]*model.Lesson, 0, n)
	for i := 0; i < n; i++ {
		lessons = append(lessons, testutil.SeedLesson(t, f.db, m, i+1, "lesson"))
	}
	return c, lessons
}

func (f *fixture) update(t *testing.T, userID, lessonID uint, upd model.PlaybackUpdate) *model.Progress {
	t.Helper()
	p, err := f.progress.UpdateProgress(context.Background(), userID, lessonID, upd)
	if err != nil {
		t.Fatalf("UpdateProgress(%+v): %v", upd, err)
	}
	return p
}

type memoryCache struct {
	mu      sync.Mutex
	items   map[string][]byte
	gets    int
	deletes int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: make(map[string][]byte)}
}

func (c *memoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	v, ok := c.items[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return v, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		c.deletes++
		delete(c.items, k)
	}
	return nil
}

func (c *memoryCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}
