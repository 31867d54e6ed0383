package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	SessionsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "learning_sessions_started_total",
		Help: "Learning sessions opened",
	})

	SessionsEnded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "learning_sessions_ended_total",
		Help: "Learning sessions closed",
	})

	ProgressUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "learning_progress_updates_total",
		Help: "Playback progress updates applied",
	})

	WatchSeconds = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "learning_watch_seconds_total",
		Help: "Forward watch time accrued across all learners",
	})

	LessonsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "learning_lessons_completed_total",
		Help: "Lessons that transitioned to completed",
	})

	CoursesCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "learning_courses_completed_total",
		Help: "Enrollments stamped as completed",
	})

	InteractionsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "learning_interactions_total",
			Help: "Interaction log appends by outcome",
		},
		[]string{"type", "outcome"},
	)

	AnalyticsCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_cache_requests_total",
			Help: "Analytics metrics cache lookups",
		},
		[]string{"kind", "result"},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			SessionsStarted,
			SessionsEnded,
			ProgressUpdates,
			WatchSeconds,
			LessonsCompleted,
			CoursesCompleted,
			InteractionsRecorded,
			AnalyticsCache,
		)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
