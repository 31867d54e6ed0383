package model

import "time"

// ProgressSummary 单个学员（可限定课程）的学习汇总
type ProgressSummary struct {
	UserID                uint       `json:"userId"`
	CourseID              *uint      `json:"courseId,omitempty"`
	TotalLessons          int        `json:"totalLessons"`
	CompletedLessons      int        `json:"completedLessons"`
	InProgressLessons     int        `json:"inProgressLessons"`
	TotalTimeSpent        int        `json:"totalTimeSpent"`        // 秒
	AverageCompletionTime float64    `json:"averageCompletionTime"` // 秒/已完成课时
	CompletionRate        float64    `json:"completionRate"`        // 0-100
	LastAccessedAt        *time.Time `json:"lastAccessedAt,omitempty"`
	CurrentStreak         int        `json:"currentStreak"`
	TotalSessions         int64      `json:"totalSessions"`
}

// StreakStats 连续学习天数统计
type StreakStats struct {
	CurrentStreak  int     `json:"currentStreak"`
	LongestStreak  int     `json:"longestStreak"`
	StreakBreaks   int     `json:"streakBreaks"`
	ActiveDays     int     `json:"activeDays"`
	LastActiveDate *string `json:"lastActiveDate,omitempty"`
}

// DropoffPoint 相邻两个课时之间的流失
type DropoffPoint struct {
	LessonID          uint    `json:"lessonId"`
	LessonTitle       string  `json:"lessonTitle"`
	NextLessonID      uint    `json:"nextLessonId"`
	NextLessonTitle   string  `json:"nextLessonTitle"`
	StudentsReached   int64   `json:"studentsReached"`
	StudentsContinued int64   `json:"studentsContinued"`
	DropoffRate       float64 `json:"dropoffRate"`
}

type EngagementMetrics struct {
	AverageSessionLength float64 `json:"averageSessionLength"` // 分钟
	TotalViewTime        float64 `json:"totalViewTime"`        // 分钟
	TotalSessions        int64   `json:"totalSessions"`
	TotalInteractions    int64   `json:"totalInteractions"`
	InteractionRate      float64 `json:"interactionRate"` // 每个会话的交互次数
}

type PerformanceDistribution struct {
	HighPerformers     int `json:"highPerformers"`
	AveragePerformers  int `json:"averagePerformers"`
	StrugglingStudents int `json:"strugglingStudents"`
}

// CourseMetrics 课程维度的跨学员统计
type CourseMetrics struct {
	CourseID                uint                    `json:"courseId"`
	CourseTitle             string                  `json:"courseTitle"`
	TotalStudents           int64                   `json:"totalStudents"`
	ActiveStudents          int64                   `json:"activeStudents"`
	CompletionRate          float64                 `json:"completionRate"`        // 0-100
	AverageCompletionTime   float64                 `json:"averageCompletionTime"` // 小时
	DropoffPoints           []DropoffPoint          `json:"dropoffPoints"`
	EngagementMetrics       EngagementMetrics       `json:"engagementMetrics"`
	PerformanceDistribution PerformanceDistribution `json:"performanceDistribution"`
	GeneratedAt             time.Time               `json:"generatedAt"`
}

type InteractionHotspot struct {
	Position   int             `json:"position"` // 桶起点（秒）
	Count      int             `json:"count"`
	MostCommon InteractionType `json:"mostCommon"`
}

// LessonMetrics 课时维度的跨学员统计
type LessonMetrics struct {
	LessonID            uint                 `json:"lessonId"`
	LessonTitle         string               `json:"lessonTitle"`
	TotalLearners       int                  `json:"totalLearners"`
	AverageWatchTime    float64              `json:"averageWatchTime"` // 秒
	CompletionRate      float64              `json:"completionRate"`   // 0-100
	AverageAttempts     float64              `json:"averageAttempts"`
	CommonDropoffPoints []int                `json:"commonDropoffPoints"`
	InteractionHotspots []InteractionHotspot `json:"interactionHotspots"`
	GeneratedAt         time.Time            `json:"generatedAt"`
}
