package model

import "time"

// Progress 某个学员在某个课时上的持久化学习状态，(user_id, lesson_id) 唯一
// swagger:model Progress
type Progress struct {
	BaseModel
	UserID         uint       `gorm:"uniqueIndex:idx_progress_user_lesson;not null" json:"userId"`
	LessonID       uint       `gorm:"uniqueIndex:idx_progress_user_lesson;index;not null" json:"lessonId"`
	LastPosition   float64    `gorm:"default:0" json:"lastPosition"`
	PercentWatched float64    `gorm:"default:0" json:"percentWatched"`
	TimeSpent      int        `gorm:"not null;default:0" json:"timeSpent"` // 秒，只增不减
	Completed      bool       `gorm:"index;default:false" json:"completed"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	Attempts       int        `gorm:"not null;default:1" json:"attempts"`
	FirstStartedAt time.Time  `json:"firstStartedAt"`
	LastAccessedAt time.Time  `gorm:"index" json:"lastAccessedAt"`
}

func (Progress) TableName() string {
	return "progress"
}

// ProgressState 课时学习状态机：NotStarted -> InProgress -> Completed
type ProgressState string

const (
	StateNotStarted ProgressState = "not_started"
	StateInProgress ProgressState = "in_progress"
	StateCompleted  ProgressState = "completed"
)

// State 返回记录所处的状态，nil 表示尚未开始
func (p *Progress) State() ProgressState {
	switch {
	case p == nil:
		return StateNotStarted
	case p.Completed:
		return StateCompleted
	default:
		return StateInProgress
	}
}

// PlaybackUpdate 播放器上报的一次进度
type PlaybackUpdate struct {
	CurrentTime    float64  `json:"currentTime" binding:"gte=0"`
	Duration       float64  `json:"duration" binding:"gte=0"`
	PercentWatched *float64 `json:"percentWatched,omitempty"` // 缺省时按 currentTime/duration 推算
	Completed      *bool    `json:"completed,omitempty"`
}
