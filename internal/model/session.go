package model

import (
	"time"

	"gorm.io/datatypes"
)

// LearningSession 一次连续的观看/学习过程
// swagger:model LearningSession
type LearningSession struct {
	UUIDRecord
	UserID     uint       `gorm:"index:idx_session_user_started;not null" json:"userId"`
	LessonID   uint       `gorm:"index;not null" json:"lessonId"`
	ProgressID uint       `gorm:"index;not null" json:"progressId"`
	StartedAt  time.Time  `gorm:"index:idx_session_user_started;not null" json:"startedAt"`
	EndedAt    *time.Time `json:"endedAt,omitempty"`
	Duration   int        `gorm:"default:0" json:"duration"` // 秒，结束时写入
	Completed  bool       `gorm:"default:false" json:"completed"`
}

func (LearningSession) TableName() string {
	return "learning_sessions"
}

func (s *LearningSession) IsOpen() bool {
	return s.EndedAt == nil
}

type InteractionType string

const (
	InteractionStart    InteractionType = "START"
	InteractionPause    InteractionType = "PAUSE"
	InteractionResume   InteractionType = "RESUME"
	InteractionSeek     InteractionType = "SEEK"
	InteractionComplete InteractionType = "COMPLETE"
)

// InteractionTypes 按固定顺序列出，热点统计的平局按此顺序决定
var InteractionTypes = []InteractionType{
	InteractionStart,
	InteractionPause,
	InteractionResume,
	InteractionSeek,
	InteractionComplete,
}

func (t InteractionType) Valid() bool {
	for _, v := range InteractionTypes {
		if v == t {
			return true
		}
	}
	return false
}

// SessionInteraction 只追加的交互日志，写入后不修改不删除
// swagger:model SessionInteraction
type SessionInteraction struct {
	ID        uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID string          `gorm:"type:varchar(36);index;not null" json:"sessionId"`
	Type      InteractionType `gorm:"size:16;not null" json:"type"`
	Timestamp time.Time       `gorm:"not null" json:"timestamp"`
	Position  *float64        `json:"position,omitempty"`
	Data      datatypes.JSON  `json:"data,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

func (SessionInteraction) TableName() string {
	return "session_interactions"
}

// SessionStartResult startSession 的返回值
type SessionStartResult struct {
	SessionID  string `json:"sessionId"`
	ProgressID uint   `json:"progressId"`
	Attempts   int    `json:"attempts"`
}

// SessionRecord 会话详情，附带交互数量
type SessionRecord struct {
	LearningSession
	InteractionCount int64 `json:"interactionCount"`
}
