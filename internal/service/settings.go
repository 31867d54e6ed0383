package service

import (
	"course_progress_backend/internal/config"
	"sync/atomic"
	"time"
)

// Settings 分析阈值的并发安全持有者，配置热更新时整体替换
type Settings struct {
	v atomic.Pointer[config.AnalyticsConfig]
}

func NewSettings(cfg config.AnalyticsConfig) *Settings {
	s := &Settings{}
	s.Set(cfg)
	return s
}

func (s *Settings) Get() config.AnalyticsConfig {
	return *s.v.Load()
}

func (s *Settings) Set(cfg config.AnalyticsConfig) {
	s.v.Store(&cfg)
}

// Clock 返回当前时间，测试中可替换
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}
