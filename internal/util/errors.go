package util

import "errors"

var (
	ErrSessionNotFound     = errors.New("learning session not found")
	ErrSessionAlreadyEnded = errors.New("learning session already ended")
	ErrLessonNotFound      = errors.New("lesson not found")
	ErrCourseNotFound      = errors.New("course not found")
	ErrProgressNotFound    = errors.New("progress not found")
	ErrInvalidInteraction  = errors.New("invalid interaction type")
	ErrInvalidProgress     = errors.New("invalid progress update")
)

// IsNotFound 判断是否为资源不存在类错误
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrLessonNotFound) ||
		errors.Is(err, ErrCourseNotFound) ||
		errors.Is(err, ErrProgressNotFound)
}
