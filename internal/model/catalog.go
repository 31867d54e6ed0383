package model

import "time"

// 课程目录由目录子系统维护，这里只做只读镜像（报名完成时间除外）

// swagger:model Course
type Course struct {
	BaseModel
	Title       string         `gorm:"size:255;not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Modules     []CourseModule `gorm:"foreignKey:CourseID" json:"modules,omitempty"`
}

func (Course) TableName() string {
	return "courses"
}

// swagger:model CourseModule
type CourseModule struct {
	BaseModel
	CourseID uint     `gorm:"index;not null" json:"courseId"`
	Title    string   `gorm:"size:255;not null" json:"title"`
	Order    int      `gorm:"column:sort_order;default:0" json:"order"`
	Lessons  []Lesson `gorm:"foreignKey:ModuleID" json:"lessons,omitempty"`
}

func (CourseModule) TableName() string {
	return "course_modules"
}

// swagger:model Lesson
type Lesson struct {
	BaseModel
	CourseID        uint    `gorm:"index;not null" json:"courseId"`
	ModuleID        uint    `gorm:"index;not null" json:"moduleId"`
	Title           string  `gorm:"size:255;not null" json:"title"`
	Order           int     `gorm:"column:sort_order;default:0" json:"order"`
	DurationSeconds float64 `gorm:"default:0" json:"durationSeconds"`
}

func (Lesson) TableName() string {
	return "lessons"
}

// OrderedLesson 按 (模块顺序, 课时顺序) 排好的课时
type OrderedLesson struct {
	LessonID    uint   `json:"lessonId"`
	Title       string `json:"title"`
	ModuleOrder int    `json:"moduleOrder"`
	LessonOrder int    `json:"lessonOrder"`
}

// swagger:model Enrollment
type Enrollment struct {
	BaseModel
	UserID      uint       `gorm:"uniqueIndex:idx_enrollment_user_course;not null" json:"userId"`
	CourseID    uint       `gorm:"uniqueIndex:idx_enrollment_user_course;index;not null" json:"courseId"`
	EnrolledAt  time.Time  `json:"enrolledAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}
