package catalog

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Lecture struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CourseID uuid.UUID `gorm:"type:uuid;not null;index:idx_lecture_course_position,priority:1" json:"course_id"`
	Position int       `gorm:"column:position;not null;default:0;index:idx_lecture_course_position,priority:2" json:"position"`

	Title           string `gorm:"column:title;not null" json:"title"`
	DurationSeconds int64  `gorm:"column:duration_seconds;not null;default:0" json:"duration_seconds"`
	IsPreview       bool   `gorm:"column:is_preview;not null;default:false" json:"is_preview"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Lecture) TableName() string { return "lecture" }

func (l *Lecture) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
