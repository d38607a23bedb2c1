package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ProgressNotStarted = "not_started"
	ProgressInProgress = "in_progress"
	ProgressCompleted  = "completed"
)

// LectureProgress is the per-lecture watch state of one learner in one course.
type LectureProgress struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_progress_user_course_lecture,priority:1" json:"user_id"`
	CourseID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_progress_user_course_lecture,priority:2;index" json:"course_id"`
	LectureID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_progress_user_course_lecture,priority:3" json:"lecture_id"`

	WatchSeconds         int64   `gorm:"column:watch_seconds;not null;default:0" json:"watch_seconds"`
	TotalDuration        int64   `gorm:"column:total_duration;not null;default:0" json:"total_duration"`
	CompletionPercentage float64 `gorm:"column:completion_percentage;not null;default:0" json:"completion_percentage"`

	// not_started|in_progress|completed
	Status      string     `gorm:"column:status;not null;default:'not_started'" json:"status"`
	IsCompleted bool       `gorm:"column:is_completed;not null;default:false" json:"is_completed"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`

	LastAccessedAt *time.Time `gorm:"column:last_accessed_at" json:"last_accessed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (LectureProgress) TableName() string { return "lecture_progress" }

func (p *LectureProgress) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// ApplyWatch folds a watch report into the row: it clamps to the lecture length, never moves
// backwards, and derives completion and status. It returns true when the lecture just completed.
func (p *LectureProgress) ApplyWatch(reported int64, now time.Time) bool {
	if reported < 0 {
		reported = 0
	}
	if p.TotalDuration < 0 {
		p.TotalDuration = 0
	}
	if reported > p.TotalDuration {
		reported = p.TotalDuration
	}
	if reported > p.WatchSeconds {
		p.WatchSeconds = reported
	}
	if p.WatchSeconds > p.TotalDuration {
		p.WatchSeconds = p.TotalDuration
	}

	p.CompletionPercentage = CompletionPercentage(p.WatchSeconds, p.TotalDuration)
	wasCompleted := p.IsCompleted
	switch {
	case p.CompletionPercentage >= 100:
		p.Status = ProgressCompleted
		p.IsCompleted = true
		if p.CompletedAt == nil {
			t := now
			p.CompletedAt = &t
		}
	case p.WatchSeconds > 0:
		if !p.IsCompleted {
			p.Status = ProgressInProgress
		}
	default:
		if !p.IsCompleted {
			p.Status = ProgressNotStarted
		}
	}
	t := now
	p.LastAccessedAt = &t
	return p.IsCompleted && !wasCompleted
}

// CompletionPercentage is watched/total*100, or 0 for zero-length content.
func CompletionPercentage(watched, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(watched) / float64(total) * 100
}
