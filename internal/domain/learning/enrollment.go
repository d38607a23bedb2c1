package learning

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	EnrollmentActive    = "active"
	EnrollmentCompleted = "completed"
	EnrollmentDropped   = "dropped"
	EnrollmentExpired   = "expired"
)

// Enrollment is the ledger entry granting one user access to one course.
// ProgressPercentage and the other summary columns are derived from LectureProgress rows.
type Enrollment struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_enrollment_user_course,priority:1" json:"user_id"`
	CourseID  uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_enrollment_user_course,priority:2;index" json:"course_id"`
	PaymentID *uuid.UUID `gorm:"type:uuid;index" json:"payment_id,omitempty"`

	// active|completed|dropped|expired
	Status     string          `gorm:"column:status;not null;default:'active';index" json:"status"`
	AmountPaid decimal.Decimal `gorm:"column:amount_paid;type:numeric(12,2);not null;default:0" json:"amount_paid"`

	ProgressPercentage    float64 `gorm:"column:progress_percentage;not null;default:0" json:"progress_percentage"`
	CompletedLectureCount int64   `gorm:"column:completed_lecture_count;not null;default:0" json:"completed_lecture_count"`
	TotalWatchSeconds     int64   `gorm:"column:total_watch_seconds;not null;default:0" json:"total_watch_seconds"`

	EnrolledAt     time.Time  `gorm:"column:enrolled_at;not null" json:"enrolled_at"`
	LastAccessedAt *time.Time `gorm:"column:last_accessed_at" json:"last_accessed_at,omitempty"`
	CompletedAt    *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	DroppedAt      *time.Time `gorm:"column:dropped_at" json:"dropped_at,omitempty"`
	ExpiresAt      *time.Time `gorm:"column:expires_at;index" json:"expires_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Enrollment) TableName() string { return "enrollment" }

func (e *Enrollment) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// AcceptsProgress reports whether watch updates may still be written against this enrollment.
func (e *Enrollment) AcceptsProgress() bool {
	if e == nil {
		return false
	}
	return e.Status == EnrollmentActive || e.Status == EnrollmentCompleted
}
