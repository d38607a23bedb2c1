package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yungbote/coursemarket-backend/internal/domain/learning"
)

var EnrollmentLedgerContract = Contract{
	Name:    "Learning.EnrollmentLedger",
	Owns:    "enrollment",
	Columns: []string{"course.total_students"},
	Notes:   "Seeds lecture_progress rows on enroll and recomputes the enrollment summary from them.",
}

// EnrollmentLedger owns enrollment lifecycle invariants.
//
// Write method failures return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeConflict, CodePreconditionFailed, CodeRetryable, CodeInternal.
type EnrollmentLedger interface {
	Aggregate

	// Enroll inserts the enrollment, bumps total_students and seeds lecture progress in one transaction.
	Enroll(ctx context.Context, in EnrollInput) (*learning.Enrollment, error)

	// RecomputeAggregate rebuilds the enrollment summary from its progress rows under a row lock.
	// completed is true only for the call whose transaction moved the enrollment from active to completed.
	RecomputeAggregate(ctx context.Context, userID, courseID uuid.UUID) (e *learning.Enrollment, completed bool, err error)

	CompleteCourse(ctx context.Context, userID, courseID uuid.UUID) (e *learning.Enrollment, completed bool, err error)
	DropCourse(ctx context.Context, userID, courseID uuid.UUID) (*learning.Enrollment, error)

	// ExpireDue moves active enrollments whose access window closed before now to expired.
	ExpireDue(ctx context.Context, now time.Time, limit int) (int, error)
}

type EnrollInput struct {
	UserID       uuid.UUID
	CourseID     uuid.UUID
	AmountPaid   decimal.Decimal
	FreeOverride bool
	PaymentID    *uuid.UUID
	EnrolledAt   time.Time
}
