package aggregates

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yungbote/coursemarket-backend/internal/data/repos"
	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/domain/learning"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
)

type EnrollmentLedgerDeps struct {
	Base BaseDeps

	Courses     repos.CourseRepo
	Lectures    repos.LectureRepo
	Enrollments repos.EnrollmentRepo
	Progress    repos.LectureProgressRepo
}

type enrollmentLedger struct {
	deps EnrollmentLedgerDeps
}

func NewEnrollmentLedger(deps EnrollmentLedgerDeps) domainagg.EnrollmentLedger {
	deps.Base = deps.Base.withDefaults()
	return &enrollmentLedger{deps: deps}
}

func (a *enrollmentLedger) Contract() domainagg.Contract {
	return domainagg.EnrollmentLedgerContract
}

func (a *enrollmentLedger) configured() bool {
	return a.deps.Courses != nil && a.deps.Lectures != nil && a.deps.Enrollments != nil && a.deps.Progress != nil
}

func (a *enrollmentLedger) Enroll(ctx context.Context, in domainagg.EnrollInput) (*learning.Enrollment, error) {
	const op = "Learning.EnrollmentLedger.Enroll"
	if in.UserID == uuid.Nil || in.CourseID == uuid.Nil {
		return nil, invalidArgument(op, "user_id and course_id are required")
	}
	if in.AmountPaid.IsNegative() {
		return nil, invalidArgument(op, "amount_paid must be >= 0")
	}
	if !a.configured() {
		return nil, domainagg.NewError(domainagg.CodeInternal, op, "enrollment ledger repos not configured", nil)
	}

	enrolledAt := in.EnrolledAt.UTC()
	if in.EnrolledAt.IsZero() {
		enrolledAt = a.deps.Base.now()
	}

	var out *learning.Enrollment
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		course, err := a.deps.Courses.GetByID(dbc, in.CourseID)
		if err != nil {
			return err
		}
		if course == nil || !course.IsPublished {
			return domainagg.NewReasonError(domainagg.CodePreconditionFailed, domainagg.ReasonCourseUnavailable, op,
				"course is not available for enrollment", nil)
		}

		existing, err := a.deps.Enrollments.GetByUserAndCourse(dbc, in.UserID, in.CourseID)
		if err != nil {
			return err
		}
		if existing != nil {
			return alreadyEnrolled(op, nil)
		}

		amount := decimal.Zero
		if !course.IsFree && !in.FreeOverride {
			if in.AmountPaid.LessThan(course.Price) {
				return domainagg.NewReasonError(domainagg.CodePreconditionFailed, domainagg.ReasonInsufficientPayment, op,
					fmt.Sprintf("amount %s is below course price %s", in.AmountPaid.StringFixed(2), course.Price.StringFixed(2)), nil)
			}
			amount = in.AmountPaid.Round(2)
		}

		row := &learning.Enrollment{
			ID:         uuid.New(),
			UserID:     in.UserID,
			CourseID:   in.CourseID,
			PaymentID:  in.PaymentID,
			Status:     learning.EnrollmentActive,
			AmountPaid: amount,
			EnrolledAt: enrolledAt,
		}
		if course.AccessDays > 0 {
			expires := enrolledAt.AddDate(0, 0, course.AccessDays)
			row.ExpiresAt = &expires
		}
		if _, err := a.deps.Enrollments.Create(dbc, []*learning.Enrollment{row}); err != nil {
			if isUniqueViolation(err) {
				return alreadyEnrolled(op, err)
			}
			return err
		}

		ok, err := a.deps.Courses.IncrementStudents(dbc, course.ID, 1)
		if err != nil {
			return err
		}
		if !ok {
			return InvariantError("course vanished while enrolling")
		}

		lectures, err := a.deps.Lectures.ListByCourseID(dbc, course.ID)
		if err != nil {
			return err
		}
		if len(lectures) > 0 {
			seeds := make([]*learning.LectureProgress, 0, len(lectures))
			for _, l := range lectures {
				seeds = append(seeds, &learning.LectureProgress{
					ID:            uuid.New(),
					UserID:        in.UserID,
					CourseID:      course.ID,
					LectureID:     l.ID,
					TotalDuration: l.DurationSeconds,
					Status:        learning.ProgressNotStarted,
				})
			}
			if _, err := a.deps.Progress.Create(dbc, seeds); err != nil {
				return err
			}
		}

		out = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *enrollmentLedger) RecomputeAggregate(ctx context.Context, userID, courseID uuid.UUID) (*learning.Enrollment, bool, error) {
	const op = "Learning.EnrollmentLedger.RecomputeAggregate"
	if userID == uuid.Nil || courseID == uuid.Nil {
		return nil, false, invalidArgument(op, "user_id and course_id are required")
	}
	if !a.configured() {
		return nil, false, domainagg.NewError(domainagg.CodeInternal, op, "enrollment ledger repos not configured", nil)
	}

	var (
		out       *learning.Enrollment
		completed bool
	)
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		completed = false
		e, err := a.deps.Enrollments.LockByUserAndCourse(dbc, userID, courseID)
		if err != nil {
			return err
		}
		if e == nil {
			return notEnrolled(op)
		}

		rows, err := a.deps.Progress.ListByUserAndCourse(dbc, userID, courseID)
		if err != nil {
			return err
		}
		sum := summarizeProgress(rows)

		now := a.deps.Base.now()
		pct := sum.percentage
		if e.Status == learning.EnrollmentCompleted && e.ProgressPercentage > pct {
			// completion is sticky; rewatching never lowers a finished course
			pct = e.ProgressPercentage
		}
		updates := map[string]interface{}{
			"progress_percentage":     pct,
			"completed_lecture_count": sum.completed,
			"total_watch_seconds":     sum.watched,
			"last_accessed_at":        now,
		}
		e.ProgressPercentage = pct
		e.CompletedLectureCount = sum.completed
		e.TotalWatchSeconds = sum.watched
		e.LastAccessedAt = &now

		if e.Status == learning.EnrollmentActive && pct >= 100 {
			updates["status"] = learning.EnrollmentCompleted
			updates["completed_at"] = now
			e.Status = learning.EnrollmentCompleted
			e.CompletedAt = &now
			completed = true
		}
		if err := a.deps.Enrollments.UpdateFields(dbc, e.ID, updates); err != nil {
			return err
		}
		out = e
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, completed, nil
}

func (a *enrollmentLedger) CompleteCourse(ctx context.Context, userID, courseID uuid.UUID) (*learning.Enrollment, bool, error) {
	const op = "Learning.EnrollmentLedger.CompleteCourse"
	var completed bool
	e, err := a.transition(ctx, op, userID, courseID, func(e *learning.Enrollment, now time.Time) (map[string]interface{}, error) {
		switch e.Status {
		case learning.EnrollmentActive, learning.EnrollmentCompleted:
		default:
			return nil, invalidEnrollmentState(op, e.Status)
		}
		completed = e.Status == learning.EnrollmentActive
		completedAt := now
		if e.CompletedAt != nil {
			completedAt = *e.CompletedAt
		}
		e.Status = learning.EnrollmentCompleted
		e.ProgressPercentage = 100
		e.CompletedAt = &completedAt
		e.LastAccessedAt = &now
		return map[string]interface{}{
			"status":              learning.EnrollmentCompleted,
			"progress_percentage": float64(100),
			"completed_at":        completedAt,
			"last_accessed_at":    now,
		}, nil
	})
	if err != nil {
		return nil, false, err
	}
	return e, completed, nil
}

func (a *enrollmentLedger) DropCourse(ctx context.Context, userID, courseID uuid.UUID) (*learning.Enrollment, error) {
	const op = "Learning.EnrollmentLedger.DropCourse"
	return a.transition(ctx, op, userID, courseID, func(e *learning.Enrollment, now time.Time) (map[string]interface{}, error) {
		switch e.Status {
		case learning.EnrollmentDropped:
			return nil, nil
		case learning.EnrollmentActive, learning.EnrollmentCompleted:
		default:
			return nil, invalidEnrollmentState(op, e.Status)
		}
		e.Status = learning.EnrollmentDropped
		e.DroppedAt = &now
		return map[string]interface{}{
			"status":     learning.EnrollmentDropped,
			"dropped_at": now,
		}, nil
	})
}

// transition locks the enrollment and applies the field updates returned by fn.
// A nil update map means the enrollment is already in the target state.
func (a *enrollmentLedger) transition(
	ctx context.Context,
	op string,
	userID, courseID uuid.UUID,
	fn func(e *learning.Enrollment, now time.Time) (map[string]interface{}, error),
) (*learning.Enrollment, error) {
	if userID == uuid.Nil || courseID == uuid.Nil {
		return nil, invalidArgument(op, "user_id and course_id are required")
	}
	if !a.configured() {
		return nil, domainagg.NewError(domainagg.CodeInternal, op, "enrollment ledger repos not configured", nil)
	}
	var out *learning.Enrollment
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		e, err := a.deps.Enrollments.LockByUserAndCourse(dbc, userID, courseID)
		if err != nil {
			return err
		}
		if e == nil {
			return notEnrolled(op)
		}
		updates, err := fn(e, a.deps.Base.now())
		if err != nil {
			return err
		}
		if len(updates) > 0 {
			if err := a.deps.Enrollments.UpdateFields(dbc, e.ID, updates); err != nil {
				return err
			}
		}
		out = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *enrollmentLedger) ExpireDue(ctx context.Context, now time.Time, limit int) (int, error) {
	const op = "Learning.EnrollmentLedger.ExpireDue"
	if !a.configured() {
		return 0, domainagg.NewError(domainagg.CodeInternal, op, "enrollment ledger repos not configured", nil)
	}
	if now.IsZero() {
		now = a.deps.Base.now()
	}
	now = now.UTC()

	expired := 0
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		rows, err := a.deps.Enrollments.ListExpirable(dbc, now, limit)
		if err != nil {
			return err
		}
		for _, e := range rows {
			ok, err := a.deps.Base.CASGuard.UpdateByStatus(dbc, "enrollment", e.ID,
				[]string{learning.EnrollmentActive},
				map[string]any{"status": learning.EnrollmentExpired})
			if err != nil {
				return err
			}
			if ok {
				expired++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return expired, nil
}

type progressSummary struct {
	watched    int64
	duration   int64
	completed  int64
	percentage float64
}

func summarizeProgress(rows []*learning.LectureProgress) progressSummary {
	var s progressSummary
	for _, p := range rows {
		if p == nil {
			continue
		}
		s.watched += p.WatchSeconds
		s.duration += p.TotalDuration
		if p.IsCompleted {
			s.completed++
		}
	}
	s.percentage = learning.CompletionPercentage(s.watched, s.duration)
	if s.percentage > 100 {
		s.percentage = 100
	}
	return s
}

func invalidArgument(op, msg string) error {
	return domainagg.NewReasonError(domainagg.CodeValidation, domainagg.ReasonInvalidArgument, op, msg, nil)
}

func notEnrolled(op string) error {
	return domainagg.NewReasonError(domainagg.CodeNotFound, domainagg.ReasonNotEnrolled, op, "enrollment not found", nil)
}

func alreadyEnrolled(op string, cause error) error {
	return domainagg.NewReasonError(domainagg.CodeConflict, domainagg.ReasonAlreadyEnrolled, op, "user is already enrolled in this course", cause)
}

func invalidEnrollmentState(op, status string) error {
	return domainagg.NewReasonError(domainagg.CodePreconditionFailed, domainagg.ReasonInvalidEnrollmentState, op,
		fmt.Sprintf("enrollment is %s", status), nil)
}
