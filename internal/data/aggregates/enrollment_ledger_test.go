package aggregates

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	repotest "github.com/yungbote/coursemarket-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/domain/learning"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
)

func TestEnrollmentLedgerEnrollHappyPath(t *testing.T) {
	f := newFixture(t)
	course := repotest.SeedCourse(t, f.ctx, f.db, repotest.CourseOpts{Price: "49.99"})
	lectures := repotest.SeedLectures(t, f.ctx, f.db, course.ID, 300, 600)
	user := uuid.New()

	e, err := f.ledger.Enroll(f.ctx, domainagg.EnrollInput{
		UserID:     user,
		CourseID:   course.ID,
		AmountPaid: decimal.RequireFromString("49.99"),
	})
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if e.Status != learning.EnrollmentActive {
		t.Fatalf("status: want=active got=%s", e.Status)
	}
	if !e.AmountPaid.Equal(decimal.RequireFromString("49.99")) {
		t.Fatalf("amount_paid: want=49.99 got=%s", e.AmountPaid)
	}
	if e.ExpiresAt != nil {
		t.Fatalf("lifetime course should not expire, got=%v", e.ExpiresAt)
	}

	dbc := dbctx.Context{Ctx: f.ctx}
	c, _ := f.repos.Course.GetByID(dbc, course.ID)
	if c.TotalStudents != 1 {
		t.Fatalf("total_students: want=1 got=%d", c.TotalStudents)
	}
	rows, err := f.repos.LectureProgress.ListByUserAndCourse(dbc, user, course.ID)
	if err != nil {
		t.Fatalf("ListByUserAndCourse: %v", err)
	}
	if len(rows) != len(lectures) {
		t.Fatalf("seeded progress rows: want=%d got=%d", len(lectures), len(rows))
	}
	for i, r := range rows {
		if r.Status != learning.ProgressNotStarted || r.TotalDuration != lectures[i].DurationSeconds {
			t.Fatalf("row %d: unexpected seed %+v", i, r)
		}
	}
	if len(f.hooks.Operations) == 0 || f.hooks.Operations[0].Status != "success" {
		t.Fatalf("hooks: %+v", f.hooks.Operations)
	}
}

func TestEnrollmentLedgerEnrollRejections(t *testing.T) {
	f := newFixture(t)
	paid := repotest.SeedCourse(t, f.ctx, f.db, repotest.CourseOpts{Price: "49.99"})
	hidden := repotest.SeedCourse(t, f.ctx, f.db, repotest.CourseOpts{Unpublished: true})
	user := uuid.New()

	_, err := f.ledger.Enroll(f.ctx, domainagg.EnrollInput{UserID: user, CourseID: uuid.New()})
	wantReason(t, err, domainagg.CodePreconditionFailed, domainagg.ReasonCourseUnavailable)

	_, err = f.ledger.Enroll(f.ctx, domainagg.EnrollInput{UserID: user, CourseID: hidden.ID})
	wantReason(t, err, domainagg.CodePreconditionFailed, domainagg.ReasonCourseUnavailable)

	_, err = f.ledger.Enroll(f.ctx, domainagg.EnrollInput{
		UserID:     user,
		CourseID:   paid.ID,
		AmountPaid: decimal.RequireFromString("10"),
	})
	wantReason(t, err, domainagg.CodePreconditionFailed, domainagg.ReasonInsufficientPayment)

	_, err = f.ledger.Enroll(f.ctx, domainagg.EnrollInput{
		UserID:     user,
		CourseID:   paid.ID,
		AmountPaid: decimal.RequireFromString("-1"),
	})
	wantReason(t, err, domainagg.CodeValidation, domainagg.ReasonInvalidArgument)

	if _, err := f.ledger.Enroll(f.ctx, domainagg.EnrollInput{UserID: user, CourseID: paid.ID, FreeOverride: true}); err != nil {
		t.Fatalf("Enroll with override: %v", err)
	}
	_, err = f.ledger.Enroll(f.ctx, domainagg.EnrollInput{UserID: user, CourseID: paid.ID, FreeOverride: true})
	wantReason(t, err, domainagg.CodeConflict, domainagg.ReasonAlreadyEnrolled)
	if len(f.hooks.Conflicts) != 1 {
		t.Fatalf("conflict hooks: want=1 got=%+v", f.hooks.Conflicts)
	}

	c, _ := f.repos.Course.GetByID(dbctx.Context{Ctx: f.ctx}, paid.ID)
	if c.TotalStudents != 1 {
		t.Fatalf("rejected enrollments must not count: total_students=%d", c.TotalStudents)
	}
}

func TestEnrollmentLedgerFreeCourseRecordsZeroAndExpiry(t *testing.T) {
	f := newFixture(t)
	course := repotest.SeedCourse(t, f.ctx, f.db, repotest.CourseOpts{Price: "99.00", IsFree: true, AccessDays: 30})

	e, err := f.ledger.Enroll(f.ctx, domainagg.EnrollInput{
		UserID:     uuid.New(),
		CourseID:   course.ID,
		AmountPaid: decimal.RequireFromString("99.00"),
	})
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if !e.AmountPaid.IsZero() {
		t.Fatalf("free course amount_paid: want=0 got=%s", e.AmountPaid)
	}
	if e.ExpiresAt == nil || !e.ExpiresAt.Equal(f.now.AddDate(0, 0, 30)) {
		t.Fatalf("expires_at: want=%v got=%v", f.now.AddDate(0, 0, 30), e.ExpiresAt)
	}
}

func TestEnrollmentLedgerRecomputeAutoCompletes(t *testing.T) {
	f := newFixture(t)
	course := repotest.SeedCourse(t, f.ctx, f.db, repotest.CourseOpts{IsFree: true})
	lectures := repotest.SeedLectures(t, f.ctx, f.db, course.ID, 100, 300)
	user := uuid.New()
	if _, err := f.ledger.Enroll(f.ctx, domainagg.EnrollInput{UserID: user, CourseID: course.ID}); err != nil {
		t.Fatalf("Enroll: %v", err)
	}

	if _, _, err := f.tracker.RecordWatch(f.ctx, domainagg.RecordWatchInput{
		UserID: user, CourseID: course.ID, LectureID: lectures[0].ID, WatchSeconds: 100,
	}); err != nil {
		t.Fatalf("RecordWatch 1: %v", err)
	}
	e, err := f.repos.Enrollment.GetByUserAndCourse(dbctx.Context{Ctx: f.ctx}, user, course.ID)
	if err != nil || e == nil {
		t.Fatalf("GetByUserAndCourse: %v", err)
	}
	if e.ProgressPercentage != 25 || e.CompletedLectureCount != 1 || e.TotalWatchSeconds != 100 {
		t.Fatalf("after first lecture: %+v", e)
	}
	if e.Status != learning.EnrollmentActive {
		t.Fatalf("status: want=active got=%s", e.Status)
	}

	_, finished, err := f.tracker.RecordWatch(f.ctx, domainagg.RecordWatchInput{
		UserID: user, CourseID: course.ID, LectureID: lectures[1].ID, WatchSeconds: 300,
	})
	if err != nil || !finished {
		t.Fatalf("RecordWatch 2: finished=%v err=%v", finished, err)
	}
	e, completed, err := f.ledger.RecomputeAggregate(f.ctx, user, course.ID)
	if err != nil {
		t.Fatalf("RecomputeAggregate: %v", err)
	}
	if e.ProgressPercentage != 100 || e.Status != learning.EnrollmentCompleted || e.CompletedAt == nil {
		t.Fatalf("expected auto-completion, got %+v", e)
	}
	if completed {
		t.Fatalf("only the recompute that finished the course reports completion")
	}

	_, _, err = f.ledger.RecomputeAggregate(f.ctx, uuid.New(), course.ID)
	wantReason(t, err, domainagg.CodeNotFound, domainagg.ReasonNotEnrolled)
}

func TestEnrollmentLedgerRecomputeWithoutLecturesIsZero(t *testing.T) {
	f := newFixture(t)
	course := repotest.SeedCourse(t, f.ctx, f.db, repotest.CourseOpts{IsFree: true})
	user := uuid.New()
	if _, err := f.ledger.Enroll(f.ctx, domainagg.EnrollInput{UserID: user, CourseID: course.ID}); err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	e, _, err := f.ledger.RecomputeAggregate(f.ctx, user, course.ID)
	if err != nil {
		t.Fatalf("RecomputeAggregate: %v", err)
	}
	if e.ProgressPercentage != 0 || e.Status != learning.EnrollmentActive {
		t.Fatalf("empty course: %+v", e)
	}
}

func TestEnrollmentLedgerCompleteAndDrop(t *testing.T) {
	f := newFixture(t)
	course := repotest.SeedCourse(t, f.ctx, f.db, repotest.CourseOpts{IsFree: true})
	repotest.SeedLectures(t, f.ctx, f.db, course.ID, 600)
	user := uuid.New()

	_, _, err := f.ledger.CompleteCourse(f.ctx, user, course.ID)
	wantReason(t, err, domainagg.CodeNotFound, domainagg.ReasonNotEnrolled)
	_, err = f.ledger.DropCourse(f.ctx, user, course.ID)
	wantReason(t, err, domainagg.CodeNotFound, domainagg.ReasonNotEnrolled)

	if _, err := f.ledger.Enroll(f.ctx, domainagg.EnrollInput{UserID: user, CourseID: course.ID}); err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	done, completed, err := f.ledger.CompleteCourse(f.ctx, user, course.ID)
	if err != nil {
		t.Fatalf("CompleteCourse: %v", err)
	}
	if done.Status != learning.EnrollmentCompleted || done.ProgressPercentage != 100 || done.CompletedAt == nil || !completed {
		t.Fatalf("CompleteCourse: completed=%v %+v", completed, done)
	}
	if _, completed, err := f.ledger.CompleteCourse(f.ctx, user, course.ID); err != nil || completed {
		t.Fatalf("second CompleteCourse: completed=%v err=%v", completed, err)
	}

	// completion is sticky: no progress rows were watched, yet a recompute keeps 100
	again, recompleted, err := f.ledger.RecomputeAggregate(f.ctx, user, course.ID)
	if err != nil {
		t.Fatalf("RecomputeAggregate: %v", err)
	}
	if again.Status != learning.EnrollmentCompleted || again.ProgressPercentage != 100 || recompleted {
		t.Fatalf("completion regressed: recompleted=%v %+v", recompleted, again)
	}

	dropped, err := f.ledger.DropCourse(f.ctx, user, course.ID)
	if err != nil {
		t.Fatalf("DropCourse: %v", err)
	}
	if dropped.Status != learning.EnrollmentDropped || dropped.DroppedAt == nil {
		t.Fatalf("DropCourse: %+v", dropped)
	}
	if _, err := f.ledger.DropCourse(f.ctx, user, course.ID); err != nil {
		t.Fatalf("DropCourse twice should be idempotent: %v", err)
	}
	_, _, err = f.ledger.CompleteCourse(f.ctx, user, course.ID)
	wantReason(t, err, domainagg.CodePreconditionFailed, domainagg.ReasonInvalidEnrollmentState)
}

func TestEnrollmentLedgerExpireDue(t *testing.T) {
	f := newFixture(t)
	course := repotest.SeedCourse(t, f.ctx, f.db, repotest.CourseOpts{IsFree: true, AccessDays: 7})
	early, late := uuid.New(), uuid.New()

	if _, err := f.ledger.Enroll(f.ctx, domainagg.EnrollInput{UserID: early, CourseID: course.ID, EnrolledAt: f.now.AddDate(0, 0, -10)}); err != nil {
		t.Fatalf("Enroll early: %v", err)
	}
	if _, err := f.ledger.Enroll(f.ctx, domainagg.EnrollInput{UserID: late, CourseID: course.ID}); err != nil {
		t.Fatalf("Enroll late: %v", err)
	}

	n, err := f.ledger.ExpireDue(f.ctx, f.now, 10)
	if err != nil {
		t.Fatalf("ExpireDue: %v", err)
	}
	if n != 1 {
		t.Fatalf("expired: want=1 got=%d", n)
	}
	dbc := dbctx.Context{Ctx: f.ctx}
	e, _ := f.repos.Enrollment.GetByUserAndCourse(dbc, early, course.ID)
	if e.Status != learning.EnrollmentExpired {
		t.Fatalf("early status: want=expired got=%s", e.Status)
	}
	e, _ = f.repos.Enrollment.GetByUserAndCourse(dbc, late, course.ID)
	if e.Status != learning.EnrollmentActive {
		t.Fatalf("late status: want=active got=%s", e.Status)
	}

	if n, err := f.ledger.ExpireDue(f.ctx, f.now.Add(8*24*time.Hour), 10); err != nil || n != 1 {
		t.Fatalf("second sweep: n=%d err=%v", n, err)
	}
}
