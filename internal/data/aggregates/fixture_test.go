package aggregates

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/coursemarket-backend/internal/data/repos"
	repotest "github.com/yungbote/coursemarket-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
)

type fixture struct {
	ctx   context.Context
	db    *gorm.DB
	repos repos.Set
	base  BaseDeps
	hooks *spyHooks
	now   time.Time

	ledger  domainagg.EnrollmentLedger
	tracker domainagg.ProgressTracker
	pay     domainagg.PaymentRecord
	rating  domainagg.RatingAggregator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := repotest.DB(t)
	log := repotest.Logger(t)
	set := repos.NewSet(db, log)
	hooks := &spyHooks{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	base := BaseDeps{
		DB:       db,
		Log:      log,
		Runner:   NewGormTxRunner(db),
		Hooks:    hooks,
		CASGuard: NewCASGuard(db),
		Clock:    func() time.Time { return now },
	}
	f := &fixture{ctx: context.Background(), db: db, repos: set, base: base, hooks: hooks, now: now}
	f.ledger = NewEnrollmentLedger(EnrollmentLedgerDeps{
		Base:        base,
		Courses:     set.Course,
		Lectures:    set.Lecture,
		Enrollments: set.Enrollment,
		Progress:    set.LectureProgress,
	})
	f.tracker = NewProgressTracker(ProgressTrackerDeps{
		Base:        base,
		Lectures:    set.Lecture,
		Enrollments: set.Enrollment,
		Progress:    set.LectureProgress,
		Ledger:      f.ledger,
	})
	f.pay = NewPaymentRecord(PaymentRecordDeps{
		Base:     base,
		Courses:  set.Course,
		Payments: set.Payment,
	})
	f.rating = NewRatingAggregator(RatingAggregatorDeps{
		Base:        base,
		Courses:     set.Course,
		Reviews:     set.Review,
		Enrollments: set.Enrollment,
	})
	return f
}

func wantReason(t *testing.T, err error, code domainagg.ErrorCode, reason domainagg.Reason) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s/%s error, got nil", code, reason)
	}
	if got := domainagg.CodeOf(err); got != code {
		t.Fatalf("code: want=%s got=%s (%v)", code, got, err)
	}
	if got := domainagg.ReasonOf(err); got != reason {
		t.Fatalf("reason: want=%s got=%s (%v)", reason, got, err)
	}
}
