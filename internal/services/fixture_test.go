package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dataagg "github.com/yungbote/coursemarket-backend/internal/data/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/data/repos"
	repotest "github.com/yungbote/coursemarket-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/platform/ctxutil"
	"github.com/yungbote/coursemarket-backend/internal/platform/events"
	"github.com/yungbote/coursemarket-backend/internal/platform/notify"
	"github.com/yungbote/coursemarket-backend/internal/platform/payments"
)

type stubProcessor struct {
	mu      sync.Mutex
	charge  payments.Outcome
	refund  payments.Outcome
	err     error
	hang    bool
	delay   time.Duration
	charges []payments.ChargeRequest
	refunds []payments.RefundRequest
}

func (p *stubProcessor) Name() string { return "stub" }

func (p *stubProcessor) AttemptCharge(ctx context.Context, req payments.ChargeRequest) (payments.Outcome, error) {
	p.mu.Lock()
	p.charges = append(p.charges, req)
	out, err, hang, delay := p.charge, p.err, p.hang, p.delay
	p.mu.Unlock()
	return p.answer(ctx, out, err, hang, delay)
}

func (p *stubProcessor) AttemptRefund(ctx context.Context, req payments.RefundRequest) (payments.Outcome, error) {
	p.mu.Lock()
	p.refunds = append(p.refunds, req)
	out, err, hang, delay := p.refund, p.err, p.hang, p.delay
	p.mu.Unlock()
	return p.answer(ctx, out, err, hang, delay)
}

func (p *stubProcessor) answer(ctx context.Context, out payments.Outcome, err error, hang bool, delay time.Duration) (payments.Outcome, error) {
	if hang {
		<-ctx.Done()
		return payments.Outcome{}, ctx.Err()
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return payments.Outcome{}, ctx.Err()
		}
	}
	return out, err
}

func (p *stubProcessor) calls() (charges, refunds int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.charges), len(p.refunds)
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (n *recordingNotifier) Notify(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, m := range n.sent {
		out = append(out, m.Kind)
	}
	return out
}

type fixture struct {
	ctx      context.Context
	db       *gorm.DB
	repos    repos.Set
	events   *events.Recorder
	notifier *recordingNotifier
	proc     *stubProcessor
	record   domainagg.PaymentRecord

	enrollments EnrollmentService
	progress    ProgressService
	payments    PaymentService
	reviews     ReviewService
	catalog     CatalogService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := repotest.DB(t)
	log := repotest.Logger(t)
	set := repos.NewSet(db, log)

	base := dataagg.BaseDeps{
		DB:       db,
		Log:      log,
		Runner:   dataagg.NewGormTxRunner(db),
		CASGuard: dataagg.NewCASGuard(db),
	}
	ledger := dataagg.NewEnrollmentLedger(dataagg.EnrollmentLedgerDeps{
		Base:        base,
		Courses:     set.Course,
		Lectures:    set.Lecture,
		Enrollments: set.Enrollment,
		Progress:    set.LectureProgress,
	})
	tracker := dataagg.NewProgressTracker(dataagg.ProgressTrackerDeps{
		Base:        base,
		Lectures:    set.Lecture,
		Enrollments: set.Enrollment,
		Progress:    set.LectureProgress,
		Ledger:      ledger,
	})
	record := dataagg.NewPaymentRecord(dataagg.PaymentRecordDeps{
		Base:     base,
		Courses:  set.Course,
		Payments: set.Payment,
	})
	ratings := dataagg.NewRatingAggregator(dataagg.RatingAggregatorDeps{
		Base:        base,
		Courses:     set.Course,
		Reviews:     set.Review,
		Enrollments: set.Enrollment,
	})

	f := &fixture{
		ctx:      context.Background(),
		db:       db,
		repos:    set,
		events:   &events.Recorder{},
		notifier: &recordingNotifier{},
		proc:     &stubProcessor{},
		record:   record,
	}
	fx := Effects{Events: f.events, Notifier: f.notifier}

	f.enrollments = NewEnrollmentService(log, ledger, set.Course, set.Enrollment, set.Payment, fx)
	f.progress = NewProgressService(log, tracker, set.Course, set.Enrollment, set.LectureProgress, fx)
	f.payments = NewPaymentService(log, record, f.proc, 200*time.Millisecond, set.Course, set.Payment, fx)
	f.reviews = NewReviewService(log, ratings, set.Course, set.Review)
	f.catalog = NewCatalogService(db, log, set.Course, set.Lecture)
	return f
}

// as returns a request context carrying the given user's identity.
func (f *fixture) as(userID uuid.UUID) context.Context {
	return ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{
		UserID: userID,
		Role:   RoleLearner,
		Email:  "learner@example.com",
		Name:   "Learner",
	})
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

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
