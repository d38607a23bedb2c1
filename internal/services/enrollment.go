package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/coursemarket-backend/internal/data/repos"
	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/domain/billing"
	"github.com/yungbote/coursemarket-backend/internal/domain/learning"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
	"github.com/yungbote/coursemarket-backend/internal/platform/events"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
	"github.com/yungbote/coursemarket-backend/internal/platform/notify"
)

const defaultExpiryBatch = 200

type EnrollmentService interface {
	Enroll(ctx context.Context, userID, courseID uuid.UUID, amountPaid decimal.Decimal) (*learning.Enrollment, error)
	// EnrollWithPayment enrolls using a completed payment the caller owns.
	EnrollWithPayment(ctx context.Context, userID, paymentID uuid.UUID) (*learning.Enrollment, error)
	// Grant enrolls userID at no charge whatever the course price. Only admins reach it.
	Grant(ctx context.Context, grantedBy, userID, courseID uuid.UUID) (*learning.Enrollment, error)
	Complete(ctx context.Context, userID, courseID uuid.UUID) (*learning.Enrollment, error)
	Drop(ctx context.Context, userID, courseID uuid.UUID) (*learning.Enrollment, error)

	Get(ctx context.Context, userID, courseID uuid.UUID) (*learning.Enrollment, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*learning.Enrollment, error)

	// ExpireDue sweeps in batches until no expirable enrollment is left.
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

type enrollmentService struct {
	log         *logger.Logger
	ledger      domainagg.EnrollmentLedger
	courses     repos.CourseRepo
	enrollments repos.EnrollmentRepo
	payments    repos.PaymentRepo
	effects     Effects
	batch       int
}

func NewEnrollmentService(
	baseLog *logger.Logger,
	ledger domainagg.EnrollmentLedger,
	courses repos.CourseRepo,
	enrollments repos.EnrollmentRepo,
	payments repos.PaymentRepo,
	effects Effects,
) EnrollmentService {
	serviceLog := baseLog.With("service", "EnrollmentService")
	return &enrollmentService{
		log:         serviceLog,
		ledger:      ledger,
		courses:     courses,
		enrollments: enrollments,
		payments:    payments,
		effects:     effects.withDefaults(serviceLog),
		batch:       defaultExpiryBatch,
	}
}

func (s *enrollmentService) Enroll(ctx context.Context, userID, courseID uuid.UUID, amountPaid decimal.Decimal) (*learning.Enrollment, error) {
	ctx, span := tracer.Start(ctx, "EnrollmentService.Enroll")
	defer span.End()
	span.SetAttributes(attribute.String("course_id", courseID.String()))

	e, err := s.ledger.Enroll(ctx, domainagg.EnrollInput{
		UserID:     userID,
		CourseID:   courseID,
		AmountPaid: amountPaid,
	})
	if err != nil {
		return nil, err
	}
	s.enrolled(ctx, e)
	return e, nil
}

func (s *enrollmentService) EnrollWithPayment(ctx context.Context, userID, paymentID uuid.UUID) (*learning.Enrollment, error) {
	const op = "EnrollmentService.EnrollWithPayment"
	ctx, span := tracer.Start(ctx, op)
	defer span.End()

	p, err := s.payments.GetByID(dbctx.Context{Ctx: ctx}, paymentID)
	if err != nil {
		return nil, storageError(op, err)
	}
	if p == nil || p.UserID != userID {
		return nil, domainagg.NewReasonError(domainagg.CodeNotFound, domainagg.ReasonPaymentNotFound, op, "payment not found", nil)
	}
	if p.CourseID == nil {
		return nil, domainagg.NewReasonError(domainagg.CodePreconditionFailed, domainagg.ReasonInvalidPaymentState, op,
			"payment is not tied to a course", nil)
	}
	if p.Status != billing.PaymentCompleted {
		return nil, domainagg.NewReasonError(domainagg.CodePreconditionFailed, domainagg.ReasonInvalidPaymentState, op,
			"payment is "+p.Status, nil)
	}

	e, err := s.ledger.Enroll(ctx, domainagg.EnrollInput{
		UserID:     userID,
		CourseID:   *p.CourseID,
		AmountPaid: p.Amount,
		PaymentID:  &p.ID,
	})
	if err != nil {
		return nil, err
	}
	s.enrolled(ctx, e)
	return e, nil
}

func (s *enrollmentService) Grant(ctx context.Context, grantedBy, userID, courseID uuid.UUID) (*learning.Enrollment, error) {
	ctx, span := tracer.Start(ctx, "EnrollmentService.Grant")
	defer span.End()
	span.SetAttributes(attribute.String("course_id", courseID.String()))

	e, err := s.ledger.Enroll(ctx, domainagg.EnrollInput{
		UserID:       userID,
		CourseID:     courseID,
		AmountPaid:   decimal.Zero,
		FreeOverride: true,
	})
	if err != nil {
		return nil, err
	}
	// the caller is the admin, so no confirmation mail goes out
	s.log.Info("enrollment granted", "user_id", userID, "course_id", courseID, "granted_by", grantedBy)
	s.effects.publish(ctx, s.log, events.New(events.EnrollmentCreated, userID).
		WithCourse(courseID).
		With("enrollment_id", e.ID.String()).
		With("amount_paid", e.AmountPaid.StringFixed(2)).
		With("granted_by", grantedBy.String()))
	return e, nil
}

func (s *enrollmentService) enrolled(ctx context.Context, e *learning.Enrollment) {
	s.log.Info("user enrolled", "user_id", e.UserID, "course_id", e.CourseID, "enrollment_id", e.ID)
	evt := events.New(events.EnrollmentCreated, e.UserID).
		WithCourse(e.CourseID).
		With("enrollment_id", e.ID.String()).
		With("amount_paid", e.AmountPaid.StringFixed(2))
	if e.PaymentID != nil {
		evt = evt.WithPayment(*e.PaymentID)
	}
	s.effects.publish(ctx, s.log, evt)
	s.effects.notify(ctx, s.log, notify.EnrollmentConfirmed(recipientFromContext(ctx), s.courseTitle(ctx, e.CourseID)))
}

func (s *enrollmentService) Complete(ctx context.Context, userID, courseID uuid.UUID) (*learning.Enrollment, error) {
	ctx, span := tracer.Start(ctx, "EnrollmentService.Complete")
	defer span.End()

	e, completed, err := s.ledger.CompleteCourse(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	if completed {
		courseCompleted(ctx, s.log, s.effects, e, s.courseTitle(ctx, courseID))
	}
	return e, nil
}

func (s *enrollmentService) Drop(ctx context.Context, userID, courseID uuid.UUID) (*learning.Enrollment, error) {
	ctx, span := tracer.Start(ctx, "EnrollmentService.Drop")
	defer span.End()

	e, err := s.ledger.DropCourse(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	s.log.Info("enrollment dropped", "user_id", userID, "course_id", courseID)
	return e, nil
}

func (s *enrollmentService) Get(ctx context.Context, userID, courseID uuid.UUID) (*learning.Enrollment, error) {
	const op = "EnrollmentService.Get"
	e, err := s.enrollments.GetByUserAndCourse(dbctx.Context{Ctx: ctx}, userID, courseID)
	if err != nil {
		return nil, storageError(op, err)
	}
	if e == nil {
		return nil, domainagg.NewReasonError(domainagg.CodeNotFound, domainagg.ReasonNotEnrolled, op, "enrollment not found", nil)
	}
	return e, nil
}

func (s *enrollmentService) ListForUser(ctx context.Context, userID uuid.UUID) ([]*learning.Enrollment, error) {
	rows, err := s.enrollments.ListByUserID(dbctx.Context{Ctx: ctx}, userID)
	if err != nil {
		return nil, storageError("EnrollmentService.ListForUser", err)
	}
	return rows, nil
}

func (s *enrollmentService) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	ctx, span := tracer.Start(ctx, "EnrollmentService.ExpireDue")
	defer span.End()

	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := s.ledger.ExpireDue(ctx, now, s.batch)
		total += n
		if err != nil {
			return total, err
		}
		if n < s.batch {
			break
		}
	}
	s.effects.Metrics.AddExpired(total)
	if total > 0 {
		s.log.Info("expired enrollments", "count", total)
	}
	span.SetAttributes(attribute.Int("expired", total))
	return total, nil
}

func (s *enrollmentService) courseTitle(ctx context.Context, courseID uuid.UUID) string {
	c, err := s.courses.GetByID(dbctx.Context{Ctx: ctx}, courseID)
	if err != nil || c == nil {
		return "your course"
	}
	return c.Title
}

func courseCompleted(ctx context.Context, log *logger.Logger, fx Effects, e *learning.Enrollment, title string) {
	log.Info("course completed", "user_id", e.UserID, "course_id", e.CourseID)
	fx.publish(ctx, log, events.New(events.CourseCompleted, e.UserID).
		WithCourse(e.CourseID).
		With("enrollment_id", e.ID.String()))
	fx.notify(ctx, log, notify.CourseCompleted(recipientFromContext(ctx), title))
}
