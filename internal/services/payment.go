package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/coursemarket-backend/internal/data/repos"
	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/domain/billing"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
	"github.com/yungbote/coursemarket-backend/internal/platform/events"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
	"github.com/yungbote/coursemarket-backend/internal/platform/notify"
	"github.com/yungbote/coursemarket-backend/internal/platform/payments"
)

const DefaultProcessorTimeout = 5 * time.Second

type CreatePaymentRequest struct {
	CourseID *uuid.UUID
	Amount   decimal.Decimal
	Currency string
	Method   string
}

type ProcessPaymentRequest struct {
	// Token is the gateway's card token; ignored by methods that do not need one.
	Token string
}

type PaymentService interface {
	Create(ctx context.Context, userID uuid.UUID, req CreatePaymentRequest) (*billing.Payment, error)
	// Process charges a pending payment. A declined charge returns the failed payment and a nil error.
	Process(ctx context.Context, userID, paymentID uuid.UUID, req ProcessPaymentRequest) (*billing.Payment, error)
	Refund(ctx context.Context, userID, paymentID uuid.UUID, reason string) (*billing.Payment, error)
	Cancel(ctx context.Context, userID, paymentID uuid.UUID) (*billing.Payment, error)

	Get(ctx context.Context, userID, paymentID uuid.UUID) (*billing.Payment, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*billing.Payment, error)
}

type paymentService struct {
	log       *logger.Logger
	record    domainagg.PaymentRecord
	processor payments.Processor
	timeout   time.Duration
	courses   repos.CourseRepo
	payments  repos.PaymentRepo
	effects   Effects
}

func NewPaymentService(
	baseLog *logger.Logger,
	record domainagg.PaymentRecord,
	processor payments.Processor,
	timeout time.Duration,
	courses repos.CourseRepo,
	paymentRepo repos.PaymentRepo,
	effects Effects,
) PaymentService {
	serviceLog := baseLog.With("service", "PaymentService")
	if timeout <= 0 {
		timeout = DefaultProcessorTimeout
	}
	return &paymentService{
		log:       serviceLog,
		record:    record,
		processor: processor,
		timeout:   timeout,
		courses:   courses,
		payments:  paymentRepo,
		effects:   effects.withDefaults(serviceLog),
	}
}

func (s *paymentService) Create(ctx context.Context, userID uuid.UUID, req CreatePaymentRequest) (*billing.Payment, error) {
	ctx, span := tracer.Start(ctx, "PaymentService.Create")
	defer span.End()

	p, err := s.record.Create(ctx, domainagg.CreatePaymentInput{
		UserID:   userID,
		CourseID: req.CourseID,
		Amount:   req.Amount,
		Currency: req.Currency,
		Method:   req.Method,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("payment created", "payment_id", p.ID, "user_id", userID, "amount", p.Amount.StringFixed(2), "currency", p.Currency)
	return p, nil
}

func (s *paymentService) Process(ctx context.Context, userID, paymentID uuid.UUID, req ProcessPaymentRequest) (*billing.Payment, error) {
	const op = "PaymentService.Process"
	ctx, span := tracer.Start(ctx, op)
	defer span.End()
	span.SetAttributes(attribute.String("payment_id", paymentID.String()), attribute.String("processor", s.processor.Name()))

	if _, err := s.owned(ctx, op, userID, paymentID); err != nil {
		return nil, err
	}
	// one caller per payment reaches the gateway; the rest see payment_in_progress
	p, err := s.record.ClaimCharge(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	start := time.Now()
	outcome, err := s.processor.AttemptCharge(callCtx, payments.ChargeRequest{
		PaymentID:   p.ID,
		UserID:      p.UserID,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Method:      p.Method,
		Token:       strings.TrimSpace(req.Token),
		Description: s.describe(ctx, p),
	})
	cancel()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.release(ctx, "charge", p.ID, s.record.ReleaseCharge)
		return nil, s.processorFailure(op, "charge", p.ID, time.Since(start), err)
	}
	s.effects.Metrics.ObserveProcessor(s.processor.Name(), "charge", approvedLabel(outcome.Approved), time.Since(start))

	settled, err := s.record.SettleCharge(ctx, domainagg.SettleChargeInput{
		PaymentID:     p.ID,
		Approved:      outcome.Approved,
		TransactionID: outcome.TransactionID,
		DeclineReason: outcome.DeclineReason,
		Metadata:      outcome.Metadata,
	})
	if err != nil {
		// the gateway has an answer we could not store; reconcile from processor_metadata/transaction id
		s.log.Error("settle charge failed after processor answered",
			"payment_id", p.ID,
			"approved", outcome.Approved,
			"transaction_id", outcome.TransactionID,
			"error", err,
		)
		return nil, err
	}

	if settled.Status == billing.PaymentCompleted {
		s.log.Info("payment completed", "payment_id", settled.ID, "transaction_id", settled.TransactionID)
		evt := events.New(events.PaymentCompleted, settled.UserID).
			WithPayment(settled.ID).
			With("amount", settled.Amount.StringFixed(2)).
			With("currency", settled.Currency).
			With("invoice_number", settled.InvoiceNumber)
		if settled.CourseID != nil {
			evt = evt.WithCourse(*settled.CourseID)
		}
		s.effects.publish(ctx, s.log, evt)
		s.effects.notify(ctx, s.log, notify.PaymentReceipt(recipientFromContext(ctx), s.receipt(ctx, settled)))
	} else {
		s.log.Info("payment declined", "payment_id", settled.ID, "reason", outcome.DeclineReason)
		s.effects.publish(ctx, s.log, events.New(events.PaymentFailed, settled.UserID).
			WithPayment(settled.ID).
			With("reason", outcome.DeclineReason))
	}
	return settled, nil
}

func (s *paymentService) Refund(ctx context.Context, userID, paymentID uuid.UUID, reason string) (*billing.Payment, error) {
	const op = "PaymentService.Refund"
	ctx, span := tracer.Start(ctx, op)
	defer span.End()
	span.SetAttributes(attribute.String("payment_id", paymentID.String()))

	if _, err := s.owned(ctx, op, userID, paymentID); err != nil {
		return nil, err
	}
	p, err := s.record.ClaimRefund(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	start := time.Now()
	outcome, err := s.processor.AttemptRefund(callCtx, payments.RefundRequest{
		PaymentID:     p.ID,
		TransactionID: p.TransactionID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Reason:        reason,
	})
	cancel()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.release(ctx, "refund", p.ID, s.record.ReleaseRefund)
		return nil, s.processorFailure(op, "refund", p.ID, time.Since(start), err)
	}
	s.effects.Metrics.ObserveProcessor(s.processor.Name(), "refund", approvedLabel(outcome.Approved), time.Since(start))
	if !outcome.Approved {
		s.release(ctx, "refund", p.ID, s.record.ReleaseRefund)
		msg := strings.TrimSpace(outcome.DeclineReason)
		if msg == "" {
			msg = "refund declined by processor"
		}
		return nil, domainagg.NewReasonError(domainagg.CodeExternalServiceFailure, domainagg.ReasonProcessorDeclined, op, msg, nil)
	}

	refunded, err := s.record.SettleRefund(ctx, domainagg.SettleRefundInput{
		PaymentID: p.ID,
		Reason:    reason,
		Metadata:  outcome.Metadata,
	})
	if err != nil {
		s.log.Error("settle refund failed after processor approved", "payment_id", p.ID, "error", err)
		return nil, err
	}

	s.log.Info("payment refunded", "payment_id", refunded.ID, "reason", refunded.RefundReason)
	evt := events.New(events.PaymentRefunded, refunded.UserID).
		WithPayment(refunded.ID).
		With("refunded_amount", refunded.RefundedAmount.StringFixed(2)).
		With("reason", refunded.RefundReason)
	if refunded.CourseID != nil {
		evt = evt.WithCourse(*refunded.CourseID)
	}
	s.effects.publish(ctx, s.log, evt)
	s.effects.notify(ctx, s.log, notify.PaymentRefunded(recipientFromContext(ctx), s.receipt(ctx, refunded)))
	return refunded, nil
}

func (s *paymentService) Cancel(ctx context.Context, userID, paymentID uuid.UUID) (*billing.Payment, error) {
	const op = "PaymentService.Cancel"
	ctx, span := tracer.Start(ctx, op)
	defer span.End()

	if _, err := s.owned(ctx, op, userID, paymentID); err != nil {
		return nil, err
	}
	return s.record.Cancel(ctx, paymentID, time.Time{})
}

func (s *paymentService) Get(ctx context.Context, userID, paymentID uuid.UUID) (*billing.Payment, error) {
	return s.owned(ctx, "PaymentService.Get", userID, paymentID)
}

func (s *paymentService) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*billing.Payment, error) {
	rows, err := s.payments.ListByUserID(dbctx.Context{Ctx: ctx}, userID, limit, offset)
	if err != nil {
		return nil, storageError("PaymentService.ListForUser", err)
	}
	return rows, nil
}

// release drops a gateway claim after a call that left the payment unchanged.
// It outlives ctx so a cancelled request does not strand the claim until it goes stale.
func (s *paymentService) release(ctx context.Context, kind string, paymentID uuid.UUID, fn func(context.Context, uuid.UUID) error) {
	if err := fn(context.WithoutCancel(ctx), paymentID); err != nil {
		s.log.Warn("release payment claim failed", "payment_id", paymentID, "kind", kind, "error", err)
	}
}

// owned hides other users' payments behind not-found.
func (s *paymentService) owned(ctx context.Context, op string, userID, paymentID uuid.UUID) (*billing.Payment, error) {
	p, err := s.payments.GetByID(dbctx.Context{Ctx: ctx}, paymentID)
	if err != nil {
		return nil, storageError(op, err)
	}
	if p == nil || p.UserID != userID {
		return nil, domainagg.NewReasonError(domainagg.CodeNotFound, domainagg.ReasonPaymentNotFound, op, "payment not found", nil)
	}
	return p, nil
}

func (s *paymentService) processorFailure(op, kind string, paymentID uuid.UUID, dur time.Duration, err error) error {
	if payments.IsTimeout(err) {
		s.effects.Metrics.ObserveProcessor(s.processor.Name(), kind, "timeout", dur)
		s.log.Warn("payment processor timed out", "payment_id", paymentID, "kind", kind, "timeout", s.timeout.String())
		return domainagg.NewReasonError(domainagg.CodeTimeout, domainagg.ReasonProcessorTimeout, op,
			"payment processor did not answer in time", err)
	}
	s.effects.Metrics.ObserveProcessor(s.processor.Name(), kind, "error", dur)
	s.log.Warn("payment processor failed", "payment_id", paymentID, "kind", kind, "error", err)
	if errors.Is(err, context.Canceled) {
		return domainagg.NewReasonError(domainagg.CodeRetryable, domainagg.ReasonProcessorError, op, "request cancelled", err)
	}
	return domainagg.NewReasonError(domainagg.CodeExternalServiceFailure, domainagg.ReasonProcessorError, op,
		"payment processor unavailable", err)
}

func (s *paymentService) describe(ctx context.Context, p *billing.Payment) string {
	if p.CourseID == nil {
		return "Course Market purchase"
	}
	c, err := s.courses.GetByID(dbctx.Context{Ctx: ctx}, *p.CourseID)
	if err != nil || c == nil {
		return "Course Market purchase"
	}
	return c.Title
}

func (s *paymentService) receipt(ctx context.Context, p *billing.Payment) notify.Receipt {
	return notify.Receipt{
		ReceiptNumber: p.ReceiptNumber,
		InvoiceNumber: p.InvoiceNumber,
		Amount:        p.Amount.StringFixed(2),
		Currency:      p.Currency,
		Description:   s.describe(ctx, p),
	}
}

func approvedLabel(ok bool) string {
	if ok {
		return "approved"
	}
	return "declined"
}
