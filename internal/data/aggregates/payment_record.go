package aggregates

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/coursemarket-backend/internal/data/repos"
	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/domain/billing"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
)

const paymentTable = "payment"

// DeclineCode is recorded in error_details for every declined charge.
const DeclineCode = "PAYMENT_FAILED"

// DefaultClaimTTL bounds how long a crashed caller's claim blocks a retry.
// It must exceed the processor timeout.
const DefaultClaimTTL = 2 * time.Minute

const (
	chargeClaimColumn = "processing_started_at"
	refundClaimColumn = "refund_started_at"
)

type PaymentRecordDeps struct {
	Base BaseDeps

	Courses  repos.CourseRepo
	Payments repos.PaymentRepo

	Rates    billing.Rates
	ClaimTTL time.Duration
}

type paymentRecord struct {
	deps PaymentRecordDeps
}

func NewPaymentRecord(deps PaymentRecordDeps) domainagg.PaymentRecord {
	deps.Base = deps.Base.withDefaults()
	if deps.Rates.Fee.IsZero() && deps.Rates.Tax.IsZero() {
		deps.Rates = billing.DefaultRates()
	}
	if deps.ClaimTTL <= 0 {
		deps.ClaimTTL = DefaultClaimTTL
	}
	return &paymentRecord{deps: deps}
}

func (a *paymentRecord) Contract() domainagg.Contract {
	return domainagg.PaymentRecordContract
}

func (a *paymentRecord) Create(ctx context.Context, in domainagg.CreatePaymentInput) (*billing.Payment, error) {
	const op = "Billing.PaymentRecord.Create"
	if in.UserID == uuid.Nil {
		return nil, invalidArgument(op, "user_id is required")
	}
	if !in.Amount.IsPositive() {
		return nil, invalidArgument(op, "amount must be > 0")
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "USD"
	}
	method := strings.ToLower(strings.TrimSpace(in.Method))
	if method == "" {
		return nil, invalidArgument(op, "method is required")
	}
	if a.deps.Payments == nil || a.deps.Courses == nil {
		return nil, domainagg.NewError(domainagg.CodeInternal, op, "payment record repos not configured", nil)
	}

	amount := in.Amount.Round(2)
	var out *billing.Payment
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if in.CourseID != nil {
			course, err := a.deps.Courses.GetByID(dbc, *in.CourseID)
			if err != nil {
				return err
			}
			if course == nil || !course.IsPublished {
				return domainagg.NewReasonError(domainagg.CodePreconditionFailed, domainagg.ReasonCourseUnavailable, op,
					"course is not available for purchase", nil)
			}
			// compared before rounding: 49.985 does not cover 49.99
			if in.Amount.LessThan(course.EffectivePrice()) {
				return domainagg.NewReasonError(domainagg.CodePreconditionFailed, domainagg.ReasonUnderpaidAmount, op,
					fmt.Sprintf("amount %s is below course price %s", in.Amount.String(), course.EffectivePrice().StringFixed(2)), nil)
			}
		}

		fee, tax, net := a.deps.Rates.Breakdown(amount)
		row := &billing.Payment{
			ID:        uuid.New(),
			UserID:    in.UserID,
			CourseID:  in.CourseID,
			Status:    billing.PaymentPending,
			Currency:  currency,
			Method:    method,
			Amount:    amount,
			Fee:       fee,
			Tax:       tax,
			NetAmount: net,
		}
		if _, err := a.deps.Payments.Create(dbc, []*billing.Payment{row}); err != nil {
			return err
		}
		out = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *paymentRecord) ClaimCharge(ctx context.Context, paymentID uuid.UUID) (*billing.Payment, error) {
	const op = "Billing.PaymentRecord.ClaimCharge"
	return a.claim(ctx, op, paymentID, chargeClaimColumn, billing.PaymentPending, func(p *billing.Payment) error {
		if p.Status != billing.PaymentPending {
			return invalidPaymentState(op, p.Status)
		}
		return nil
	})
}

func (a *paymentRecord) ReleaseCharge(ctx context.Context, paymentID uuid.UUID) error {
	return a.release(ctx, "Billing.PaymentRecord.ReleaseCharge", paymentID, chargeClaimColumn, billing.PaymentPending)
}

func (a *paymentRecord) ClaimRefund(ctx context.Context, paymentID uuid.UUID) (*billing.Payment, error) {
	const op = "Billing.PaymentRecord.ClaimRefund"
	return a.claim(ctx, op, paymentID, refundClaimColumn, billing.PaymentCompleted, func(p *billing.Payment) error {
		return refundable(op, p)
	})
}

func (a *paymentRecord) ReleaseRefund(ctx context.Context, paymentID uuid.UUID) error {
	return a.release(ctx, "Billing.PaymentRecord.ReleaseRefund", paymentID, refundClaimColumn, billing.PaymentCompleted)
}

// claim stamps column on a payment in status, after check accepts the locked row.
func (a *paymentRecord) claim(ctx context.Context, op string, paymentID uuid.UUID, column, status string, check func(*billing.Payment) error) (*billing.Payment, error) {
	if paymentID == uuid.Nil {
		return nil, invalidArgument(op, "payment_id is required")
	}
	if a.deps.Payments == nil {
		return nil, domainagg.NewError(domainagg.CodeInternal, op, "payment repo not configured", nil)
	}
	now := a.deps.Base.now()

	var out *billing.Payment
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		p, err := a.lockPayment(dbc, op, paymentID)
		if err != nil {
			return err
		}
		if err := check(p); err != nil {
			return err
		}
		ok, err := a.deps.Base.CASGuard.Claim(dbc, paymentTable, paymentID, []string{status}, column, now, now.Add(-a.deps.ClaimTTL))
		if err != nil {
			return err
		}
		if !ok {
			return domainagg.NewReasonError(domainagg.CodeConflict, domainagg.ReasonPaymentInFlight, op,
				"another request is already processing this payment", nil)
		}
		out, err = a.deps.Payments.GetByID(dbc, paymentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *paymentRecord) release(ctx context.Context, op string, paymentID uuid.UUID, column, status string) error {
	if paymentID == uuid.Nil {
		return invalidArgument(op, "payment_id is required")
	}
	return executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		return a.deps.Base.CASGuard.Release(dbc, paymentTable, paymentID, []string{status}, column)
	})
}

func (a *paymentRecord) SettleCharge(ctx context.Context, in domainagg.SettleChargeInput) (*billing.Payment, error) {
	const op = "Billing.PaymentRecord.SettleCharge"
	if in.PaymentID == uuid.Nil {
		return nil, invalidArgument(op, "payment_id is required")
	}
	if a.deps.Payments == nil {
		return nil, domainagg.NewError(domainagg.CodeInternal, op, "payment repo not configured", nil)
	}
	processedAt := in.ProcessedAt.UTC()
	if in.ProcessedAt.IsZero() {
		processedAt = a.deps.Base.now()
	}

	var out *billing.Payment
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		// the status check happened before the processor call; the CAS below is authoritative
		if _, err := a.lockPayment(dbc, op, in.PaymentID); err != nil {
			return err
		}
		updates := map[string]any{
			"processed_at": processedAt,
		}
		if len(in.Metadata) > 0 {
			updates["processor_metadata"] = datatypes.JSON(in.Metadata)
		}
		if in.Approved {
			updates["status"] = billing.PaymentCompleted
			updates["transaction_id"] = in.TransactionID
			updates["invoice_number"] = invoiceNumber(in.PaymentID, processedAt)
			updates["receipt_number"] = receiptNumber(in.PaymentID, processedAt)
		} else {
			msg := strings.TrimSpace(in.DeclineReason)
			if msg == "" {
				msg = "payment was declined"
			}
			details, err := json.Marshal(billing.ErrorDetail{Code: DeclineCode, Message: msg})
			if err != nil {
				return err
			}
			updates["status"] = billing.PaymentFailed
			updates["error_details"] = datatypes.JSON(details)
		}

		ok, err := a.deps.Base.CASGuard.UpdateByStatus(dbc, paymentTable, in.PaymentID, []string{billing.PaymentPending}, updates)
		if err != nil {
			return err
		}
		if !ok {
			return a.staleState(dbc, op, in.PaymentID)
		}
		out, err = a.deps.Payments.GetByID(dbc, in.PaymentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *paymentRecord) SettleRefund(ctx context.Context, in domainagg.SettleRefundInput) (*billing.Payment, error) {
	const op = "Billing.PaymentRecord.SettleRefund"
	if in.PaymentID == uuid.Nil {
		return nil, invalidArgument(op, "payment_id is required")
	}
	if a.deps.Payments == nil {
		return nil, domainagg.NewError(domainagg.CodeInternal, op, "payment repo not configured", nil)
	}
	refundedAt := in.RefundedAt.UTC()
	if in.RefundedAt.IsZero() {
		refundedAt = a.deps.Base.now()
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		reason = billing.DefaultRefundReason
	}

	var out *billing.Payment
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		p, err := a.lockPayment(dbc, op, in.PaymentID)
		if err != nil {
			return err
		}
		if err := refundable(op, p); err != nil {
			return err
		}
		updates := map[string]any{
			"status":          billing.PaymentRefunded,
			"is_refunded":     true,
			"refunded_amount": p.Amount,
			"refunded_at":     refundedAt,
			"refund_reason":   reason,
		}
		if len(in.Metadata) > 0 {
			updates["processor_metadata"] = datatypes.JSON(in.Metadata)
		}
		ok, err := a.deps.Base.CASGuard.UpdateByStatus(dbc, paymentTable, in.PaymentID, []string{billing.PaymentCompleted}, updates)
		if err != nil {
			return err
		}
		if !ok {
			return a.staleState(dbc, op, in.PaymentID)
		}
		out, err = a.deps.Payments.GetByID(dbc, in.PaymentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *paymentRecord) Cancel(ctx context.Context, paymentID uuid.UUID, at time.Time) (*billing.Payment, error) {
	const op = "Billing.PaymentRecord.Cancel"
	if paymentID == uuid.Nil {
		return nil, invalidArgument(op, "payment_id is required")
	}
	if a.deps.Payments == nil {
		return nil, domainagg.NewError(domainagg.CodeInternal, op, "payment repo not configured", nil)
	}
	cancelledAt := at.UTC()
	if at.IsZero() {
		cancelledAt = a.deps.Base.now()
	}

	var out *billing.Payment
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		p, err := a.lockPayment(dbc, op, paymentID)
		if err != nil {
			return err
		}
		if p.Status != billing.PaymentPending {
			return invalidPaymentState(op, p.Status)
		}
		ok, err := a.deps.Base.CASGuard.UpdateByStatus(dbc, paymentTable, paymentID, []string{billing.PaymentPending}, map[string]any{
			"status":       billing.PaymentCancelled,
			"cancelled_at": cancelledAt,
		})
		if err != nil {
			return err
		}
		if !ok {
			return a.staleState(dbc, op, paymentID)
		}
		out, err = a.deps.Payments.GetByID(dbc, paymentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *paymentRecord) lockPayment(dbc dbctx.Context, op string, id uuid.UUID) (*billing.Payment, error) {
	p, err := a.deps.Payments.LockByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, paymentNotFound(op)
	}
	return p, nil
}

// staleState reports why a compare-and-set matched no row.
func (a *paymentRecord) staleState(dbc dbctx.Context, op string, id uuid.UUID) error {
	p, err := a.deps.Payments.GetByID(dbc, id)
	if err != nil {
		return err
	}
	if p == nil {
		return paymentNotFound(op)
	}
	return domainagg.NewReasonError(domainagg.CodeConflict, domainagg.ReasonConcurrentUpdate, op,
		fmt.Sprintf("payment moved to %s concurrently", p.Status), nil)
}

func refundable(op string, p *billing.Payment) error {
	if p.IsRefunded {
		return domainagg.NewReasonError(domainagg.CodeConflict, domainagg.ReasonAlreadyRefunded, op, "payment was already refunded", nil)
	}
	if p.Status != billing.PaymentCompleted {
		return domainagg.NewReasonError(domainagg.CodePreconditionFailed, domainagg.ReasonNotRefundable, op,
			fmt.Sprintf("only completed payments can be refunded (status=%s)", p.Status), nil)
	}
	return nil
}

func paymentNotFound(op string) error {
	return domainagg.NewReasonError(domainagg.CodeNotFound, domainagg.ReasonPaymentNotFound, op, "payment not found", nil)
}

func invalidPaymentState(op, status string) error {
	return domainagg.NewReasonError(domainagg.CodePreconditionFailed, domainagg.ReasonInvalidPaymentState, op,
		fmt.Sprintf("payment is %s", status), nil)
}

func invoiceNumber(id uuid.UUID, at time.Time) string {
	return fmt.Sprintf("INV-%s-%s", at.Format("20060102"), strings.ToUpper(id.String()[:8]))
}

func receiptNumber(id uuid.UUID, at time.Time) string {
	return fmt.Sprintf("RCP-%s-%s", at.Format("20060102"), strings.ToUpper(id.String()[24:]))
}
