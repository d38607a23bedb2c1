package aggregates

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yungbote/coursemarket-backend/internal/domain/billing"
)

var PaymentRecordContract = Contract{
	Name:    "Billing.PaymentRecord",
	Owns:    "payment",
	Columns: nil,
	Notes:   "Processor calls happen outside its transactions, between a claim and a settle.",
}

// PaymentRecord owns payment state machine invariants.
// Every transition out of a state is a compare-and-set on the current status.
type PaymentRecord interface {
	Aggregate

	Create(ctx context.Context, in CreatePaymentInput) (*billing.Payment, error)

	// ClaimCharge marks a pending payment as being charged. Only one caller holds
	// the claim; others get conflict/payment_in_progress until it is released or goes stale.
	ClaimCharge(ctx context.Context, paymentID uuid.UUID) (*billing.Payment, error)
	ReleaseCharge(ctx context.Context, paymentID uuid.UUID) error

	// SettleCharge moves a pending payment to completed or failed.
	SettleCharge(ctx context.Context, in SettleChargeInput) (*billing.Payment, error)

	// ClaimRefund is ClaimCharge for refunds of completed payments.
	ClaimRefund(ctx context.Context, paymentID uuid.UUID) (*billing.Payment, error)
	ReleaseRefund(ctx context.Context, paymentID uuid.UUID) error

	// SettleRefund moves a completed, unrefunded payment to refunded.
	SettleRefund(ctx context.Context, in SettleRefundInput) (*billing.Payment, error)

	Cancel(ctx context.Context, paymentID uuid.UUID, at time.Time) (*billing.Payment, error)
}

type CreatePaymentInput struct {
	UserID   uuid.UUID
	CourseID *uuid.UUID
	Amount   decimal.Decimal
	Currency string
	Method   string
}

type SettleChargeInput struct {
	PaymentID     uuid.UUID
	Approved      bool
	TransactionID string
	DeclineReason string
	Metadata      json.RawMessage
	ProcessedAt   time.Time
}

type SettleRefundInput struct {
	PaymentID  uuid.UUID
	Reason     string
	Metadata   json.RawMessage
	RefundedAt time.Time
}
