package payments

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrUnavailable marks transport-level processor failures (network, 5xx, bad credentials).
// A declined charge is not an error; it comes back as an Outcome with Approved=false.
var ErrUnavailable = errors.New("payment processor unavailable")

type ChargeRequest struct {
	PaymentID   uuid.UUID
	UserID      uuid.UUID
	Amount      decimal.Decimal
	Currency    string
	Method      string
	Token       string
	Description string
}

type RefundRequest struct {
	PaymentID     uuid.UUID
	TransactionID string
	Amount        decimal.Decimal
	Currency      string
	Reason        string
}

type Outcome struct {
	Approved      bool
	TransactionID string
	DeclineReason string
	Metadata      json.RawMessage
}

// Processor is the external gateway. Implementations must honour ctx cancellation
// and return ctx.Err() when the deadline passes before the gateway answers.
type Processor interface {
	Name() string
	AttemptCharge(ctx context.Context, req ChargeRequest) (Outcome, error)
	AttemptRefund(ctx context.Context, req RefundRequest) (Outcome, error)
}

// IsTimeout reports whether err came from the caller's deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

func metadata(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}
