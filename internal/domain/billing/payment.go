package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
	PaymentRefunded  = "refunded"
	PaymentCancelled = "cancelled"
)

const DefaultRefundReason = "requested_by_customer"

// Payment is one monetary transaction. CourseID is nil for non-course charges.
type Payment struct {
	ID       uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	CourseID *uuid.UUID `gorm:"type:uuid;index" json:"course_id,omitempty"`

	// pending|completed|failed|refunded|cancelled
	Status   string `gorm:"column:status;not null;default:'pending';index" json:"status"`
	Currency string `gorm:"column:currency;not null;default:'USD'" json:"currency"`
	Method   string `gorm:"column:method;not null" json:"method"`

	Amount    decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	Fee       decimal.Decimal `gorm:"column:fee;type:numeric(12,2);not null;default:0" json:"fee"`
	Tax       decimal.Decimal `gorm:"column:tax;type:numeric(12,2);not null;default:0" json:"tax"`
	NetAmount decimal.Decimal `gorm:"column:net_amount;type:numeric(12,2);not null;default:0" json:"net_amount"`

	TransactionID string `gorm:"column:transaction_id;index" json:"transaction_id,omitempty"`
	InvoiceNumber string `gorm:"column:invoice_number" json:"invoice_number,omitempty"`
	ReceiptNumber string `gorm:"column:receipt_number" json:"receipt_number,omitempty"`

	// {"code": "...", "message": "..."} once a charge was declined.
	ErrorDetails      datatypes.JSON `gorm:"column:error_details" json:"error_details,omitempty"`
	ProcessorMetadata datatypes.JSON `gorm:"column:processor_metadata" json:"processor_metadata,omitempty"`

	IsRefunded     bool            `gorm:"column:is_refunded;not null;default:false" json:"is_refunded"`
	RefundedAmount decimal.Decimal `gorm:"column:refunded_amount;type:numeric(12,2);not null;default:0" json:"refunded_amount"`
	RefundedAt     *time.Time      `gorm:"column:refunded_at" json:"refunded_at,omitempty"`
	RefundReason   string          `gorm:"column:refund_reason" json:"refund_reason,omitempty"`

	// Set while a gateway call for this payment is in flight.
	ProcessingStartedAt *time.Time `gorm:"column:processing_started_at" json:"-"`
	RefundStartedAt     *time.Time `gorm:"column:refund_started_at" json:"-"`

	ProcessedAt *time.Time `gorm:"column:processed_at" json:"processed_at,omitempty"`
	CancelledAt *time.Time `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Payment) TableName() string { return "payment" }

func (p *Payment) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// ErrorDetail is the structured decline recorded on a failed payment.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Rates are the platform's fee and tax fractions applied to a gross amount.
type Rates struct {
	Fee decimal.Decimal
	Tax decimal.Decimal
}

func DefaultRates() Rates {
	return Rates{Fee: decimal.RequireFromString("0.029"), Tax: decimal.RequireFromString("0.08")}
}

// Breakdown returns cent-rounded fee and tax and the net remainder of amount.
func (r Rates) Breakdown(amount decimal.Decimal) (fee, tax, net decimal.Decimal) {
	fee = amount.Mul(r.Fee).Round(2)
	tax = amount.Mul(r.Tax).Round(2)
	net = amount.Sub(fee).Sub(tax)
	return fee, tax, net
}
