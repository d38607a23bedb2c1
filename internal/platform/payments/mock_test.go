package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

func TestMockApprovesByDefault(t *testing.T) {
	p := NewMock(logger.NewNop(), MockConfig{})
	out, err := p.AttemptCharge(context.Background(), ChargeRequest{
		PaymentID: uuid.New(),
		Amount:    decimal.RequireFromString("49.99"),
		Currency:  "USD",
		Method:    "card",
	})
	if err != nil {
		t.Fatalf("AttemptCharge: %v", err)
	}
	if !out.Approved || out.TransactionID == "" || len(out.Metadata) == 0 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestMockTestTokens(t *testing.T) {
	p := NewMock(logger.NewNop(), MockConfig{})
	ctx := context.Background()

	out, err := p.AttemptCharge(ctx, ChargeRequest{PaymentID: uuid.New(), Token: TokenDecline})
	if err != nil {
		t.Fatalf("decline should not be an error: %v", err)
	}
	if out.Approved || out.DeclineReason == "" {
		t.Fatalf("expected decline, got %+v", out)
	}

	_, err = p.AttemptCharge(ctx, ChargeRequest{PaymentID: uuid.New(), Token: TokenError})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestMockHonoursDeadline(t *testing.T) {
	p := NewMock(logger.NewNop(), MockConfig{ChargeLatency: time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := p.AttemptCharge(ctx, ChargeRequest{PaymentID: uuid.New()})
	if !IsTimeout(err) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatalf("mock ignored the deadline")
	}
}

func TestMockRefunds(t *testing.T) {
	ctx := context.Background()
	req := RefundRequest{PaymentID: uuid.New(), TransactionID: "mock_ch_1", Amount: decimal.NewFromInt(10)}

	out, err := NewMock(logger.NewNop(), MockConfig{}).AttemptRefund(ctx, req)
	if err != nil || !out.Approved {
		t.Fatalf("refund: out=%+v err=%v", out, err)
	}

	out, err = NewMock(logger.NewNop(), MockConfig{DeclineRefunds: true}).AttemptRefund(ctx, req)
	if err != nil || out.Approved {
		t.Fatalf("declined refund: out=%+v err=%v", out, err)
	}
}
