package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

// Test tokens understood by the mock processor.
const (
	TokenDecline = "tok_decline"
	TokenError   = "tok_error"
	TokenHang    = "tok_hang"
)

type MockConfig struct {
	ChargeLatency time.Duration
	RefundLatency time.Duration
	// DeclineRefunds makes every refund come back declined.
	DeclineRefunds bool
}

type mockProcessor struct {
	log *logger.Logger
	cfg MockConfig
}

// NewMock returns a processor that approves everything after a simulated delay,
// except for the test tokens above.
func NewMock(log *logger.Logger, cfg MockConfig) Processor {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.ChargeLatency < 0 {
		cfg.ChargeLatency = 0
	}
	if cfg.RefundLatency < 0 {
		cfg.RefundLatency = 0
	}
	return &mockProcessor{log: log.With("processor", "mock"), cfg: cfg}
}

func (m *mockProcessor) Name() string { return "mock" }

func (m *mockProcessor) AttemptCharge(ctx context.Context, req ChargeRequest) (Outcome, error) {
	token := strings.TrimSpace(req.Token)
	latency := m.cfg.ChargeLatency
	if token == TokenHang {
		latency = time.Hour
	}
	if err := wait(ctx, latency); err != nil {
		return Outcome{}, err
	}

	switch token {
	case TokenError:
		return Outcome{}, fmt.Errorf("%w: simulated gateway error", ErrUnavailable)
	case TokenDecline:
		m.log.Debug("mock charge declined", "payment_id", req.PaymentID)
		return Outcome{
			Approved:      false,
			DeclineReason: "card declined",
			Metadata:      metadata(map[string]any{"processor": "mock", "result": "declined"}),
		}, nil
	}

	txID := "mock_ch_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	m.log.Debug("mock charge approved", "payment_id", req.PaymentID, "transaction_id", txID)
	return Outcome{
		Approved:      true,
		TransactionID: txID,
		Metadata: metadata(map[string]any{
			"processor": "mock",
			"result":    "approved",
			"amount":    req.Amount.StringFixed(2),
			"currency":  req.Currency,
		}),
	}, nil
}

func (m *mockProcessor) AttemptRefund(ctx context.Context, req RefundRequest) (Outcome, error) {
	if err := wait(ctx, m.cfg.RefundLatency); err != nil {
		return Outcome{}, err
	}
	if m.cfg.DeclineRefunds {
		return Outcome{
			Approved:      false,
			DeclineReason: "refund window closed",
			Metadata:      metadata(map[string]any{"processor": "mock", "result": "refund_declined"}),
		}, nil
	}
	refundID := "mock_re_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	return Outcome{
		Approved:      true,
		TransactionID: req.TransactionID,
		Metadata: metadata(map[string]any{
			"processor": "mock",
			"result":    "refunded",
			"refund_id": refundID,
			"amount":    req.Amount.StringFixed(2),
		}),
	}, nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
