package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"

	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

type MidtransConfig struct {
	ServerKey  string
	Production bool
}

// coreAPI is the subset of coreapi.Client the adapter calls.
type coreAPI interface {
	ChargeTransaction(req *coreapi.ChargeReq) (*coreapi.ChargeResponse, *midtrans.Error)
	RefundTransaction(orderID string, req *coreapi.RefundReq) (*coreapi.RefundResponse, *midtrans.Error)
}

type midtransProcessor struct {
	log  *logger.Logger
	core coreAPI
}

func NewMidtrans(log *logger.Logger, cfg MidtransConfig) (Processor, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	key := strings.TrimSpace(cfg.ServerKey)
	if key == "" {
		return nil, fmt.Errorf("missing MIDTRANS_SERVER_KEY")
	}
	env := midtrans.Sandbox
	if cfg.Production {
		env = midtrans.Production
	}
	var c coreapi.Client
	c.New(key, env)

	log.Info("midtrans core api initialized", "production", cfg.Production)
	return newMidtrans(log, &c), nil
}

func newMidtrans(log *logger.Logger, core coreAPI) *midtransProcessor {
	return &midtransProcessor{log: log.With("processor", "midtrans"), core: core}
}

func (p *midtransProcessor) Name() string { return "midtrans" }

func (p *midtransProcessor) AttemptCharge(ctx context.Context, req ChargeRequest) (Outcome, error) {
	if cur := strings.ToUpper(strings.TrimSpace(req.Currency)); cur != "" && cur != "IDR" {
		return Outcome{}, fmt.Errorf("%w: midtrans only settles IDR, got %s", ErrUnavailable, cur)
	}
	charge := &coreapi.ChargeReq{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.PaymentID.String(),
			GrossAmt: req.Amount.Round(0).IntPart(),
		},
	}
	switch strings.ToLower(strings.TrimSpace(req.Method)) {
	case "bank_transfer":
		charge.PaymentType = coreapi.PaymentTypeBankTransfer
		charge.BankTransfer = &coreapi.BankTransferDetails{Bank: midtrans.BankBca}
	case "gopay":
		charge.PaymentType = coreapi.PaymentTypeGopay
	default:
		if strings.TrimSpace(req.Token) == "" {
			return Outcome{
				Approved:      false,
				DeclineReason: "card token is required",
			}, nil
		}
		charge.PaymentType = coreapi.PaymentTypeCreditCard
		charge.CreditCard = &coreapi.CreditCardDetails{TokenID: req.Token, Authentication: false}
	}

	type result struct {
		res *coreapi.ChargeResponse
		err *midtrans.Error
	}
	done := make(chan result, 1)
	go func() {
		res, mErr := p.core.ChargeTransaction(charge)
		done <- result{res: res, err: mErr}
	}()

	var r result
	select {
	case <-ctx.Done():
		p.log.Warn("midtrans charge abandoned", "payment_id", req.PaymentID, "error", ctx.Err())
		return Outcome{}, ctx.Err()
	case r = <-done:
	}
	if r.err != nil {
		return Outcome{}, fmt.Errorf("%w: charge status=%d: %s", ErrUnavailable, r.err.StatusCode, r.err.Message)
	}
	if r.res == nil {
		return Outcome{}, fmt.Errorf("%w: empty charge response", ErrUnavailable)
	}
	return chargeOutcome(r.res)
}

func chargeOutcome(res *coreapi.ChargeResponse) (Outcome, error) {
	meta := metadata(map[string]any{
		"processor":          "midtrans",
		"transaction_status": res.TransactionStatus,
		"fraud_status":       res.FraudStatus,
		"status_code":        res.StatusCode,
		"payment_type":       res.PaymentType,
	})
	switch strings.ToLower(res.TransactionStatus) {
	case "capture", "settlement":
		if strings.EqualFold(res.FraudStatus, "deny") || strings.EqualFold(res.FraudStatus, "challenge") {
			return Outcome{Approved: false, DeclineReason: "flagged by fraud detection", Metadata: meta}, nil
		}
		return Outcome{Approved: true, TransactionID: res.TransactionID, Metadata: meta}, nil
	case "deny", "cancel", "expire", "failure":
		reason := strings.TrimSpace(res.StatusMessage)
		if reason == "" {
			reason = "payment " + res.TransactionStatus
		}
		return Outcome{Approved: false, DeclineReason: reason, Metadata: meta}, nil
	default:
		// pending asynchronous methods are not settled yet; the payment stays pending
		return Outcome{}, fmt.Errorf("%w: transaction is %s", ErrUnavailable, res.TransactionStatus)
	}
}

func (p *midtransProcessor) AttemptRefund(ctx context.Context, req RefundRequest) (Outcome, error) {
	refund := &coreapi.RefundReq{
		RefundKey: "refund-" + req.PaymentID.String(),
		Amount:    req.Amount.Round(0).IntPart(),
		Reason:    req.Reason,
	}

	type result struct {
		res *coreapi.RefundResponse
		err *midtrans.Error
	}
	done := make(chan result, 1)
	go func() {
		res, mErr := p.core.RefundTransaction(req.PaymentID.String(), refund)
		done <- result{res: res, err: mErr}
	}()

	var r result
	select {
	case <-ctx.Done():
		p.log.Warn("midtrans refund abandoned", "payment_id", req.PaymentID, "error", ctx.Err())
		return Outcome{}, ctx.Err()
	case r = <-done:
	}
	if r.err != nil {
		// 4xx answers mean midtrans looked at the refund and refused it
		if r.err.StatusCode >= 400 && r.err.StatusCode < 500 {
			return Outcome{Approved: false, DeclineReason: strings.TrimSpace(r.err.Message)}, nil
		}
		return Outcome{}, fmt.Errorf("%w: refund status=%d: %s", ErrUnavailable, r.err.StatusCode, r.err.Message)
	}
	if r.res == nil {
		return Outcome{}, fmt.Errorf("%w: empty refund response", ErrUnavailable)
	}
	meta := metadata(map[string]any{
		"processor":          "midtrans",
		"transaction_status": r.res.TransactionStatus,
		"status_code":        r.res.StatusCode,
		"refund_key":         refund.RefundKey,
	})
	switch strings.ToLower(r.res.TransactionStatus) {
	case "refund", "partial_refund":
		return Outcome{Approved: true, TransactionID: r.res.TransactionID, Metadata: meta}, nil
	default:
		reason := strings.TrimSpace(r.res.StatusMessage)
		if reason == "" {
			reason = "refund " + r.res.TransactionStatus
		}
		return Outcome{Approved: false, DeclineReason: reason, Metadata: meta}, nil
	}
}
