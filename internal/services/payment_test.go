package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	repotest "github.com/yungbote/coursemarket-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/domain/billing"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
	"github.com/yungbote/coursemarket-backend/internal/platform/events"
	"github.com/yungbote/coursemarket-backend/internal/platform/notify"
	"github.com/yungbote/coursemarket-backend/internal/platform/payments"
)

func TestPaymentServiceProcessApproved(t *testing.T) {
	f := newFixture(t)
	course := repotest.SeedCourse(t, f.ctx, f.db, repotest.CourseOpts{Price: "49.99"})
	user := uuid.New()
	ctx := f.as(user)

	p, err := f.payments.Create(ctx, user, CreatePaymentRequest{
		CourseID: repotest.PtrUUID(course.ID),
		Amount:   decimal.RequireFromString("49.99"),
		Currency: "USD",
		Method:   "card",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	f.proc.charge = payments.Outcome{Approved: true, TransactionID: "txn_ok"}
	got, err := f.payments.Process(ctx, user, p.ID, ProcessPaymentRequest{Token: " tok_visa "})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got.Status != billing.PaymentCompleted || got.TransactionID != "txn_ok" {
		t.Fatalf("unexpected payment: %+v", got)
	}
	if got.InvoiceNumber == "" || got.ReceiptNumber == "" || got.ProcessedAt == nil {
		t.Fatalf("completed payment missing receipt fields: %+v", got)
	}
	if len(f.proc.charges) != 1 || f.proc.charges[0].Token != "tok_visa" || f.proc.charges[0].Description != course.Title {
		t.Fatalf("charge request: %+v", f.proc.charges)
	}
	if !contains(f.events.Types(), events.PaymentCompleted) {
		t.Fatalf("events: %v", f.events.Types())
	}
	if !contains(f.notifier.kinds(), notify.KindPaymentReceipt) {
		t.Fatalf("notifications: %v", f.notifier.kinds())
	}

	// a settled payment is never sent to the processor again
	_, err = f.payments.Process(ctx, user, p.ID, ProcessPaymentRequest{})
	wantReason(t, err, domainagg.CodePreconditionFailed, domainagg.ReasonInvalidPaymentState)
	if len(f.proc.charges) != 1 {
		t.Fatalf("processor called for settled payment: %d", len(f.proc.charges))
	}
}

func TestPaymentServiceProcessDeclined(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	p := repotest.SeedPayment(t, f.ctx, f.db, user, nil, "20.00", billing.PaymentPending)

	f.proc.charge = payments.Outcome{Approved: false, DeclineReason: "card declined"}
	got, err := f.payments.Process(f.as(user), user, p.ID, ProcessPaymentRequest{})
	if err != nil {
		t.Fatalf("declines are not errors: %v", err)
	}
	if got.Status != billing.PaymentFailed || len(got.ErrorDetails) == 0 {
		t.Fatalf("declined payment: %+v", got)
	}
	if !contains(f.events.Types(), events.PaymentFailed) {
		t.Fatalf("events: %v", f.events.Types())
	}
	if len(f.notifier.kinds()) != 0 {
		t.Fatalf("declines send no mail: %v", f.notifier.kinds())
	}
}

func TestPaymentServiceProcessorFailuresLeavePaymentPending(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	p := repotest.SeedPayment(t, f.ctx, f.db, user, nil, "20.00", billing.PaymentPending)
	ctx := f.as(user)

	f.proc.hang = true
	_, err := f.payments.Process(ctx, user, p.ID, ProcessPaymentRequest{})
	wantReason(t, err, domainagg.CodeTimeout, domainagg.ReasonProcessorTimeout)

	f.proc.hang = false
	f.proc.err = errors.New("connection refused")
	_, err = f.payments.Process(ctx, user, p.ID, ProcessPaymentRequest{})
	wantReason(t, err, domainagg.CodeExternalServiceFailure, domainagg.ReasonProcessorError)

	row, err := f.repos.Payment.GetByID(dbctx.Context{Ctx: f.ctx}, p.ID)
	if err != nil || row == nil {
		t.Fatalf("GetByID: %v", err)
	}
	if row.Status != billing.PaymentPending {
		t.Fatalf("status: want=pending got=%s", row.Status)
	}
	if len(f.events.Events()) != 0 {
		t.Fatalf("no events expected, got %v", f.events.Types())
	}
}

func TestPaymentServiceOwnership(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	stranger := uuid.New()
	p := repotest.SeedPayment(t, f.ctx, f.db, owner, nil, "20.00", billing.PaymentPending)

	_, err := f.payments.Get(f.as(stranger), stranger, p.ID)
	wantReason(t, err, domainagg.CodeNotFound, domainagg.ReasonPaymentNotFound)
	_, err = f.payments.Process(f.as(stranger), stranger, p.ID, ProcessPaymentRequest{})
	wantReason(t, err, domainagg.CodeNotFound, domainagg.ReasonPaymentNotFound)
	if len(f.proc.charges) != 0 {
		t.Fatalf("processor called for foreign payment")
	}

	list, err := f.payments.ListForUser(f.ctx, owner, 10, 0)
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(list) != 1 || list[0].ID != p.ID {
		t.Fatalf("list: %+v", list)
	}
}

func TestPaymentServiceRefund(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	ctx := f.as(user)
	p := repotest.SeedPayment(t, f.ctx, f.db, user, nil, "20.00", billing.PaymentPending)

	_, err := f.payments.Refund(ctx, user, p.ID, "")
	wantReason(t, err, domainagg.CodePreconditionFailed, domainagg.ReasonNotRefundable)

	f.proc.charge = payments.Outcome{Approved: true, TransactionID: "txn_1"}
	if _, err := f.payments.Process(ctx, user, p.ID, ProcessPaymentRequest{}); err != nil {
		t.Fatalf("Process: %v", err)
	}

	f.proc.refund = payments.Outcome{Approved: false, DeclineReason: "window closed"}
	_, err = f.payments.Refund(ctx, user, p.ID, "changed my mind")
	wantReason(t, err, domainagg.CodeExternalServiceFailure, domainagg.ReasonProcessorDeclined)
	row, _ := f.repos.Payment.GetByID(dbctx.Context{Ctx: f.ctx}, p.ID)
	if row.Status != billing.PaymentCompleted || row.IsRefunded {
		t.Fatalf("declined refund must not change state: %+v", row)
	}

	f.proc.refund = payments.Outcome{Approved: true, TransactionID: "re_1"}
	got, err := f.payments.Refund(ctx, user, p.ID, "")
	if err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if got.Status != billing.PaymentRefunded || !got.IsRefunded || !got.RefundedAmount.Equal(got.Amount) {
		t.Fatalf("refunded payment: %+v", got)
	}
	if got.RefundReason != billing.DefaultRefundReason {
		t.Fatalf("refund reason: want=%s got=%s", billing.DefaultRefundReason, got.RefundReason)
	}
	if f.proc.refunds[len(f.proc.refunds)-1].TransactionID != "txn_1" {
		t.Fatalf("refund must reference the charge: %+v", f.proc.refunds)
	}
	if !contains(f.events.Types(), events.PaymentRefunded) || !contains(f.notifier.kinds(), notify.KindPaymentRefunded) {
		t.Fatalf("effects: events=%v mail=%v", f.events.Types(), f.notifier.kinds())
	}

	_, err = f.payments.Refund(ctx, user, p.ID, "")
	wantReason(t, err, domainagg.CodeConflict, domainagg.ReasonAlreadyRefunded)
}

func TestPaymentServiceCancel(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	p := repotest.SeedPayment(t, f.ctx, f.db, user, nil, "20.00", billing.PaymentPending)

	got, err := f.payments.Cancel(f.as(user), user, p.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got.Status != billing.PaymentCancelled || got.CancelledAt == nil {
		t.Fatalf("cancelled payment: %+v", got)
	}
	_, err = f.payments.Cancel(f.as(user), user, p.ID)
	wantReason(t, err, domainagg.CodePreconditionFailed, domainagg.ReasonInvalidPaymentState)
}

func TestPaymentServiceConcurrentCallsReachProcessorOnce(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	ctx := f.as(user)
	p := repotest.SeedPayment(t, f.ctx, f.db, user, nil, "20.00", billing.PaymentPending)

	f.proc.charge = payments.Outcome{Approved: true, TransactionID: "txn_once"}
	f.proc.refund = payments.Outcome{Approved: true, TransactionID: "re_once"}
	f.proc.delay = 80 * time.Millisecond

	errs := concurrently(2, func() error {
		_, err := f.payments.Process(ctx, user, p.ID, ProcessPaymentRequest{})
		return err
	})
	if charges, _ := f.proc.calls(); charges != 1 {
		t.Fatalf("charges: want=1 got=%d errs=%v", charges, errs)
	}
	wantSingleWinner(t, errs)

	errs = concurrently(2, func() error {
		_, err := f.payments.Refund(ctx, user, p.ID, "")
		return err
	})
	if _, refunds := f.proc.calls(); refunds != 1 {
		t.Fatalf("refunds: want=1 got=%d errs=%v", refunds, errs)
	}
	wantSingleWinner(t, errs)

	row, _ := f.repos.Payment.GetByID(dbctx.Context{Ctx: f.ctx}, p.ID)
	if row.Status != billing.PaymentRefunded || row.TransactionID != "txn_once" {
		t.Fatalf("payment after races: %+v", row)
	}
}

func TestPaymentServiceInFlightChargeBlocksSecondCaller(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	p := repotest.SeedPayment(t, f.ctx, f.db, user, nil, "20.00", billing.PaymentPending)

	// a claim held by another request
	if _, err := f.record.ClaimCharge(f.ctx, p.ID); err != nil {
		t.Fatalf("ClaimCharge: %v", err)
	}
	_, err := f.payments.Process(f.as(user), user, p.ID, ProcessPaymentRequest{})
	wantReason(t, err, domainagg.CodeConflict, domainagg.ReasonPaymentInFlight)
	if charges, _ := f.proc.calls(); charges != 0 {
		t.Fatalf("processor called while another charge was in flight")
	}

	if err := f.record.ReleaseCharge(f.ctx, p.ID); err != nil {
		t.Fatalf("ReleaseCharge: %v", err)
	}
	f.proc.charge = payments.Outcome{Approved: true, TransactionID: "txn_after"}
	if _, err := f.payments.Process(f.as(user), user, p.ID, ProcessPaymentRequest{}); err != nil {
		t.Fatalf("Process after release: %v", err)
	}
}

func concurrently(n int, fn func() error) []error {
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = fn()
		}(i)
	}
	wg.Wait()
	return errs
}

// wantSingleWinner expects one success; the losers saw a claim or a settled state.
func wantSingleWinner(t *testing.T, errs []error) {
	t.Helper()
	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		switch domainagg.ReasonOf(err) {
		case domainagg.ReasonPaymentInFlight, domainagg.ReasonInvalidPaymentState, domainagg.ReasonAlreadyRefunded:
		default:
			t.Fatalf("unexpected loser error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("winners: want=1 got=%d errs=%v", wins, errs)
	}
}
