package aggregates

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	repotest "github.com/yungbote/coursemarket-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/domain/billing"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
)

func TestPaymentRecordCreateComputesBreakdown(t *testing.T) {
	f := newFixture(t)
	course := repotest.SeedCourse(t, f.ctx, f.db, repotest.CourseOpts{Price: "89.99"})

	p, err := f.pay.Create(f.ctx, domainagg.CreatePaymentInput{
		UserID:   uuid.New(),
		CourseID: repotest.PtrUUID(course.ID),
		Amount:   decimal.RequireFromString("89.99"),
		Currency: "usd",
		Method:   "Card",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Status != billing.PaymentPending || p.Currency != "USD" || p.Method != "card" {
		t.Fatalf("unexpected payment: %+v", p)
	}
	for name, pair := range map[string][2]decimal.Decimal{
		"fee": {p.Fee, decimal.RequireFromString("2.61")},
		"tax": {p.Tax, decimal.RequireFromString("7.20")},
		"net": {p.NetAmount, decimal.RequireFromString("80.18")},
	} {
		if !pair[0].Equal(pair[1]) {
			t.Fatalf("%s: want=%s got=%s", name, pair[1], pair[0])
		}
	}
}

func TestPaymentRecordCreateRejections(t *testing.T) {
	f := newFixture(t)
	course := repotest.SeedCourse(t, f.ctx, f.db, repotest.CourseOpts{Price: "89.99"})
	hidden := repotest.SeedCourse(t, f.ctx, f.db, repotest.CourseOpts{Unpublished: true})
	user := uuid.New()

	_, err := f.pay.Create(f.ctx, domainagg.CreatePaymentInput{UserID: user, Amount: decimal.Zero, Method: "card"})
	wantReason(t, err, domainagg.CodeValidation, domainagg.ReasonInvalidArgument)

	_, err = f.pay.Create(f.ctx, domainagg.CreatePaymentInput{
		UserID: user, CourseID: repotest.PtrUUID(hidden.ID), Amount: decimal.RequireFromString("10"), Method: "card",
	})
	wantReason(t, err, domainagg.CodePreconditionFailed, domainagg.ReasonCourseUnavailable)

	_, err = f.pay.Create(f.ctx, domainagg.CreatePaymentInput{
		UserID: user, CourseID: repotest.PtrUUID(course.ID), Amount: decimal.RequireFromString("50"), Method: "card",
	})
	wantReason(t, err, domainagg.CodePreconditionFailed, domainagg.ReasonUnderpaidAmount)

	// half a cent short still underpays, even though it rounds to the price
	cheap := repotest.SeedCourse(t, f.ctx, f.db, repotest.CourseOpts{Price: "49.99"})
	_, err = f.pay.Create(f.ctx, domainagg.CreatePaymentInput{
		UserID: user, CourseID: repotest.PtrUUID(cheap.ID), Amount: decimal.RequireFromString("49.985"), Method: "card",
	})
	wantReason(t, err, domainagg.CodePreconditionFailed, domainagg.ReasonUnderpaidAmount)

	// payments without a course only need a positive amount
	if _, err := f.pay.Create(f.ctx, domainagg.CreatePaymentInput{UserID: user, Amount: decimal.RequireFromString("5"), Method: "wallet"}); err != nil {
		t.Fatalf("Create without course: %v", err)
	}
}

func TestPaymentRecordSettleCharge(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	approved := repotest.SeedPayment(t, f.ctx, f.db, user, nil, "20.00", billing.PaymentPending)
	declined := repotest.SeedPayment(t, f.ctx, f.db, user, nil, "20.00", billing.PaymentPending)

	p, err := f.pay.SettleCharge(f.ctx, domainagg.SettleChargeInput{
		PaymentID:     approved.ID,
		Approved:      true,
		TransactionID: "txn_123",
	})
	if err != nil {
		t.Fatalf("SettleCharge approved: %v", err)
	}
	if p.Status != billing.PaymentCompleted || p.TransactionID != "txn_123" || p.InvoiceNumber == "" || p.ReceiptNumber == "" || p.ProcessedAt == nil {
		t.Fatalf("approved payment: %+v", p)
	}

	p, err = f.pay.SettleCharge(f.ctx, domainagg.SettleChargeInput{
		PaymentID:     declined.ID,
		DeclineReason: "insufficient funds",
	})
	if err != nil {
		t.Fatalf("SettleCharge declined: %v", err)
	}
	if p.Status != billing.PaymentFailed {
		t.Fatalf("declined status: want=failed got=%s", p.Status)
	}
	var detail billing.ErrorDetail
	if err := json.Unmarshal(p.ErrorDetails, &detail); err != nil {
		t.Fatalf("error_details: %v", err)
	}
	if detail.Code != DeclineCode || detail.Message != "insufficient funds" {
		t.Fatalf("error_details: %+v", detail)
	}

	// a second settle loses the compare-and-set
	_, err = f.pay.SettleCharge(f.ctx, domainagg.SettleChargeInput{PaymentID: approved.ID, Approved: true})
	wantReason(t, err, domainagg.CodeConflict, domainagg.ReasonConcurrentUpdate)

	_, err = f.pay.SettleCharge(f.ctx, domainagg.SettleChargeInput{PaymentID: uuid.New(), Approved: true})
	wantReason(t, err, domainagg.CodeNotFound, domainagg.ReasonPaymentNotFound)
}

func TestPaymentRecordSettleRefund(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	completed := repotest.SeedPayment(t, f.ctx, f.db, user, nil, "30.00", billing.PaymentCompleted)
	pending := repotest.SeedPayment(t, f.ctx, f.db, user, nil, "30.00", billing.PaymentPending)

	_, err := f.pay.SettleRefund(f.ctx, domainagg.SettleRefundInput{PaymentID: pending.ID})
	wantReason(t, err, domainagg.CodePreconditionFailed, domainagg.ReasonNotRefundable)

	p, err := f.pay.SettleRefund(f.ctx, domainagg.SettleRefundInput{PaymentID: completed.ID})
	if err != nil {
		t.Fatalf("SettleRefund: %v", err)
	}
	if p.Status != billing.PaymentRefunded || !p.IsRefunded || p.RefundedAt == nil {
		t.Fatalf("refunded payment: %+v", p)
	}
	if !p.RefundedAmount.Equal(decimal.RequireFromString("30")) {
		t.Fatalf("refunded_amount: want=30 got=%s", p.RefundedAmount)
	}
	if p.RefundReason != billing.DefaultRefundReason {
		t.Fatalf("refund_reason: want=%s got=%s", billing.DefaultRefundReason, p.RefundReason)
	}

	_, err = f.pay.SettleRefund(f.ctx, domainagg.SettleRefundInput{PaymentID: completed.ID, Reason: "again"})
	wantReason(t, err, domainagg.CodeConflict, domainagg.ReasonAlreadyRefunded)
}

func TestPaymentRecordCancel(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	pending := repotest.SeedPayment(t, f.ctx, f.db, user, nil, "15.00", billing.PaymentPending)

	p, err := f.pay.Cancel(f.ctx, pending.ID, f.now)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if p.Status != billing.PaymentCancelled || p.CancelledAt == nil {
		t.Fatalf("cancelled payment: %+v", p)
	}
	_, err = f.pay.Cancel(f.ctx, pending.ID, f.now)
	wantReason(t, err, domainagg.CodePreconditionFailed, domainagg.ReasonInvalidPaymentState)
}

func TestPaymentRecordChargeClaim(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	p := repotest.SeedPayment(t, f.ctx, f.db, user, nil, "20.00", billing.PaymentPending)
	done := repotest.SeedPayment(t, f.ctx, f.db, user, nil, "20.00", billing.PaymentCompleted)

	claimed, err := f.pay.ClaimCharge(f.ctx, p.ID)
	if err != nil {
		t.Fatalf("ClaimCharge: %v", err)
	}
	if claimed.ProcessingStartedAt == nil || !claimed.ProcessingStartedAt.Equal(f.now) {
		t.Fatalf("processing_started_at: %v", claimed.ProcessingStartedAt)
	}
	_, err = f.pay.ClaimCharge(f.ctx, p.ID)
	wantReason(t, err, domainagg.CodeConflict, domainagg.ReasonPaymentInFlight)

	if err := f.pay.ReleaseCharge(f.ctx, p.ID); err != nil {
		t.Fatalf("ReleaseCharge: %v", err)
	}
	if _, err := f.pay.ClaimCharge(f.ctx, p.ID); err != nil {
		t.Fatalf("ClaimCharge after release: %v", err)
	}

	// a claim older than the TTL belongs to a request that never came back
	stale := f.now.Add(-DefaultClaimTTL - time.Minute)
	if err := f.db.Table(paymentTable).Where("id = ?", p.ID).Update(chargeClaimColumn, stale).Error; err != nil {
		t.Fatalf("age claim: %v", err)
	}
	if _, err := f.pay.ClaimCharge(f.ctx, p.ID); err != nil {
		t.Fatalf("ClaimCharge over stale claim: %v", err)
	}

	_, err = f.pay.ClaimCharge(f.ctx, done.ID)
	wantReason(t, err, domainagg.CodePreconditionFailed, domainagg.ReasonInvalidPaymentState)
	_, err = f.pay.ClaimCharge(f.ctx, uuid.New())
	wantReason(t, err, domainagg.CodeNotFound, domainagg.ReasonPaymentNotFound)
}

func TestPaymentRecordRefundClaim(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	completed := repotest.SeedPayment(t, f.ctx, f.db, user, nil, "30.00", billing.PaymentCompleted)
	pending := repotest.SeedPayment(t, f.ctx, f.db, user, nil, "30.00", billing.PaymentPending)

	_, err := f.pay.ClaimRefund(f.ctx, pending.ID)
	wantReason(t, err, domainagg.CodePreconditionFailed, domainagg.ReasonNotRefundable)

	if _, err := f.pay.ClaimRefund(f.ctx, completed.ID); err != nil {
		t.Fatalf("ClaimRefund: %v", err)
	}
	_, err = f.pay.ClaimRefund(f.ctx, completed.ID)
	wantReason(t, err, domainagg.CodeConflict, domainagg.ReasonPaymentInFlight)

	if err := f.pay.ReleaseRefund(f.ctx, completed.ID); err != nil {
		t.Fatalf("ReleaseRefund: %v", err)
	}
	row, _ := f.repos.Payment.GetByID(dbctx.Context{Ctx: f.ctx}, completed.ID)
	if row.RefundStartedAt != nil || row.Status != billing.PaymentCompleted {
		t.Fatalf("released payment: %+v", row)
	}

	if _, err := f.pay.SettleRefund(f.ctx, domainagg.SettleRefundInput{PaymentID: completed.ID}); err != nil {
		t.Fatalf("SettleRefund: %v", err)
	}
	_, err = f.pay.ClaimRefund(f.ctx, completed.ID)
	wantReason(t, err, domainagg.CodeConflict, domainagg.ReasonAlreadyRefunded)
}
