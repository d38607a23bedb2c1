package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
)

func TestHooksGroupsByOperation(t *testing.T) {
	h := &Hooks{}
	h.ObserveOperation("Learning.EnrollmentLedger.Enroll", "conflict", time.Millisecond)
	h.ObserveOperation("Learning.EnrollmentLedger.Enroll", "success", time.Millisecond)
	h.IncConflict("Learning.EnrollmentLedger.Enroll")
	h.IncRetry("Billing.PaymentRecord.Refund")

	got := h.Statuses("Learning.EnrollmentLedger.Enroll")
	if len(got) != 2 || got[0] != "conflict" || got[1] != "success" {
		t.Fatalf("statuses: %v", got)
	}
	if h.Conflicts("Learning.EnrollmentLedger.Enroll") != 1 || h.Retries("Billing.PaymentRecord.Refund") != 1 {
		t.Fatalf("counters not recorded")
	}
	if len(h.Statuses("unknown")) != 0 {
		t.Fatalf("unknown op must be empty")
	}
}

func TestFaultyTxRunnerFailsOnlyTheFirstCommits(t *testing.T) {
	boom := errors.New("connection reset during commit")
	r := &FaultyTxRunner{FailCommits: 1, Err: boom}
	ran := 0
	body := func(dbctx.Context) error { ran++; return nil }

	if err := r.InTx(context.Background(), body); !errors.Is(err, boom) {
		t.Fatalf("first: want injected error, got %v", err)
	}
	if err := r.InTx(context.Background(), body); err != nil {
		t.Fatalf("second: %v", err)
	}
	if committed, failed := r.Counts(); committed != 1 || failed != 1 || ran != 2 {
		t.Fatalf("committed=%d failed=%d ran=%d", committed, failed, ran)
	}
}

func TestFaultyTxRunnerBodyErrorIsNotCounted(t *testing.T) {
	bodyErr := errors.New("insufficient payment")
	r := &FaultyTxRunner{FailCommits: 1, Err: errors.New("unused")}
	if err := r.InTx(context.Background(), func(dbctx.Context) error { return bodyErr }); !errors.Is(err, bodyErr) {
		t.Fatalf("want body error, got %v", err)
	}
	if _, failed := r.Counts(); failed != 0 {
		t.Fatalf("a failing body must not consume an injected failure")
	}
}
