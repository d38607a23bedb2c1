package aggregates

import (
	"errors"
	"fmt"
	"testing"
)

func TestReasonOfUnwrapsWrappedErrors(t *testing.T) {
	base := NewReasonError(CodeConflict, ReasonAlreadyEnrolled, "Learning.Enroll", "already enrolled", nil)
	wrapped := fmt.Errorf("service: %w", base)

	if got := CodeOf(wrapped); got != CodeConflict {
		t.Fatalf("code: want=%s got=%s", CodeConflict, got)
	}
	if got := ReasonOf(wrapped); got != ReasonAlreadyEnrolled {
		t.Fatalf("reason: want=%s got=%s", ReasonAlreadyEnrolled, got)
	}
	if !IsReason(wrapped, ReasonAlreadyEnrolled) {
		t.Fatalf("IsReason: expected true")
	}
}

func TestErrorStringIncludesReason(t *testing.T) {
	err := NewReasonError(CodeNotFound, ReasonNotEnrolled, "op", "no enrollment", nil)
	if got := err.Error(); got != "op: no enrollment (not_found/not_enrolled)" {
		t.Fatalf("Error(): got=%q", got)
	}
	plain := NewError(CodeInternal, "", "", nil)
	if got := plain.Error(); got != "internal" {
		t.Fatalf("Error(): got=%q", got)
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(CodeRetryable, "op", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable")
	}
	if Wrap(CodeInternal, "op", nil) != nil {
		t.Fatalf("Wrap(nil) should be nil")
	}
	if ReasonOf(errors.New("plain")) != "" {
		t.Fatalf("plain errors carry no reason")
	}
}

func TestContractsNeverShareAWrite(t *testing.T) {
	owners := map[string]string{}
	for _, c := range Contracts() {
		claims := append([]string{c.Owns + ".*"}, c.Columns...)
		for _, claim := range claims {
			if prev, ok := owners[claim]; ok {
				t.Fatalf("%s and %s both write %s", prev, c.Name, claim)
			}
			owners[claim] = c.Name
		}
	}
	if !RatingAggregatorContract.Writes("course", "rating") || EnrollmentLedgerContract.Writes("course", "rating") {
		t.Fatalf("course.rating must belong to the rating aggregator only")
	}
	if !PaymentRecordContract.Writes("payment", "status") {
		t.Fatalf("payment rows belong to the payment record")
	}
}
