package aggregates

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode standardizes aggregate failure semantics across domains.
type ErrorCode string

const (
	CodeValidation             ErrorCode = "validation"
	CodeNotFound               ErrorCode = "not_found"
	CodeConflict               ErrorCode = "conflict"
	CodeForbidden              ErrorCode = "forbidden"
	CodeInvariantViolation     ErrorCode = "invariant_violation"
	CodePreconditionFailed     ErrorCode = "precondition_failed"
	CodeExternalServiceFailure ErrorCode = "external_service_failure"
	CodeTimeout                ErrorCode = "timeout"
	CodePartialUpdate          ErrorCode = "partial_update"
	CodeRetryable              ErrorCode = "retryable"
	CodeInternal               ErrorCode = "internal"
)

// Reason narrows a code to the business rule that failed. It is stable and safe to expose.
type Reason string

const (
	ReasonInvalidArgument Reason = "invalid_argument"

	ReasonNotEnrolled     Reason = "not_enrolled"
	ReasonCourseNotFound  Reason = "course_not_found"
	ReasonLectureNotFound Reason = "lecture_not_found"
	ReasonPaymentNotFound Reason = "payment_not_found"
	ReasonReviewNotFound  Reason = "review_not_found"

	ReasonAlreadyEnrolled  Reason = "already_enrolled"
	ReasonAlreadyRefunded  Reason = "already_refunded"
	ReasonAlreadyReviewed  Reason = "already_reviewed"
	ReasonConcurrentUpdate Reason = "concurrent_update"
	ReasonPaymentInFlight  Reason = "payment_in_progress"

	ReasonCourseUnavailable      Reason = "course_unavailable"
	ReasonInsufficientPayment    Reason = "insufficient_payment"
	ReasonUnderpaidAmount        Reason = "underpaid_amount"
	ReasonInvalidPaymentState    Reason = "invalid_payment_state"
	ReasonNotRefundable          Reason = "not_refundable"
	ReasonInvalidEnrollmentState Reason = "invalid_enrollment_state"

	ReasonProcessorDeclined Reason = "processor_declined"
	ReasonProcessorError    Reason = "processor_error"
	ReasonProcessorTimeout  Reason = "processor_timeout"

	ReasonAggregateRecomputeFailed Reason = "aggregate_recompute_failed"

	ReasonNotCourseOwner Reason = "not_course_owner"
)

// Error is the canonical aggregate error wrapper.
type Error struct {
	Code    ErrorCode
	Reason  Reason
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	code := string(e.Code)
	if e.Reason != "" {
		code = code + "/" + string(e.Reason)
	}
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s (%s)", op, msg, code)
	case op != "":
		return fmt.Sprintf("%s (%s)", op, code)
	case msg != "":
		return fmt.Sprintf("%s (%s)", msg, code)
	default:
		return code
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds an aggregate error with explicit code + operation.
func NewError(code ErrorCode, op, message string, cause error) error {
	return &Error{
		Code:    code,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

// NewReasonError builds an aggregate error tagged with a business reason.
func NewReasonError(code ErrorCode, reason Reason, op, message string, cause error) error {
	return &Error{
		Code:    code,
		Reason:  reason,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

// Wrap annotates an existing error with aggregate error semantics.
func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(code, op, err.Error(), err)
}

// IsCode checks whether err (or wrapped err) carries the given aggregate code.
func IsCode(err error, code ErrorCode) bool {
	var aggErr *Error
	if !errors.As(err, &aggErr) {
		return false
	}
	return aggErr.Code == code
}

// IsReason checks whether err (or wrapped err) carries the given reason.
func IsReason(err error, reason Reason) bool {
	return ReasonOf(err) == reason
}

// CodeOf extracts the aggregate error code when available.
func CodeOf(err error) ErrorCode {
	var aggErr *Error
	if !errors.As(err, &aggErr) {
		return ""
	}
	return aggErr.Code
}

// ReasonOf extracts the reason of the outermost aggregate error.
func ReasonOf(err error) Reason {
	var aggErr *Error
	if !errors.As(err, &aggErr) {
		return ""
	}
	return aggErr.Reason
}
