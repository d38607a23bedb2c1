package aggregates

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
)

// Sentinels joined into the errors aggregate bodies return; MapError turns them into codes.
var (
	ErrValidation = errors.New("aggregate validation")
	ErrInvariant  = errors.New("aggregate invariant violation")
	ErrConflict   = errors.New("aggregate conflict")
	ErrRetryable  = errors.New("aggregate retryable")
)

func tagged(kind error, msg string) error {
	return errors.Join(kind, errors.New(strings.TrimSpace(msg)))
}

func ValidationError(msg string) error { return tagged(ErrValidation, msg) }
func InvariantError(msg string) error  { return tagged(ErrInvariant, msg) }
func ConflictError(msg string) error   { return tagged(ErrConflict, msg) }
func RetryableError(msg string) error  { return tagged(ErrRetryable, msg) }

// sqlstates postgres reports for the failures aggregates care about.
var sqlstateCodes = map[string]domainagg.ErrorCode{
	"23505": domainagg.CodeConflict,           // unique_violation
	"23503": domainagg.CodePreconditionFailed, // foreign_key_violation
	"40001": domainagg.CodeRetryable,          // serialization_failure
	"40P01": domainagg.CodeRetryable,          // deadlock_detected
	"55P03": domainagg.CodeRetryable,          // lock_not_available
}

// MapError converts whatever came out of a transaction body into a *domainagg.Error.
// Errors that already carry a code pass through untouched.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var aggErr *domainagg.Error
	if errors.As(err, &aggErr) {
		return err
	}
	code := classify(err)
	if code == domainagg.CodeValidation {
		return domainagg.NewReasonError(code, domainagg.ReasonInvalidArgument, op, err.Error(), err)
	}
	return domainagg.Wrap(code, op, err)
}

func classify(err error) domainagg.ErrorCode {
	switch {
	case errors.Is(err, ErrValidation):
		return domainagg.CodeValidation
	case errors.Is(err, ErrInvariant):
		return domainagg.CodeInvariantViolation
	case errors.Is(err, ErrConflict), errors.Is(err, gorm.ErrDuplicatedKey):
		return domainagg.CodeConflict
	case errors.Is(err, ErrRetryable), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domainagg.CodeRetryable
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domainagg.CodeNotFound
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return domainagg.CodePreconditionFailed
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if code, ok := sqlstateCodes[strings.TrimSpace(pgErr.Code)]; ok {
			return code
		}
	}

	// sqlite and wrapped driver errors only expose text.
	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "duplicate key", "unique constraint failed", "already exists"):
		return domainagg.CodeConflict
	case containsAny(msg, "deadlock", "serialization", "timeout", "database is locked", "temporar"):
		return domainagg.CodeRetryable
	}
	return domainagg.CodeInternal
}

// isUniqueViolation reports a duplicate-key failure from either supported driver.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.TrimSpace(pgErr.Code) == "23505"
	}
	return containsAny(strings.ToLower(err.Error()), "duplicate key", "unique constraint failed")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
