package aggregates

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

var tracer = otel.Tracer("coursemarket/aggregates")

// BaseDeps is shared by every aggregate. Zero fields are filled from DB.
type BaseDeps struct {
	DB       *gorm.DB
	Log      *logger.Logger
	Runner   TxRunner
	Hooks    Hooks
	CASGuard CASGuard
	Clock    func() time.Time
}

func (d BaseDeps) withDefaults() BaseDeps {
	if d.Runner == nil {
		d.Runner = NewGormTxRunner(d.DB)
	}
	if d.Hooks == nil {
		d.Hooks = noopHooks{}
	}
	if d.CASGuard.db == nil {
		d.CASGuard = NewCASGuard(d.DB)
	}
	if d.Log == nil {
		d.Log = logger.NewNop()
	}
	return d
}

// now is the aggregate clock in UTC; enrollment expiry and payment timestamps read it.
func (d BaseDeps) now() time.Time {
	if d.Clock != nil {
		return d.Clock().UTC()
	}
	return time.Now().UTC()
}

// executeWrite runs fn in one transaction and reports the outcome. Whatever fn returns
// leaves as a *domainagg.Error; a nil return means the transaction committed.
func executeWrite(ctx context.Context, deps BaseDeps, op string, fn func(dbc dbctx.Context) error) error {
	deps = deps.withDefaults()
	if op = strings.TrimSpace(op); op == "" {
		op = "aggregate.write"
	}
	if ctx == nil {
		ctx = context.Background()
	}
	started := time.Now()
	ctx, span := tracer.Start(ctx, op)
	defer span.End()

	err := MapError(op, deps.Runner.InTx(ctx, fn))
	status := aggregateErrorStatus(err)
	if err != nil {
		switch domainagg.CodeOf(err) {
		case domainagg.CodeConflict:
			deps.Hooks.IncConflict(op)
		case domainagg.CodeRetryable:
			deps.Hooks.IncRetry(op)
		}
		span.SetStatus(codes.Error, status)
		span.SetAttributes(
			attribute.String("aggregate.error_code", status),
			attribute.String("aggregate.error_reason", string(domainagg.ReasonOf(err))),
		)
	}
	deps.Hooks.ObserveOperation(op, status, time.Since(started))
	return err
}

// aggregateErrorStatus is the metrics label for an outcome: "success" or the error code.
func aggregateErrorStatus(err error) string {
	if err == nil {
		return "success"
	}
	if code := domainagg.CodeOf(MapError("aggregate.status", err)); code != "" {
		return string(code)
	}
	return "failure"
}
