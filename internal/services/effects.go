package services

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"

	dataagg "github.com/yungbote/coursemarket-backend/internal/data/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/observability"
	"github.com/yungbote/coursemarket-backend/internal/platform/ctxutil"
	"github.com/yungbote/coursemarket-backend/internal/platform/events"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
	"github.com/yungbote/coursemarket-backend/internal/platform/notify"
)

const tracerName = "coursemarket/services"

var tracer = otel.Tracer(tracerName)

const (
	publishTimeout = 3 * time.Second
	notifyTimeout  = 30 * time.Second
)

// Effects fans committed state changes out to the event bus and the mailer.
// Failures are logged and counted, never returned: the write already happened.
type Effects struct {
	Events   events.Publisher
	Notifier notify.Notifier
	Metrics  *observability.Metrics
	// Async sends from a detached goroutine so slow providers do not hold the request.
	Async bool
}

func (e Effects) withDefaults(log *logger.Logger) Effects {
	if e.Events == nil {
		e.Events = events.NewNoop(log)
	}
	if e.Notifier == nil {
		e.Notifier = notify.NewNoop(log)
	}
	return e
}

func (e Effects) publish(ctx context.Context, log *logger.Logger, evt events.Event) {
	if evt.RequestID == "" {
		evt.RequestID = ctxutil.RequestID(ctx)
	}
	run := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		err := e.Events.Publish(ctx, evt)
		e.Metrics.IncEventPublished(evt.Type, err == nil)
		if err != nil {
			log.Warn("event publish failed", "type", evt.Type, "event_id", evt.ID, "request_id", evt.RequestID, "error", err)
		}
	}
	e.dispatch(ctx, run)
}

func (e Effects) notify(ctx context.Context, log *logger.Logger, msg notify.Message) {
	if msg.To.Email == "" {
		return
	}
	run := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
		defer cancel()
		err := e.Notifier.Notify(ctx, msg)
		e.Metrics.IncNotification(msg.Kind, err == nil)
		if err != nil {
			log.Warn("notification failed", "kind", msg.Kind, "email", msg.To.Email, "error", err)
		}
	}
	e.dispatch(ctx, run)
}

func (e Effects) dispatch(ctx context.Context, run func(context.Context)) {
	detached := context.WithoutCancel(ctx)
	if e.Async {
		go run(detached)
		return
	}
	run(detached)
}

// recipientFromContext resolves the mail recipient from the authenticated caller.
func recipientFromContext(ctx context.Context) notify.Recipient {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil {
		return notify.Recipient{}
	}
	return notify.Recipient{Email: rd.Email, Name: rd.Name}
}

// storageError maps repository failures onto the aggregate error taxonomy so
// handlers never see driver text.
func storageError(op string, err error) error {
	return dataagg.MapError(op, err)
}
