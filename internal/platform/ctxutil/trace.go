package ctxutil

import "context"

type traceKey struct{}

// Trace correlates one inbound request across logs, spans and published events.
type Trace struct {
	TraceID   string
	RequestID string
}

func WithTrace(ctx context.Context, tr Trace) context.Context {
	return context.WithValue(ctx, traceKey{}, tr)
}

// TraceFrom returns the zero Trace for contexts that never passed the HTTP middleware
// (cron jobs, CLI commands).
func TraceFrom(ctx context.Context) Trace {
	if ctx == nil {
		return Trace{}
	}
	tr, _ := ctx.Value(traceKey{}).(Trace)
	return tr
}

func RequestID(ctx context.Context) string { return TraceFrom(ctx).RequestID }
