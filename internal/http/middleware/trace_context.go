package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/coursemarket-backend/internal/platform/ctxutil"
)

const (
	HeaderTraceID   = "X-Trace-Id"
	HeaderRequestID = "X-Request-Id"
)

// AttachTraceContext stamps every request with a request id and a trace id and echoes both
// back. Caller-supplied ids win; otherwise the otel span (when present) supplies the trace id.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		tr := ctxutil.Trace{
			RequestID: headerOr(c, HeaderRequestID, ""),
			TraceID:   headerOr(c, HeaderTraceID, spanTraceID(c)),
		}
		if tr.RequestID == "" {
			tr.RequestID = uuid.NewString()
		}
		if tr.TraceID == "" {
			tr.TraceID = tr.RequestID
		}
		c.Request = c.Request.WithContext(ctxutil.WithTrace(c.Request.Context(), tr))
		c.Header(HeaderTraceID, tr.TraceID)
		c.Header(HeaderRequestID, tr.RequestID)
		c.Next()
	}
}

func headerOr(c *gin.Context, name, fallback string) string {
	if v := strings.TrimSpace(c.GetHeader(name)); v != "" {
		return v
	}
	return fallback
}

func spanTraceID(c *gin.Context) string {
	sc := trace.SpanContextFromContext(c.Request.Context())
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
