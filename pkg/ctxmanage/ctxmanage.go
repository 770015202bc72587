package ctxmanage

import (
	"context"

	"github.com/gin-gonic/gin"
)

type key string

// TraceIDKey is the context key under which the per-request trace id is stored.
const TraceIDKey key = "trace_id"

// WithTraceID returns a context carrying the given trace id.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID returns the trace id stored in ctx, or "unknown" when absent.
func GetTraceID(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok {
		return "unknown"
	}
	return traceID
}

// GetTraceIdOfRequest fetches the trace id set by the logging middleware for
// the current gin request.
func GetTraceIdOfRequest(c *gin.Context) string {
	return GetTraceID(c.Request.Context())
}
