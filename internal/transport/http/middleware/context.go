package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/flavien-hugs/auth-microservice/internal/infra/logger"
)

const (
	// TraceIDHeader carries the correlation id echoed in error payloads.
	TraceIDHeader = "X-Trace-ID"
	// RequestIDHeader carries the per-request id used in access logs.
	RequestIDHeader = "X-Request-ID"
	// TraceIDKey is the gin context key for the trace id.
	TraceIDKey = "trace_id"
	// PrincipalIDKey is the gin context key for the authenticated principal id.
	PrincipalIDKey = "principal_id"

	requestContextKey = "request_context"
)

// RequestContext holds the request-scoped identity and client metadata the
// logging and error layers report.
type RequestContext struct {
	TraceID     string
	RequestID   string
	PrincipalID string
	IP          string
	UserAgent   string
}

// EnrichContext assigns trace and request identifiers, echoes them back in
// the response headers, and seeds the RequestContext every later middleware
// and handler reads. Incoming identifiers are honored so callers can stitch
// a call chain across services.
func EnrichContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)
		c.Header(RequestIDHeader, requestID)

		c.Set(requestContextKey, &RequestContext{
			TraceID:   traceID,
			RequestID: requestID,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})

		ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey{}, requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// GetTraceID returns the trace id assigned to this request, or "" outside
// the middleware chain.
func GetTraceID(c *gin.Context) string {
	if traceID, exists := c.Get(TraceIDKey); exists {
		if id, ok := traceID.(string); ok {
			return id
		}
	}
	return ""
}

// GetRequestContext returns the request-scoped metadata. A zero value comes
// back when EnrichContext has not run, so callers never nil-check.
func GetRequestContext(c *gin.Context) *RequestContext {
	if ctx, exists := c.Get(requestContextKey); exists {
		if reqCtx, ok := ctx.(*RequestContext); ok {
			return reqCtx
		}
	}
	return &RequestContext{}
}
