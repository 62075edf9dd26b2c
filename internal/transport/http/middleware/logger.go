package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appLogger "github.com/flavien-hugs/auth-microservice/internal/infra/logger"
)

// Logger emits one access log line per request. Client IPs are masked and
// the principal id is included once authentication has resolved it.
func Logger(log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		reqCtx := GetRequestContext(c)
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		fields := []zap.Field{
			zap.String("trace_id", reqCtx.TraceID),
			zap.String("request_id", reqCtx.RequestID),
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Int("bytes", c.Writer.Size()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", appLogger.MaskIP(reqCtx.IP)),
		}
		if reqCtx.PrincipalID != "" {
			fields = append(fields, zap.String("principal_id", reqCtx.PrincipalID))
		}
		if reqCtx.UserAgent != "" {
			fields = append(fields, zap.String("user_agent", reqCtx.UserAgent))
		}

		if len(c.Errors) > 0 {
			log.Error("http request", append(fields, zap.Strings("errors", c.Errors.Errors()))...)
			return
		}

		log.Info("http request", fields...)
	}
}
