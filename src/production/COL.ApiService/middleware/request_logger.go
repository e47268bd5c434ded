package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	logger "gitlab.com/apiario/colmeia.server/src/production/COL.Logger"
)

const (
	// RequestIDHeader carries the request ID in both directions
	RequestIDHeader = "X-Request-ID"

	requestIDKey = "request_id"
)

// RequestLogger writes one structured entry per request and tags it with a request ID.
// An incoming X-Request-ID is reused, otherwise a new one is generated.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	httpLog := log.WithComponent("http")

	return func(ctx *gin.Context) {
		start := time.Now()

		requestID := ctx.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx.Set(requestIDKey, requestID)
		ctx.Header(RequestIDHeader, requestID)

		ctx.Next()

		status := ctx.Writer.Status()
		var event *zerolog.Event
		switch {
		case status >= 500:
			event = httpLog.Logger.Error()
		case status >= 400:
			event = httpLog.Logger.Warn()
		default:
			event = httpLog.Logger.Info()
		}

		event.
			Str("request_id", requestID).
			Str("method", ctx.Request.Method).
			Str("path", ctx.Request.URL.Path).
			Int("status", status).
			Int("size", ctx.Writer.Size()).
			Dur("latency", time.Since(start)).
			Str("client_ip", ctx.ClientIP()).
			Msg("Request completed")
	}
}

// GetRequestIDFromGinContext returns the request ID set by RequestLogger
func GetRequestIDFromGinContext(ctx *gin.Context) (string, bool) {
	requestID, exists := ctx.Get(requestIDKey)
	if !exists {
		return "", false
	}
	id, ok := requestID.(string)
	return id, ok
}
