package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDHeader carries the caller supplied request id
const RequestIDHeader = "X-Request-ID"

const ginLoggerKey = "logger"

// GinMiddleware tags every request with an id and writes one access log entry
// when it completes. Handlers further down the chain may replace the request
// logger (the operator middleware adds branch, station and user), and the
// access entry is written with whichever logger is current at that point.
// Health probes are logged at debug.
func GinMiddleware(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		began := time.Now()

		requestID := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		route := c.Request.Method + " " + c.Request.URL.Path
		ctx, zl := WithRequestID(c.Request.Context(), base.With(zap.String("route", route)), requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(ginLoggerKey, zl)

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.Duration("latency", time.Since(began)),
			zap.Int("bytes", c.Writer.Size()),
			zap.String("client_ip", c.ClientIP()),
		}
		if errs := c.Errors.Errors(); len(errs) > 0 {
			fields = append(fields, zap.Strings("errors", errs))
		}

		access := GetGinLogger(c)
		switch {
		case status >= http.StatusInternalServerError:
			access.Error("request served", fields...)
		case status >= http.StatusBadRequest:
			access.Warn("request served", fields...)
		case strings.HasSuffix(c.Request.URL.Path, "/health"):
			access.Debug("request served", fields...)
		default:
			access.Info("request served", fields...)
		}
	}
}

// Recovery answers a panicking request with a 500 error body
func Recovery(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			requestID := GetRequestID(c.Request.Context())
			base.Error("Panic recovered",
				zap.String("request_id", requestID),
				zap.String("route", c.Request.Method+" "+c.Request.URL.Path),
				zap.Any("panic", recovered),
				zap.Stack("stacktrace"),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":       "ERR_INTERNAL",
					"message":    "An unexpected error occurred",
					"request_id": requestID,
				},
			})
		}()
		c.Next()
	}
}

// GetGinLogger returns the request logger, or a no-op logger outside
// GinMiddleware
func GetGinLogger(c *gin.Context) *zap.Logger {
	if v, ok := c.Get(ginLoggerKey); ok {
		if zl, ok := v.(*zap.Logger); ok {
			return zl
		}
	}
	return zap.NewNop()
}

// SetGinLogger replaces the request logger for the rest of the chain
func SetGinLogger(c *gin.Context, zl *zap.Logger) {
	c.Set(ginLoggerKey, zl)
}
