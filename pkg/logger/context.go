package logger

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Context key under which Middleware stores the request-scoped logger.
const loggerKey = "logger"

// RequestIDKey mirrors the header carrying the request ID.
const RequestIDKey = "X-Request-ID"

// FromContext returns the request-scoped logger set by Middleware. Requests
// that never passed through it (direct handler invocations in tests) fall
// back to the global logger tagged with whatever request ID is at hand.
func FromContext(c echo.Context) *zap.Logger {
	if l, ok := c.Get(loggerKey).(*zap.Logger); ok {
		return l
	}

	requestID, ok := c.Get(RequestIDKey).(string)
	if !ok || requestID == "" {
		requestID = c.Request().Header.Get(RequestIDKey)
	}
	if requestID == "" {
		requestID = "unknown"
	}

	return GetLogger().With(zap.String("request_id", requestID))
}
