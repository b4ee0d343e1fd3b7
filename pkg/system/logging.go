package system

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ReqLoggerKey is the gin context key holding the request-scoped logger.
const ReqLoggerKey = "reqLogger"

// GetReqLogger returns the request-scoped sugared logger from the gin context
// if present, otherwise the given fallback.
func GetReqLogger(c *gin.Context, fallback *zap.SugaredLogger) *zap.SugaredLogger {
	if c == nil {
		return fallback
	}
	if v, ok := c.Get(ReqLoggerKey); ok {
		if l, ok2 := v.(*zap.SugaredLogger); ok2 {
			return l
		}
	}
	return fallback
}

// SetReqLogger stores a request-scoped logger in the gin context. The auth
// middleware calls this once per request after binding the actor.
func SetReqLogger(c *gin.Context, logger *zap.SugaredLogger) {
	if c == nil || logger == nil {
		return
	}
	c.Set(ReqLoggerKey, logger)
}

// EnrichReqLogger annotates a logger with the request correlation id and the
// acting principal, so every handler log line carries both.
func EnrichReqLogger(logger *zap.SugaredLogger, requestID, actorID string) *zap.SugaredLogger {
	if logger == nil {
		return nil
	}
	if requestID != "" {
		logger = logger.With("request_id", requestID)
	}
	if actorID != "" {
		logger = logger.With("actor", actorID)
	}
	return logger
}
