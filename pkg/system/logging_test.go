package system

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestGetReqLoggerFallbackWhenContextNil(t *testing.T) {
	fallback := zap.NewNop().Sugar()
	require.Same(t, fallback, GetReqLogger(nil, fallback))
}

func TestSetAndGetReqLogger(t *testing.T) {
	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	fallback := zap.NewNop().Sugar()
	stored := zap.NewNop().Sugar()

	SetReqLogger(ctx, stored)
	require.Same(t, stored, GetReqLogger(ctx, fallback))
}

func TestGetReqLoggerIgnoresInvalidTypes(t *testing.T) {
	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	fallback := zap.NewNop().Sugar()
	ctx.Set(ReqLoggerKey, "not-a-logger")
	require.Same(t, fallback, GetReqLogger(ctx, fallback))
}

func TestEnrichReqLoggerAddsFields(t *testing.T) {
	core, recorded := observer.New(zap.DebugLevel)
	logger := zap.New(core).Sugar()

	enriched := EnrichReqLogger(logger, "req-123", "u-1")
	enriched.Info("hello")

	entries := recorded.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-123", fields["request_id"])
	assert.Equal(t, "u-1", fields["actor"])
}

func TestEnrichReqLoggerSkipsEmptyFields(t *testing.T) {
	core, recorded := observer.New(zap.DebugLevel)
	logger := zap.New(core).Sugar()

	EnrichReqLogger(logger, "", "").Info("hello")

	entries := recorded.All()
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].ContextMap())
}
