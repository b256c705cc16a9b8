package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	router := NewRouter(zap.New(core))
	router.GET("/api/v1/runs/:run_id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	router.GET("/boom", func(c *gin.Context) { panic("boom") })
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	doRequest(router, http.MethodGet, "/api/v1/runs/abc")
	w := doRequest(router, http.MethodGet, "/boom")
	assert.Equal(t, http.StatusInternalServerError, w.Code, "panics are recovered")
	doRequest(router, http.MethodGet, "/health")

	entries := logs.FilterMessage("HTTP request").All()
	require.Len(t, entries, 3)

	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "/api/v1/runs/:run_id", entries[0].ContextMap()["path"])
	assert.EqualValues(t, http.StatusNotFound, entries[0].ContextMap()["status"])

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, zapcore.DebugLevel, entries[2].Level)
}
