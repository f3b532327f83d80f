package tracing

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func TestGinMiddlewarePropagatesTraceParent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())

	var traceID string
	r.GET("/health", func(c *gin.Context) {
		traceID = trace.SpanContextFromContext(c.Request.Context()).TraceID().String()
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", traceID)
}

func TestSafeAttributesAndError(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/api/payments/:id"),
		attribute.String("student.name", "x"),
	)
	assert.Len(t, attrs, 1)

	err := SafeError(errors.New("insert failed\nINSERT INTO payments ..."))
	assert.Equal(t, "insert failed", err.Error())
	assert.Nil(t, SafeError(nil))
	assert.LessOrEqual(t, len(SafeError(errors.New(strings.Repeat("x", 500))).Error()), 200)
}
