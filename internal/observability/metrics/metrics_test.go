package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("payment_type", "normal"),
		attribute.String("student_id", "456"),
		attribute.String("reason", "deadline_passed"),
	)
	require.Len(t, attrs, 2)
	keys := []attribute.Key{attrs[0].Key, attrs[1].Key}
	assert.Contains(t, keys, attribute.Key("payment_type"))
	assert.Contains(t, keys, attribute.Key("reason"))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordPaymentCommitted(ctx, "normal", "cash", 2, 1000)
	m.RecordPaymentRejected(ctx, "insufficient_balance")
	m.RecordReceiptRetry(ctx)
	m.RecordRameMarked(ctx, "manual")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{}, noop.NewMeterProvider())
	require.NoError(t, err)
	m.RecordPaymentCommitted(context.Background(), "global_discount", "bank_transfer", 2, 237500)
}

func TestGinMiddlewareRecordsRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reader := sdkmetric.NewManualReader()
	m, err := New(Config{}, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	require.NoError(t, err)

	router := gin.New()
	router.Use(GinMiddleware(m))
	router.GET("/api/payments/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/payments/42", nil))
	require.Equal(t, http.StatusNotFound, resp.Code)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var found bool
	for _, scope := range rm.ScopeMetrics {
		for _, md := range scope.Metrics {
			if md.Name != "feeledger_http_requests_total" {
				continue
			}
			sum, ok := md.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			require.Len(t, sum.DataPoints, 1)
			point := sum.DataPoints[0]
			assert.EqualValues(t, 1, point.Value)
			endpoint, _ := point.Attributes.Value("endpoint")
			assert.Equal(t, "GET /api/payments/:id", endpoint.AsString())
			status, _ := point.Attributes.Value("status_code")
			assert.Equal(t, "404", status.AsString())
			found = true
		}
	}
	assert.True(t, found)
}
