package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsMiddleware_CountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(MetricsMiddleware())
	router.GET("/api/products/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/products/:id", "200"))

	req := httptest.NewRequest("GET", "/api/products/p-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/products/:id", "200"))
	if after-before != 1 {
		t.Errorf("Expected counter to increase by 1, got %v", after-before)
	}
}

func TestRecordOrderSettled(t *testing.T) {
	before := testutil.ToFloat64(ordersSettledTotal.WithLabelValues("committed"))
	RecordOrderSettled("committed")
	if got := testutil.ToFloat64(ordersSettledTotal.WithLabelValues("committed")); got-before != 1 {
		t.Errorf("Expected counter to increase by 1, got %v", got-before)
	}
}

func TestPrometheusHandler_ExposesCustomMetrics(t *testing.T) {
	RecordPayPalRequest("create_order", "success")

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/metrics", PrometheusHandler())

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if !strings.Contains(w.Body.String(), "paypal_requests_total") {
		t.Error("Expected paypal_requests_total in metrics output")
	}
}
