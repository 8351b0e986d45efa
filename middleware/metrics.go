package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	ordersSettledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_settled_total",
			Help: "Total number of settlement transactions by result",
		},
		[]string{"result"},
	)

	paypalRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paypal_requests_total",
			Help: "Total number of PayPal API calls by operation and result",
		},
		[]string{"operation", "result"},
	)

	couponValidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coupon_validations_total",
			Help: "Total number of coupon validations by outcome",
		},
		[]string{"outcome"},
	)

	eventsConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_events_consumed_total",
			Help: "Total number of Kafka events consumed",
		},
		[]string{"event_type", "status"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(ordersSettledTotal)
	prometheus.MustRegister(paypalRequestsTotal)
	prometheus.MustRegister(couponValidationsTotal)
	prometheus.MustRegister(eventsConsumedTotal)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

func RecordOrderSettled(result string) {
	ordersSettledTotal.WithLabelValues(result).Inc()
}

func RecordPayPalRequest(operation, result string) {
	paypalRequestsTotal.WithLabelValues(operation, result).Inc()
}

func RecordCouponValidation(outcome string) {
	couponValidationsTotal.WithLabelValues(outcome).Inc()
}

func RecordEventConsumed(eventType, status string) {
	eventsConsumedTotal.WithLabelValues(eventType, status).Inc()
}
