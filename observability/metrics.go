package observability

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	dscMetricsOnce sync.Once
	dscRegistry    *DSCMetrics

	oracleMetricsOnce sync.Once
	oracleRegistry    *OracleMetrics
)

// ModuleMetrics returns the lazily-initialised registry used to record API
// handler activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "dsc",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Total API requests segmented by module, method and outcome.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "dsc",
				Subsystem: "api",
				Name:      "errors_total",
				Help:      "Total API errors segmented by module, method, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "dsc",
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "dsc",
				Subsystem: "api",
				Name:      "throttles_total",
				Help:      "Count of requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a request. The status code should be the
// HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit" so dashboards
// and alerts remain consistent.
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// DSCMetrics captures engine operation outcomes and liquidation activity.
type DSCMetrics struct {
	operations   *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	failures     *prometheus.CounterVec
	liquidations *prometheus.CounterVec
	seized       *prometheus.CounterVec
	healthFactor *prometheus.HistogramVec
}

// DSC returns the singleton metrics registry for the stablecoin engine.
func DSC() *DSCMetrics {
	dscMetricsOnce.Do(func() {
		dscRegistry = &DSCMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "dsc",
				Subsystem: "engine",
				Name:      "operations_total",
				Help:      "Count of engine operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "dsc",
				Subsystem: "engine",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for engine operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "dsc",
				Subsystem: "engine",
				Name:      "failures_total",
				Help:      "Count of reverted engine operations segmented by operation and reason.",
			}, []string{"operation", "reason"}),
			liquidations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "dsc",
				Subsystem: "engine",
				Name:      "liquidations_total",
				Help:      "Count of completed liquidations segmented by collateral token.",
			}, []string{"token"}),
			seized: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "dsc",
				Subsystem: "engine",
				Name:      "collateral_seized_total",
				Help:      "Whole collateral units seized by liquidators, including bonus.",
			}, []string{"token"}),
			healthFactor: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "dsc",
				Subsystem: "engine",
				Name:      "post_operation_health_factor",
				Help:      "Health factor of the acting account after a successful debt-bearing operation.",
				Buckets:   []float64{0.5, 0.9, 1, 1.1, 1.25, 1.5, 2, 3, 5, 10},
			}, []string{"operation"}),
		}
		prometheus.MustRegister(
			dscRegistry.operations,
			dscRegistry.latency,
			dscRegistry.failures,
			dscRegistry.liquidations,
			dscRegistry.seized,
			dscRegistry.healthFactor,
		)
	})
	return dscRegistry
}

// Observe records the execution metrics for an engine operation. Reason is
// empty on success.
func (m *DSCMetrics) Observe(operation string, duration time.Duration, reason string) {
	if m == nil {
		return
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	outcome := "success"
	if reason != "" {
		outcome = "error"
		m.failures.WithLabelValues(op, reason).Inc()
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordLiquidation tracks a completed liquidation and the collateral it moved.
func (m *DSCMetrics) RecordLiquidation(token string, seized *uint256.Int) {
	if m == nil {
		return
	}
	label := labelToken(token)
	m.liquidations.WithLabelValues(label).Inc()
	m.seized.WithLabelValues(label).Add(scaledToFloat(seized))
}

// RecordHealthFactor samples an account's health factor. Values at the
// no-debt maximum are skipped.
func (m *DSCMetrics) RecordHealthFactor(operation string, hf *uint256.Int) {
	if m == nil || hf == nil {
		return
	}
	value := scaledToFloat(hf)
	if math.IsInf(value, 0) || value > 1e12 {
		return
	}
	m.healthFactor.WithLabelValues(operation).Observe(value)
}

// OracleMetrics bundles collectors for the price aggregation loop.
type OracleMetrics struct {
	sourceErrors *prometheus.CounterVec
	updates      *prometheus.CounterVec
	price        *prometheus.GaugeVec
	age          *prometheus.GaugeVec
}

// Oracle returns the metrics registry for the oracle manager.
func Oracle() *OracleMetrics {
	oracleMetricsOnce.Do(func() {
		oracleRegistry = &OracleMetrics{
			sourceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "dsc",
				Subsystem: "oracle",
				Name:      "source_errors_total",
				Help:      "Count of failed price fetches segmented by source.",
			}, []string{"source"}),
			updates: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "dsc",
				Subsystem: "oracle",
				Name:      "updates_total",
				Help:      "Count of aggregated price updates published per feed.",
			}, []string{"feed"}),
			price: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "dsc",
				Subsystem: "oracle",
				Name:      "price_usd",
				Help:      "Latest aggregated USD price per feed.",
			}, []string{"feed"}),
			age: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "dsc",
				Subsystem: "oracle",
				Name:      "price_age_seconds",
				Help:      "Age of the newest sample used for the latest aggregation.",
			}, []string{"feed"}),
		}
		prometheus.MustRegister(
			oracleRegistry.sourceErrors,
			oracleRegistry.updates,
			oracleRegistry.price,
			oracleRegistry.age,
		)
	})
	return oracleRegistry
}

func (m *OracleMetrics) RecordSourceError(source string) {
	if m == nil {
		return
	}
	if source == "" {
		source = "unknown"
	}
	m.sourceErrors.WithLabelValues(source).Inc()
}

// RecordUpdate publishes the latest aggregated price and its freshness.
func (m *OracleMetrics) RecordUpdate(feed string, price float64, age time.Duration) {
	if m == nil {
		return
	}
	label := labelToken(feed)
	m.updates.WithLabelValues(label).Inc()
	m.price.WithLabelValues(label).Set(price)
	if age < 0 {
		age = 0
	}
	m.age.WithLabelValues(label).Set(age.Seconds())
}

func labelToken(token string) string {
	normalized := strings.TrimSpace(token)
	if normalized == "" {
		return "unknown"
	}
	return strings.ToLower(normalized)
}

// scaledToFloat converts a 1e18 fixed-point value into a float for metrics.
func scaledToFloat(value *uint256.Int) float64 {
	if value == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(value.ToBig()), big.NewFloat(1e18)).Float64()
	return f
}
