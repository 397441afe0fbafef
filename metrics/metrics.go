// Package metrics exposes Prometheus metrics for the billing service.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "billing_"

	resultSuccess = "success"
	resultError   = "error"
	resultPending = "pending"
)

var (
	registerOnce sync.Once

	refreshTotal   *prometheus.CounterVec
	refreshLatency *prometheus.HistogramVec

	positionDollars  *prometheus.GaugeVec
	projectedDollars *prometheus.GaugeVec
	cycleDaysElapsed *prometheus.GaugeVec
	lastRefreshUnix  *prometheus.GaugeVec
)

// Init registers all metrics. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		refreshTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "refresh_total",
				Help: "Total balance refreshes by site and result",
			},
			[]string{"site", "result"},
		)
		refreshLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "refresh_latency_seconds",
				Help:    "Refresh latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"site", "result"},
		)

		positionDollars = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "position_dollars",
				Help: "Current cycle-to-date cost in dollars",
			},
			[]string{"site"},
		)
		projectedDollars = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "projected_dollars",
				Help: "Projected end-of-cycle total in dollars",
			},
			[]string{"site"},
		)
		cycleDaysElapsed = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "cycle_days_elapsed",
				Help: "Days elapsed in the current billing cycle",
			},
			[]string{"site"},
		)
		lastRefreshUnix = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "last_refresh_timestamp_seconds",
				Help: "Unix time of the last successful refresh",
			},
			[]string{"site"},
		)

		prometheus.MustRegister(
			refreshTotal,
			refreshLatency,
			positionDollars,
			projectedDollars,
			cycleDaysElapsed,
			lastRefreshUnix,
		)
	})
}

// ObserveRefresh records one refresh attempt for a site.
func ObserveRefresh(site, result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if refreshTotal != nil {
		refreshTotal.WithLabelValues(site, result).Inc()
	}
	if refreshLatency != nil {
		refreshLatency.WithLabelValues(site, result).Observe(duration.Seconds())
	}
}

// SetPosition publishes the computed position gauges for a site.
func SetPosition(site string, grandTotal, projected float64, daysElapsed int) {
	if positionDollars != nil {
		positionDollars.WithLabelValues(site).Set(grandTotal)
	}
	if projectedDollars != nil {
		projectedDollars.WithLabelValues(site).Set(projected)
	}
	if cycleDaysElapsed != nil {
		cycleDaysElapsed.WithLabelValues(site).Set(float64(daysElapsed))
	}
	if lastRefreshUnix != nil {
		lastRefreshUnix.WithLabelValues(site).Set(float64(time.Now().Unix()))
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
	ResultPending = resultPending
)
