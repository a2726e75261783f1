// Package metrics exposes Prometheus counters for wagers, payouts, HTTP
// traffic and notification delivery.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors on a private registry. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	registry *prometheus.Registry

	Wagers         *prometheus.CounterVec
	Staked         *prometheus.CounterVec
	Paid           *prometheus.CounterVec
	Refunds        *prometheus.CounterVec
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
	NotifyFailures *prometheus.CounterVec
	NotifyDropped  prometheus.Counter
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Wagers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arcade_wagers_total",
				Help: "Settled wagers by game and result",
			},
			[]string{"game", "result"},
		),
		Staked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arcade_staked_total",
				Help: "Currency debited as stakes",
			},
			[]string{"game"},
		),
		Paid: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arcade_paid_total",
				Help: "Currency credited as payouts",
			},
			[]string{"game"},
		),
		Refunds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arcade_refunds_total",
				Help: "Stakes refunded after a failed settlement",
			},
			[]string{"game"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arcade_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arcade_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		NotifyFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arcade_notify_failures_total",
				Help: "Notifications that failed to deliver",
			},
			[]string{"notifier"},
		),
		NotifyDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "arcade_notify_dropped_total",
				Help: "Notifications dropped because the queue was full",
			},
		),
	}

	m.registry.MustRegister(
		m.Wagers, m.Staked, m.Paid, m.Refunds,
		m.HTTPRequests, m.HTTPDuration,
		m.NotifyFailures, m.NotifyDropped,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordWager counts a settled wager
func (m *Metrics) RecordWager(game string, bet, payout int64) {
	if m == nil {
		return
	}
	result := "loss"
	if payout > bet {
		result = "win"
	}
	m.Wagers.WithLabelValues(game, result).Inc()
	m.Staked.WithLabelValues(game).Add(float64(bet))
	if payout > 0 {
		m.Paid.WithLabelValues(game).Add(float64(payout))
	}
}

// RecordRefund counts a stake returned after a failure
func (m *Metrics) RecordRefund(game string) {
	if m == nil {
		return
	}
	m.Refunds.WithLabelValues(game).Inc()
}

// RecordRequest counts one HTTP request
func (m *Metrics) RecordRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordNotifyFailure counts a failed delivery
func (m *Metrics) RecordNotifyFailure(notifier string) {
	if m == nil {
		return
	}
	m.NotifyFailures.WithLabelValues(notifier).Inc()
}

// RecordNotifyDropped counts a task dropped on a full queue
func (m *Metrics) RecordNotifyDropped() {
	if m == nil {
		return
	}
	m.NotifyDropped.Inc()
}
