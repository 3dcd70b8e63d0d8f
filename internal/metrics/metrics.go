package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latency of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	// webhook: accepted|invalid_signature|malformed|ignored
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Inbound payment webhooks by outcome",
		},
		[]string{"outcome"},
	)

	// 入账：credited|already_credited|unknown_payment|unknown_tariff|unknown_account|store_unavailable|error
	FulfillResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fulfill_results_total",
			Help: "Fulfillment attempts by trigger and result",
		},
		[]string{"trigger", "result"},
	)

	ReconcileRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_runs_total",
			Help: "Reconciliation ticks by outcome (completed|skipped|failed)",
		},
		[]string{"outcome"},
	)
	ReconcilePending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reconcile_pending_payments",
			Help: "Pending payments seen by the last reconciliation pass",
		},
	)
	GatewayTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_timeouts_total",
			Help: "Payment gateway queries that hit the timeout",
		},
	)

	OutboxSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_messages_total",
			Help: "Outbox relay results (sent|retry|failed)",
		},
		[]string{"result"},
	)

	initOnce sync.Once
)

// /metrics endpoint 使用的 handler
var Handler = promhttp.Handler

// Init 注册所有指标，可重复调用
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestsTotal,
			RequestLatency,
			WebhookEvents,
			FulfillResults,
			ReconcileRuns,
			ReconcilePending,
			GatewayTimeouts,
			OutboxSent,
		)
	})
}
