package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransactionsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_transactions_created_total",
		Help: "Total number of purchase and sales orders created",
	}, []string{"kind"})

	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_transitions_total",
		Help: "Total number of committed transaction transitions",
	}, []string{"kind", "status"})

	TransitionFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_transition_failures_total",
		Help: "Total number of rejected transition or creation attempts",
	}, []string{"kind", "reason"})

	StockUnitsMovedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_stock_units_moved_total",
		Help: "Total stock units added or removed",
	}, []string{"direction"})

	LowStockAlertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_low_stock_alerts_total",
		Help: "Total number of low stock alerts raised",
	})

	StorageOperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inventory_storage_operation_seconds",
		Help:    "Latency of storage operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	StorageBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inventory_storage_breaker_state",
		Help: "Storage circuit breaker state (0 closed, 1 half-open, 2 open)",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
