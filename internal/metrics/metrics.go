package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_submitted_total", Help: "Orders submitted to the broker"},
		[]string{"symbol", "type"},
	)
	BracketsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "brackets_total", Help: "Bracket placement outcomes"},
		[]string{"symbol", "outcome"},
	)
	KillSwitchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "kill_switch_total", Help: "Kill-switch flattens"},
		[]string{"symbol"},
	)
	ConnectAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "broker_connect_attempts_total", Help: "Broker connect attempts"},
		[]string{"result"},
	)
	ReconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "reconcile_total", Help: "Reconciliation runs"},
		[]string{"result"},
	)
	AuditErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "audit_errors_total", Help: "Failed audit writes"},
		[]string{"sink"},
	)
	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "driver_cycle_seconds", Help: "Driver cycle duration", Buckets: prometheus.DefBuckets},
	)
)

func init() {
	prometheus.MustRegister(OrdersTotal, BracketsTotal, KillSwitchTotal, ConnectAttempts, ReconcileTotal, AuditErrors, CycleDuration)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
