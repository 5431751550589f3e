package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	RotationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tokengate_rotations_total", Help: "Access token rotations by provider and outcome"},
		[]string{"provider", "outcome"},
	)
	SecretRotationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tokengate_secret_rotations_total", Help: "Client secret rotations by provider and outcome"},
		[]string{"provider", "outcome"},
	)
	JobsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "tokengate_jobs_created_total", Help: "Order update jobs accepted"})
	OrdersSucceeded = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "tokengate_orders_succeeded_total", Help: "Order updates dispatched successfully"})
	OrdersFailed = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "tokengate_orders_failed_total", Help: "Order updates that failed"})
	DispatchInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "tokengate_dispatch_inflight", Help: "Order updates currently in flight"})
)

// Handler exposes the /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			RotationsTotal,
			SecretRotationsTotal,
			JobsCreated,
			OrdersSucceeded,
			OrdersFailed,
			DispatchInFlight,
		)
	})
	return promhttp.Handler()
}
