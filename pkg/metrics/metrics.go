// Package metrics holds the prometheus collectors of the workflow service.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lppm_transitions_total",
			Help: "Workflow transitions by action and outcome",
		},
		[]string{"action", "outcome"},
	)
	materialized = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lppm_notifications_materialized_total",
			Help: "Notifications inserted by the materializer, by rule",
		},
		[]string{"rule"},
	)
	materializeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lppm_materialize_errors_total",
			Help: "Materializer rule failures",
		},
		[]string{"rule"},
	)
)

func init() {
	prometheus.MustRegister(transitions, materialized, materializeErrors)
}

// Transition counts one transition attempt. outcome is "ok" or an error class.
func Transition(action, outcome string) {
	transitions.WithLabelValues(action, outcome).Inc()
}

// Materialized adds n inserted notifications for rule.
func Materialized(rule string, n int64) {
	if n > 0 {
		materialized.WithLabelValues(rule).Add(float64(n))
	}
}

func MaterializeError(rule string) {
	materializeErrors.WithLabelValues(rule).Inc()
}

// Register mounts /metrics on r.
func Register(r gin.IRoutes) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
