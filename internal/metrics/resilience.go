// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "reelfeed_circuit_breaker_state",
		Help: "Circuit breaker state by component (0=closed, 1=half-open, 2=open)",
	}, []string{"name"})

	circuitBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelfeed_circuit_breaker_trips_total",
		Help: "Circuit breaker trips by component and cause",
	}, []string{"name", "cause"})
)

// SetCircuitBreakerState publishes the current breaker state.
func SetCircuitBreakerState(name, state string) {
	var v float64
	switch state {
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	circuitBreakerState.WithLabelValues(name).Set(v)
}

// RecordCircuitBreakerTrip records a breaker opening.
func RecordCircuitBreakerTrip(name, cause string) {
	circuitBreakerTrips.WithLabelValues(name, cause).Inc()
}
