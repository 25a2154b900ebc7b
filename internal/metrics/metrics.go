// Package metrics holds the bot's prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is separate from the default one so tests can gather it directly.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	SessionsActive = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tsgsbot",
		Name:      "sessions_active",
		Help:      "Live workflow sessions per store.",
	}, []string{"store"})

	ScheduledEvents = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "tsgsbot",
		Name:      "scheduled_events",
		Help:      "Deferred actions waiting for their deadline.",
	})

	Finalizations = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tsgsbot",
		Name:      "finalizations_total",
		Help:      "Finalization attempts by event kind and outcome.",
	}, []string{"kind", "outcome"})

	Interactions = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tsgsbot",
		Name:      "interactions_total",
		Help:      "Handled interactions by kind and outcome.",
	}, []string{"kind", "outcome"})

	RoleToggles = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tsgsbot",
		Name:      "role_toggles_total",
		Help:      "Role panel button clicks by action.",
	}, []string{"action"})
)

func init() {
	Registry.MustRegister(collectors.NewGoCollector())
}

// Handler serves the registry in the prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
