// Package metrics holds the Prometheus collectors for twitapp.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics contains the custom collectors. A nil *Metrics records nothing.
type Metrics struct {
	HTTPRequests     *prometheus.CounterVec
	LoginAttempts    *prometheus.CounterVec
	Mutations        *prometheus.CounterVec
	VersionConflicts *prometheus.CounterVec
}

// NewMetrics creates the custom collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "twitapp_http_requests_total",
				Help: "Total number of HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		LoginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "twitapp_login_attempts_total",
				Help: "Total number of login attempts by result",
			},
			[]string{"result"},
		),
		Mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "twitapp_tweet_mutations_total",
				Help: "Total number of tweet aggregate mutations by operation and result",
			},
			[]string{"operation", "result"},
		),
		VersionConflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "twitapp_version_conflicts_total",
				Help: "Total number of optimistic concurrency conflicts by operation",
			},
			[]string{"operation"},
		),
	}

	reg.MustRegister(m.HTTPRequests)
	reg.MustRegister(m.LoginAttempts)
	reg.MustRegister(m.Mutations)
	reg.MustRegister(m.VersionConflicts)

	return m
}

// NewRegistry returns a registry carrying the Go and process collectors plus
// the custom metrics.
func NewRegistry() (*prometheus.Registry, *Metrics) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return registry, NewMetrics(registry)
}

// RecordRequest counts one finished HTTP request.
func (m *Metrics) RecordRequest(method, route string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// RecordLogin counts a login attempt; result is "success" or "failure".
func (m *Metrics) RecordLogin(result string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(result).Inc()
}

// RecordMutation counts a finished aggregate mutation.
func (m *Metrics) RecordMutation(operation, result string) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(operation, result).Inc()
}

// RecordConflict counts a version conflict that forced a retry.
func (m *Metrics) RecordConflict(operation string) {
	if m == nil {
		return
	}
	m.VersionConflicts.WithLabelValues(operation).Inc()
}
