package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements the Collector interface using Prometheus metrics.
type PrometheusCollector struct {
	// Connection metrics
	connectionsTotal  prometheus.Counter
	connectionsActive prometheus.Gauge

	// Authentication metrics
	authAttemptsTotal *prometheus.CounterVec

	// Admission metrics
	admissionChecksTotal      *prometheus.CounterVec
	connectionsRejectedTotal  *prometheus.CounterVec

	// Command metrics
	commandsTotal *prometheus.CounterVec
}

// NewPrometheusCollector creates a new PrometheusCollector with all metrics registered.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "connlimitd_connections_total",
			Help: "Total number of connections opened.",
		}),
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "connlimitd_connections_active",
			Help: "Number of currently active connections.",
		}),

		authAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "connlimitd_auth_attempts_total",
			Help: "Total number of authentication attempts.",
		}, []string{"result"}),

		admissionChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "connlimitd_admission_checks_total",
			Help: "Total number of admission checks by outcome.",
		}, []string{"outcome"}),
		connectionsRejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "connlimitd_connections_rejected_total",
			Help: "Total number of connections rejected over quota.",
		}, []string{"principal"}),

		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "connlimitd_commands_total",
			Help: "Total number of protocol commands processed.",
		}, []string{"command"}),
	}

	// Register all metrics
	reg.MustRegister(
		c.connectionsTotal,
		c.connectionsActive,
		c.authAttemptsTotal,
		c.admissionChecksTotal,
		c.connectionsRejectedTotal,
		c.commandsTotal,
	)

	return c
}

// ConnectionOpened increments the connection counter and active gauge.
func (c *PrometheusCollector) ConnectionOpened() {
	c.connectionsTotal.Inc()
	c.connectionsActive.Inc()
}

// ConnectionClosed decrements the active connections gauge.
func (c *PrometheusCollector) ConnectionClosed() {
	c.connectionsActive.Dec()
}

// AuthAttempt increments the authentication attempts counter.
func (c *PrometheusCollector) AuthAttempt(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.authAttemptsTotal.WithLabelValues(result).Inc()
}

// AdmissionCheck increments the admission check counter for the outcome.
func (c *PrometheusCollector) AdmissionCheck(outcome string) {
	c.admissionChecksTotal.WithLabelValues(outcome).Inc()
}

// ConnectionRejected increments the rejection counter for the principal.
func (c *PrometheusCollector) ConnectionRejected(principal string) {
	c.connectionsRejectedTotal.WithLabelValues(principal).Inc()
}

// CommandProcessed increments the command counter.
func (c *PrometheusCollector) CommandProcessed(command string) {
	c.commandsTotal.WithLabelValues(command).Inc()
}
