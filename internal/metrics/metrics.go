package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crewdeck_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crewdeck_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	QuotaChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crewdeck_quota_checks_total",
			Help: "Quota admission checks by type and outcome.",
		},
		[]string{"quota_type", "outcome"},
	)

	QuotaDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crewdeck_quota_denials_total",
			Help: "Quota admission denials by type.",
		},
		[]string{"quota_type"},
	)

	QuotaSweepResetsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crewdeck_quota_sweep_resets_total",
			Help: "Counters reset by the proactive reset sweep.",
		},
	)

	QuotaSweepErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crewdeck_quota_sweep_errors_total",
			Help: "Per-record errors collected by the reset sweep.",
		},
	)

	ResourceChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crewdeck_resource_checks_total",
			Help: "Resource quota checks by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		QuotaChecksTotal,
		QuotaDenialsTotal,
		QuotaSweepResetsTotal,
		QuotaSweepErrorsTotal,
		ResourceChecksTotal,
	)
}
