package guard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventProcessDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "guardian_event_duration_sec",
	Help: "Total duration of enforcement event processing",
}, []string{"type"})

var eventProcessCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guardian_event_processed",
	Help: "Number of events processed",
}, []string{"type"})

var revertsIssued = promauto.NewCounter(prometheus.CounterOpts{
	Name: "guardian_reverts_issued_total",
	Help: "Number of corrective renames issued",
})

var revertsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guardian_reverts_failed_total",
	Help: "Number of corrective renames that could not be applied",
}, []string{"reason"})

var revertsSuppressed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "guardian_reverts_suppressed_total",
	Help: "Number of self-issued rename events recognized and dropped",
})

var storeFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "guardian_store_failures_total",
	Help: "Number of config store failures observed during enforcement",
})

var commandsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guardian_commands_processed",
	Help: "Number of administrative commands processed",
}, []string{"kind"})
