package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventsFromStreamCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guardian_stream_events_total",
	Help: "Total number of events received from the gateway stream",
}, []string{"remote_addr"})

var bytesFromStreamCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guardian_stream_bytes_total",
	Help: "Total bytes received from the gateway stream",
}, []string{"remote_addr"})
