package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("guardian")

var memberUpdatesReceived = promauto.NewCounter(prometheus.CounterOpts{
	Name: "guardian_member_updates_received",
	Help: "Number of member update events received from the gateway",
})

var commandsReceived = promauto.NewCounter(prometheus.CounterOpts{
	Name: "guardian_commands_received",
	Help: "Number of administrative commands received",
})
