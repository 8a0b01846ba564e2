package replay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "replay_sessions_active",
		Help: "Sessions currently streaming",
	})
	SubscribeTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "replay_subscribe_total",
		Help: "Subscribe commands accepted for loading",
	})
	SubscribeFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "replay_subscribe_failures_total",
		Help: "Subscriptions aborted because a series could not be loaded",
	})
	CommandsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "replay_commands_dropped_total",
		Help: "Inbound commands ignored without a reply, by reason",
	}, []string{"reason"})

	TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "replay_ticks_total",
		Help: "Scheduler ticks executed across all sessions",
	})
	SamplesSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "replay_samples_sent_total",
		Help: "Samples handed to the transport",
	})
	SendErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "replay_send_errors_total",
		Help: "Samples the transport refused",
	})
	TeardownTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "replay_teardown_total",
		Help: "Connections torn down, by cause",
	}, []string{"cause"}) // exhausted/closed
)
