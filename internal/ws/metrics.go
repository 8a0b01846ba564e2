package ws

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Conns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_conns",
		Help: "Active websocket connections",
	})
	ConnOpenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_conn_open_total",
		Help: "Total websocket connections opened",
	})
	MsgsOutTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_msgs_out_total",
		Help: "Total websocket messages written",
	})
	BytesOutTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_bytes_out_total",
		Help: "Total websocket bytes written",
	})
	WriteErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_write_errors_total",
		Help: "Total websocket write errors",
	})
	DroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_dropped_total",
		Help: "Total outbound messages dropped",
	}, []string{"why"}) // queue_full/closed
	InboundDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_inbound_dropped_total",
		Help: "Total inbound messages dropped because the connection inbox was full",
	})
	PingSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_ping_sent_total",
		Help: "Total ping sent",
	})
)
