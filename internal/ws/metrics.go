package ws

import "github.com/prometheus/client_golang/prometheus"

var (
	streamClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediatheme_ws_clients",
			Help: "Open event stream connections.",
		},
	)
	streamDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mediatheme_ws_dropped_messages_total",
			Help: "Event stream messages dropped because a client fell behind.",
		},
	)
)

func init() {
	prometheus.MustRegister(streamClients, streamDropped)
}
