package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "redgram_relay_connections_active",
			Help: "Currently open relay connections",
		},
	)

	UsersRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redgram_relay_users_registered_total",
			Help: "Total distinct usernames added to the roster",
		},
	)

	FramesRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redgram_relay_frames_relayed_total",
			Help: "Total frames fanned out to peers",
		},
		[]string{"type"},
	)

	FramesMalformed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redgram_relay_frames_malformed_total",
			Help: "Total inbound frames dropped as malformed or unknown",
		},
	)
)
