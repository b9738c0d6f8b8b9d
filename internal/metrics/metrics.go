// Package metrics exposes Prometheus instrumentation for the session engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "voicecoach"

var (
	// SessionsActive is the number of voice sessions currently streaming.
	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently active voice sessions",
		},
	)

	// SessionsTotal counts sessions by how they ended.
	SessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total voice sessions by outcome",
		},
		[]string{"outcome"}, // closed, error
	)

	// FramesSent counts capture frames forwarded to the live channel.
	FramesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Total capture frames forwarded to the agent channel",
		},
	)

	// FramesReceived counts audio-reply frames received from the channel.
	FramesReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Total audio reply frames received from the agent channel",
		},
	)

	// FramesDropped counts outbound frames discarded on a busy channel.
	FramesDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Total outbound frames dropped before reaching the channel",
		},
	)

	// MalformedFrames counts inbound frames skipped as undecodable.
	MalformedFrames = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_frames_total",
			Help:      "Total inbound frames skipped because they could not be decoded",
		},
	)

	// Interruptions counts barge-in events.
	Interruptions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interruptions_total",
			Help:      "Total playback interruptions (user barge-in)",
		},
	)

	// SessionDuration observes completed session length in seconds.
	SessionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of completed voice sessions in seconds",
			Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200, 1800},
		},
	)
)

func init() {
	prometheus.MustRegister(
		SessionsActive,
		SessionsTotal,
		FramesSent,
		FramesReceived,
		FramesDropped,
		MalformedFrames,
		Interruptions,
		SessionDuration,
	)
}
