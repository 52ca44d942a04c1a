// Package metrics exposes the coordinator's prometheus instruments together
// with cheap in-process mirrors for the stats admin endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

var (
	roomCurrent        atomic.Int32
	participantCurrent atomic.Int32

	promRoomCurrent        prometheus.Gauge
	promParticipantCurrent prometheus.Gauge
	promParticipantJoined  prometheus.Counter
	promParticipantReaped  prometheus.Counter
	promSignalRelayed      *prometheus.CounterVec
	promEventsBroadcast    prometheus.Counter
)

func init() {
	promRoomCurrent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "signaling",
		Subsystem: "room",
		Name:      "total",
	})
	promParticipantCurrent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "signaling",
		Subsystem: "participant",
		Name:      "total",
	})
	promParticipantJoined = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "signaling",
		Subsystem: "participant",
		Name:      "joined_counter",
	})
	promParticipantReaped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "signaling",
		Subsystem: "participant",
		Name:      "reaped_counter",
	})
	promSignalRelayed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signaling",
		Subsystem: "relay",
		Name:      "message_counter",
	}, []string{"state"})
	promEventsBroadcast = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "signaling",
		Subsystem: "presence",
		Name:      "event_counter",
	})

	prometheus.MustRegister(promRoomCurrent)
	prometheus.MustRegister(promParticipantCurrent)
	prometheus.MustRegister(promParticipantJoined)
	prometheus.MustRegister(promParticipantReaped)
	prometheus.MustRegister(promSignalRelayed)
	prometheus.MustRegister(promEventsBroadcast)
}

func RoomStarted() {
	roomCurrent.Inc()
	promRoomCurrent.Inc()
}

func RoomEnded() {
	roomCurrent.Dec()
	promRoomCurrent.Dec()
}

func ParticipantJoined() {
	participantCurrent.Inc()
	promParticipantCurrent.Inc()
	promParticipantJoined.Inc()
}

func ParticipantLeft() {
	participantCurrent.Dec()
	promParticipantCurrent.Dec()
}

func ParticipantReaped() {
	promParticipantReaped.Inc()
}

func SignalRelayed(delivered bool) {
	state := "delivered"
	if !delivered {
		state = "dropped"
	}
	promSignalRelayed.WithLabelValues(state).Inc()
}

func EventsBroadcast(n int) {
	promEventsBroadcast.Add(float64(n))
}

// Snapshot of the mirrored gauges, for the admin stats endpoint.
func Current() (rooms, participants int32) {
	return roomCurrent.Load(), participantCurrent.Load()
}
