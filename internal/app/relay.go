// Package app wires the coordinator's state to the signaling transport: the
// point-to-point relay and the room-wide presence broadcaster.
package app

import (
	"github.com/rs/zerolog/log"

	"github.com/visign/signaling/internal/core"
	"github.com/visign/signaling/internal/domain"
	"github.com/visign/signaling/internal/metrics"
)

// Relay forwards opaque negotiation payloads (offer/answer/ICE candidate) to
// exactly one participant of the same call. It reads the coordinator's state,
// never mutates it, and it never broadcasts: WebRTC negotiation is pairwise.
type Relay struct {
	coord  core.Coordinator
	sender core.Sender
}

func NewRelay(coord core.Coordinator, sender core.Sender) *Relay {
	return &Relay{coord: coord, sender: sender}
}

// Relay delivers payload to the current connection of toUserID. A missing
// target degrades to "not delivered": signaling loss is expected and retried
// at a higher layer, so it is logged, counted and swallowed, never escalated.
func (r *Relay) Relay(callID domain.CallID, fromUserID, toUserID domain.UserID, event string, payload any) bool {
	p, ok := r.coord.Participant(callID, toUserID)
	if !ok {
		log.Warn().Str("module", "app.relay").
			Str("call", string(callID)).
			Str("from", string(fromUserID)).Str("to", string(toUserID)).
			Str("event", event).Msg("relay target not in room")
		metrics.SignalRelayed(false)
		return false
	}
	if err := r.sender.SendToConnection(p.ConnectionID, event, payload); err != nil {
		log.Warn().Err(err).Str("module", "app.relay").
			Str("call", string(callID)).Str("to", string(toUserID)).
			Str("event", event).Msg("relay send failed")
		metrics.SignalRelayed(false)
		return false
	}
	metrics.SignalRelayed(true)
	return true
}
