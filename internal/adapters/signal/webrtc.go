package signal

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/visign/signaling/internal/core"
	"github.com/visign/signaling/internal/domain"
)

// sdpOut is what the recipient sees. From is stamped from the authenticated
// sender identity; a client-supplied "from" field is never trusted.
type sdpOut struct {
	From domain.UserID `json:"from"`
	SDP  string        `json:"sdp"`
}

type candidateOut struct {
	From          domain.UserID `json:"from"`
	Candidate     string        `json:"candidate"`
	SDPMid        string        `json:"sdpMid,omitempty"`
	SDPMLineIndex uint16        `json:"sdpMLineIndex,omitempty"`
}

// handleSDP relays an offer or answer to exactly one named recipient.
// Delivery is best effort; the sender gets no failure signal since WebRTC
// negotiation retries above this layer.
func (ctl *Controller) handleSDP(conn *wsConn, data []byte, event string) {
	var p struct {
		To  string `json:"to"`
		SDP string `json:"sdp"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.To == "" || p.SDP == "" {
		log.Error().Err(err).Str("module", "signal").Str("event", event).Msg("bad sdp payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	callID, ok := ctl.coord.CallIDByConnection(conn.id)
	if !ok {
		ctl.sendError(conn, "not_in_call")
		return
	}
	from := conn.identity.UserID
	ctl.relay.Relay(callID, from, domain.UserID(p.To), event, sdpOut{From: from, SDP: p.SDP})
}

func (ctl *Controller) handleCandidate(conn *wsConn, data []byte) {
	var p struct {
		To            string `json:"to"`
		Candidate     string `json:"candidate"`
		SDPMid        string `json:"sdpMid"`
		SDPMLineIndex uint16 `json:"sdpMLineIndex"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.To == "" || p.Candidate == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad candidate payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	callID, ok := ctl.coord.CallIDByConnection(conn.id)
	if !ok {
		ctl.sendError(conn, "not_in_call")
		return
	}
	from := conn.identity.UserID
	ctl.relay.Relay(callID, from, domain.UserID(p.To), core.EventReceiveIceCandidate, candidateOut{
		From:          from,
		Candidate:     p.Candidate,
		SDPMid:        p.SDPMid,
		SDPMLineIndex: p.SDPMLineIndex,
	})
}

type iceConfigPayload struct {
	ICEServers []webrtc.ICEServer `json:"ice_servers"`
}

func (ctl *Controller) handleIceConfig(conn *wsConn) {
	ctl.send(conn, "ice_configuration", iceConfigPayload{
		ICEServers: ctl.ice.Configuration(conn.identity.UserID),
	})
}
