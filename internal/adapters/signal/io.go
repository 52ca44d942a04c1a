package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/visign/signaling/internal/core"
)

// Client request types. Push event names live in core.
const (
	msgJoinCall         = "join_call"
	msgLeaveCall        = "leave_call"
	msgGetRoomState     = "get_room_state"
	msgReconnectToCall  = "reconnect_to_call"
	msgSendOffer        = "send_offer"
	msgSendAnswer       = "send_answer"
	msgSendIceCandidate = "send_ice_candidate"
	msgGetIceConfig     = "get_ice_configuration"
	msgUpdateMediaState = "update_media_state"
	msgUpdateQuality    = "update_network_quality"
	msgSendTyping       = "send_typing"
	msgPing             = "ping"
)

func (ctl *Controller) dispatch(conn *wsConn, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("conn", string(conn.id)).Msg("bad json")
		ctl.sendError(conn, "bad_payload")
		return
	}

	switch env.Type {
	case msgJoinCall:
		ctl.handleJoin(conn, env.Data)
	case msgLeaveCall:
		ctl.handleLeave(conn)
	case msgGetRoomState:
		ctl.handleRoomState(conn, env.Data)
	case msgReconnectToCall:
		ctl.handleReconnect(conn, env.Data)
	case msgSendOffer:
		ctl.handleSDP(conn, env.Data, core.EventReceiveOffer)
	case msgSendAnswer:
		ctl.handleSDP(conn, env.Data, core.EventReceiveAnswer)
	case msgSendIceCandidate:
		ctl.handleCandidate(conn, env.Data)
	case msgGetIceConfig:
		ctl.handleIceConfig(conn)
	case msgUpdateMediaState:
		ctl.handleMediaState(conn, env.Data)
	case msgUpdateQuality:
		ctl.handleNetworkQuality(conn, env.Data)
	case msgSendTyping:
		ctl.handleTyping(conn)
	case msgPing:
		ctl.handlePing(conn)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.sendError(conn, "unknown_type")
	}
}

func (ctl *Controller) send(conn *wsConn, event string, payload any) {
	data, err := marshalEnvelope(event, payload)
	if err != nil {
		return
	}
	_ = conn.TrySend(data)
}

type errorPayload struct {
	Code string `json:"code"`
}

func (ctl *Controller) sendError(conn *wsConn, code string) {
	ctl.send(conn, "error", errorPayload{Code: code})
}

func (ctl *Controller) handlePing(conn *wsConn) {
	ctl.send(conn, "pong", nil)
}
