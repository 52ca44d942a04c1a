package signal

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/visign/signaling/internal/core"
	"github.com/visign/signaling/internal/domain"
)

type roomStatePayload struct {
	Exists bool            `json:"exists"`
	Room   *core.RoomState `json:"room,omitempty"`
}

func (ctl *Controller) handleJoin(conn *wsConn, data []byte) {
	var p struct {
		CallID       string `json:"call_id"`
		AudioEnabled *bool  `json:"audio_enabled"`
		VideoEnabled *bool  `json:"video_enabled"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.CallID == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	audio, video := true, true
	if p.AudioEnabled != nil {
		audio = *p.AudioEnabled
	}
	if p.VideoEnabled != nil {
		video = *p.VideoEnabled
	}

	// One socket carries one call. Joining a different call implicitly leaves
	// the current one, otherwise the old membership would outlive the index
	// entry and never be marked disconnected or reaped.
	if prev, ok := ctl.coord.CallIDByConnection(conn.id); ok && prev != domain.CallID(p.CallID) {
		log.Info().Str("module", "signal").
			Str("conn", string(conn.id)).Str("from", string(prev)).
			Str("to", p.CallID).Msg("switching call")
		ctl.coord.Leave(prev, conn.identity.UserID)
	}

	state, err := ctl.coord.Join(domain.CallID(p.CallID), conn.identity, conn.id, audio, video)
	switch {
	case errors.Is(err, domain.ErrRoomFull):
		ctl.sendError(conn, "room_full")
		return
	case errors.Is(err, domain.ErrRoomLocked):
		ctl.sendError(conn, "room_locked")
		return
	case err != nil:
		ctl.sendError(conn, "bad_payload")
		return
	}
	ctl.send(conn, "call_joined", state)
}

func (ctl *Controller) handleLeave(conn *wsConn) {
	callID, ok := ctl.coord.CallIDByConnection(conn.id)
	if !ok {
		ctl.send(conn, "left", nil)
		return
	}
	ctl.coord.Leave(callID, conn.identity.UserID)
	ctl.send(conn, "left", nil)
}

func (ctl *Controller) handleRoomState(conn *wsConn, data []byte) {
	var p struct {
		CallID string `json:"call_id"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.CallID == "" {
		ctl.sendError(conn, "bad_payload")
		return
	}
	state, ok := ctl.coord.RoomState(domain.CallID(p.CallID))
	if !ok {
		ctl.send(conn, "room_state", roomStatePayload{Exists: false})
		return
	}
	ctl.send(conn, "room_state", roomStatePayload{Exists: true, Room: &state})
}

func (ctl *Controller) handleReconnect(conn *wsConn, data []byte) {
	var p struct {
		CallID string `json:"call_id"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.CallID == "" {
		ctl.sendError(conn, "bad_payload")
		return
	}
	// Same single-call-per-socket rule as join: reconnecting into a different
	// call releases whatever this socket is currently bound to.
	if prev, ok := ctl.coord.CallIDByConnection(conn.id); ok && prev != domain.CallID(p.CallID) {
		ctl.coord.Leave(prev, conn.identity.UserID)
	}
	state, err := ctl.coord.Reconnect(domain.CallID(p.CallID), conn.identity.UserID, conn.id)
	if err != nil {
		ctl.sendError(conn, "not_in_call")
		return
	}
	log.Info().Str("module", "signal").
		Str("conn", string(conn.id)).Str("call", p.CallID).
		Str("user", string(conn.identity.UserID)).Msg("reconnected to call")
	ctl.send(conn, "call_reconnected", state)
}
