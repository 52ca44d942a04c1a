package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/visign/signaling/internal/core"
	"github.com/visign/signaling/internal/domain"
)

func (ctl *Controller) handleMediaState(conn *wsConn, data []byte) {
	var p struct {
		AudioEnabled *bool `json:"audio_enabled"`
		VideoEnabled *bool `json:"video_enabled"`
	}
	if err := json.Unmarshal(data, &p); err != nil || (p.AudioEnabled == nil && p.VideoEnabled == nil) {
		ctl.sendError(conn, "bad_payload")
		return
	}
	callID, ok := ctl.coord.CallIDByConnection(conn.id)
	if !ok {
		ctl.sendError(conn, "not_in_call")
		return
	}
	ctl.coord.UpdateMediaState(callID, conn.identity.UserID, core.MediaUpdate{
		AudioEnabled: p.AudioEnabled,
		VideoEnabled: p.VideoEnabled,
	})
}

func (ctl *Controller) handleNetworkQuality(conn *wsConn, data []byte) {
	var p struct {
		Quality string          `json:"network_quality"`
		Stats   json.RawMessage `json:"stats"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(conn, "bad_payload")
		return
	}
	q := domain.NetworkQuality(p.Quality)
	if !q.Valid() {
		ctl.sendError(conn, "bad_payload")
		return
	}
	if !ctl.limiter.Allow(conn.identity.UserID) {
		log.Debug().Str("module", "signal").
			Str("user", string(conn.identity.UserID)).Msg("quality update rate limited")
		return
	}
	callID, ok := ctl.coord.CallIDByConnection(conn.id)
	if !ok {
		ctl.sendError(conn, "not_in_call")
		return
	}
	ctl.coord.UpdateNetworkQuality(callID, conn.identity.UserID, q, p.Stats)
}

func (ctl *Controller) handleTyping(conn *wsConn) {
	if !ctl.limiter.Allow(conn.identity.UserID) {
		return
	}
	callID, ok := ctl.coord.CallIDByConnection(conn.id)
	if !ok {
		return
	}
	ctl.coord.Typing(callID, conn.identity.UserID)
}
