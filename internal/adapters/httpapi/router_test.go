package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"

	"github.com/visign/signaling/internal/adapters/httpapi"
	"github.com/visign/signaling/internal/adapters/signal"
	"github.com/visign/signaling/internal/app"
	"github.com/visign/signaling/internal/auth"
	"github.com/visign/signaling/internal/config"
	"github.com/visign/signaling/internal/core"
	"github.com/visign/signaling/internal/domain"
	"github.com/visign/signaling/internal/ice"
)

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) (*httptest.Server, *config.Config) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Mode:       "release",
		StaticPath: t.TempDir(),
		ReadLimit:  32768,
		PingPeriod: 54 * time.Second,
		Secret:     "test-secret",
		Room: config.RoomConfig{
			MaxParticipants: 16,
			ReapInterval:    time.Minute,
			DisconnectGrace: time.Minute,
		},
	}

	conns := signal.NewConnRegistry()
	coord := core.NewCoordinator(app.NewBroadcaster(conns), cfg.Room.MaxParticipants)
	relay := app.NewRelay(coord, conns)
	provider := ice.NewStaticProvider(
		[]webrtc.ICEServer{{URLs: []string{"stun:stun.example.com:3478"}}}, nil, "", 0)
	ctl := signal.NewController(cfg, coord, relay, provider, conns)

	srv := httptest.NewServer(httpapi.SetupRouter(context.Background(), cfg, coord, ctl))
	t.Cleanup(srv.Close)
	return srv, cfg
}

func dial(t *testing.T, srv *httptest.Server, secret, userID, name string) *websocket.Conn {
	t.Helper()
	token, err := auth.Issue(secret, domain.Identity{UserID: domain.UserID(userID), DisplayName: name}, time.Hour)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/signal?token=" + token
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readFrame(t *testing.T, ws *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	var f frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func expect(t *testing.T, ws *websocket.Conn, eventType string) json.RawMessage {
	t.Helper()
	f := readFrame(t, ws)
	require.Equal(t, eventType, f.Type)
	return f.Data
}

func send(t *testing.T, ws *websocket.Conn, msgType string, payload any) {
	t.Helper()
	env := map[string]any{"type": msgType}
	if payload != nil {
		env["data"] = payload
	}
	require.NoError(t, ws.WriteJSON(env))
}

func TestUnauthenticatedRejected(t *testing.T) {
	srv, _ := newTestServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/signal"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSignalingSession(t *testing.T) {
	srv, cfg := newTestServer(t)

	alice := dial(t, srv, cfg.Secret, "alice", "Alice")
	expect(t, alice, "connected")

	send(t, alice, "join_call", map[string]any{"call_id": "call1"})
	var joined core.RoomState
	require.NoError(t, json.Unmarshal(expect(t, alice, "call_joined"), &joined))
	require.Len(t, joined.Participants, 1)

	bob := dial(t, srv, cfg.Secret, "bob", "Bob")
	expect(t, bob, "connected")
	send(t, bob, "join_call", map[string]any{"call_id": "call1", "video_enabled": false})
	require.NoError(t, json.Unmarshal(expect(t, bob, "call_joined"), &joined))
	require.Len(t, joined.Participants, 2)

	var joinedEv core.ParticipantInfo
	require.NoError(t, json.Unmarshal(expect(t, alice, "user_joined"), &joinedEv))
	require.Equal(t, domain.UserID("bob"), joinedEv.UserID)
	require.False(t, joinedEv.VideoEnabled)

	// Pairwise negotiation: offer, answer, candidate each reach one peer.
	send(t, bob, "send_offer", map[string]any{"to": "alice", "sdp": "v=0 offer"})
	var sdp struct {
		From string `json:"from"`
		SDP  string `json:"sdp"`
	}
	require.NoError(t, json.Unmarshal(expect(t, alice, "receive_offer"), &sdp))
	require.Equal(t, "bob", sdp.From, "from must be stamped from the authenticated sender")
	require.Equal(t, "v=0 offer", sdp.SDP)

	send(t, alice, "send_answer", map[string]any{"to": "bob", "sdp": "v=0 answer"})
	require.NoError(t, json.Unmarshal(expect(t, bob, "receive_answer"), &sdp))
	require.Equal(t, "alice", sdp.From)

	send(t, alice, "send_ice_candidate", map[string]any{
		"to": "bob", "candidate": "candidate:1", "sdpMid": "0", "sdpMLineIndex": 0,
	})
	var cand struct {
		From      string `json:"from"`
		Candidate string `json:"candidate"`
	}
	require.NoError(t, json.Unmarshal(expect(t, bob, "receive_ice_candidate"), &cand))
	require.Equal(t, "candidate:1", cand.Candidate)

	// A misdirected offer is dropped silently, no error back to the sender.
	send(t, bob, "send_offer", map[string]any{"to": "carol", "sdp": "v=0"})

	send(t, bob, "get_ice_configuration", nil)
	var iceCfg struct {
		ICEServers []webrtc.ICEServer `json:"ice_servers"`
	}
	require.NoError(t, json.Unmarshal(expect(t, bob, "ice_configuration"), &iceCfg))
	require.Len(t, iceCfg.ICEServers, 1)

	send(t, bob, "update_media_state", map[string]any{"audio_enabled": false})
	var media struct {
		UserID       string `json:"user_id"`
		AudioEnabled bool   `json:"audio_enabled"`
	}
	require.NoError(t, json.Unmarshal(expect(t, alice, "media_state_changed"), &media))
	require.Equal(t, "bob", media.UserID)
	require.False(t, media.AudioEnabled)

	send(t, bob, "update_network_quality", map[string]any{"network_quality": "poor"})
	var quality struct {
		UserID  string                `json:"user_id"`
		Quality domain.NetworkQuality `json:"network_quality"`
	}
	require.NoError(t, json.Unmarshal(expect(t, alice, "network_quality_changed"), &quality))
	require.Equal(t, domain.QualityPoor, quality.Quality)

	send(t, bob, "send_typing", nil)
	expect(t, alice, "user_typing")

	send(t, alice, "get_room_state", map[string]any{"call_id": "nope"})
	var rs struct {
		Exists bool `json:"exists"`
	}
	require.NoError(t, json.Unmarshal(expect(t, alice, "room_state"), &rs))
	require.False(t, rs.Exists)

	send(t, bob, "leave_call", nil)
	expect(t, bob, "left")
	var left struct {
		UserID string `json:"user_id"`
		Reason string `json:"reason"`
	}
	require.NoError(t, json.Unmarshal(expect(t, alice, "user_left"), &left))
	require.Equal(t, "bob", left.UserID)
	require.Equal(t, "left", left.Reason)
}

func TestDisconnectThenReconnect(t *testing.T) {
	srv, cfg := newTestServer(t)

	alice := dial(t, srv, cfg.Secret, "alice", "Alice")
	expect(t, alice, "connected")
	send(t, alice, "join_call", map[string]any{"call_id": "call1"})
	expect(t, alice, "call_joined")

	bob := dial(t, srv, cfg.Secret, "bob", "Bob")
	expect(t, bob, "connected")
	send(t, bob, "join_call", map[string]any{"call_id": "call1"})
	expect(t, bob, "call_joined")
	expect(t, alice, "user_joined")

	// Abrupt transport loss: soft, recoverable.
	require.NoError(t, bob.Close())
	var dropped struct {
		UserID string `json:"user_id"`
	}
	require.NoError(t, json.Unmarshal(expect(t, alice, "user_disconnected"), &dropped))
	require.Equal(t, "bob", dropped.UserID)

	bob2 := dial(t, srv, cfg.Secret, "bob", "Bob")
	expect(t, bob2, "connected")
	send(t, bob2, "reconnect_to_call", map[string]any{"call_id": "call1"})
	var state core.RoomState
	require.NoError(t, json.Unmarshal(expect(t, bob2, "call_reconnected"), &state))
	require.Len(t, state.Participants, 2)
	for _, p := range state.Participants {
		require.Equal(t, domain.QualityGood, p.Quality)
	}

	var rec core.ParticipantInfo
	require.NoError(t, json.Unmarshal(expect(t, alice, "user_reconnected"), &rec))
	require.Equal(t, domain.UserID("bob"), rec.UserID)
}

func TestJoinSecondCallLeavesFirst(t *testing.T) {
	srv, cfg := newTestServer(t)

	alice := dial(t, srv, cfg.Secret, "alice", "Alice")
	expect(t, alice, "connected")
	send(t, alice, "join_call", map[string]any{"call_id": "call1"})
	expect(t, alice, "call_joined")

	bob := dial(t, srv, cfg.Secret, "bob", "Bob")
	expect(t, bob, "connected")
	send(t, bob, "join_call", map[string]any{"call_id": "call1"})
	expect(t, bob, "call_joined")
	expect(t, alice, "user_joined")

	// Bob hops to a second call on the same socket without leaving first.
	send(t, bob, "join_call", map[string]any{"call_id": "call2"})
	var joined core.RoomState
	require.NoError(t, json.Unmarshal(expect(t, bob, "call_joined"), &joined))
	require.Equal(t, domain.CallID("call2"), joined.CallID)
	require.Len(t, joined.Participants, 1)

	// The first call saw him leave; no membership is left behind there.
	var left struct {
		UserID string `json:"user_id"`
		Reason string `json:"reason"`
	}
	require.NoError(t, json.Unmarshal(expect(t, alice, "user_left"), &left))
	require.Equal(t, "bob", left.UserID)
	require.Equal(t, "left", left.Reason)

	send(t, alice, "get_room_state", map[string]any{"call_id": "call1"})
	var rs struct {
		Exists bool            `json:"exists"`
		Room   *core.RoomState `json:"room"`
	}
	require.NoError(t, json.Unmarshal(expect(t, alice, "room_state"), &rs))
	require.True(t, rs.Exists)
	require.Len(t, rs.Room.Participants, 1)

	// Dropping bob's socket now only concerns the second call: the first call
	// gets no disconnect event since he is no longer a member there.
	require.NoError(t, bob.Close())
	require.NoError(t, alice.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err := alice.ReadMessage()
	require.Error(t, err, "no event should reach the first call")
}

func TestCrossOriginUpgradeRejected(t *testing.T) {
	srv, cfg := newOriginServer(t, []string{"https://app.example.com"})
	token, err := auth.Issue(cfg.Secret, domain.Identity{UserID: "alice", DisplayName: "Alice"}, time.Hour)
	require.NoError(t, err)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/signal?token=" + token

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example.com"}})
	require.Error(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	ws, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://app.example.com"}})
	require.NoError(t, err)
	defer ws.Close()
	expect(t, ws, "connected")
}

func TestCapacityRejection(t *testing.T) {
	srv, cfg := newSmallServer(t, 1)
	alice := dial(t, srv, cfg.Secret, "alice", "Alice")
	expect(t, alice, "connected")
	send(t, alice, "join_call", map[string]any{"call_id": "call1"})
	expect(t, alice, "call_joined")

	bob := dial(t, srv, cfg.Secret, "bob", "Bob")
	expect(t, bob, "connected")
	send(t, bob, "join_call", map[string]any{"call_id": "call1"})
	var e struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(expect(t, bob, "error"), &e))
	require.Equal(t, "room_full", e.Code)
}

func newOriginServer(t *testing.T, origins []string) (*httptest.Server, *config.Config) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Mode:           "release",
		StaticPath:     t.TempDir(),
		ReadLimit:      32768,
		PingPeriod:     54 * time.Second,
		Secret:         "test-secret",
		AllowedOrigins: origins,
		Room:           config.RoomConfig{MaxParticipants: 16},
	}
	conns := signal.NewConnRegistry()
	coord := core.NewCoordinator(app.NewBroadcaster(conns), cfg.Room.MaxParticipants)
	relay := app.NewRelay(coord, conns)
	provider := ice.NewStaticProvider(nil, nil, "", 0)
	ctl := signal.NewController(cfg, coord, relay, provider, conns)
	srv := httptest.NewServer(httpapi.SetupRouter(context.Background(), cfg, coord, ctl))
	t.Cleanup(srv.Close)
	return srv, cfg
}

func newSmallServer(t *testing.T, maxParticipants int) (*httptest.Server, *config.Config) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Mode:       "release",
		StaticPath: t.TempDir(),
		ReadLimit:  32768,
		PingPeriod: 54 * time.Second,
		Secret:     "test-secret",
		Room:       config.RoomConfig{MaxParticipants: maxParticipants},
	}
	conns := signal.NewConnRegistry()
	coord := core.NewCoordinator(app.NewBroadcaster(conns), maxParticipants)
	relay := app.NewRelay(coord, conns)
	provider := ice.NewStaticProvider(nil, nil, "", 0)
	ctl := signal.NewController(cfg, coord, relay, provider, conns)
	srv := httptest.NewServer(httpapi.SetupRouter(context.Background(), cfg, coord, ctl))
	t.Cleanup(srv.Close)
	return srv, cfg
}
