package core

import (
	"encoding/json"
	"time"

	"github.com/visign/signaling/internal/domain"
)

// Push event names, as delivered to clients over the signaling transport.
const (
	EventUserJoined            = "user_joined"
	EventUserLeft              = "user_left"
	EventUserDisconnected      = "user_disconnected"
	EventUserReconnected       = "user_reconnected"
	EventReceiveOffer          = "receive_offer"
	EventReceiveAnswer         = "receive_answer"
	EventReceiveIceCandidate   = "receive_ice_candidate"
	EventMediaStateChanged     = "media_state_changed"
	EventUserTyping            = "user_typing"
	EventNetworkQualityChanged = "network_quality_changed"
)

// ParticipantInfo is a read-only view of a participant for APIs and events.
type ParticipantInfo struct {
	UserID       domain.UserID         `json:"user_id"`
	DisplayName  string                `json:"display_name"`
	ConnectionID domain.ConnectionID   `json:"connection_id"`
	AudioEnabled bool                  `json:"audio_enabled"`
	VideoEnabled bool                  `json:"video_enabled"`
	JoinedAt     time.Time             `json:"joined_at"`
	Quality      domain.NetworkQuality `json:"network_quality"`
}

// RoomState is the full snapshot returned by Join/Reconnect/GetRoomState.
type RoomState struct {
	CallID          domain.CallID     `json:"call_id"`
	CreatedAt       time.Time         `json:"created_at"`
	MaxParticipants int               `json:"max_participants"`
	Locked          bool              `json:"locked"`
	Participants    []ParticipantInfo `json:"participants"`
}

// RoomInfo is the listing view used by the admin API.
type RoomInfo struct {
	CallID           domain.CallID `json:"call_id"`
	ParticipantCount int           `json:"participant_count"`
	Locked           bool          `json:"locked"`
	CreatedAt        time.Time     `json:"created_at"`
}

// Event is one room-wide notification. Payload is already a wire-ready value.
type Event struct {
	Name    string
	CallID  domain.CallID
	Actor   domain.UserID
	Payload any
}

// Notifier fans an event out to a target set. The coordinator invokes it while
// holding the room lock, which is what gives per-room delivery ordering, so
// implementations must only enqueue, never block.
type Notifier interface {
	Notify(targets []domain.ConnectionID, ev Event)
}

// Sender is the transport primitive consumed by the relay and the presence
// broadcaster. Delivery is fire-and-forget; an error means the frame was not
// enqueued (connection gone or backpressured).
type Sender interface {
	SendToConnection(id domain.ConnectionID, event string, payload any) error
}

// MediaUpdate is a partial media-state change; nil fields keep prior values.
type MediaUpdate struct {
	AudioEnabled *bool
	VideoEnabled *bool
}

// Coordinator owns the room registry and the connection index. It is the only
// writer to both; everything it does is in-memory and non-blocking. It sits
// behind an interface so a shared backing store can replace the in-process
// implementation without touching call sites.
type Coordinator interface {
	Join(callID domain.CallID, id domain.Identity, connID domain.ConnectionID, audio, video bool) (RoomState, error)
	Leave(callID domain.CallID, userID domain.UserID)
	Reconnect(callID domain.CallID, userID domain.UserID, newConnID domain.ConnectionID) (RoomState, error)
	RoomState(callID domain.CallID) (RoomState, bool)
	UpdateMediaState(callID domain.CallID, userID domain.UserID, upd MediaUpdate)
	UpdateNetworkQuality(callID domain.CallID, userID domain.UserID, q domain.NetworkQuality, stats json.RawMessage)
	Typing(callID domain.CallID, userID domain.UserID)

	Participant(callID domain.CallID, userID domain.UserID) (domain.Participant, bool)
	ParticipantByConnection(connID domain.ConnectionID) (domain.CallID, domain.Participant, bool)
	CallIDByConnection(connID domain.ConnectionID) (domain.CallID, bool)
	MarkDisconnected(connID domain.ConnectionID) (domain.CallID, domain.Participant, bool)

	SetLocked(callID domain.CallID, locked bool) bool
	ListRooms() []RoomInfo
	ReapStale(grace time.Duration) int
}
