package core

import (
	"sync"
	"time"

	"github.com/visign/signaling/internal/domain"
)

// room is one call's participant set. All fields below mu are guarded by it.
// A room whose last participant is removed is marked closed and dropped from
// the registry; a closed room never accepts another insert (joiners racing the
// teardown retry against the registry instead).
type room struct {
	callID domain.CallID

	mu              sync.Mutex
	participants    map[domain.UserID]*domain.Participant
	createdAt       time.Time
	maxParticipants int
	locked          bool
	closed          bool
}

func newRoom(callID domain.CallID, maxParticipants int, createdAt time.Time) *room {
	return &room{
		callID:          callID,
		participants:    make(map[domain.UserID]*domain.Participant),
		createdAt:       createdAt,
		maxParticipants: maxParticipants,
	}
}

func infoOf(p *domain.Participant) ParticipantInfo {
	return ParticipantInfo{
		UserID:       p.UserID,
		DisplayName:  p.DisplayName,
		ConnectionID: p.ConnectionID,
		AudioEnabled: p.AudioEnabled,
		VideoEnabled: p.VideoEnabled,
		JoinedAt:     p.JoinedAt,
		Quality:      p.Quality,
	}
}

// stateLocked snapshots the room. Caller holds r.mu.
func (r *room) stateLocked() RoomState {
	out := RoomState{
		CallID:          r.callID,
		CreatedAt:       r.createdAt,
		MaxParticipants: r.maxParticipants,
		Locked:          r.locked,
		Participants:    make([]ParticipantInfo, 0, len(r.participants)),
	}
	for _, p := range r.participants {
		out.Participants = append(out.Participants, infoOf(p))
	}
	return out
}

// targetsLocked lists every connection except the actor's. Caller holds r.mu.
func (r *room) targetsLocked(except domain.UserID) []domain.ConnectionID {
	out := make([]domain.ConnectionID, 0, len(r.participants))
	for uid, p := range r.participants {
		if uid == except {
			continue
		}
		out = append(out, p.ConnectionID)
	}
	return out
}

func (r *room) infoLocked() RoomInfo {
	return RoomInfo{
		CallID:           r.callID,
		ParticipantCount: len(r.participants),
		Locked:           r.locked,
		CreatedAt:        r.createdAt,
	}
}
