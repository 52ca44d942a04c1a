package core

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/visign/signaling/internal/domain"
	"github.com/visign/signaling/internal/metrics"
)

type userLeftPayload struct {
	UserID domain.UserID `json:"user_id"`
	Reason string        `json:"reason"`
}

type userDisconnectedPayload struct {
	UserID domain.UserID `json:"user_id"`
}

type mediaStatePayload struct {
	UserID       domain.UserID `json:"user_id"`
	AudioEnabled bool          `json:"audio_enabled"`
	VideoEnabled bool          `json:"video_enabled"`
}

type qualityPayload struct {
	UserID  domain.UserID         `json:"user_id"`
	Quality domain.NetworkQuality `json:"network_quality"`
	Stats   json.RawMessage       `json:"stats,omitempty"`
}

type typingPayload struct {
	UserID      domain.UserID `json:"user_id"`
	DisplayName string        `json:"display_name"`
}

// connEntry is one live transport connection resolved to its room membership.
type connEntry struct {
	callID domain.CallID
	userID domain.UserID
}

// coordinator is the in-process Coordinator. The outer mutex guards only the
// two maps; participant-set mutation happens under each room's own lock, so
// traffic on unrelated calls never serializes. Lock order: mu is a leaf and
// may be taken while a room lock is held, never the other way around.
type coordinator struct {
	notifier        Notifier
	maxParticipants int
	now             func() time.Time

	mu    sync.RWMutex
	rooms map[domain.CallID]*room
	conns map[domain.ConnectionID]connEntry
}

func NewCoordinator(notifier Notifier, maxParticipants int) Coordinator {
	return &coordinator{
		notifier:        notifier,
		maxParticipants: maxParticipants,
		now:             time.Now,
		rooms:           make(map[domain.CallID]*room),
		conns:           make(map[domain.ConnectionID]connEntry),
	}
}

func (c *coordinator) notify(targets []domain.ConnectionID, ev Event) {
	if c.notifier == nil || len(targets) == 0 {
		return
	}
	c.notifier.Notify(targets, ev)
}

// getOrCreateRoom returns the live room for callID, creating it on first join.
func (c *coordinator) getOrCreateRoom(callID domain.CallID) *room {
	c.mu.RLock()
	r, ok := c.rooms[callID]
	c.mu.RUnlock()
	if ok {
		return r
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok = c.rooms[callID]; ok {
		return r
	}
	r = newRoom(callID, c.maxParticipants, c.now())
	c.rooms[callID] = r
	metrics.RoomStarted()
	log.Info().Str("module", "core.coordinator").Str("call", string(callID)).Msg("room created")
	return r
}

func (c *coordinator) getRoom(callID domain.CallID) (*room, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.rooms[callID]
	return r, ok
}

// dropRoom removes r from the registry if it is still the registered room.
func (c *coordinator) dropRoom(r *room) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rooms[r.callID] == r {
		delete(c.rooms, r.callID)
		metrics.RoomEnded()
		log.Info().Str("module", "core.coordinator").Str("call", string(r.callID)).Msg("room destroyed")
	}
}

func (c *coordinator) bindConn(connID domain.ConnectionID, callID domain.CallID, userID domain.UserID, stale domain.ConnectionID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if stale != "" && stale != connID {
		delete(c.conns, stale)
	}
	c.conns[connID] = connEntry{callID: callID, userID: userID}
}

func (c *coordinator) unbindConn(connID domain.ConnectionID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.conns, connID)
}

func (c *coordinator) Join(callID domain.CallID, id domain.Identity, connID domain.ConnectionID, audio, video bool) (RoomState, error) {
	if err := callID.Validate(); err != nil {
		return RoomState{}, err
	}
	for {
		r := c.getOrCreateRoom(callID)
		r.mu.Lock()
		if r.closed {
			// Lost the race against the last leaver; the registry entry is
			// gone or about to be. Take a fresh room.
			r.mu.Unlock()
			continue
		}
		prev, rejoining := r.participants[id.UserID]
		if !rejoining {
			if r.locked {
				r.mu.Unlock()
				return RoomState{}, domain.ErrRoomLocked
			}
			if r.maxParticipants > 0 && len(r.participants) >= r.maxParticipants {
				r.mu.Unlock()
				return RoomState{}, domain.ErrRoomFull
			}
		}
		var stale domain.ConnectionID
		if rejoining {
			stale = prev.ConnectionID
		}
		p := &domain.Participant{
			UserID:       id.UserID,
			DisplayName:  id.DisplayName,
			ConnectionID: connID,
			AudioEnabled: audio,
			VideoEnabled: video,
			JoinedAt:     c.now(),
			Quality:      domain.QualityGood,
		}
		r.participants[id.UserID] = p
		c.bindConn(connID, callID, id.UserID, stale)
		state := r.stateLocked()
		c.notify(r.targetsLocked(id.UserID), Event{
			Name:    EventUserJoined,
			CallID:  callID,
			Actor:   id.UserID,
			Payload: infoOf(p),
		})
		r.mu.Unlock()
		if !rejoining {
			metrics.ParticipantJoined()
		}
		log.Info().Str("module", "core.coordinator").
			Str("call", string(callID)).Str("user", string(id.UserID)).
			Str("conn", string(connID)).Bool("rejoin", rejoining).Msg("participant joined")
		return state, nil
	}
}

func (c *coordinator) Leave(callID domain.CallID, userID domain.UserID) {
	c.remove(callID, userID, "left")
}

// remove is the shared removal path for Leave and the reaper. Idempotent.
func (c *coordinator) remove(callID domain.CallID, userID domain.UserID, reason string) {
	r, ok := c.getRoom(callID)
	if !ok {
		return
	}
	r.mu.Lock()
	p, ok := r.participants[userID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.participants, userID)
	c.unbindConn(p.ConnectionID)
	c.notify(r.targetsLocked(userID), Event{
		Name:    EventUserLeft,
		CallID:  callID,
		Actor:   userID,
		Payload: userLeftPayload{UserID: userID, Reason: reason},
	})
	empty := len(r.participants) == 0
	if empty {
		r.closed = true
	}
	r.mu.Unlock()
	if empty {
		c.dropRoom(r)
	}
	metrics.ParticipantLeft()
	log.Info().Str("module", "core.coordinator").
		Str("call", string(callID)).Str("user", string(userID)).
		Str("reason", reason).Msg("participant removed")
}

func (c *coordinator) Reconnect(callID domain.CallID, userID domain.UserID, newConnID domain.ConnectionID) (RoomState, error) {
	r, ok := c.getRoom(callID)
	if !ok {
		return RoomState{}, domain.ErrNotInCall
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[userID]
	if !ok {
		return RoomState{}, domain.ErrNotInCall
	}
	stale := p.ConnectionID
	p.ConnectionID = newConnID
	p.Quality = domain.QualityGood
	p.DisconnectedAt = time.Time{}
	c.bindConn(newConnID, callID, userID, stale)
	c.notify(r.targetsLocked(userID), Event{
		Name:    EventUserReconnected,
		CallID:  callID,
		Actor:   userID,
		Payload: infoOf(p),
	})
	log.Info().Str("module", "core.coordinator").
		Str("call", string(callID)).Str("user", string(userID)).
		Str("conn", string(newConnID)).Msg("participant reconnected")
	return r.stateLocked(), nil
}

func (c *coordinator) RoomState(callID domain.CallID) (RoomState, bool) {
	r, ok := c.getRoom(callID)
	if !ok {
		return RoomState{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return RoomState{}, false
	}
	return r.stateLocked(), true
}

func (c *coordinator) UpdateMediaState(callID domain.CallID, userID domain.UserID, upd MediaUpdate) {
	r, ok := c.getRoom(callID)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[userID]
	if !ok {
		return
	}
	if upd.AudioEnabled != nil {
		p.AudioEnabled = *upd.AudioEnabled
	}
	if upd.VideoEnabled != nil {
		p.VideoEnabled = *upd.VideoEnabled
	}
	c.notify(r.targetsLocked(userID), Event{
		Name:   EventMediaStateChanged,
		CallID: callID,
		Actor:  userID,
		Payload: mediaStatePayload{
			UserID:       userID,
			AudioEnabled: p.AudioEnabled,
			VideoEnabled: p.VideoEnabled,
		},
	})
}

func (c *coordinator) UpdateNetworkQuality(callID domain.CallID, userID domain.UserID, q domain.NetworkQuality, stats json.RawMessage) {
	r, ok := c.getRoom(callID)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[userID]
	if !ok {
		return
	}
	p.Quality = q
	if q == domain.QualityDisconnected {
		if p.DisconnectedAt.IsZero() {
			p.DisconnectedAt = c.now()
		}
	} else {
		p.DisconnectedAt = time.Time{}
	}
	c.notify(r.targetsLocked(userID), Event{
		Name:    EventNetworkQualityChanged,
		CallID:  callID,
		Actor:   userID,
		Payload: qualityPayload{UserID: userID, Quality: q, Stats: stats},
	})
}

func (c *coordinator) Typing(callID domain.CallID, userID domain.UserID) {
	r, ok := c.getRoom(callID)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[userID]
	if !ok {
		return
	}
	c.notify(r.targetsLocked(userID), Event{
		Name:    EventUserTyping,
		CallID:  callID,
		Actor:   userID,
		Payload: typingPayload{UserID: userID, DisplayName: p.DisplayName},
	})
}

func (c *coordinator) Participant(callID domain.CallID, userID domain.UserID) (domain.Participant, bool) {
	r, ok := c.getRoom(callID)
	if !ok {
		return domain.Participant{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[userID]
	if !ok {
		return domain.Participant{}, false
	}
	return *p, true
}

func (c *coordinator) ParticipantByConnection(connID domain.ConnectionID) (domain.CallID, domain.Participant, bool) {
	c.mu.RLock()
	e, ok := c.conns[connID]
	c.mu.RUnlock()
	if !ok {
		return "", domain.Participant{}, false
	}
	p, ok := c.Participant(e.callID, e.userID)
	if !ok {
		// Index points at a room or participant that no longer exists.
		// Self-heal by dropping the dangling mapping.
		c.unbindConn(connID)
		log.Warn().Str("module", "core.coordinator").
			Str("conn", string(connID)).Str("call", string(e.callID)).
			Msg("dangling connection mapping removed")
		return "", domain.Participant{}, false
	}
	return e.callID, p, true
}

func (c *coordinator) CallIDByConnection(connID domain.ConnectionID) (domain.CallID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.conns[connID]
	if !ok {
		return "", false
	}
	return e.callID, true
}

// MarkDisconnected flags the participant behind a dropped transport as
// disconnected. The participant stays in the room until it reconnects or the
// reaper's grace period runs out; the stale connection mapping is dropped
// right away since that socket can never speak again.
func (c *coordinator) MarkDisconnected(connID domain.ConnectionID) (domain.CallID, domain.Participant, bool) {
	c.mu.RLock()
	e, ok := c.conns[connID]
	c.mu.RUnlock()
	if !ok {
		return "", domain.Participant{}, false
	}
	c.unbindConn(connID)
	r, ok := c.getRoom(e.callID)
	if !ok {
		return "", domain.Participant{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[e.userID]
	if !ok || p.ConnectionID != connID {
		// Already rejoined on a fresh connection; nothing to mark.
		return "", domain.Participant{}, false
	}
	p.Quality = domain.QualityDisconnected
	p.DisconnectedAt = c.now()
	c.notify(r.targetsLocked(e.userID), Event{
		Name:    EventUserDisconnected,
		CallID:  e.callID,
		Actor:   e.userID,
		Payload: userDisconnectedPayload{UserID: e.userID},
	})
	log.Info().Str("module", "core.coordinator").
		Str("call", string(e.callID)).Str("user", string(e.userID)).
		Str("conn", string(connID)).Msg("participant marked disconnected")
	return e.callID, *p, true
}

func (c *coordinator) SetLocked(callID domain.CallID, locked bool) bool {
	r, ok := c.getRoom(callID)
	if !ok {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.locked = locked
	log.Info().Str("module", "core.coordinator").
		Str("call", string(callID)).Bool("locked", locked).Msg("room lock changed")
	return true
}

func (c *coordinator) ListRooms() []RoomInfo {
	c.mu.RLock()
	rooms := make([]*room, 0, len(c.rooms))
	for _, r := range c.rooms {
		rooms = append(rooms, r)
	}
	c.mu.RUnlock()
	out := make([]RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		r.mu.Lock()
		if !r.closed {
			out = append(out, r.infoLocked())
		}
		r.mu.Unlock()
	}
	return out
}

// ReapStale evicts participants that have sat in the disconnected state past
// the grace period. It walks rooms with the same per-room locking as every
// other mutation, so it is safe against concurrent join/leave traffic.
func (c *coordinator) ReapStale(grace time.Duration) int {
	cutoff := c.now().Add(-grace)
	c.mu.RLock()
	rooms := make([]*room, 0, len(c.rooms))
	for _, r := range c.rooms {
		rooms = append(rooms, r)
	}
	c.mu.RUnlock()

	reaped := 0
	for _, r := range rooms {
		r.mu.Lock()
		for uid, p := range r.participants {
			if p.Quality != domain.QualityDisconnected || p.DisconnectedAt.IsZero() {
				continue
			}
			if p.DisconnectedAt.After(cutoff) {
				continue
			}
			delete(r.participants, uid)
			c.unbindConn(p.ConnectionID)
			c.notify(r.targetsLocked(uid), Event{
				Name:    EventUserLeft,
				CallID:  r.callID,
				Actor:   uid,
				Payload: userLeftPayload{UserID: uid, Reason: "timeout"},
			})
			reaped++
			metrics.ParticipantLeft()
			metrics.ParticipantReaped()
			log.Info().Str("module", "core.coordinator").
				Str("call", string(r.callID)).Str("user", string(uid)).Msg("stale participant reaped")
		}
		empty := len(r.participants) == 0
		if empty {
			r.closed = true
		}
		r.mu.Unlock()
		if empty {
			c.dropRoom(r)
		}
	}
	return reaped
}
