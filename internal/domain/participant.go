// Package domain contains entities without logic, just meta-data.
package domain

import "time"

type (
	CallID       string
	UserID       string
	ConnectionID string
)

// NetworkQuality is a coarse classification of a participant's link health,
// supplied by the client and passed through untouched.
type NetworkQuality string

const (
	QualityExcellent    NetworkQuality = "excellent"
	QualityGood         NetworkQuality = "good"
	QualityFair         NetworkQuality = "fair"
	QualityPoor         NetworkQuality = "poor"
	QualityVeryPoor     NetworkQuality = "very_poor"
	QualityDisconnected NetworkQuality = "disconnected"
)

func (q NetworkQuality) Valid() bool {
	switch q {
	case QualityExcellent, QualityGood, QualityFair, QualityPoor, QualityVeryPoor, QualityDisconnected:
		return true
	}
	return false
}

// Participant is one user's live presence within a call.
// ConnectionID is rewritten on reconnect; JoinedAt is set once.
type Participant struct {
	UserID       UserID
	DisplayName  string
	ConnectionID ConnectionID
	AudioEnabled bool
	VideoEnabled bool
	JoinedAt     time.Time
	Quality      NetworkQuality

	// DisconnectedAt is zero while the transport is up. It is set when the
	// quality drops to disconnected and cleared on reconnect; the reaper keys
	// eviction off this timestamp, not off JoinedAt.
	DisconnectedAt time.Time
}
