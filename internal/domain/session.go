package domain

import "time"

type Status string

const (
	StatusIdle      Status = "idle"
	StatusSearching Status = "searching"
	StatusConnected Status = "connected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusIdle, StatusSearching, StatusConnected:
		return true
	}
	return false
}

type Role string

const (
	RoleInitiator Role = "initiator"
	RoleResponder Role = "responder"
)

type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
)

// Message is one transcript entry.
type Message struct {
	Text      string    `json:"text"`
	Direction Direction `json:"direction"`
}

// Match is a pairing assignment handed out by the matchmaking service.
// It lives from match_found until disconnect, hangup or skip.
type Match struct {
	Partner PeerID
	Role    Role
	// Attempt is the number of Call Attempts started for this match.
	Attempt int
	At      time.Time
}

func (m *Match) Initiator() bool { return m != nil && m.Role == RoleInitiator }
