package domain

// EventType names a signaling message on the wire. The names are the stable
// interface with the matchmaking service.
type EventType string

// Outbound.
const (
	EventFindPartner    EventType = "find_partner"
	EventPeerReady      EventType = "peer_ready"
	EventDisconnectCall EventType = "disconnect_call"
	EventSendMessage    EventType = "send_message"
	EventPreflightDone  EventType = "preflight_done"
)

// Inbound.
const (
	EventUserCount           EventType = "user_count"
	EventMatchFound          EventType = "match_found"
	EventStartCall           EventType = "start_call"
	EventPreflight           EventType = "preflight"
	EventPartnerDisconnected EventType = "partner_disconnected"
	EventReceiveMessage      EventType = "receive_message"
	EventPeerNotReady        EventType = "peer_not_ready"
)

// Channel lifecycle, produced locally by the signaling adapter.
const (
	EventChannelUp   EventType = "channel_up"
	EventChannelDown EventType = "channel_down"
)

// SignalEvent is a decoded inbound signaling message.
type SignalEvent struct {
	Type      EventType
	Count     int
	Partner   PeerID
	Initiator bool
	Text      string
	// Reconnected is set on EventChannelUp when this is not the first connection.
	Reconnected bool
}
