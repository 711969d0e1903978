package domain

import "time"

type NotificationKind string

const (
	NoticeInfo  NotificationKind = "info"
	NoticeError NotificationKind = "error"
)

// User-facing notification texts.
const (
	NoticeMicrophoneRequired = "Microphone access is required!"
	NoticePartnerLeft        = "Stranger disconnected"
	NoticeConnectionFailed   = "Connection failed"
	NoticeConnectionLost     = "Connection lost"
)

type Notification struct {
	Kind    NotificationKind `json:"kind"`
	Error   Kind             `json:"error,omitempty"`
	Message string           `json:"message"`
	At      time.Time        `json:"at"`
}

// Snapshot is the read-only projection handed to the presentation layer.
type Snapshot struct {
	Status        Status        `json:"status"`
	IsMuted       bool          `json:"isMuted"`
	CallDuration  int           `json:"callDuration"`
	Transcript    []Message     `json:"transcript"`
	UnreadCount   int           `json:"unreadCount"`
	OnlineUsers   int           `json:"onlineUsers"`
	AutoReconnect bool          `json:"autoReconnect"`
	Theme         Theme         `json:"theme"`
	Notification  *Notification `json:"notification,omitempty"`
}
