package models

import "encoding/json"

// Wire message types carried over the relay. Client-originated types on the
// left half, server-originated notifications on the right.
const (
	SignalJoinRoom         = "join-room"
	SignalOffer            = "offer"
	SignalAnswer           = "answer"
	SignalICECandidate     = "ice-candidate"
	SignalMicToggle        = "mic-toggle"
	SignalLeaveRoom        = "leave-room"
	SignalAudioUtterance   = "audio-utterance"
	SignalUserJoined       = "user-joined"
	SignalUserLeft         = "user-left"
	SignalRoomInfo         = "room-info"
	SignalModeratorMessage = "moderator-message"
	SignalConnectionFailed = "connection-failed"
	SignalError            = "error"
)

// SignalMessage is the transient envelope moved between relay ingress and
// egress. Payload carries negotiation content (session descriptions, ICE
// candidates) and stays opaque to the relay: the relay routes on RoomID and
// SenderID only and never looks inside.
type SignalMessage struct {
	Type     string `json:"type"`
	RoomID   string `json:"room_id,omitempty"`
	SenderID string `json:"sender_id,omitempty"`

	// Muted accompanies mic-toggle messages.
	Muted bool `json:"muted,omitempty"`
	// Transcript accompanies audio-utterance messages.
	Transcript string `json:"transcript,omitempty"`
	// Text and Audio accompany moderator-message messages. Audio is base64.
	Text  string `json:"text,omitempty"`
	Audio string `json:"audio,omitempty"`
	// Users accompanies room-info messages.
	Users []string `json:"users,omitempty"`

	Payload json.RawMessage `json:"payload,omitempty"`
}
