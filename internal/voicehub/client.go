package voicehub

import "voicematch/backend/internal/models"

// Client is the interface for one active transport connection. It abstracts
// the underlying mechanism so the hub and the relay can manage connections
// uniformly (and tests can substitute an in-memory double).
type Client interface {
	// GetUserID returns the anonymous identifier of the connected user.
	GetUserID() string
	// GetRoomID returns the room the client is currently subscribed to, or
	// an empty string.
	GetRoomID() string
	// SetRoomID records the client's current room subscription.
	SetRoomID(string)

	// GetSendChannel returns the channel through which the relay delivers
	// messages destined for this client. It is a send-only channel.
	GetSendChannel() chan<- models.SignalMessage

	// Run starts the client's read and write pumps.
	Run()
	// Close shuts down the client's connection and associated channels.
	// Safe to call more than once.
	Close()
}
