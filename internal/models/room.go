package models

import "time"

// RoomStatus is the lifecycle state of a Room. Transitions are monotonic:
// forming -> active -> closing -> closed.
type RoomStatus string

const (
	RoomForming RoomStatus = "forming"
	RoomActive  RoomStatus = "active"
	RoomClosing RoomStatus = "closing"
	RoomClosed  RoomStatus = "closed"
)

// Room represents a 1-on-1 voice session between two users, plus the
// synthetic moderator that joins every room.
type Room struct {
	// RoomID is the unique identifier for the room (UUID). Never reused.
	RoomID string `gorm:"primaryKey" json:"room_id"`
	// User1ID is the anonymous ID of the user who waited in the queue.
	User1ID string `json:"user1_id"`
	// User2ID is the anonymous ID of the user whose join completed the match.
	User2ID string `json:"user2_id"`
	// ModeratorID identifies the synthetic moderator participant.
	ModeratorID string `json:"moderator_id"`
	// Status is the current lifecycle state.
	Status RoomStatus `json:"status"`
	// StartedAt is the timestamp when the room was created.
	StartedAt time.Time `json:"started_at"`
	// LastActivity is updated whenever a message moves through the room.
	LastActivity time.Time `json:"last_activity"`
	// EndedAt is the timestamp when the room was closed.
	EndedAt time.Time `json:"ended_at"`
}

// HasParticipant reports whether userID is one of the two human participants.
func (r *Room) HasParticipant(userID string) bool {
	return userID == r.User1ID || userID == r.User2ID
}
