package models

import "time"

// Speaker is the role of whoever produced a Turn.
type Speaker string

const (
	SpeakerHumanA    Speaker = "human-a"
	SpeakerHumanB    Speaker = "human-b"
	SpeakerModerator Speaker = "moderator"
)

// Turn is one utterance in a room's conversation history. The ID is a ULID,
// so turn IDs sort in creation order.
type Turn struct {
	ID        string    `json:"id"`
	Speaker   Speaker   `json:"speaker"`
	SpeakerID string    `json:"speaker_id,omitempty"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}
