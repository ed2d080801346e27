package models

import "time"

// MatchCriteria is what a user asks for when joining the matching queue.
type MatchCriteria struct {
	Language  string   `json:"language"`
	Interests []string `json:"interests"`
	Region    string   `json:"region,omitempty"`
}

// WaitingEntry is a pending match request parked in the queue. At most one
// live entry exists per user at any time.
type WaitingEntry struct {
	UserID     string        `json:"user_id"`
	Criteria   MatchCriteria `json:"criteria"`
	EnqueuedAt time.Time     `json:"enqueued_at"`
}
