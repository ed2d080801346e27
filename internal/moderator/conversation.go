package moderator

import (
	"sync"
	"time"

	"voicematch/backend/internal/models"

	"github.com/oklog/ulid/v2"
)

// conversation is the per-room transcript the orchestrator reasons over.
// Turns are append-only while the room is alive and strictly ordered by
// timestamp. Mutation happens only on the room's worker goroutine; the
// mutex exists so snapshots can be taken from outside it.
type conversation struct {
	mu                       sync.Mutex
	turns                    []models.Turn
	silenceCount             int
	lastTurnAt               time.Time
	humanTurnsSinceModerator int
}

// append adds a turn with a timestamp clamped to be non-decreasing, so the
// ordering invariant holds even if the wall clock steps backwards.
func (c *conversation) append(speaker models.Speaker, speakerID, text string) models.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := time.Now()
	if n := len(c.turns); n > 0 && ts.Before(c.turns[n-1].Timestamp) {
		ts = c.turns[n-1].Timestamp
	}
	turn := models.Turn{
		ID:        ulid.Make().String(),
		Speaker:   speaker,
		SpeakerID: speakerID,
		Text:      text,
		Timestamp: ts,
	}
	c.turns = append(c.turns, turn)
	c.lastTurnAt = ts
	return turn
}

// snapshot copies the turn sequence for use outside the worker, e.g. as
// generation context.
func (c *conversation) snapshot() []models.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.Turn, len(c.turns))
	copy(out, c.turns)
	return out
}
