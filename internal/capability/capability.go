// Package capability defines the narrow interfaces through which the core
// consumes external providers: profile lookup, speech-to-text, response
// generation and speech synthesis. The orchestration logic depends only on
// these, so it is testable without any live provider, and a provider outage
// degrades to the fallback path instead of surfacing an error.
package capability

import (
	"context"
	"errors"

	"voicematch/backend/internal/models"
)

// ErrUnavailable is returned by any capability that failed or timed out.
// Callers recover locally; it is never shown to an end user.
var ErrUnavailable = errors.New("capability unavailable")

// Profile is what the moderator knows about a participant.
type Profile struct {
	DisplayName string
	Interests   []string
}

// Profiles looks up participant profiles.
type Profiles interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
}

// Transcriber converts captured audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Generator produces a moderator reply from the ordered turn sequence.
type Generator interface {
	Generate(ctx context.Context, turns []models.Turn) (string, error)
}

// Synthesizer converts moderator text into audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
