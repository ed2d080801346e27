package capability

import (
	"context"

	"voicematch/backend/internal/models"
)

// Unconfigured stands in when no provider is wired up. Every call reports
// ErrUnavailable, which pushes the orchestrator onto its fallback path, so
// the service runs end to end without a vendor account.
type Unconfigured struct{}

func (Unconfigured) Transcribe(ctx context.Context, audio []byte) (string, error) {
	return "", ErrUnavailable
}

func (Unconfigured) Generate(ctx context.Context, turns []models.Turn) (string, error) {
	return "", ErrUnavailable
}

func (Unconfigured) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return nil, ErrUnavailable
}
