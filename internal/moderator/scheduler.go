package moderator

import (
	"context"
	"time"
)

// Scheduler drives the orchestrator's silence detection. The orchestrator
// never ticks itself; this external loop does, which keeps the state machine
// deterministic under test.
type Scheduler struct {
	Orchestrator *Orchestrator
	Interval     time.Duration
}

// NewScheduler creates a scheduler ticking at the given interval.
func NewScheduler(o *Orchestrator, interval time.Duration) *Scheduler {
	return &Scheduler{Orchestrator: o, Interval: interval}
}

// Run ticks every live room until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Orchestrator.TickAll()
		}
	}
}
