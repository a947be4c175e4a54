package supervisor

import (
	"context"
	"time"
)

// heartbeatLoop POSTs a heartbeat to the API server every
// cfg.HeartbeatInterval, including the supervisor's name, labels, and
// current task count (spec.md §4.6). Errors are logged; the loop never
// exits except when ctx is done — a string of transient 503s (scenario 5
// in spec.md §8) must not disturb any running task.
func (s *Supervisor) heartbeatLoop(ctx context.Context) error {
	if s.api == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	interval := s.cfg.HeartbeatInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.beat(ctx)
		}
	}
}

func (s *Supervisor) beat(ctx context.Context) {
	count, err := s.TaskCount(ctx)
	if err != nil {
		return // control loop is shutting down
	}
	if err := s.api.Heartbeat(ctx, s.cfg.Name, s.cfg.Labels, count); err != nil {
		s.log.Error("heartbeat failed", "error", err)
		return
	}
}
