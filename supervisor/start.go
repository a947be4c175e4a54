package supervisor

import (
	"context"

	"github.com/matgreaves/run"
)

// Start composes the control loop and the three periodic loops into one
// run.Group, the same "runner + independent background loops" pairing
// the teacher's runWithLifecycle uses to run a service process alongside
// its ready-check/init continuation (server/lifecycle.go). One loop
// failing (e.g. the control loop exiting on ctx cancellation) tears down
// the others; each loop's own error handling happens internally first
// (heartbeat/export failures are logged and retried, never returned).
func (s *Supervisor) Start(ctx context.Context) error {
	group := run.Group{
		"control":        run.Func(s.Run),
		"heartbeat":      run.Func(s.heartbeatLoop),
		"event-export":   run.Func(s.eventExportLoop),
		"metrics-export": run.Func(s.metricsExportLoop),
	}
	return group.Run(ctx)
}
