package supervisor

import (
	"context"
	"time"
)

// eventExportLoop drains the shared EventRegistry every
// cfg.EventExportInterval and hands the batch to the configured
// events.Exporter. On failure the batch is pushed back (Extend) so events
// are never lost — export is at-least-once (spec.md §4.6/§8 scenario 6).
func (s *Supervisor) eventExportLoop(ctx context.Context) error {
	if s.eventExp == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	interval := s.cfg.EventExportInterval
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
			s.exportEvents(ctx)
		}
	}
}

func (s *Supervisor) exportEvents(ctx context.Context) {
	batch := s.events.Drain()
	if len(batch.Records) == 0 {
		return
	}
	if err := s.eventExp.Export(ctx, batch); err != nil {
		s.log.Error("event export failed; re-queueing batch", "error", err, "records", len(batch.Records))
		s.events.Extend(batch)
	}
}

// metricsExportLoop snapshots the MetricsRegistry every
// cfg.MetricsExportInterval and hands it to the configured
// metrics.Exporter. Unlike events, a failed metrics export is simply
// superseded by the next tick's fresher snapshot (spec.md §4.6).
func (s *Supervisor) metricsExportLoop(ctx context.Context) error {
	if s.metExp == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	interval := s.cfg.MetricsExportInterval
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
			snap, err := s.metrics.Snapshot()
			if err != nil {
				s.log.Error("metrics snapshot failed", "error", err)
				continue
			}
			if err := s.metExp.Export(ctx, snap); err != nil {
				s.log.Error("metrics export failed", "error", err)
			}
		}
	}
}
