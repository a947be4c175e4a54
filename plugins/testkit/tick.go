package testkit

import (
	"context"
	"time"

	"github.com/toy-run/toy/port"
	"github.com/toy-run/toy/service"
	"github.com/toy-run/toy/value"
)

// TickType is a Source that emits a monotonically increasing integer every
// interval_ms, forever unless config sets a positive count — the stand-in
// for the original's timer plugin, reduced to one config knob.
var TickType = service.NewType("testkit", "tick")

type tickContext struct {
	interval time.Duration
	n        int64
	limit    int64 // 0 means unbounded
}

func tickNewContext(_ service.Type, cfg value.Value) (service.Context, error) {
	interval := 10 * time.Millisecond
	var limit int64
	if cfg.Kind() == value.KindMap {
		if v, ok := cfg.Get("interval_ms"); ok {
			if ms, ok := v.AsInt(); ok {
				interval = time.Duration(ms) * time.Millisecond
			}
		}
		if v, ok := cfg.Get("count"); ok {
			if n, ok := v.AsInt(); ok {
				limit = n
			}
		}
	}
	return &tickContext{interval: interval, limit: limit}, nil
}

// tickHandle ignores the Delivery it's handed (a Source sees only the
// executor's synthetic start tick) and instead drives purely off its own
// Context: emit the next integer, sleep the configured interval, repeat.
// Sleeping via a ctx-aware timer rather than time.Sleep lets Stop/cancel
// interrupt mid-wait instead of the task lingering for one more interval.
func tickHandle(ctx context.Context, _ service.TaskContext, svcCtx service.Context, _ port.Delivery, out *port.Outgoing) service.Action {
	tc := svcCtx.(*tickContext)

	if tc.limit > 0 && tc.n >= tc.limit {
		return service.Complete(tc)
	}

	if err := out.Send(ctx, port.New(value.Int(tc.n))); err != nil {
		return service.Error(err)
	}
	tc.n++

	timer := time.NewTimer(tc.interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return service.Complete(tc)
	case <-timer.C:
	}

	return service.Next(tc)
}

func tickDefinition() service.Definition {
	return service.Definition{
		Type:       TickType,
		Ports:      port.Source(1),
		NewContext: tickNewContext,
		Handle:     tickHandle,
	}
}
