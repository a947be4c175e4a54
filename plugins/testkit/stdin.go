package testkit

import (
	"context"

	"github.com/toy-run/toy/port"
	"github.com/toy-run/toy/service"
	"github.com/toy-run/toy/value"
)

// StdinType is a Source that replays config.lines — a fixed sequence of
// strings — one per Handle call, then Completes. It stands in for reading
// an actual stdin stream, which would make test timing nondeterministic.
var StdinType = service.NewType("testkit", "stdin")

type stdinContext struct {
	lines []string
	pos   int
}

func stdinNewContext(_ service.Type, cfg value.Value) (service.Context, error) {
	var lines []string
	if cfg.Kind() == value.KindMap {
		if v, ok := cfg.Get("lines"); ok {
			if seq, ok := v.AsSeq(); ok {
				for _, e := range seq {
					if s, ok := e.AsString(); ok {
						lines = append(lines, s)
					}
				}
			}
		}
	}
	return &stdinContext{lines: lines}, nil
}

func stdinHandle(ctx context.Context, _ service.TaskContext, svcCtx service.Context, _ port.Delivery, out *port.Outgoing) service.Action {
	sc := svcCtx.(*stdinContext)
	if sc.pos >= len(sc.lines) {
		return service.Complete(sc)
	}

	line := sc.lines[sc.pos]
	sc.pos++
	if err := out.Send(ctx, port.New(value.String(line))); err != nil {
		return service.Error(err)
	}
	if sc.pos >= len(sc.lines) {
		return service.Complete(sc)
	}
	return service.Next(sc)
}

func stdinDefinition() service.Definition {
	return service.Definition{
		Type:       StdinType,
		Ports:      port.Source(1),
		NewContext: stdinNewContext,
		Handle:     stdinHandle,
	}
}
