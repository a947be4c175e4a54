package testkit

import (
	"context"

	"github.com/toy-run/toy/port"
	"github.com/toy-run/toy/service"
	"github.com/toy-run/toy/value"
)

// StdoutType is a Sink that records every frame it receives to the
// Collector named by config.collector (or an anonymous one if omitted).
var StdoutType = service.NewType("testkit", "stdout")

func stdoutNewContext(_ service.Type, cfg value.Value) (service.Context, error) {
	return collectorFrom(cfg), nil
}

func stdoutHandle(_ context.Context, _ service.TaskContext, svcCtx service.Context, in port.Delivery, _ *port.Outgoing) service.Action {
	c := svcCtx.(*Collector)
	if in.EndOfPort {
		return service.Next(c)
	}
	c.record(in.Frame.Value)
	return service.Next(c)
}

func stdoutDefinition() service.Definition {
	return service.Definition{
		Type:       StdoutType,
		Ports:      port.Sink(1),
		NewContext: stdoutNewContext,
		Handle:     stdoutHandle,
	}
}
