package testkit

import (
	"context"

	"github.com/toy-run/toy/port"
	"github.com/toy-run/toy/service"
	"github.com/toy-run/toy/value"
)

// CountType is a Sink that just tallies frames into its Collector — used
// as the fan-out leaves in the broadcast scenario, where the assertion is
// purely "how many frames did each of the three sinks see".
var CountType = service.NewType("testkit", "count")

func countNewContext(_ service.Type, cfg value.Value) (service.Context, error) {
	return collectorFrom(cfg), nil
}

func countHandle(_ context.Context, _ service.TaskContext, svcCtx service.Context, in port.Delivery, _ *port.Outgoing) service.Action {
	c := svcCtx.(*Collector)
	if in.EndOfPort {
		return service.Next(c)
	}
	c.record(in.Frame.Value)
	return service.Next(c)
}

func countDefinition() service.Definition {
	return service.Definition{
		Type:       CountType,
		Ports:      port.Sink(1),
		NewContext: countNewContext,
		Handle:     countHandle,
	}
}
