package testkit

import (
	"context"

	"github.com/toy-run/toy/port"
	"github.com/toy-run/toy/service"
	"github.com/toy-run/toy/value"
)

// BroadcastType is a Flow that copies every inbound frame to all of its
// declared outgoing ports — the graph's port_type (fan_out_flow in the
// original) decides how many, not the service itself. Default registered
// shape is Flow(1,1); graphs needing wider fan-out override port_type at
// decode time.
var BroadcastType = service.NewType("testkit", "broadcast")

func broadcastNewContext(_ service.Type, _ value.Value) (service.Context, error) {
	return struct{}{}, nil
}

func broadcastHandle(ctx context.Context, _ service.TaskContext, svcCtx service.Context, in port.Delivery, out *port.Outgoing) service.Action {
	if in.EndOfPort {
		return service.Next(svcCtx)
	}
	for p := 0; p < out.PortCount(); p++ {
		if err := out.SendTo(ctx, uint8(p), in.Frame.Clone()); err != nil {
			return service.Error(err)
		}
	}
	return service.Next(svcCtx)
}

func broadcastDefinition() service.Definition {
	return service.Definition{
		Type:       BroadcastType,
		Ports:      port.Flow(1, 1),
		NewContext: broadcastNewContext,
		Handle:     broadcastHandle,
	}
}
