package testkit

import (
	"context"

	"github.com/toy-run/toy/port"
	"github.com/toy-run/toy/service"
	"github.com/toy-run/toy/value"
)

// FilterType is a Flow that forwards a frame only when every configured
// Predicate matches it, dropping the rest silently.
var FilterType = service.NewType("testkit", "filter")

type filterContext struct {
	preds []Predicate
}

func filterNewContext(_ service.Type, cfg value.Value) (service.Context, error) {
	preds, err := predicatesFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &filterContext{preds: preds}, nil
}

func filterHandle(ctx context.Context, _ service.TaskContext, svcCtx service.Context, in port.Delivery, out *port.Outgoing) service.Action {
	fc := svcCtx.(*filterContext)
	if in.EndOfPort {
		return service.Next(fc)
	}

	for _, p := range fc.preds {
		if !p.Eval(in.Frame.Value) {
			return service.Next(fc)
		}
	}
	if err := out.Send(ctx, in.Frame.Clone()); err != nil {
		return service.Error(err)
	}
	return service.Next(fc)
}

func filterDefinition() service.Definition {
	return service.Definition{
		Type:       FilterType,
		Ports:      port.Flow(1, 1),
		NewContext: filterNewContext,
		Handle:     filterHandle,
	}
}
