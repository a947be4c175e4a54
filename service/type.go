// Package service defines the pluggable unit of work run by the task
// executor: a ServiceType name, a PortType shape, a Config schema, a
// Context factory, and a Handler — and the Registry that maps type names
// to runnable factories.
package service

import (
	"context"
	"fmt"

	"github.com/toy-run/toy/port"
	"github.com/toy-run/toy/value"
)

// Type names a service implementation. The full name "namespace.name" is
// what graph files reference in service_type; namespace groups related
// types the way a package groups related code.
type Type struct {
	Namespace string
	Name      string
}

// NewType interns a ServiceType from its two parts. Both must be
// non-empty, non-dotted.
func NewType(namespace, name string) Type {
	return Type{Namespace: namespace, Name: name}
}

// ParseType splits a "namespace.name" string into a Type.
func ParseType(full string) (Type, error) {
	for i := 0; i < len(full); i++ {
		if full[i] == '.' {
			ns, name := full[:i], full[i+1:]
			if ns == "" || name == "" {
				break
			}
			return Type{Namespace: ns, Name: name}, nil
		}
	}
	return Type{}, fmt.Errorf("service: %q is not a valid namespace.name service type", full)
}

func (t Type) String() string { return t.Namespace + "." + t.Name }

// Validate enforces the ServiceType invariant from spec.md §3: both parts
// non-empty, and the full name is treated case-sensitively.
func (t Type) Validate() error {
	if t.Namespace == "" || t.Name == "" {
		return fmt.Errorf("service: ServiceType requires non-empty namespace and name, got %+v", t)
	}
	return nil
}

// Action is the variant a Handler returns after processing one frame (or,
// for sources, one tick): Next to keep running with updated context,
// Complete to drain and terminate normally, or Error to terminate with
// cause.
type Action struct {
	kind string
	next Context
	err  error
}

// Next keeps the service instance running, carrying ctx forward to the
// next invocation of Handler.
func Next(ctx Context) Action { return Action{kind: "next", next: ctx} }

// Complete ends the service instance normally — no further frames are
// wanted; the executor drains remaining inbound traffic and tears down.
func Complete(ctx Context) Action { return Action{kind: "complete", next: ctx} }

// Error ends the service instance with cause err, surfacing as a
// ServiceAction::Error per spec.md §4.3.
func Error(err error) Action { return Action{kind: "error", err: err} }

func (a Action) IsNext() bool     { return a.kind == "next" }
func (a Action) IsComplete() bool { return a.kind == "complete" }
func (a Action) IsError() bool    { return a.kind == "error" }
func (a Action) Context() Context { return a.next }
func (a Action) Err() error       { return a.err }

// Context is the opaque, service-defined state threaded across successive
// Handler calls for one running instance. Each service type's
// ContextFactory returns a value satisfying this (usually a pointer to
// the type's own struct); the handler type-asserts it back.
type Context interface{}

// ContextFactory builds the initial Context for one service instance from
// its resolved ServiceType and deserialized Config.
type ContextFactory func(t Type, cfg value.Value) (Context, error)

// Handler processes one inbound Delivery (or, for a Source with no
// inbound ports, a synthetic start tick) against the running Context,
// emitting zero or more frames on outgoing and returning the next Action.
// ctx governs the handler's own suspension points (a source's interval
// sleep, an outgoing send) — it is cancelled the moment the task's
// cancellation token fires.
type Handler func(ctx context.Context, taskCtx TaskContext, svcCtx Context, in port.Delivery, out *port.Outgoing) Action

// TaskContext is the subset of the owning task's context a Handler needs:
// enough to log, tag events, and check for cooperative cancellation,
// without giving services access to the full executor/supervisor
// surface. The task package supplies the concrete implementation.
type TaskContext interface {
	TaskID() string
	Cancelled() bool
	Logf(format string, args ...any)
}

// ConfigSchema is the method shape of a raw Config validator. Graph
// validation (spec.md §4.4 rule 4) does not look for this interface: it
// calls the function in Definition.ValidateConfig, when one is set, so
// malformed per-node config fails validation rather than at run time.
type ConfigSchema interface {
	ValidateConfig(cfg value.Value) error
}

// Definition is the five-piece description of a service type from
// spec.md §4.3: its ServiceType name, its PortType shape, and the
// factory/handler pair the executor drives.
type Definition struct {
	Type           Type
	Ports          port.PortType
	NewContext     ContextFactory
	Handle         Handler
	ValidateConfig func(cfg value.Value) error // optional; nil means any Config is accepted
}

func (d Definition) Validate() error {
	if err := d.Type.Validate(); err != nil {
		return err
	}
	if err := d.Ports.Validate(); err != nil {
		return fmt.Errorf("service: %s: %w", d.Type, err)
	}
	if d.NewContext == nil {
		return fmt.Errorf("service: %s: NewContext is required", d.Type)
	}
	if d.Handle == nil {
		return fmt.Errorf("service: %s: Handle is required", d.Type)
	}
	return nil
}
