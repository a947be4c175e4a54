package port

import "context"

// destination is one attached receiver of an outgoing port: the shared
// Incoming of the target service instance, plus the logical port index on
// that instance's side (the "to_port" of the Wire).
type destination struct {
	in   *Incoming
	port uint8
}

// Outgoing holds, for each of a service's declared output ports, the list
// of destinations wired to it (fan-out). Sending on a port delivers to
// every attached destination sequentially; a slow destination only stalls
// the send aimed at it, not sends aimed at other ports (spec.md §4.2).
type Outgoing struct {
	ports [][]destination
}

// NewOutgoing allocates an Outgoing with room for n output ports.
func NewOutgoing(n int) *Outgoing {
	return &Outgoing{ports: make([][]destination, n)}
}

// Attach wires this outgoing port to a destination Incoming/port, and
// registers this Outgoing as one of that Incoming's senders for the given
// incoming port (for end-of-port detection on the consumer side).
func (o *Outgoing) Attach(fromPort uint8, to *Incoming, toPort uint8) {
	for int(fromPort) >= len(o.ports) {
		o.ports = append(o.ports, nil)
	}
	to.AddSender(toPort)
	o.ports[fromPort] = append(o.ports[fromPort], destination{in: to, port: toPort})
}

// Send delivers f to port 0 — the single-port fast path most sources and
// sinks use.
func (o *Outgoing) Send(ctx context.Context, f Frame) error {
	return o.SendTo(ctx, 0, f)
}

// SendTo delivers f to every destination attached to the given output
// port, rewriting Frame.Port to the destination's logical incoming port
// index before each send. If a port has multiple destinations (fan-out)
// or a destination has multiple logical senders feeding the same incoming
// port (fan-in), the broadcast happens sequentially in attach order.
func (o *Outgoing) SendTo(ctx context.Context, port uint8, f Frame) error {
	if int(port) >= len(o.ports) {
		return nil
	}
	for _, dst := range o.ports[port] {
		out := f
		out.Port = dst.port
		if err := dst.in.Channel().Send(ctx, out); err != nil && err != ErrClosed {
			return err
		}
	}
	return nil
}

// Close releases this Outgoing's hold on every destination it was attached
// to — called once the owning service instance's run loop exits, per the
// spec.md §4.5 spawn loop's "close all outgoing senders owned by this
// task" step. Each destination's Incoming observes this as one fewer
// sender for its logical port, synthesizing end-of-port once the last one
// departs.
func (o *Outgoing) Close() {
	for _, dsts := range o.ports {
		for _, dst := range dsts {
			dst.in.CloseSender(dst.port)
		}
	}
}

// PortCount returns the number of declared output ports.
func (o *Outgoing) PortCount() int { return len(o.ports) }
