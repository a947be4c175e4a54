package port

import (
	"context"
	"sync"
)

// Delivery is what a service instance's run loop receives from Incoming: a
// data/error Frame, or a synthetic end-of-port signal once the last
// upstream sender for that port has gone away.
type Delivery struct {
	Frame     Frame
	EndOfPort bool
	Port      uint8
	// Done is true once every incoming port has seen end-of-port and the
	// underlying channel has been fully drained — there will be no more
	// deliveries.
	Done bool
}

// Incoming multiplexes every wire feeding a single service instance into
// one receivable stream, tracking how many upstream senders remain for
// each logical incoming port so it can synthesize the end-of-port signal
// described in spec.md §4.2.
type Incoming struct {
	ch *Channel

	mu      sync.Mutex
	senders map[uint8]int // live upstream senders per incoming port
	total   int           // sum of all senders across all ports
}

// NewIncoming creates an Incoming backed by a channel of the given
// capacity — per spec.md §4.5, callers should use
// max(8, 4 * inbound_ports).
func NewIncoming(capacity int) *Incoming {
	return &Incoming{
		ch:      NewChannel(capacity),
		senders: make(map[uint8]int),
	}
}

// AddSender registers one more upstream producer targeting the given
// incoming port. Called once per Wire at executor wiring time.
func (in *Incoming) AddSender(port uint8) {
	in.mu.Lock()
	in.senders[port]++
	in.total++
	in.mu.Unlock()
	in.ch.AddSender()
}

// CloseSender releases one upstream producer's hold on the given incoming
// port. When it is the last sender for that port, a synthetic end-of-port
// Delivery is queued so the consumer observes it in FIFO order relative to
// data already sent on that port.
func (in *Incoming) CloseSender(port uint8) {
	in.mu.Lock()
	in.senders[port]--
	last := in.senders[port] <= 0
	in.total--
	in.mu.Unlock()

	if last {
		// Best effort: queue the end-of-port marker. If the buffer is
		// momentarily full, send blocks briefly — this runs on the
		// producer's own closing goroutine, never the consumer's.
		in.ch.mu.Lock()
		closed := in.ch.closed
		in.ch.mu.Unlock()
		if !closed {
			in.ch.ch <- Frame{Port: port, Tags: map[string]string{"__eop": "1"}}
		}
	}
	in.ch.CloseSender()
}

// Recv blocks for the next Delivery: a data/error frame, an end-of-port
// signal, or Done once nothing more will ever arrive.
func (in *Incoming) Recv(ctx context.Context) (Delivery, error) {
	f, ok, err := in.ch.Recv(ctx)
	if err != nil {
		return Delivery{}, err
	}
	if !ok {
		return Delivery{Done: true}, nil
	}
	if f.Tags["__eop"] == "1" {
		return Delivery{EndOfPort: true, Port: f.Port}, nil
	}
	return Delivery{Frame: f, Port: f.Port}, nil
}

// Channel exposes the underlying Channel so an attached Outgoing can
// deliver frames directly to it; Incoming itself still owns sender
// accounting via AddSender/CloseSender.
func (in *Incoming) Channel() *Channel { return in.ch }
