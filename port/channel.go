package port

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Send/TrySend once every attached sender has
// released the channel; Recv reports that state with ok=false instead.
var ErrClosed = errors.New("port: channel closed")

// ErrFull is returned by TrySend when the channel's buffer has no room.
var ErrFull = errors.New("port: channel full")

// Channel is a bounded FIFO queue of Frame shared by potentially many
// producers and many consumers. It is the unit the Incoming/Outgoing types
// below are built from — one Channel per destination service instance.
type Channel struct {
	ch     chan Frame
	mu     sync.Mutex
	closed bool
	// senders counts live producers; the channel only closes for real once
	// every producer that attached has called CloseSender. Dropping all
	// senders terminates the receiver, per spec.md §3 ownership rule.
	senders int
}

// NewChannel creates a Channel with the given buffer capacity.
func NewChannel(capacity int) *Channel {
	if capacity < 1 {
		capacity = 1
	}
	return &Channel{ch: make(chan Frame, capacity)}
}

// AddSender registers one more producer attached to this channel. Call
// CloseSender exactly once per AddSender when that producer is done.
func (c *Channel) AddSender() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.senders++
}

// CloseSender releases one producer's hold on the channel. When the last
// sender releases, the channel is closed for real and pending frames are
// still delivered (spec.md §4.2: "after close, further send fails; pending
// frames are still delivered").
func (c *Channel) CloseSender() {
	c.mu.Lock()
	c.senders--
	shouldClose := c.senders <= 0 && !c.closed
	if shouldClose {
		c.closed = true
	}
	c.mu.Unlock()
	if shouldClose {
		close(c.ch)
	}
}

// Send blocks until the frame is enqueued, the context is cancelled, or the
// channel has no live senders left to deliver to (ErrClosed).
func (c *Channel) Send(ctx context.Context, f Frame) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	select {
	case c.ch <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySend enqueues f without blocking, returning ErrFull if the buffer has
// no room and ErrClosed if the channel has no live senders.
func (c *Channel) TrySend(f Frame) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	select {
	case c.ch <- f:
		return nil
	default:
		return ErrFull
	}
}

// Recv blocks until a frame is available, the context is cancelled, or the
// channel is closed and drained (ok=false).
func (c *Channel) Recv(ctx context.Context) (Frame, bool, error) {
	select {
	case f, ok := <-c.ch:
		return f, ok, nil
	case <-ctx.Done():
		return Frame{}, false, ctx.Err()
	}
}
