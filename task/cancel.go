package task

import "sync/atomic"

// CancelToken is the cooperative cancellation signal shared by every
// service instance of one task (spec.md §5). Signal is idempotent; the
// executor's spawn loop checks Signalled at the top of every iteration,
// and its blocking receives wait on a context that is cancelled once Done
// closes.
type CancelToken struct {
	signalled atomic.Bool
	done      chan struct{}
}

// NewCancelToken creates an unsignalled token.
func NewCancelToken() *CancelToken {
	return &CancelToken{done: make(chan struct{})}
}

// Signal marks the token cancelled. Safe to call more than once and from
// multiple goroutines; only the first call closes Done.
func (c *CancelToken) Signal() {
	if c.signalled.CompareAndSwap(false, true) {
		close(c.done)
	}
}

// Signalled reports whether Signal has been called.
func (c *CancelToken) Signalled() bool {
	return c.signalled.Load()
}

// Done returns a channel closed when Signal is called — usable directly
// in a select alongside a service's own suspension points (inbound.recv,
// outgoing.send).
func (c *CancelToken) Done() <-chan struct{} {
	return c.done
}
