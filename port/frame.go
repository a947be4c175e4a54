package port

import "github.com/toy-run/toy/value"

// ErrorKind tags a Frame that carries an error instead of a value.
type ErrorKind string

const (
	ErrNone      ErrorKind = ""
	ErrService   ErrorKind = "service"
	ErrMessaging ErrorKind = "messaging"
	ErrConfig    ErrorKind = "config"
)

// Frame is the envelope carried on every wire: a Value, the port index that
// produced or will consume it, an optional error, and a small tag map used
// for tracing. Exactly one of Value or Error is meaningful for a frame that
// has actually been delivered — a frame under construction may have
// neither.
type Frame struct {
	Value value.Value
	Port  uint8
	Error ErrorKind
	Cause string
	Tags  map[string]string
}

// New builds a plain data Frame on port 0 (the single-port fast path
// described in spec.md §4.2).
func New(v value.Value) Frame {
	return Frame{Value: v, Port: 0}
}

// NewOnPort builds a Frame destined for a specific outgoing port.
func NewOnPort(v value.Value, port uint8) Frame {
	return Frame{Value: v, Port: port}
}

// NewError builds a Frame carrying an error instead of a value.
func NewError(kind ErrorKind, cause string, port uint8) Frame {
	return Frame{Port: port, Error: kind, Cause: cause}
}

// IsError reports whether this frame carries an error instead of a value.
func (f Frame) IsError() bool { return f.Error != ErrNone }

// Clone deep-copies the Value payload, honoring the "cloning a Value is a
// deep copy by contract" rule from spec.md §4.1.
func (f Frame) Clone() Frame {
	cp := f
	cp.Value = f.Value.Clone()
	if f.Tags != nil {
		cp.Tags = make(map[string]string, len(f.Tags))
		for k, v := range f.Tags {
			cp.Tags[k] = v
		}
	}
	return cp
}
