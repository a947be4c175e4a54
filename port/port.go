// Package port implements the bounded, typed channel layer that carries
// Frames between service instances: fan-in on the Incoming side, fan-out on
// the Outgoing side, with per-destination back-pressure.
package port

import "fmt"

// PortType declares how many input and output ports a service has.
// Source has out ports only, Sink has in ports only, Flow has both.
type PortType struct {
	kind string
	in   int
	out  int
}

const maxPorts = 1 << 16

func Source(out int) PortType { return PortType{kind: "source", out: out} }
func Sink(in int) PortType    { return PortType{kind: "sink", in: in} }
func Flow(in, out int) PortType { return PortType{kind: "flow", in: in, out: out} }

func (p PortType) IsSource() bool { return p.kind == "source" }
func (p PortType) IsSink() bool   { return p.kind == "sink" }
func (p PortType) IsFlow() bool   { return p.kind == "flow" }

func (p PortType) In() int  { return p.in }
func (p PortType) Out() int { return p.out }

// Validate checks the static invariants from spec.md §3: in >= 1 for
// Sink/Flow, out >= 1 for Source/Flow, and an upper bound of 2^16 ports.
func (p PortType) Validate() error {
	switch p.kind {
	case "source":
		if p.out < 1 {
			return fmt.Errorf("port: Source must declare out >= 1")
		}
	case "sink":
		if p.in < 1 {
			return fmt.Errorf("port: Sink must declare in >= 1")
		}
	case "flow":
		if p.in < 1 || p.out < 1 {
			return fmt.Errorf("port: Flow must declare in >= 1 and out >= 1")
		}
	default:
		return fmt.Errorf("port: unknown port type")
	}
	if p.in > maxPorts || p.out > maxPorts {
		return fmt.Errorf("port: port count exceeds %d", maxPorts)
	}
	return nil
}

func (p PortType) String() string {
	switch p.kind {
	case "source":
		return fmt.Sprintf("Source(%d)", p.out)
	case "sink":
		return fmt.Sprintf("Sink(%d)", p.in)
	case "flow":
		return fmt.Sprintf("Flow(%d,%d)", p.in, p.out)
	default:
		return "Invalid"
	}
}
