package executor

import (
	"github.com/toy-run/toy/graph"
	"github.com/toy-run/toy/port"
)

// wired is one node's live channel endpoints, built from the graph's
// static Wire list before any service instance starts running.
type wired struct {
	node     graph.Node
	incoming *port.Incoming
	outgoing *port.Outgoing
}

// inboundCapacity implements spec.md §4.5 step 1:
// max(8, 4 * inbound_ports).
func inboundCapacity(inboundPorts int) int {
	c := 4 * inboundPorts
	if c < 8 {
		return 8
	}
	return c
}

// wireGraph implements spec.md §4.5 steps 1-2: allocate one Incoming per
// node sized to its declared inbound port count, one Outgoing per node
// sized to its declared outbound port count, then attach every Wire's
// source Outgoing port to its target's Incoming port.
func wireGraph(g *graph.Graph) map[graph.Uri]*wired {
	nodes := g.Nodes()
	byURI := make(map[graph.Uri]*wired, len(nodes))

	for _, n := range nodes {
		byURI[n.URI] = &wired{
			node:     n,
			incoming: port.NewIncoming(inboundCapacity(n.PortType.In())),
			outgoing: port.NewOutgoing(n.PortType.Out()),
		}
	}

	for _, n := range nodes {
		src := byURI[n.URI]
		for _, w := range n.Wires {
			dst, ok := byURI[w.ToURI]
			if !ok {
				continue // unreachable once graph.Validate has run (rule 3)
			}
			src.outgoing.Attach(w.FromPort, dst.incoming, w.ToPort)
		}
	}

	return byURI
}
