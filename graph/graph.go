// Package graph implements the immutable dataflow DAG described in
// spec.md §3/§4.4: nodes addressed by Uri, directed Wires between them,
// and the six structural validation rules run once at load time.
package graph

import (
	"fmt"

	"github.com/toy-run/toy/port"
	"github.com/toy-run/toy/service"
	"github.com/toy-run/toy/value"
)

// Uri addresses one node within a Graph. It is an opaque string, unique
// within the graph it belongs to.
type Uri string

// Position is optional UI placement metadata; the executor never reads
// it.
type Position struct {
	X, Y uint32
}

// Wire is a directed edge from a specific output port on one node to the
// inbound side of another. The graph file format (spec.md §6.1) only
// records a flat list of target uris per node, ordered by source port
// index — the target's inbound port is always 0, since the format has no
// way to address a specific inbound port on the destination. Multiple
// wires may legally target the same node, each adding one more fan-in
// sender on its inbound port 0.
type Wire struct {
	FromURI  Uri
	FromPort uint8
	ToURI    Uri
	ToPort   uint8
}

// Node is one immutable entry in a Graph: the service it instantiates,
// its resolved port shape, its config, and the wires fanning out from it.
type Node struct {
	URI         Uri
	ServiceType service.Type
	PortType    port.PortType // resolved: explicit override, else the service's default
	Config      value.Value
	Position    *Position
	Wires       []Wire // outgoing; FromURI == URI on every entry
}

// Graph is a named, ordered collection of Nodes. Ordering matches
// declaration order in the source file — iteration order is significant
// for deterministic spawn order in the executor, even though the DAG
// itself has no inherent order.
type Graph struct {
	Name  string
	order []Uri
	nodes map[Uri]Node
}

// New builds a Graph from nodes in declaration order. It does not
// validate — call Validate (or use the graph/decode package, whose JSON
// and YAML decoders validate automatically) before handing the graph to
// the executor.
func New(name string, nodes []Node) *Graph {
	g := &Graph{Name: name, nodes: make(map[Uri]Node, len(nodes))}
	for _, n := range nodes {
		g.order = append(g.order, n.URI)
		g.nodes[n.URI] = n
	}
	return g
}

// Node looks up a node by uri.
func (g *Graph) Node(uri Uri) (Node, bool) {
	n, ok := g.nodes[uri]
	return n, ok
}

// Nodes returns every node in declaration order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.order))
	for _, uri := range g.order {
		out = append(out, g.nodes[uri])
	}
	return out
}

// Len reports the number of nodes in the graph.
func (g *Graph) Len() int { return len(g.order) }

// ValidationError reports a single failed structural rule, tagged with
// the rule number from spec.md §4.4 and the offending uri so callers can
// point users at the exact node.
type ValidationError struct {
	Rule int
	URI  Uri
	Msg  string
}

func (e *ValidationError) Error() string {
	if e.URI != "" {
		return fmt.Sprintf("graph: rule %d violated at %q: %s", e.Rule, e.URI, e.Msg)
	}
	return fmt.Sprintf("graph: rule %d violated: %s", e.Rule, e.Msg)
}

// Validate runs the six structural rules from spec.md §4.4 against the
// registry used to resolve service types. It stops at the first
// violation — callers needing every error at once should call this
// repeatedly after fixing each one, matching the original tool's
// check-fix-recheck workflow for graph authors.
func Validate(g *Graph, services *service.ServiceSet) error {
	if err := checkUniqueURIs(g); err != nil {
		return err
	}
	if err := checkServiceTypesResolve(g, services); err != nil {
		return err
	}
	if err := checkWireTargetsExist(g); err != nil {
		return err
	}
	if err := checkConfigSchemas(g, services); err != nil {
		return err
	}
	if err := checkPortCounts(g, services); err != nil {
		return err
	}
	if err := checkAcyclicWithSource(g); err != nil {
		return err
	}
	return nil
}

// checkUniqueURIs enforces rule 1: every node uri is unique and
// non-empty. Graph itself is keyed by Uri in a map, so true duplicates
// can only arise from a decoder that built nodes from a list without
// de-duplicating — the graph/decode package guards against that
// separately; this re-checks
// for callers that construct a Graph via New directly.
func checkUniqueURIs(g *Graph) error {
	seen := make(map[Uri]bool, len(g.order))
	for _, uri := range g.order {
		if uri == "" {
			return &ValidationError{Rule: 1, Msg: "node uri must not be empty"}
		}
		if seen[uri] {
			return &ValidationError{Rule: 1, URI: uri, Msg: "duplicate node uri"}
		}
		seen[uri] = true
	}
	return nil
}

// checkServiceTypesResolve enforces rule 2: every node's service_type
// resolves in the registry.
func checkServiceTypesResolve(g *Graph, services *service.ServiceSet) error {
	for _, uri := range g.order {
		n := g.nodes[uri]
		if !services.Has(n.ServiceType) {
			return &ValidationError{Rule: 2, URI: uri, Msg: fmt.Sprintf("unknown service type %q", n.ServiceType)}
		}
	}
	return nil
}

// checkWireTargetsExist enforces rule 3: every wire's target uri exists
// in the graph.
func checkWireTargetsExist(g *Graph) error {
	for _, uri := range g.order {
		n := g.nodes[uri]
		for _, w := range n.Wires {
			if _, ok := g.nodes[w.ToURI]; !ok {
				return &ValidationError{Rule: 3, URI: uri, Msg: fmt.Sprintf("wire target %q does not exist", w.ToURI)}
			}
		}
	}
	return nil
}

// checkConfigSchemas enforces rule 4: each node's config type-checks
// against its service's config schema, when one is registered.
func checkConfigSchemas(g *Graph, services *service.ServiceSet) error {
	for _, uri := range g.order {
		n := g.nodes[uri]
		def, err := services.Get(n.ServiceType)
		if err != nil {
			continue // already reported by rule 2
		}
		if def.ValidateConfig == nil {
			continue
		}
		if err := def.ValidateConfig(n.Config); err != nil {
			return &ValidationError{Rule: 4, URI: uri, Msg: err.Error()}
		}
	}
	return nil
}

// checkPortCounts enforces rule 5: per-node incoming wire count does not
// exceed the port type's declared inbound capacity, and outgoing does not
// exceed outbound capacity.
func checkPortCounts(g *Graph, services *service.ServiceSet) error {
	incoming := make(map[Uri]int, len(g.order))
	outgoing := make(map[Uri]int, len(g.order))
	for _, uri := range g.order {
		n := g.nodes[uri]
		outgoing[uri] += len(n.Wires)
		for _, w := range n.Wires {
			incoming[w.ToURI]++
		}
	}

	for _, uri := range g.order {
		n := g.nodes[uri]
		pt := n.PortType
		if pt.IsSource() || pt.IsFlow() {
			if outgoing[uri] > pt.Out() {
				return &ValidationError{Rule: 5, URI: uri, Msg: fmt.Sprintf("outgoing wire count %d exceeds declared out %d", outgoing[uri], pt.Out())}
			}
		} else if outgoing[uri] > 0 {
			return &ValidationError{Rule: 5, URI: uri, Msg: "sink node must not declare outgoing wires"}
		}
		if pt.IsSink() || pt.IsFlow() {
			if incoming[uri] > pt.In() {
				return &ValidationError{Rule: 5, URI: uri, Msg: fmt.Sprintf("incoming wire count %d exceeds declared in %d", incoming[uri], pt.In())}
			}
		} else if incoming[uri] > 0 {
			return &ValidationError{Rule: 5, URI: uri, Msg: "source node must not have incoming wires"}
		}
	}
	_ = services
	return nil
}

// checkAcyclicWithSource enforces rule 6: the graph is acyclic (a
// topological sort succeeds) and at least one node is a Source.
func checkAcyclicWithSource(g *Graph) error {
	// Kahn's algorithm: compute in-degree over the wire edges and peel off
	// zero-in-degree nodes. If any node is never peeled, a cycle exists.
	indeg := make(map[Uri]int, len(g.order))
	adj := make(map[Uri][]Uri, len(g.order))
	for _, uri := range g.order {
		indeg[uri] = 0
	}
	for _, uri := range g.order {
		for _, w := range g.nodes[uri].Wires {
			indeg[w.ToURI]++
			adj[uri] = append(adj[uri], w.ToURI)
		}
	}

	queue := make([]Uri, 0, len(g.order))
	for _, uri := range g.order {
		if indeg[uri] == 0 {
			queue = append(queue, uri)
		}
	}
	visited := 0
	for len(queue) > 0 {
		uri := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range adj[uri] {
			indeg[next]--
			if indeg[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if visited != len(g.order) {
		// Every node still carrying a nonzero in-degree is part of (or
		// downstream of) the cycle Kahn's algorithm couldn't peel; report
		// the first one in declaration order so the error names a concrete
		// uri per spec.md §4.4.
		var offender Uri
		for _, uri := range g.order {
			if indeg[uri] != 0 {
				offender = uri
				break
			}
		}
		return &ValidationError{Rule: 6, URI: offender, Msg: "graph contains a cycle"}
	}

	hasSource := false
	for _, uri := range g.order {
		if g.nodes[uri].PortType.IsSource() {
			hasSource = true
			break
		}
	}
	if !hasSource {
		return &ValidationError{Rule: 6, Msg: "graph has no Source node"}
	}
	return nil
}
