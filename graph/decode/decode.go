// Package decode turns a graph file (JSON or YAML, per spec.md §6.1) into
// a *graph.Graph, detecting duplicate keys that a plain struct-tag decode
// would silently drop — the same hazard the teacher's environment
// decoder guards against for its own config format.
package decode

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/toy-run/toy/graph"
	"github.com/toy-run/toy/port"
	"github.com/toy-run/toy/service"
	"github.com/toy-run/toy/value"
)

type rawPosition struct {
	X uint32 `json:"x" yaml:"x"`
	Y uint32 `json:"y" yaml:"y"`
}

// rawNodeJSON mirrors one entry of the "services" list in spec.md §6.1
// for the JSON decode path; port_type and config stay as raw bytes until
// the node's declared service type is known.
type rawNodeJSON struct {
	Type     string          `json:"type"`
	URI      string          `json:"uri"`
	PortType json.RawMessage `json:"port_type"`
	Position *rawPosition    `json:"position"`
	Config   json.RawMessage `json:"config"`
	Wires    []string        `json:"wires"`
}

type rawGraphJSON struct {
	Name     string        `json:"name"`
	Services []rawNodeJSON `json:"services"`
}

// rawNodeYAML is the YAML-path equivalent: yaml.v3 has no RawMessage
// analogue, so port_type and config stay as yaml.Node until converted.
type rawNodeYAML struct {
	Type     string       `yaml:"type"`
	URI      string       `yaml:"uri"`
	PortType yaml.Node    `yaml:"port_type"`
	Position *rawPosition `yaml:"position"`
	Config   yaml.Node    `yaml:"config"`
	Wires    []string     `yaml:"wires"`
}

type rawGraphYAML struct {
	Name     string        `yaml:"name"`
	Services []rawNodeYAML `yaml:"services"`
}

// node is the format-agnostic shape build() works from, once port_type
// and config have been resolved to real values.
type node struct {
	Type     string
	URI      string
	PortType *port.PortType
	Position *rawPosition
	Config   value.Value
	Wires    []string
}

// JSON decodes a graph file in JSON form. services resolves each node's
// declared service type to its default PortType when port_type is
// omitted.
func JSON(data []byte, services *service.ServiceSet) (*graph.Graph, error) {
	if err := checkDuplicateKeysJSON(data); err != nil {
		return nil, err
	}
	var raw rawGraphJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("graph: decode json: %w", err)
	}

	nodes := make([]node, 0, len(raw.Services))
	for _, rn := range raw.Services {
		cfg, err := decodeValueJSON(rn.Config)
		if err != nil {
			return nil, &graph.ValidationError{Rule: 4, URI: graph.Uri(rn.URI), Msg: err.Error()}
		}
		pt, err := decodePortTypeJSON(rn.PortType)
		if err != nil {
			return nil, &graph.ValidationError{Rule: 5, URI: graph.Uri(rn.URI), Msg: err.Error()}
		}
		nodes = append(nodes, node{Type: rn.Type, URI: rn.URI, PortType: pt, Position: rn.Position, Config: cfg, Wires: rn.Wires})
	}
	return build(raw.Name, nodes, services)
}

// YAML decodes a graph file in YAML form.
func YAML(data []byte, services *service.ServiceSet) (*graph.Graph, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("graph: decode yaml: %w", err)
	}
	if err := checkDuplicateKeysYAML(&doc); err != nil {
		return nil, err
	}
	var raw rawGraphYAML
	if err := doc.Decode(&raw); err != nil {
		return nil, fmt.Errorf("graph: decode yaml: %w", err)
	}

	nodes := make([]node, 0, len(raw.Services))
	for _, rn := range raw.Services {
		cfg, err := valueFromYAMLNode(&rn.Config)
		if err != nil {
			return nil, &graph.ValidationError{Rule: 4, URI: graph.Uri(rn.URI), Msg: err.Error()}
		}
		pt, err := decodePortTypeYAML(&rn.PortType)
		if err != nil {
			return nil, &graph.ValidationError{Rule: 5, URI: graph.Uri(rn.URI), Msg: err.Error()}
		}
		nodes = append(nodes, node{Type: rn.Type, URI: rn.URI, PortType: pt, Position: rn.Position, Config: cfg, Wires: rn.Wires})
	}
	return build(raw.Name, nodes, services)
}

func build(name string, raw []node, services *service.ServiceSet) (*graph.Graph, error) {
	seen := make(map[string]bool, len(raw))
	nodes := make([]graph.Node, 0, len(raw))

	for _, rn := range raw {
		if rn.URI == "" {
			return nil, &graph.ValidationError{Rule: 1, Msg: "node uri must not be empty"}
		}
		if seen[rn.URI] {
			return nil, &graph.ValidationError{Rule: 1, URI: graph.Uri(rn.URI), Msg: "duplicate node uri"}
		}
		seen[rn.URI] = true

		typ, err := service.ParseType(rn.Type)
		if err != nil {
			return nil, &graph.ValidationError{Rule: 2, URI: graph.Uri(rn.URI), Msg: err.Error()}
		}

		pt := rn.PortType
		if pt == nil {
			def, err := services.Get(typ)
			if err != nil {
				return nil, &graph.ValidationError{Rule: 2, URI: graph.Uri(rn.URI), Msg: err.Error()}
			}
			resolved := def.Ports
			pt = &resolved
		}

		var pos *graph.Position
		if rn.Position != nil {
			pos = &graph.Position{X: rn.Position.X, Y: rn.Position.Y}
		}

		wires := make([]graph.Wire, 0, len(rn.Wires))
		for i, target := range rn.Wires {
			wires = append(wires, graph.Wire{
				FromURI:  graph.Uri(rn.URI),
				FromPort: uint8(i),
				ToURI:    graph.Uri(target),
				ToPort:   0, // the flat "wires: [uri,...]" format has no way to address a specific inbound port
			})
		}

		nodes = append(nodes, graph.Node{
			URI:         graph.Uri(rn.URI),
			ServiceType: typ,
			PortType:    *pt,
			Config:      rn.Config,
			Position:    pos,
			Wires:       wires,
		})
	}

	g := graph.New(name, nodes)
	if err := graph.Validate(g, services); err != nil {
		return nil, err
	}
	return g, nil
}

func decodeValueJSON(raw json.RawMessage) (value.Value, error) {
	if len(raw) == 0 {
		return value.Null(), nil
	}
	var v value.Value
	if err := v.UnmarshalJSON(raw); err != nil {
		return value.Value{}, err
	}
	return v, nil
}

// valueFromYAMLNode converts a yaml.Node subtree into a Value, preserving
// mapping key order the way value/json.go's token walker preserves JSON
// object key order — yaml.Node.Content already records keys in document
// order, so this only needs to walk it, not re-derive the order.
func valueFromYAMLNode(n *yaml.Node) (value.Value, error) {
	if n == nil || n.Kind == 0 {
		return value.Null(), nil
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return value.Null(), nil
		}
		return valueFromYAMLNode(n.Content[0])
	case yaml.AliasNode:
		return valueFromYAMLNode(n.Alias)
	case yaml.ScalarNode:
		return scalarFromYAMLNode(n)
	case yaml.SequenceNode:
		elems := make([]value.Value, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := valueFromYAMLNode(c)
			if err != nil {
				return value.Value{}, err
			}
			elems = append(elems, v)
		}
		return value.Seq(elems...), nil
	case yaml.MappingNode:
		m := value.Map()
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			v, err := valueFromYAMLNode(n.Content[i+1])
			if err != nil {
				return value.Value{}, err
			}
			m = m.Put(key, v)
		}
		return m, nil
	default:
		return value.Null(), nil
	}
}

func scalarFromYAMLNode(n *yaml.Node) (value.Value, error) {
	switch n.Tag {
	case "!!null":
		return value.Null(), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return value.Value{}, err
		}
		return value.Bool(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return value.Value{}, err
		}
		return value.Int(i), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return value.Value{}, err
		}
		return value.Float64(f), nil
	case "!!binary":
		var b []byte
		if err := n.Decode(&b); err != nil {
			return value.Value{}, err
		}
		return value.Bytes(b), nil
	default:
		return value.String(n.Value), nil
	}
}

type portTypeWire struct {
	Source *int    `json:"Source,omitempty" yaml:"Source,omitempty"`
	Sink   *int    `json:"Sink,omitempty" yaml:"Sink,omitempty"`
	Flow   *[2]int `json:"Flow,omitempty" yaml:"Flow,omitempty"`
}

func decodePortTypeJSON(raw json.RawMessage) (*port.PortType, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var pt portTypeWire
	if err := json.Unmarshal(raw, &pt); err != nil {
		return nil, err
	}
	return resolvePortTypeWire(pt)
}

func decodePortTypeYAML(n *yaml.Node) (*port.PortType, error) {
	if n == nil || n.Kind == 0 {
		return nil, nil
	}
	var pt portTypeWire
	if err := n.Decode(&pt); err != nil {
		return nil, err
	}
	return resolvePortTypeWire(pt)
}

func resolvePortTypeWire(pt portTypeWire) (*port.PortType, error) {
	switch {
	case pt.Source != nil:
		p := port.Source(*pt.Source)
		return &p, p.Validate()
	case pt.Sink != nil:
		p := port.Sink(*pt.Sink)
		return &p, p.Validate()
	case pt.Flow != nil:
		p := port.Flow(pt.Flow[0], pt.Flow[1])
		return &p, p.Validate()
	default:
		return nil, nil
	}
}

// checkDuplicateKeysJSON walks the top-level object and each service
// object with a streaming token decoder so a repeated "uri" or "config"
// key inside one node raises an error instead of the last write silently
// winning, mirroring the teacher's environment decoder technique.
func checkDuplicateKeysJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	return checkObjectDuplicates(dec, "graph")
}

func checkObjectDuplicates(dec *json.Decoder, context string) error {
	t, err := dec.Token()
	if err != nil {
		return nil
	}
	delim, ok := t.(json.Delim)
	if !ok || delim != '{' {
		return nil
	}

	seen := make(map[string]bool)
	for dec.More() {
		t, err := dec.Token()
		if err != nil {
			return nil
		}
		key, ok := t.(string)
		if !ok {
			return nil
		}
		if seen[key] {
			return fmt.Errorf("graph: duplicate %s key: %q", context, key)
		}
		seen[key] = true

		if key == "services" {
			if err := checkArrayOfObjectDuplicates(dec, "service"); err != nil {
				return err
			}
			continue
		}
		var discard json.RawMessage
		if err := dec.Decode(&discard); err != nil {
			return nil
		}
	}
	if _, err := dec.Token(); err != nil { // closing '}'
		return nil
	}
	return nil
}

func checkArrayOfObjectDuplicates(dec *json.Decoder, context string) error {
	t, err := dec.Token()
	if err != nil {
		return nil
	}
	delim, ok := t.(json.Delim)
	if !ok || delim != '[' {
		return nil
	}
	for dec.More() {
		if err := checkObjectDuplicates(dec, context); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil { // closing ']'
		return nil
	}
	return nil
}

// checkDuplicateKeysYAML walks the raw yaml.Node tree (before it is
// decoded into rawGraphYAML) looking for repeated mapping keys at the
// graph and per-service level. yaml.v3 otherwise resolves duplicates by
// last write, same as encoding/json.
func checkDuplicateKeysYAML(doc *yaml.Node) error {
	root := doc
	if root.Kind == yaml.DocumentNode && len(root.Content) == 1 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil
	}
	seen := make(map[string]bool)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i].Value
		if seen[key] {
			return fmt.Errorf("graph: duplicate graph key: %q", key)
		}
		seen[key] = true
		if key == "services" {
			servicesNode := root.Content[i+1]
			if servicesNode.Kind != yaml.SequenceNode {
				continue
			}
			for _, svc := range servicesNode.Content {
				if err := checkMappingDuplicates(svc, "service"); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func checkMappingDuplicates(n *yaml.Node, context string) error {
	if n.Kind != yaml.MappingNode {
		return nil
	}
	seen := make(map[string]bool)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		if seen[key] {
			return fmt.Errorf("graph: duplicate %s key: %q", context, key)
		}
		seen[key] = true
	}
	return nil
}
