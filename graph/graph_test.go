package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toy-run/toy/port"
	"github.com/toy-run/toy/service"
	"github.com/toy-run/toy/value"
)

func testServices() *service.ServiceSet {
	s := service.NewServiceSet()
	s.MustRegister(service.Definition{
		Type:  service.NewType("testkit", "tick"),
		Ports: port.Source(1),
		NewContext: func(t service.Type, cfg value.Value) (service.Context, error) {
			return nil, nil
		},
		Handle: func(_ context.Context, _ service.TaskContext, ctx service.Context, in port.Delivery, out *port.Outgoing) service.Action {
			return service.Complete(ctx)
		},
	})
	s.MustRegister(service.Definition{
		Type:  service.NewType("testkit", "stdout"),
		Ports: port.Sink(1),
		NewContext: func(t service.Type, cfg value.Value) (service.Context, error) {
			return nil, nil
		},
		Handle: func(_ context.Context, _ service.TaskContext, ctx service.Context, in port.Delivery, out *port.Outgoing) service.Action {
			return service.Complete(ctx)
		},
	})
	return s
}

func twoNodeGraph() *Graph {
	return New("t", []Node{
		{URI: "a", ServiceType: service.NewType("testkit", "tick"), PortType: port.Source(1), Wires: []Wire{{FromURI: "a", FromPort: 0, ToURI: "b", ToPort: 0}}},
		{URI: "b", ServiceType: service.NewType("testkit", "stdout"), PortType: port.Sink(1)},
	})
}

func TestValidateAcceptsValidGraph(t *testing.T) {
	g := twoNodeGraph()
	assert.NoError(t, Validate(g, testServices()))
}

func TestValidateRejectsDuplicateURI(t *testing.T) {
	g := New("t", []Node{
		{URI: "a", ServiceType: service.NewType("testkit", "tick"), PortType: port.Source(1)},
		{URI: "a", ServiceType: service.NewType("testkit", "tick"), PortType: port.Source(1)},
	})
	err := Validate(g, testServices())
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 1, ve.Rule)
}

func TestValidateRejectsUnknownServiceType(t *testing.T) {
	g := New("t", []Node{
		{URI: "a", ServiceType: service.NewType("testkit", "nope"), PortType: port.Source(1)},
	})
	err := Validate(g, testServices())
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 2, ve.Rule)
}

func TestValidateRejectsMissingWireTarget(t *testing.T) {
	g := New("t", []Node{
		{URI: "a", ServiceType: service.NewType("testkit", "tick"), PortType: port.Source(1), Wires: []Wire{{FromURI: "a", FromPort: 0, ToURI: "missing", ToPort: 0}}},
	})
	err := Validate(g, testServices())
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 3, ve.Rule)
}

func TestValidateRejectsTooManyOutgoingWires(t *testing.T) {
	g := New("t", []Node{
		{URI: "a", ServiceType: service.NewType("testkit", "tick"), PortType: port.Source(1), Wires: []Wire{
			{FromURI: "a", FromPort: 0, ToURI: "b", ToPort: 0},
			{FromURI: "a", FromPort: 1, ToURI: "b", ToPort: 0},
		}},
		{URI: "b", ServiceType: service.NewType("testkit", "stdout"), PortType: port.Sink(2)},
	})
	err := Validate(g, testServices())
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 5, ve.Rule)
}

func TestValidateRejectsCycle(t *testing.T) {
	g := New("t", []Node{
		{URI: "a", ServiceType: service.NewType("testkit", "tick"), PortType: port.Flow(1, 1), Wires: []Wire{{FromURI: "a", FromPort: 0, ToURI: "b", ToPort: 0}}},
		{URI: "b", ServiceType: service.NewType("testkit", "tick"), PortType: port.Flow(1, 1), Wires: []Wire{{FromURI: "b", FromPort: 0, ToURI: "a", ToPort: 0}}},
	})
	err := Validate(g, testServices())
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 6, ve.Rule)
}

// TestValidateCycleErrorNamesOffendingURI matches spec.md §8 scenario 4
// exactly: a graph with a Source feeding a genuine a->b->a cycle must
// fail rule 6 naming uri "a", the first node in declaration order still
// stuck at a nonzero in-degree once Kahn's algorithm stalls.
func TestValidateCycleErrorNamesOffendingURI(t *testing.T) {
	g := New("t", []Node{
		{URI: "source", ServiceType: service.NewType("testkit", "tick"), PortType: port.Source(1), Wires: []Wire{{FromURI: "source", ToURI: "a"}}},
		{URI: "a", ServiceType: service.NewType("testkit", "tick"), PortType: port.Flow(2, 1), Wires: []Wire{{FromURI: "a", ToURI: "b"}}},
		{URI: "b", ServiceType: service.NewType("testkit", "tick"), PortType: port.Flow(1, 1), Wires: []Wire{{FromURI: "b", ToURI: "a"}}},
	})
	err := Validate(g, testServices())
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 6, ve.Rule)
	assert.Equal(t, Uri("a"), ve.URI)
}

func TestValidateRejectsGraphWithNoSource(t *testing.T) {
	g := New("t", []Node{
		{URI: "a", ServiceType: service.NewType("testkit", "stdout"), PortType: port.Sink(1)},
	})
	err := Validate(g, testServices())
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 6, ve.Rule)
}

func TestNodesPreservesDeclarationOrder(t *testing.T) {
	g := twoNodeGraph()
	nodes := g.Nodes()
	require.Len(t, nodes, 2)
	assert.Equal(t, Uri("a"), nodes[0].URI)
	assert.Equal(t, Uri("b"), nodes[1].URI)
}
