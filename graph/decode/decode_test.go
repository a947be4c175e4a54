package decode

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

const jsonGraph = `{
  "name": "demo",
  "services": [
    {"type": "testkit.tick", "uri": "src", "config": {"interval_ms": 100}, "wires": ["dst"]},
    {"type": "testkit.stdout", "uri": "dst", "config": null}
  ]
}`

func TestJSONDecodeBuildsValidatedGraph(t *testing.T) {
	g, err := JSON([]byte(jsonGraph), testServices())
	require.NoError(t, err)
	assert.Equal(t, "demo", g.Name)
	assert.Equal(t, 2, g.Len())

	src, ok := g.Node("src")
	require.True(t, ok)
	require.Len(t, src.Wires, 1)
	assert.Equal(t, "dst", string(src.Wires[0].ToURI))
}

func TestJSONDecodeRejectsDuplicateNodeKey(t *testing.T) {
	const dup = `{
  "name": "demo",
  "services": [
    {"type": "testkit.tick", "uri": "src", "uri": "src2", "wires": ["dst"]},
    {"type": "testkit.stdout", "uri": "dst"}
  ]
}`
	_, err := JSON([]byte(dup), testServices())
	assert.Error(t, err)
}

const yamlGraph = `
name: demo
services:
  - type: testkit.tick
    uri: src
    config:
      interval_ms: 100
    wires: [dst]
  - type: testkit.stdout
    uri: dst
`

func TestYAMLDecodeBuildsValidatedGraph(t *testing.T) {
	g, err := YAML([]byte(yamlGraph), testServices())
	require.NoError(t, err)
	assert.Equal(t, "demo", g.Name)
	assert.Equal(t, 2, g.Len())

	src, ok := g.Node("src")
	require.True(t, ok)
	v, ok := src.Config.Get("interval_ms")
	require.True(t, ok)
	i, _ := v.AsInt()
	assert.Equal(t, int64(100), i)
}

func TestYAMLDecodeRejectsDuplicateServiceKey(t *testing.T) {
	const dup = `
name: demo
services:
  - type: testkit.tick
    uri: src
    uri: src2
    wires: [dst]
  - type: testkit.stdout
    uri: dst
`
	_, err := YAML([]byte(dup), testServices())
	assert.Error(t, err)
}

func TestJSONDecodeResolvesExplicitPortType(t *testing.T) {
	const withPortType = `{
  "name": "demo",
  "services": [
    {"type": "testkit.tick", "uri": "src", "port_type": {"Source": 2}, "wires": ["dst", "dst2"]},
    {"type": "testkit.stdout", "uri": "dst"},
    {"type": "testkit.stdout", "uri": "dst2"}
  ]
}`
	g, err := JSON([]byte(withPortType), testServices())
	require.NoError(t, err)
	src, ok := g.Node("src")
	require.True(t, ok)
	assert.Equal(t, 2, src.PortType.Out())
}
