package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toy-run/toy/port"
	"github.com/toy-run/toy/value"
)

func echoDefinition() Definition {
	return Definition{
		Type:  NewType("testkit", "echo"),
		Ports: port.Flow(1, 1),
		NewContext: func(t Type, cfg value.Value) (Context, error) {
			return struct{}{}, nil
		},
		Handle: func(_ context.Context, _ TaskContext, ctx Context, in port.Delivery, out *port.Outgoing) Action {
			return Next(ctx)
		},
	}
}

func TestParseType(t *testing.T) {
	typ, err := ParseType("testkit.echo")
	require.NoError(t, err)
	assert.Equal(t, NewType("testkit", "echo"), typ)
	assert.Equal(t, "testkit.echo", typ.String())

	_, err = ParseType("noNamespace")
	assert.Error(t, err)
}

func TestServiceSetRegisterAndGet(t *testing.T) {
	s := NewServiceSet()
	require.NoError(t, s.Register(echoDefinition()))

	assert.True(t, s.Has(NewType("testkit", "echo")))
	d, err := s.Get(NewType("testkit", "echo"))
	require.NoError(t, err)
	assert.Equal(t, "testkit.echo", d.Type.String())

	_, err = s.Get(NewType("testkit", "missing"))
	assert.Error(t, err)
}

func TestServiceSetLayerComposition(t *testing.T) {
	base := NewServiceSet()
	require.NoError(t, base.Register(echoDefinition()))

	override := NewServiceSet()
	overrideDef := echoDefinition()
	overrideDef.Handle = func(_ context.Context, _ TaskContext, ctx Context, in port.Delivery, out *port.Outgoing) Action {
		return Complete(ctx)
	}
	require.NoError(t, override.Register(overrideDef))

	merged := NewServiceSet().Layer(base).Layer(override)
	d, err := merged.Get(NewType("testkit", "echo"))
	require.NoError(t, err)

	action := d.Handle(context.Background(), nil, struct{}{}, port.Delivery{}, nil)
	assert.True(t, action.IsComplete(), "later layer should win over earlier one for the same type")
}

func TestDefinitionValidateRejectsMissingHandler(t *testing.T) {
	d := echoDefinition()
	d.Handle = nil
	assert.Error(t, d.Validate())
}
