package port

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toy-run/toy/value"
)

func TestOutgoingFanOutToTwentyDestinations(t *testing.T) {
	const n = 20
	out := NewOutgoing(1)
	dests := make([]*Incoming, n)
	for i := range dests {
		dests[i] = NewIncoming(4)
		out.Attach(0, dests[i], 0)
	}

	ctx := context.Background()
	require.NoError(t, out.Send(ctx, New(value.String("broadcast"))))

	for _, in := range dests {
		d, err := in.Recv(ctx)
		require.NoError(t, err)
		require.False(t, d.EndOfPort)
		s, _ := d.Frame.Value.AsString()
		assert.Equal(t, "broadcast", s)
	}

	out.Close()
	for _, in := range dests {
		d, err := in.Recv(ctx)
		require.NoError(t, err)
		assert.True(t, d.EndOfPort)
	}
}

func TestOutgoingCloseSignalsEndOfPortOnlyAfterLastSender(t *testing.T) {
	in := NewIncoming(4)

	outA := NewOutgoing(1)
	outA.Attach(0, in, 0)
	outB := NewOutgoing(1)
	outB.Attach(0, in, 0) // second producer feeding the same incoming port

	ctx := context.Background()
	require.NoError(t, outA.Send(ctx, New(value.Int(1))))

	outA.Close()
	require.NoError(t, outB.Send(ctx, New(value.Int(2))), "port stays open while outB is still attached")

	d, err := in.Recv(ctx)
	require.NoError(t, err)
	i, _ := d.Frame.Value.AsInt()
	assert.Equal(t, int64(1), i)

	d, err = in.Recv(ctx)
	require.NoError(t, err)
	i, _ = d.Frame.Value.AsInt()
	assert.Equal(t, int64(2), i)

	outB.Close()
	d, err = in.Recv(ctx)
	require.NoError(t, err)
	assert.True(t, d.EndOfPort)
}
