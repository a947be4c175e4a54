package port

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toy-run/toy/value"
)

func TestIncomingEndOfPortWithOtherPortsStillOpen(t *testing.T) {
	in := NewIncoming(8)
	in.AddSender(0)
	in.AddSender(1)

	ctx := context.Background()
	require.NoError(t, in.Channel().Send(ctx, NewOnPort(value.Int(1), 0)))

	in.CloseSender(0) // last sender on port 0 — should synthesize end-of-port

	d, err := in.Recv(ctx)
	require.NoError(t, err)
	require.False(t, d.Done)
	assert.False(t, d.EndOfPort)
	i, _ := d.Frame.Value.AsInt()
	assert.Equal(t, int64(1), i)

	d, err = in.Recv(ctx)
	require.NoError(t, err)
	assert.True(t, d.EndOfPort)
	assert.Equal(t, uint8(0), d.Port)
	assert.False(t, d.Done, "port 1 is still open, so the whole Incoming is not done")

	// port 1 still has a live sender, so the channel itself stays open
	require.NoError(t, in.Channel().Send(ctx, NewOnPort(value.Int(2), 1)))
	d, err = in.Recv(ctx)
	require.NoError(t, err)
	i, _ = d.Frame.Value.AsInt()
	assert.Equal(t, int64(2), i)
}

func TestIncomingDoneOnceAllPortsClosed(t *testing.T) {
	in := NewIncoming(8)
	in.AddSender(0)
	in.AddSender(1)

	in.CloseSender(0)
	in.CloseSender(1)

	ctx := context.Background()
	var sawEOP [2]bool
	for i := 0; i < 2; i++ {
		d, err := in.Recv(ctx)
		require.NoError(t, err)
		require.True(t, d.EndOfPort)
		sawEOP[d.Port] = true
	}
	assert.True(t, sawEOP[0])
	assert.True(t, sawEOP[1])

	d, err := in.Recv(ctx)
	require.NoError(t, err)
	assert.True(t, d.Done)
}
