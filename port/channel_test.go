package port

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toy-run/toy/value"
)

func TestChannelBackPressureAtCapacityOne(t *testing.T) {
	ch := NewChannel(1)
	ch.AddSender()

	ctx := context.Background()
	require.NoError(t, ch.Send(ctx, New(value.Int(1))))

	// buffer is full; a non-blocking send must fail
	err := ch.TrySend(New(value.Int(2)))
	assert.Equal(t, ErrFull, err)

	// a blocking send must stall until the consumer drains one slot
	done := make(chan error, 1)
	go func() { done <- ch.Send(ctx, New(value.Int(2))) }()

	select {
	case <-done:
		t.Fatal("Send should have blocked while the buffer was full")
	case <-time.After(20 * time.Millisecond):
	}

	f, ok, err := ch.Recv(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	i, _ := f.Value.AsInt()
	assert.Equal(t, int64(1), i)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("blocked Send never unblocked after drain")
	}
}

func TestChannelClosesAfterLastSender(t *testing.T) {
	ch := NewChannel(4)
	ch.AddSender()
	ch.AddSender()

	ctx := context.Background()
	require.NoError(t, ch.Send(ctx, New(value.Int(1))))

	ch.CloseSender() // one of two senders gone; channel stays open
	require.NoError(t, ch.Send(ctx, New(value.Int(2))))

	ch.CloseSender() // last sender gone; channel closes for real

	err := ch.Send(ctx, New(value.Int(3)))
	assert.Equal(t, ErrClosed, err)

	// pending frames sent before close are still delivered
	f, ok, err := ch.Recv(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	i, _ := f.Value.AsInt()
	assert.Equal(t, int64(1), i)

	f, ok, err = ch.Recv(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	i, _ = f.Value.AsInt()
	assert.Equal(t, int64(2), i)

	_, ok, err = ch.Recv(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
