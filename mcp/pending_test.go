package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPendingOutboundSendAndAwaitSuccess(t *testing.T) {
	p := newPendingOutbound()

	var captured RequestMessage
	send := func(req RequestMessage) error {
		captured = req
		go func() {
			p.resolve(ResponseMessage{ID: req.ID, Result: "ok"})
		}()
		return nil
	}

	resp, id, err := p.sendAndAwait(context.Background(), send, "roots/list", nil, nil)
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Result)
	require.Equal(t, "roots/list", captured.Method)
	require.NotEmpty(t, id)
	require.Equal(t, id, stringifyID(captured.ID))
	require.Equal(t, 0, p.count())
}

func TestPendingOutboundSendAndAwaitContextCancelled(t *testing.T) {
	p := newPendingOutbound()

	send := func(req RequestMessage) error { return nil }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, id, err := p.sendAndAwait(ctx, send, "roots/list", nil, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.NotEmpty(t, id, "the allocated id must still be returned so the caller can report it in notifications/cancelled")
	require.Equal(t, 0, p.count())
}

func TestPendingOutboundLateResponseAfterAbandonIsDropped(t *testing.T) {
	p := newPendingOutbound()
	id := p.newID()
	ch := p.register(id)
	p.abandon(id)

	_, stillOpen := <-ch
	require.False(t, stillOpen, "abandoned waiter channel should be closed, not delivered to")

	resolved := p.resolve(ResponseMessage{ID: id, Result: "too late"})
	require.False(t, resolved, "a response for an abandoned id must be reported as unresolved")
}

func TestPendingOutboundSendFailureAbandonsWaiter(t *testing.T) {
	p := newPendingOutbound()
	send := func(req RequestMessage) error { return errors.New("boom") }

	_, _, err := p.sendAndAwait(context.Background(), send, "roots/list", nil, nil)
	require.Error(t, err)
	require.Equal(t, 0, p.count())
}

func TestPendingOutboundResolveUnknownIDIsNoop(t *testing.T) {
	p := newPendingOutbound()
	resolved := p.resolve(ResponseMessage{ID: "ghost", Result: "x"})
	require.False(t, resolved)
}

func TestPendingOutboundTimeoutAbandonsWaiter(t *testing.T) {
	p := newPendingOutbound()
	send := func(req RequestMessage) error { return nil }

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, _, err := p.sendAndAwait(ctx, send, "roots/list", nil, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 0, p.count())
}
