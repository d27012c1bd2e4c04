package mcp

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// pendingOutbound is the C3 message registry: it assigns ids to
// peer-initiated requests this side originates (sampling, elicitation,
// roots, or a custom peer call), correlates the eventual response back to
// the waiting caller, and tears the correlation down on cancellation or
// timeout without leaking the waiting goroutine.
type pendingOutbound struct {
	mu      sync.Mutex
	waiters map[string]chan ResponseMessage
}

func newPendingOutbound() *pendingOutbound {
	return &pendingOutbound{waiters: make(map[string]chan ResponseMessage)}
}

// newID allocates a fresh correlation id for an outbound request.
func (p *pendingOutbound) newID() string {
	return uuid.NewString()
}

// register opens a waiter slot for id and returns the channel the eventual
// response (or a cancellation teardown) will be delivered on.
func (p *pendingOutbound) register(id string) chan ResponseMessage {
	ch := make(chan ResponseMessage, 1)
	p.mu.Lock()
	p.waiters[id] = ch
	p.mu.Unlock()
	return ch
}

// resolve delivers resp to its waiter, if one is still registered. It
// reports whether a waiter was found, matching the "late response after
// local cancellation" policy (spec.md §9 Open Question a): a response whose
// waiter already timed out or was cancelled is dropped here.
func (p *pendingOutbound) resolve(resp ResponseMessage) bool {
	id := stringifyID(resp.ID)
	if id == "" {
		return false
	}

	p.mu.Lock()
	ch, ok := p.waiters[id]
	if ok {
		delete(p.waiters, id)
	}
	p.mu.Unlock()

	if ok {
		ch <- resp
		close(ch)
	}
	return ok
}

// abandon removes id's waiter without delivering a response, used when the
// caller's context is done before a response arrives.
func (p *pendingOutbound) abandon(id string) {
	p.mu.Lock()
	ch, ok := p.waiters[id]
	if ok {
		delete(p.waiters, id)
	}
	p.mu.Unlock()
	if ok {
		close(ch)
	}
}

// count reports the number of in-flight outbound requests awaiting a reply.
func (p *pendingOutbound) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}

// sendAndAwait sends req via send, then blocks until a matching response
// arrives or ctx is done; it has no timeout of its own, so with a ctx that
// is never done it waits for the peer indefinitely. On ctx cancellation it
// abandons the waiter and returns ctx.Err(); the caller is expected to emit
// a notifications/cancelled carrying the returned id per spec.md §4.3 if
// the peer should know. The allocated id is returned in every case (even on
// error) so the caller can always correlate its own cancellation notice.
func (p *pendingOutbound) sendAndAwait(ctx context.Context, send func(RequestMessage) error, method string, params any, meta Meta) (ResponseMessage, string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	id := p.newID()
	ch := p.register(id)

	req, err := NewRequestMessage(id, method, params)
	if err != nil {
		p.abandon(id)
		return ResponseMessage{}, id, fmt.Errorf("build request: %w", err)
	}
	req.Meta = meta

	if err := send(req); err != nil {
		p.abandon(id)
		return ResponseMessage{}, id, fmt.Errorf("send request: %w", err)
	}

	select {
	case resp := <-ch:
		return resp, id, nil
	case <-ctx.Done():
		p.abandon(id)
		return ResponseMessage{}, id, ctx.Err()
	}
}
