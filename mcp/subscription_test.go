package mcp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubscriptionHubMultipleSessionsShareAURI(t *testing.T) {
	h := newSubscriptionHub()
	a := &Session{}
	b := &Session{}
	h.registerSession(a)
	h.registerSession(b)

	h.subscribe("res://doc", a)
	h.subscribe("res://doc", b)

	subs := h.subscribersOf("res://doc")
	require.Len(t, subs, 2)
}

func TestSubscriptionHubUnsubscribeRemovesOnlyThatSession(t *testing.T) {
	h := newSubscriptionHub()
	a := &Session{}
	b := &Session{}
	h.registerSession(a)
	h.registerSession(b)
	h.subscribe("res://doc", a)
	h.subscribe("res://doc", b)

	h.unsubscribe("res://doc", a)
	subs := h.subscribersOf("res://doc")
	require.Len(t, subs, 1)
	require.Same(t, b, subs[0])
}

func TestSubscriptionHubUnregisterSessionClearsAllItsSubscriptions(t *testing.T) {
	h := newSubscriptionHub()
	a := &Session{}
	h.registerSession(a)
	h.subscribe("res://doc-1", a)
	h.subscribe("res://doc-2", a)

	h.unregisterSession(a)

	require.Empty(t, h.subscribersOf("res://doc-1"))
	require.Empty(t, h.subscribersOf("res://doc-2"))
	require.NotContains(t, h.allSessions(), a)
}

func TestSubscriptionHubRemoveURIDropsAllSubscribers(t *testing.T) {
	h := newSubscriptionHub()
	a := &Session{}
	b := &Session{}
	h.registerSession(a)
	h.registerSession(b)
	h.subscribe("res://doc", a)
	h.subscribe("res://doc", b)

	h.removeURI("res://doc")
	require.Empty(t, h.subscribersOf("res://doc"))

	// sessions themselves remain live, only the URI's subscriber set is gone.
	require.Contains(t, h.allSessions(), a)
	require.Contains(t, h.allSessions(), b)
}

func TestSubscriptionHubLastSubscriberLeavingDropsTheURIEntirely(t *testing.T) {
	h := newSubscriptionHub()
	a := &Session{}
	h.registerSession(a)
	h.subscribe("res://doc", a)
	h.unsubscribe("res://doc", a)

	require.Empty(t, h.subscribersOf("res://doc"))
}
