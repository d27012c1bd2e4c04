package mcp

import "sync"

// subscriptionHub is the C10 fan-out point: "when a handler calls
// resource_updated(uri), the engine enumerates sessions subscribed to uri
// and sends notifications/resources/updated" (spec.md §9). It is owned by
// the Server so a resource handler can invalidate a URI without knowing
// which (if any, possibly several over HTTP) sessions currently care about
// it.
type subscriptionHub struct {
	mu       sync.RWMutex
	sessions map[*Session]struct{}
	subs     map[string]map[*Session]struct{}
}

func newSubscriptionHub() *subscriptionHub {
	return &subscriptionHub{
		sessions: make(map[*Session]struct{}),
		subs:     make(map[string]map[*Session]struct{}),
	}
}

func (h *subscriptionHub) registerSession(sess *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[sess] = struct{}{}
}

// unregisterSession drops sess from every tracked subscription and the live
// set, matching "Subscriptions: created by subscribe, destroyed by
// unsubscribe, session close, or resource removal" (spec.md §3).
func (h *subscriptionHub) unregisterSession(sess *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, sess)
	for uri, subscribers := range h.subs {
		delete(subscribers, sess)
		if len(subscribers) == 0 {
			delete(h.subs, uri)
		}
	}
}

func (h *subscriptionHub) subscribe(uri string, sess *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[uri] == nil {
		h.subs[uri] = make(map[*Session]struct{})
	}
	h.subs[uri][sess] = struct{}{}
}

func (h *subscriptionHub) unsubscribe(uri string, sess *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subscribers, ok := h.subs[uri]; ok {
		delete(subscribers, sess)
		if len(subscribers) == 0 {
			delete(h.subs, uri)
		}
	}
}

// removeURI drops every subscriber of uri, used when a resource is removed
// from the registry entirely.
func (h *subscriptionHub) removeURI(uri string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, uri)
}

func (h *subscriptionHub) subscribersOf(uri string) []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	subscribers := h.subs[uri]
	result := make([]*Session, 0, len(subscribers))
	for sess := range subscribers {
		result = append(result, sess)
	}
	return result
}

func (h *subscriptionHub) allSessions() []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	result := make([]*Session, 0, len(h.sessions))
	for sess := range h.sessions {
		result = append(result, sess)
	}
	return result
}

// ResourceUpdated notifies every session subscribed to uri that its content
// changed. Handler authors call this directly (it is the primary, explicit
// invalidation path); for resources that also implement WatchableResource,
// the dispatcher forwards their Watch channel as notifications to the
// session that subscribed, without going through this method.
func (srv *Server) ResourceUpdated(uri string) {
	for _, sess := range srv.subscriptions.subscribersOf(uri) {
		sess.sendResourceUpdatedNotification(uri)
	}
}

// ResourceListChanged broadcasts notifications/resources/list_changed to
// every live session that negotiated resources.listChanged (spec.md §4.10).
func (srv *Server) ResourceListChanged() {
	for _, sess := range srv.subscriptions.allSessions() {
		if sess.state.SupportsListChanged("resources") {
			sess.sendResourceListChangedNotification()
		}
	}
}

// ToolListChanged broadcasts notifications/tools/list_changed to every live
// session that negotiated tools.listChanged (spec.md §4.10).
func (srv *Server) ToolListChanged() {
	for _, sess := range srv.subscriptions.allSessions() {
		if sess.state.SupportsListChanged("tools") {
			sess.sendToolListChangedNotification()
		}
	}
}

// PromptListChanged broadcasts notifications/prompts/list_changed to every
// live session that negotiated prompts.listChanged (spec.md §4.10).
func (srv *Server) PromptListChanged() {
	for _, sess := range srv.subscriptions.allSessions() {
		if sess.state.SupportsListChanged("prompts") {
			sess.sendPromptListChangedNotification()
		}
	}
}

// RemoveResource unregisters a resource's subscribers and notifies that the
// list changed (spec.md §3: subscriptions die with the resource).
func (srv *Server) RemoveResource(uri string) {
	srv.subscriptions.removeURI(uri)
	srv.ResourceListChanged()
}
