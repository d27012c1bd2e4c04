package mcp

import (
	"context"
	"fmt"
	"sync"
)

// Router maintains a registry of JSON-RPC request and notification handlers
// keyed by method name and provides centralized dispatch with JSON-RPC
// compliance checks. It is the built-in method table referenced in spec.md
// §4.7; per-method handlers (tools/call, resources/read, ...) are installed
// once at session construction and are not mutated at runtime.
type Router struct {
	mu                   sync.RWMutex
	requestHandlers      map[string]RequestHandler
	notificationHandlers map[string]NotificationHandler
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{
		requestHandlers:      make(map[string]RequestHandler),
		notificationHandlers: make(map[string]NotificationHandler),
	}
}

// RegisterRequest associates handler with a method name, replacing any
// existing registration.
func (r *Router) RegisterRequest(method string, handler RequestHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requestHandlers[method] = handler
}

// RegisterNotification associates handler with a notification method name.
func (r *Router) RegisterNotification(method string, handler NotificationHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notificationHandlers[method] = handler
}

// DispatchRequest routes msg to its registered handler, returning a
// MethodNotFound error response if none is registered.
func (r *Router) DispatchRequest(ctx context.Context, msg RequestMessage) ResponseMessage {
	if err := ensureVersion(msg.JSONRPC); err != nil {
		return ErrorResponse(msg.ID, InvalidRequest, err.Error())
	}

	r.mu.RLock()
	handler, ok := r.requestHandlers[msg.Method]
	r.mu.RUnlock()
	if !ok {
		return ErrorResponse(msg.ID, MethodNotFound, fmt.Sprintf("method not found: %s", msg.Method))
	}

	resp := handler(ctx, msg)
	if resp.JSONRPC == "" {
		resp.JSONRPC = JSONRPCVersion
	}
	return resp
}

// DispatchNotification routes msg to its registered handler. A notification
// for an unregistered method is not an error condition worth surfacing to
// the peer (notifications never receive a response); the caller may log it.
func (r *Router) DispatchNotification(ctx context.Context, msg NotificationMessage) error {
	if err := ensureVersion(msg.JSONRPC); err != nil {
		return err
	}

	r.mu.RLock()
	handler, ok := r.notificationHandlers[msg.Method]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("notification handler not registered: %s", msg.Method)
	}

	return handler(ctx, msg)
}
