package mcp

import "context"

// RequestHandler processes a JSON-RPC request and returns a response.
type RequestHandler func(ctx context.Context, msg RequestMessage) ResponseMessage

// NotificationHandler processes a JSON-RPC notification.
type NotificationHandler func(ctx context.Context, msg NotificationMessage) error

// Middleware wraps a RequestHandler with request-scoped behavior (auth
// checks, rate limiting, tracing) that composes around the dispatcher.
type Middleware func(next RequestHandler) RequestHandler

// Chain composes middlewares around base, applied outermost-first: the
// first middleware in the slice sees the request before any of the others.
func Chain(base RequestHandler, middlewares ...Middleware) RequestHandler {
	handler := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}

// NotificationMiddleware wraps a NotificationHandler the way Middleware
// wraps a RequestHandler.
type NotificationMiddleware func(next NotificationHandler) NotificationHandler

// ChainNotification composes notification middlewares outermost-first.
func ChainNotification(base NotificationHandler, middlewares ...NotificationMiddleware) NotificationHandler {
	handler := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}
