package mcp

import (
	"context"
	"fmt"
	"os"
)

// CompletionHandler backs the `completion/complete` built-in method
// (SPEC_FULL supplement 3): given a reference kind ("ref/prompt" or
// "ref/resource"), a reference name/uri, and the argument being completed,
// it returns candidate completions. The zero value always returns an empty
// list rather than MethodNotFound, since any client may probe this method.
type CompletionHandler func(ctx context.Context, refKind, refName, argName, argValue string) []string

// FrameWriter is the minimal capability a transport must provide: writing
// one already-framed JSON value to the peer. Transports (stdio, HTTP) own
// the actual I/O; Session only ever calls WriteFrame.
type FrameWriter interface {
	WriteFrame(data []byte) error
}

// Server holds everything shared across every Session bound to it: the
// handler registries built at startup and the process-wide state limited to
// them, per spec.md §5 ("No global mutable state is required; process-wide
// state is limited to the handler inventory populated before start.").
// Sessions (one per connection) are created from a Server via NewSession.
type Server struct {
	config Config

	Tools             *ToolRegistry
	Prompts           *PromptRegistry
	Resources         *ResourceRegistry
	ResourceTemplates *ResourceTemplateRegistry
	Notifications     *NotificationRegistry
	Binder            *Binder

	middlewares       []Middleware
	completionHandler CompletionHandler

	subscriptions *subscriptionHub

	debugLog func(format string, args ...any)
}

// NewServer builds a Server with empty registries, ready for registration
// calls (the Init state of spec.md §4.8 — registration happens before any
// Session reaches Running).
func NewServer(config Config) *Server {
	logWriter := config.LogWriter
	if logWriter == nil {
		logWriter = os.Stderr
	}

	var debugLog func(format string, args ...any)
	if config.Debug {
		debugLog = func(format string, args ...any) {
			fmt.Fprintf(logWriter, "[DEBUG] "+format+"\n", args...)
		}
	} else {
		debugLog = func(format string, args ...any) {}
	}

	return &Server{
		config:            config,
		Tools:             NewToolRegistry(),
		Prompts:           NewPromptRegistry(),
		Resources:         NewResourceRegistry(),
		ResourceTemplates: NewResourceTemplateRegistry(),
		Notifications:     NewNotificationRegistry(),
		Binder:            NewBinder(),
		subscriptions:     newSubscriptionHub(),
		debugLog:          debugLog,
	}
}

// Use appends middleware to the chain every inbound request passes through,
// in registration order (the first Use call is outermost).
func (srv *Server) Use(mw Middleware) {
	srv.middlewares = append(srv.middlewares, mw)
}

// SetCompletionHandler installs the `completion/complete` handler.
func (srv *Server) SetCompletionHandler(fn CompletionHandler) {
	srv.completionHandler = fn
}

func (srv *Server) capabilities() map[string]any {
	caps := map[string]any{
		"tools":     map[string]any{"listChanged": true},
		"prompts":   map[string]any{"listChanged": true},
		"resources": map[string]any{"subscribe": true, "listChanged": true},
		"logging":   map[string]any{},
	}
	return caps
}
