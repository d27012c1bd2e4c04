package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
)

// Role distinguishes which side of the handshake a Session plays: the
// server answers `initialize`, the client sends it.
type Role int

const (
	RoleServer Role = iota
	RoleClient
)

// Metrics captures lightweight inbound/outbound frame counters and the
// current pending-request count (SPEC_FULL supplement 1).
type Metrics struct {
	InboundMessages  int64 `json:"inbound_messages"`
	OutboundMessages int64 `json:"outbound_messages"`
	PendingRequests  int   `json:"pending_requests"`
}

// Session is the C8 state machine plus the per-connection half of C3/C7:
// one Session exists per peer connection, sharing its Server's handler
// registries but owning its own lifecycle, negotiated capabilities,
// in-flight cancellation table, and outbound correlation table.
type Session struct {
	server    *Server
	transport FrameWriter
	role      Role

	writeMu sync.Mutex

	router    *Router
	lifecycle *lifecycle
	state     *SessionState
	pending   *pendingOutbound

	inflightMu      sync.Mutex
	inflightCancels map[string]context.CancelFunc

	resourceSubsMu sync.Mutex
	resourceSubs   map[string]struct{}

	inboundCount  atomic.Int64
	outboundCount atomic.Int64

	// OnOrphanProgress holds a callback for notifications/progress frames.
	// The built-in dispatcher never calls it: notifications/progress has no
	// built-in handler, so such a frame is logged at debug level and passed
	// only to the Server's Notifications subscribers.
	OnOrphanProgress func(token string, progress, total float64, message string)

	// OnInitialized runs after the handshake completes (notifications/initialized
	// received), default behavior negotiates roots (SPEC_FULL supplement 4).
	OnInitialized func(sess *Session)
}

// NewSession creates a Session bound to server, communicating over
// transport. The session starts in StateInit; call Start to begin serving.
func NewSession(server *Server, transport FrameWriter, role Role) *Session {
	sess := &Session{
		server:          server,
		transport:       transport,
		role:            role,
		router:          NewRouter(),
		lifecycle:       newLifecycle(),
		state:           NewSessionState(),
		pending:         newPendingOutbound(),
		inflightCancels: make(map[string]context.CancelFunc),
		resourceSubs:    make(map[string]struct{}),
	}
	sess.OnInitialized = defaultOnInitialized
	sess.registerBuiltinHandlers()
	server.subscriptions.registerSession(sess)
	return sess
}

func defaultOnInitialized(sess *Session) {
	go func() {
		if _, err := sess.RequestRoots(context.Background()); err != nil {
			sess.server.debugLog("roots/list request failed: %v", err)
		}
	}()
}

// Begin transitions Init -> Handshaking. Transports call this once before
// feeding any frames to HandleFrame.
func (sess *Session) Begin() error {
	return sess.lifecycle.transition(StateHandshaking)
}

// State returns the session's current lifecycle state.
func (sess *Session) State() State {
	return sess.lifecycle.Current()
}

// Metrics returns a snapshot of this session's frame counters.
func (sess *Session) Metrics() Metrics {
	return Metrics{
		InboundMessages:  sess.inboundCount.Load(),
		OutboundMessages: sess.outboundCount.Load(),
		PendingRequests:  sess.pending.count(),
	}
}

// HandleFrame is the C7 dispatcher entry point: a transport hands it one
// decoded JSON value and this classifies (C1), routes inbound requests and
// notifications (C4 lookup via the router), and resolves outbound response
// correlations (C3). It returns the encoded response frame to write, or nil
// for a notification/response that produces no reply.
func (sess *Session) HandleFrame(ctx context.Context, raw json.RawMessage) []byte {
	sess.inboundCount.Add(1)

	kind, err := ClassifyFrame(raw)
	if err != nil {
		return sess.encodeResponse(ErrorResponse(nil, ParseError, err.Error()))
	}

	switch kind {
	case FrameResponse:
		var resp ResponseMessage
		if err := json.Unmarshal(raw, &resp); err != nil {
			sess.server.debugLog("malformed response frame: %v", err)
			return nil
		}
		if !sess.pending.resolve(resp) {
			sess.server.debugLog("no pending request for response id %v", resp.ID)
		}
		return nil

	case FrameRequest:
		if sess.State() == StateDraining || sess.State() == StateClosed {
			var req RequestMessage
			_ = json.Unmarshal(raw, &req)
			return sess.encodeResponse(ErrorResponse(req.ID, InvalidRequest, "session is not accepting new requests"))
		}
		var req RequestMessage
		if err := json.Unmarshal(raw, &req); err != nil {
			return sess.encodeResponse(ErrorResponse(nil, ParseError, "invalid request"))
		}
		reqID := stringifyID(req.ID)
		if sess.isInflight(reqID) {
			return sess.encodeResponse(ErrorResponse(req.ID, InvalidRequest, "duplicate in-flight request id"))
		}
		resp := sess.router.DispatchRequest(ctx, req)
		return sess.encodeResponse(resp)

	case FrameNotification:
		var note NotificationMessage
		if err := json.Unmarshal(raw, &note); err != nil {
			sess.server.debugLog("malformed notification frame: %v", err)
			return nil
		}
		if err := sess.router.DispatchNotification(ctx, note); err != nil {
			sess.server.debugLog("notification dispatch error: %v", err)
		}
		for _, err := range sess.server.Notifications.Dispatch(ctx, note.Method, note.Params) {
			sess.server.debugLog("notification subscriber error: %v", err)
		}
		return nil

	default:
		return sess.encodeResponse(ErrorResponse(nil, ParseError, "unrecognized frame shape"))
	}
}

func (sess *Session) encodeResponse(resp ResponseMessage) []byte {
	if resp.JSONRPC == "" {
		resp.JSONRPC = JSONRPCVersion
	}
	data, err := json.Marshal(resp)
	if err != nil {
		sess.server.debugLog("failed to marshal response: %v", err)
		return nil
	}
	return data
}

// emitNotification marshals and writes a notification frame.
func (sess *Session) emitNotification(method string, params any) {
	note, err := NewNotificationMessage(method, params)
	if err != nil {
		sess.server.debugLog("failed to build notification %s: %v", method, err)
		return
	}
	data, err := json.Marshal(note)
	if err != nil {
		sess.server.debugLog("failed to marshal notification %s: %v", method, err)
		return
	}
	sess.writeFrame(data)
}

// sendRequest marshals and writes a peer-initiated request frame. It
// satisfies the `send func(RequestMessage) error` shape pendingOutbound
// expects.
func (sess *Session) sendRequest(req RequestMessage) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	sess.writeFrame(data)
	return nil
}

func (sess *Session) writeFrame(data []byte) {
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	if err := sess.transport.WriteFrame(data); err != nil {
		sess.server.debugLog("write frame failed: %v", err)
		return
	}
	sess.outboundCount.Add(1)
}

// registerCancellation records cancel under each of keys (the request id and,
// if present, its progress token) so a later notifications/cancelled or
// internal shutdown can reach it.
func (sess *Session) registerCancellation(cancel context.CancelFunc, keys ...string) {
	if cancel == nil {
		return
	}
	sess.inflightMu.Lock()
	defer sess.inflightMu.Unlock()
	for _, key := range keys {
		if key != "" {
			sess.inflightCancels[key] = cancel
		}
	}
}

// isInflight reports whether id already has a registered cancellation,
// i.e. a request with this id is currently being handled.
func (sess *Session) isInflight(id string) bool {
	if id == "" {
		return false
	}
	sess.inflightMu.Lock()
	defer sess.inflightMu.Unlock()
	_, ok := sess.inflightCancels[id]
	return ok
}

func (sess *Session) clearCancellation(keys ...string) {
	sess.inflightMu.Lock()
	defer sess.inflightMu.Unlock()
	for _, key := range keys {
		delete(sess.inflightCancels, key)
	}
}

func (sess *Session) cancelByKey(key string) bool {
	if key == "" {
		return false
	}
	sess.inflightMu.Lock()
	cancel, ok := sess.inflightCancels[key]
	if ok {
		delete(sess.inflightCancels, key)
	}
	sess.inflightMu.Unlock()

	if ok && cancel != nil {
		cancel()
	}
	return ok
}

// cancelAllInflight cancels every in-flight handler, used when entering
// Draining.
func (sess *Session) cancelAllInflight() {
	sess.inflightMu.Lock()
	cancels := make([]context.CancelFunc, 0, len(sess.inflightCancels))
	for _, cancel := range sess.inflightCancels {
		cancels = append(cancels, cancel)
	}
	sess.inflightCancels = make(map[string]context.CancelFunc)
	sess.inflightMu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// Drain transitions Running -> Draining, cancelling every in-flight handler
// and rejecting new inbound requests (spec.md §4.8).
func (sess *Session) Drain() error {
	if err := sess.lifecycle.transition(StateDraining); err != nil {
		return err
	}
	sess.cancelAllInflight()
	return nil
}

// Close transitions to Closed (from whichever state permits it), tears down
// this session's resource subscriptions, and detaches it from the server's
// subscription hub.
func (sess *Session) Close() error {
	current := sess.State()
	if current != StateClosed {
		if err := sess.lifecycle.transition(StateClosed); err != nil && current != StateDraining {
			// Draining -> Closed is always legal; anything else failing here
			// means a caller closed from an unexpected state (e.g. Init).
			// Force the terminal state regardless: a transport shutting down
			// must not leave the session machine stuck.
			sess.lifecycle.mu.Lock()
			sess.lifecycle.state = StateClosed
			sess.lifecycle.mu.Unlock()
		}
	}
	sess.cancelAllInflight()

	sess.resourceSubsMu.Lock()
	uris := make([]string, 0, len(sess.resourceSubs))
	for uri := range sess.resourceSubs {
		uris = append(uris, uri)
	}
	sess.resourceSubs = make(map[string]struct{})
	sess.resourceSubsMu.Unlock()
	for _, uri := range uris {
		sess.server.subscriptions.unsubscribe(uri, sess)
	}

	sess.server.subscriptions.unregisterSession(sess)
	return nil
}
