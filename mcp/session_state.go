package mcp

import (
	"fmt"
	"sync"
	"time"

	"github.com/oxhq/mcpcore/mcp/types"
)

// State is a position in the session lifecycle (spec.md §4.8):
// Init -> Handshaking -> Running -> Draining -> Closed.
type State int

const (
	StateInit State = iota
	StateHandshaking
	StateRunning
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateHandshaking:
		return "handshaking"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// validTransitions enumerates the only state changes the lifecycle permits.
// A failed handshake goes straight to Closed; Running may move to Closed
// directly as well as via Draining.
var validTransitions = map[State][]State{
	StateInit:        {StateHandshaking},
	StateHandshaking: {StateRunning, StateClosed},
	StateRunning:     {StateDraining, StateClosed},
	StateDraining:    {StateClosed},
	StateClosed:      {},
}

// lifecycle tracks the session's current State under a mutex; SessionState
// (below) tracks everything else negotiated during the handshake.
type lifecycle struct {
	mu    sync.RWMutex
	state State
}

func newLifecycle() *lifecycle {
	return &lifecycle{state: StateInit}
}

func (l *lifecycle) Current() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// transition moves to next if the current state permits it, returning an
// error otherwise. Callers hold no other lock across this call.
func (l *lifecycle) transition(next State) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, allowed := range validTransitions[l.state] {
		if allowed == next {
			l.state = next
			return nil
		}
	}
	return fmt.Errorf("invalid session transition: %s -> %s", l.state, next)
}

// SessionState captures negotiated protocol details and peer preferences for
// the active connection: protocol version, capability flags, logging level,
// client roots, and the sampling/elicitation exchange history.
type SessionState struct {
	mu                 sync.RWMutex
	protocolVersion    string
	clientCapabilities map[string]any
	loggingLevel       LogLevel
	clientRoots        []string
	samplingHistory    []types.SamplingRecord
	elicitationHistory []types.ElicitationRecord
}

// NewSessionState returns a session state with sensible defaults.
func NewSessionState() *SessionState {
	return &SessionState{
		clientCapabilities: make(map[string]any),
		loggingLevel:       LogLevelInfo,
	}
}

// MarkNegotiated records the negotiated protocol version and peer capabilities.
func (s *SessionState) MarkNegotiated(protocolVersion string, capabilities map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.protocolVersion = protocolVersion
	if capabilities == nil {
		s.clientCapabilities = make(map[string]any)
	} else {
		clone := make(map[string]any, len(capabilities))
		for k, v := range capabilities {
			clone[k] = v
		}
		s.clientCapabilities = clone
	}
}

// ProtocolVersion returns the negotiated protocol version.
func (s *SessionState) ProtocolVersion() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.protocolVersion
}

// ClientCapabilities returns a shallow copy of the negotiated capabilities.
func (s *SessionState) ClientCapabilities() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := make(map[string]any, len(s.clientCapabilities))
	for k, v := range s.clientCapabilities {
		clone[k] = v
	}
	return clone
}

// SupportsListChanged reports whether the peer's negotiated capabilities
// advertise `<category>.listChanged` (e.g. category "resources" for
// `resources.listChanged`), per spec.md §3's per-peer capability flags.
// Anything but an explicit boolean true is treated as unsupported.
func (s *SessionState) SupportsListChanged(category string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	section, ok := s.clientCapabilities[category].(map[string]any)
	if !ok {
		return false
	}
	enabled, _ := section["listChanged"].(bool)
	return enabled
}

// SetLoggingLevel stores the requested minimum logging level.
func (s *SessionState) SetLoggingLevel(level LogLevel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loggingLevel = level
}

// LoggingLevel returns the currently configured minimum logging level.
func (s *SessionState) LoggingLevel() LogLevel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loggingLevel
}

// SetClientRoots records the roots returned by the peer.
func (s *SessionState) SetClientRoots(roots []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := make([]string, len(roots))
	copy(clone, roots)
	s.clientRoots = clone
}

// ClientRoots returns the negotiated root directories, if any.
func (s *SessionState) ClientRoots() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := make([]string, len(s.clientRoots))
	copy(clone, s.clientRoots)
	return clone
}

// AppendSamplingRecord stores a sampling exchange for later inspection.
func (s *SessionState) AppendSamplingRecord(params, result map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samplingHistory = append(s.samplingHistory, types.SamplingRecord{
		Timestamp: time.Now().UTC(),
		Params:    cloneMap(params),
		Result:    cloneMap(result),
	})
}

// SamplingHistory retrieves a copy of recorded sampling exchanges.
func (s *SessionState) SamplingHistory() []types.SamplingRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := make([]types.SamplingRecord, len(s.samplingHistory))
	copy(clone, s.samplingHistory)
	return clone
}

// AppendElicitationRecord stores an elicitation exchange.
func (s *SessionState) AppendElicitationRecord(params, result map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elicitationHistory = append(s.elicitationHistory, types.ElicitationRecord{
		Timestamp: time.Now().UTC(),
		Params:    cloneMap(params),
		Result:    cloneMap(result),
	})
}

// ElicitationHistory returns recorded elicitation exchanges.
func (s *SessionState) ElicitationHistory() []types.ElicitationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := make([]types.ElicitationRecord, len(s.elicitationHistory))
	copy(clone, s.elicitationHistory)
	return clone
}

func cloneMap(input map[string]any) map[string]any {
	if input == nil {
		return nil
	}
	clone := make(map[string]any, len(input))
	for k, v := range input {
		clone[k] = v
	}
	return clone
}
