package mcp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLifecycleValidTransitions(t *testing.T) {
	cases := []struct {
		from, to State
		ok       bool
	}{
		{StateInit, StateHandshaking, true},
		{StateInit, StateRunning, false},
		{StateHandshaking, StateRunning, true},
		{StateHandshaking, StateClosed, true},
		{StateHandshaking, StateDraining, false},
		{StateRunning, StateDraining, true},
		{StateRunning, StateClosed, true},
		{StateRunning, StateHandshaking, false},
		{StateDraining, StateClosed, true},
		{StateDraining, StateRunning, false},
		{StateClosed, StateHandshaking, false},
		{StateClosed, StateClosed, false},
	}

	for _, tc := range cases {
		l := &lifecycle{state: tc.from}
		err := l.transition(tc.to)
		if tc.ok {
			require.NoError(t, err, "%s -> %s should be allowed", tc.from, tc.to)
			require.Equal(t, tc.to, l.Current())
		} else {
			require.Error(t, err, "%s -> %s should be rejected", tc.from, tc.to)
			require.Equal(t, tc.from, l.Current())
		}
	}
}

func TestSessionStateNegotiationRoundTrip(t *testing.T) {
	s := NewSessionState()
	caps := map[string]any{"roots": map[string]any{"listChanged": true}}
	s.MarkNegotiated("2025-06-18", caps)

	require.Equal(t, "2025-06-18", s.ProtocolVersion())
	require.Equal(t, caps, s.ClientCapabilities())

	caps["roots"] = "mutated after the fact"
	require.NotEqual(t, caps["roots"], s.ClientCapabilities()["roots"], "stored capabilities must not alias the caller's map")
}

func TestSessionStateLoggingLevelDefaultsToInfo(t *testing.T) {
	s := NewSessionState()
	require.Equal(t, LogLevelInfo, s.LoggingLevel())
	s.SetLoggingLevel(LogLevelDebug)
	require.Equal(t, LogLevelDebug, s.LoggingLevel())
}

func TestSessionStateClientRootsDoesNotAliasCaller(t *testing.T) {
	s := NewSessionState()
	roots := []string{"file:///a"}
	s.SetClientRoots(roots)

	roots[0] = "file:///mutated"
	require.Equal(t, []string{"file:///a"}, s.ClientRoots())
}

func TestSessionStateSamplingAndElicitationHistory(t *testing.T) {
	s := NewSessionState()
	s.AppendSamplingRecord(map[string]any{"prompt": "hi"}, map[string]any{"content": "hello"})
	s.AppendSamplingRecord(map[string]any{"prompt": "again"}, map[string]any{"content": "again!"})

	history := s.SamplingHistory()
	require.Len(t, history, 2)
	require.Equal(t, "hi", history[0].Params["prompt"])

	s.AppendElicitationRecord(map[string]any{"message": "confirm?"}, map[string]any{"accepted": true})
	elicitations := s.ElicitationHistory()
	require.Len(t, elicitations, 1)
	require.Equal(t, true, elicitations[0].Result["accepted"])
}
