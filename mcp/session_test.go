package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oxhq/mcpcore/mcp/types"
)

// recordingWriter is an in-memory FrameWriter used across tests to inspect
// every frame a Session writes without needing a real socket or pipe.
type recordingWriter struct {
	mu     sync.Mutex
	frames [][]byte
}

func (w *recordingWriter) WriteFrame(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	w.frames = append(w.frames, cp)
	return nil
}

func (w *recordingWriter) last() map[string]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.frames) == 0 {
		return nil
	}
	var decoded map[string]any
	_ = json.Unmarshal(w.frames[len(w.frames)-1], &decoded)
	return decoded
}

func (w *recordingWriter) all() []map[string]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]map[string]any, 0, len(w.frames))
	for _, f := range w.frames {
		var decoded map[string]any
		_ = json.Unmarshal(f, &decoded)
		out = append(out, decoded)
	}
	return out
}

func newTestServer() *Server {
	return NewServer(DefaultConfig())
}

func initializeSession(t *testing.T, sess *Session) {
	t.Helper()
	require.NoError(t, sess.Begin())

	req := fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":%q,"capabilities":{},"clientInfo":{"name":"test","version":"0"}}}`, SupportedProtocolVersions[0])
	resp := sess.HandleFrame(context.Background(), json.RawMessage(req))
	require.NotNil(t, resp)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(resp, &decoded))
	require.Nil(t, decoded["error"])

	note := `{"jsonrpc":"2.0","method":"notifications/initialized"}`
	require.Nil(t, sess.HandleFrame(context.Background(), json.RawMessage(note)))
	require.Equal(t, StateRunning, sess.State())
}

func TestSessionHandshake(t *testing.T) {
	srv := newTestServer()
	writer := &recordingWriter{}
	sess := NewSession(srv, writer, RoleServer)

	require.Equal(t, StateInit, sess.State())
	initializeSession(t, sess)
	require.Equal(t, SupportedProtocolVersions[0], sess.state.ProtocolVersion())
}

func TestSessionHandshakeRejectsUnsupportedVersion(t *testing.T) {
	srv := newTestServer()
	sess := NewSession(srv, &recordingWriter{}, RoleServer)
	require.NoError(t, sess.Begin())

	req := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"1999-01-01","capabilities":{}}}`
	resp := sess.HandleFrame(context.Background(), json.RawMessage(req))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(resp, &decoded))
	require.NotNil(t, decoded["error"])
	require.Equal(t, StateClosed, sess.State())
}

func TestSessionAllowsPingDuringHandshake(t *testing.T) {
	srv := newTestServer()
	sess := NewSession(srv, &recordingWriter{}, RoleServer)
	require.NoError(t, sess.Begin())

	resp := sess.HandleFrame(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":2,"method":"ping"}`))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(resp, &decoded))
	require.NotNil(t, decoded["result"], "ping is part of the built-in table and is allowed mid-handshake")
}

func TestSessionDrainRejectsNewRequests(t *testing.T) {
	srv := newTestServer()
	sess := NewSession(srv, &recordingWriter{}, RoleServer)
	initializeSession(t, sess)

	require.NoError(t, sess.Drain())

	resp := sess.HandleFrame(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":99,"method":"ping"}`))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(resp, &decoded))
	require.NotNil(t, decoded["error"])
}

func TestSessionCloseIsIdempotentAndTearsDownSubscriptions(t *testing.T) {
	srv := newTestServer()
	srv.Resources.Register("res://doc", staticResource{uri: "res://doc", text: "hello"})
	sess := NewSession(srv, &recordingWriter{}, RoleServer)
	initializeSession(t, sess)

	resp := sess.HandleFrame(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":3,"method":"resources/subscribe","params":{"uri":"res://doc"}}`))
	require.NotNil(t, resp)
	require.Len(t, srv.subscriptions.subscribersOf("res://doc"), 1)

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())
	require.Empty(t, srv.subscriptions.subscribersOf("res://doc"))
	require.Equal(t, StateClosed, sess.State())
}

func TestHandleFrameResolvesOutboundResponse(t *testing.T) {
	srv := newTestServer()
	sess := NewSession(srv, &recordingWriter{}, RoleServer)

	ch := sess.pending.register("42")
	resp := sess.HandleFrame(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":42,"result":{"ok":true}}`))
	require.Nil(t, resp, "a response frame produces no reply of its own")

	select {
	case got := <-ch:
		require.Equal(t, "42", stringifyID(got.ID))
	case <-time.After(time.Second):
		t.Fatal("response was not delivered to its waiter")
	}
}

func TestHandleFrameMalformedProducesParseError(t *testing.T) {
	srv := newTestServer()
	sess := NewSession(srv, &recordingWriter{}, RoleServer)
	resp := sess.HandleFrame(context.Background(), json.RawMessage(`not json`))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(resp, &decoded))
	errObj, ok := decoded["error"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, float64(ParseError), errObj["code"])
}

// staticResource is a minimal fixed-URI resource used by several tests.
type staticResource struct {
	uri  string
	text string
}

func (r staticResource) Name() string        { return r.uri }
func (r staticResource) Description() string { return "static test resource" }
func (r staticResource) URI() string         { return r.uri }
func (r staticResource) MimeType() string    { return "text/plain" }
func (r staticResource) Contents(ctx context.Context) (string, error) {
	return r.text, nil
}

var _ types.Resource = staticResource{}
