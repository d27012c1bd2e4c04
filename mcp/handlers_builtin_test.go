package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oxhq/mcpcore/mcp/types"
)

type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "echoes its message argument" }
func (echoTool) InputSchema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{"message": map[string]any{"type": "string"}}}
}
func (echoTool) Handler() types.ToolHandler {
	return func(ctx context.Context, params json.RawMessage) (any, error) {
		var args struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(params, &args); err != nil {
			return nil, NewError(InvalidParams, "bad params")
		}
		return types.CallToolResult{Content: []types.ContentBlock{{Type: "text", Text: args.Message}}}, nil
	}
}

type blockingTool struct {
	started chan struct{}
}

func (t blockingTool) Name() string        { return "block" }
func (t blockingTool) Description() string { return "blocks until its context is cancelled" }
func (t blockingTool) InputSchema() map[string]any {
	return map[string]any{"type": "object"}
}
func (t blockingTool) Handler() types.ToolHandler {
	return func(ctx context.Context, params json.RawMessage) (any, error) {
		close(t.started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
}

func newRunningSession(t *testing.T) (*Server, *Session) {
	t.Helper()
	srv := newTestServer()
	sess := NewSession(srv, &recordingWriter{}, RoleServer)
	// The default post-handshake roots/list call races against assertions
	// that inspect every frame a session writes; tests exercising that
	// behavior directly (peer_test.go) opt back in explicitly.
	sess.OnInitialized = nil
	initializeSession(t, sess)
	return srv, sess
}

func TestCallToolSucceeds(t *testing.T) {
	srv, sess := newRunningSession(t)
	srv.Tools.Register("echo", echoTool{})

	resp := sess.HandleFrame(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"echo","arguments":{"message":"hi"}}}`))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(resp, &decoded))
	require.Nil(t, decoded["error"])
	result := decoded["result"].(map[string]any)
	content := result["content"].([]any)[0].(map[string]any)
	require.Equal(t, "hi", content["text"])
}

func TestCallToolNotFound(t *testing.T) {
	_, sess := newRunningSession(t)

	resp := sess.HandleFrame(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":6,"method":"tools/call","params":{"name":"missing","arguments":{}}}`))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(resp, &decoded))
	errObj := decoded["error"].(map[string]any)
	require.Equal(t, float64(MethodNotFound), errObj["code"])
}

func TestCallToolCancellation(t *testing.T) {
	srv, sess := newRunningSession(t)
	tool := blockingTool{started: make(chan struct{})}
	srv.Tools.Register("block", tool)

	done := make(chan []byte, 1)
	go func() {
		done <- sess.HandleFrame(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"block","arguments":{}}}`))
	}()

	select {
	case <-tool.started:
	case <-time.After(time.Second):
		t.Fatal("tool never started")
	}

	cancelled := sess.cancelByKey("7")
	require.True(t, cancelled)

	select {
	case resp := <-done:
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(resp, &decoded))
		result := decoded["result"].(map[string]any)
		require.Equal(t, true, result["isError"])
	case <-time.After(time.Second):
		t.Fatal("call did not return after cancellation")
	}
}

func TestToolsListPagination(t *testing.T) {
	srv, sess := newRunningSession(t)
	for i := 0; i < 5; i++ {
		srv.Tools.Register(string(rune('a'+i)), echoTool{})
	}

	resp := sess.HandleFrame(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":8,"method":"tools/list","params":{"limit":2}}`))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(resp, &decoded))
	result := decoded["result"].(map[string]any)
	require.Len(t, result["tools"], 2)
	require.NotEmpty(t, result["nextCursor"])
}

type greetingTemplate struct{}

func (greetingTemplate) Name() string        { return "greeting" }
func (greetingTemplate) Description() string { return "greets whoever is named in the uri" }
func (greetingTemplate) URITemplate() string { return "greeting://{name}" }
func (greetingTemplate) MimeType() string    { return "text/plain" }
func (greetingTemplate) Handler() types.ResourceTemplateHandler {
	return func(ctx context.Context, bindings map[string]string) (string, error) {
		return "hello " + bindings["name"], nil
	}
}

func TestReadResourceTemplateMatch(t *testing.T) {
	srv, sess := newRunningSession(t)
	require.NoError(t, srv.ResourceTemplates.Register(greetingTemplate{}))

	resp := sess.HandleFrame(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":9,"method":"resources/read","params":{"uri":"greeting://world"}}`))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(resp, &decoded))
	result := decoded["result"].(map[string]any)
	contents := result["contents"].([]any)[0].(map[string]any)
	require.Equal(t, "hello world", contents["text"])
}

func TestReadResourceNotFound(t *testing.T) {
	_, sess := newRunningSession(t)
	resp := sess.HandleFrame(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":10,"method":"resources/read","params":{"uri":"res://nope"}}`))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(resp, &decoded))
	errObj := decoded["error"].(map[string]any)
	require.Equal(t, float64(ResourceNotFound), errObj["code"])
}

func TestSubscribeAndResourceUpdatedFanOut(t *testing.T) {
	srv, sess := newRunningSession(t)
	srv.Resources.Register("res://doc", staticResource{uri: "res://doc", text: "v1"})

	resp := sess.HandleFrame(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":11,"method":"resources/subscribe","params":{"uri":"res://doc"}}`))
	require.NotNil(t, resp)

	writer := sess.transport.(*recordingWriter)
	before := len(writer.all())

	srv.ResourceUpdated("res://doc")

	require.Eventually(t, func() bool {
		return len(writer.all()) > before
	}, time.Second, 10*time.Millisecond)

	last := writer.last()
	require.Equal(t, "notifications/resources/updated", last["method"])
}

func TestCompletionHandlerDefaultsToEmpty(t *testing.T) {
	_, sess := newRunningSession(t)
	resp := sess.HandleFrame(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":12,"method":"completion/complete","params":{"ref":{"type":"ref/prompt","name":"p"},"argument":{"name":"a","value":""}}}`))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(resp, &decoded))
	result := decoded["result"].(map[string]any)
	completion := result["completion"].(map[string]any)
	require.Equal(t, float64(0), completion["total"])
}

func TestCompletionHandlerInvoked(t *testing.T) {
	srv, sess := newRunningSession(t)
	srv.SetCompletionHandler(func(ctx context.Context, refKind, refName, argName, argValue string) []string {
		return []string{refName + "-suggestion"}
	})

	resp := sess.HandleFrame(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":13,"method":"completion/complete","params":{"ref":{"type":"ref/prompt","name":"greet"},"argument":{"name":"a","value":""}}}`))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(resp, &decoded))
	result := decoded["result"].(map[string]any)
	completion := result["completion"].(map[string]any)
	values := completion["values"].([]any)
	require.Equal(t, "greet-suggestion", values[0])
}
