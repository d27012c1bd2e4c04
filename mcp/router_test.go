package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRouterDispatchRequestRoutesToHandler(t *testing.T) {
	r := NewRouter()
	r.RegisterRequest("ping", func(ctx context.Context, msg RequestMessage) ResponseMessage {
		return SuccessResponse(msg.ID, "pong")
	})

	resp := r.DispatchRequest(context.Background(), RequestMessage{JSONRPC: JSONRPCVersion, ID: 1, Method: "ping"})
	require.Nil(t, resp.Error)
	require.Equal(t, "pong", resp.Result)
}

func TestRouterDispatchRequestMethodNotFound(t *testing.T) {
	r := NewRouter()
	resp := r.DispatchRequest(context.Background(), RequestMessage{JSONRPC: JSONRPCVersion, ID: 2, Method: "nope"})
	require.NotNil(t, resp.Error)
	require.Equal(t, MethodNotFound, resp.Error.Code)
}

func TestRouterDispatchRequestRejectsBadVersion(t *testing.T) {
	r := NewRouter()
	r.RegisterRequest("ping", func(ctx context.Context, msg RequestMessage) ResponseMessage {
		return SuccessResponse(msg.ID, "pong")
	})

	resp := r.DispatchRequest(context.Background(), RequestMessage{JSONRPC: "1.0", ID: 3, Method: "ping"})
	require.NotNil(t, resp.Error)
	require.Equal(t, InvalidRequest, resp.Error.Code)
}

func TestRouterDispatchRequestFillsDefaultVersion(t *testing.T) {
	r := NewRouter()
	r.RegisterRequest("ping", func(ctx context.Context, msg RequestMessage) ResponseMessage {
		return ResponseMessage{ID: msg.ID, Result: "pong"}
	})

	resp := r.DispatchRequest(context.Background(), RequestMessage{JSONRPC: JSONRPCVersion, ID: 4, Method: "ping"})
	require.Equal(t, JSONRPCVersion, resp.JSONRPC)
}

func TestRouterDispatchNotificationRoutesToHandler(t *testing.T) {
	r := NewRouter()
	var seen string
	r.RegisterNotification("notifications/x", func(ctx context.Context, msg NotificationMessage) error {
		seen = msg.Method
		return nil
	})

	err := r.DispatchNotification(context.Background(), NotificationMessage{JSONRPC: JSONRPCVersion, Method: "notifications/x"})
	require.NoError(t, err)
	require.Equal(t, "notifications/x", seen)
}

func TestRouterDispatchNotificationUnregisteredReturnsError(t *testing.T) {
	r := NewRouter()
	err := r.DispatchNotification(context.Background(), NotificationMessage{JSONRPC: JSONRPCVersion, Method: "notifications/unknown"})
	require.Error(t, err)
}

func TestRouterDispatchNotificationRejectsBadVersion(t *testing.T) {
	r := NewRouter()
	err := r.DispatchNotification(context.Background(), NotificationMessage{JSONRPC: "", Method: "notifications/x"})
	require.Error(t, err)
}
