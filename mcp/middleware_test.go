package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChainAppliesOutermostFirst(t *testing.T) {
	var order []string

	mark := func(name string) Middleware {
		return func(next RequestHandler) RequestHandler {
			return func(ctx context.Context, msg RequestMessage) ResponseMessage {
				order = append(order, name)
				return next(ctx, msg)
			}
		}
	}

	base := func(ctx context.Context, msg RequestMessage) ResponseMessage {
		order = append(order, "base")
		return SuccessResponse(msg.ID, nil)
	}

	handler := Chain(base, mark("outer"), mark("inner"))
	handler(context.Background(), RequestMessage{ID: 1})

	require.Equal(t, []string{"outer", "inner", "base"}, order)
}

func TestChainWithNoMiddlewaresReturnsBase(t *testing.T) {
	base := func(ctx context.Context, msg RequestMessage) ResponseMessage {
		return SuccessResponse(msg.ID, "ok")
	}
	handler := Chain(base)
	resp := handler(context.Background(), RequestMessage{ID: 1})
	require.Equal(t, "ok", resp.Result)
}

func TestChainNotificationAppliesOutermostFirst(t *testing.T) {
	var order []string

	mark := func(name string) NotificationMiddleware {
		return func(next NotificationHandler) NotificationHandler {
			return func(ctx context.Context, msg NotificationMessage) error {
				order = append(order, name)
				return next(ctx, msg)
			}
		}
	}

	base := func(ctx context.Context, msg NotificationMessage) error {
		order = append(order, "base")
		return nil
	}

	handler := ChainNotification(base, mark("outer"), mark("inner"))
	require.NoError(t, handler(context.Background(), NotificationMessage{}))
	require.Equal(t, []string{"outer", "inner", "base"}, order)
}
