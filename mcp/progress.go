package mcp

import "context"

type progressContextKey struct{}

type progressState struct {
	token string
}

// withProgressToken carries a progress token through a handler's context so
// ReportProgress (and any peer-initiated request the handler makes) can tag
// outbound frames with it, without a thread-local.
func withProgressToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	state := progressState{token: token}
	return context.WithValue(ctx, progressContextKey{}, state)
}

func progressTokenFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if state, ok := ctx.Value(progressContextKey{}).(progressState); ok {
		if state.token != "" {
			return state.token, true
		}
	}
	return "", false
}

type metaContextKey struct{}

func withMeta(ctx context.Context, meta Meta) context.Context {
	if len(meta) == 0 {
		return ctx
	}
	return context.WithValue(ctx, metaContextKey{}, meta)
}

func metaFromContext(ctx context.Context) (Meta, bool) {
	if ctx == nil {
		return nil, false
	}
	meta, ok := ctx.Value(metaContextKey{}).(Meta)
	return meta, ok
}

type sessionContextKey struct{}

func withSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext returns the Session handling the in-flight request, if
// any. Handler authors can also receive it via an `inject:"session"` field.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	if ctx == nil {
		return nil, false
	}
	sess, ok := ctx.Value(sessionContextKey{}).(*Session)
	return sess, ok
}
