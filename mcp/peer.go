package mcp

import "context"

// RequestSampling asks the peer to generate a sampling message
// (`sampling/createMessage`) and records the exchange in session state. A
// peer that does not implement sampling answers MethodNotFound, which this
// treats as "no sampling available" rather than an error.
func (sess *Session) RequestSampling(ctx context.Context, params map[string]any) (map[string]any, error) {
	if params == nil {
		params = make(map[string]any)
	}
	meta := Meta{}
	if token, ok := progressTokenFromContext(ctx); ok {
		meta = meta.WithProgressToken(token)
	}

	resp, err := sess.callPeer(ctx, "sampling/createMessage", params, meta)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		if resp.Error.Code == MethodNotFound {
			sess.server.debugLog("peer does not support sampling/createMessage")
			return nil, nil
		}
		return nil, NewError(resp.Error.Code, resp.Error.Message, resp.Error.Data)
	}

	result := normalizeResponseMap(resp.Result)
	sess.state.AppendSamplingRecord(params, result)
	return result, nil
}

// RequestElicitation asks the peer to collect input from its user
// (`elicitation/create`) and records the exchange.
func (sess *Session) RequestElicitation(ctx context.Context, params map[string]any) (map[string]any, error) {
	if params == nil {
		params = make(map[string]any)
	}
	meta := Meta{}
	if token, ok := progressTokenFromContext(ctx); ok {
		meta = meta.WithProgressToken(token)
	}

	resp, err := sess.callPeer(ctx, "elicitation/create", params, meta)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		if resp.Error.Code == MethodNotFound {
			sess.server.debugLog("peer does not support elicitation/create")
			return nil, nil
		}
		return nil, NewError(resp.Error.Code, resp.Error.Message, resp.Error.Data)
	}

	result := normalizeResponseMap(resp.Result)
	sess.state.AppendElicitationRecord(params, result)
	return result, nil
}

// RequestRoots asks the peer which filesystem roots it exposes
// (`roots/list`) and, on success, records them on the session state.
func (sess *Session) RequestRoots(ctx context.Context) ([]string, error) {
	resp, err := sess.callPeer(ctx, "roots/list", map[string]any{}, Meta{})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		if resp.Error.Code == MethodNotFound {
			return nil, nil
		}
		return nil, NewError(resp.Error.Code, resp.Error.Message, resp.Error.Data)
	}

	var roots []string
	if result, ok := resp.Result.(map[string]any); ok {
		if items, ok := result["roots"].([]any); ok {
			for _, item := range items {
				if rootObj, ok := item.(map[string]any); ok {
					if uri, ok := rootObj["uri"].(string); ok {
						roots = append(roots, uri)
					}
				}
			}
		}
	}
	if len(roots) > 0 {
		sess.state.SetClientRoots(roots)
	}
	return roots, nil
}

// callPeer is the shared C3/C11 path: it allocates an id, registers a
// waiter, sends the request frame, and blocks for the matching response
// (or ctx cancellation, which sends notifications/cancelled carrying that
// same id so the peer can tell which in-flight request to stop).
func (sess *Session) callPeer(ctx context.Context, method string, params any, meta Meta) (ResponseMessage, error) {
	resp, id, err := sess.pending.sendAndAwait(ctx, sess.sendRequest, method, params, meta)
	if err != nil {
		token, _ := meta.ProgressToken()
		sess.sendCancelledNotification(id, token)
		return ResponseMessage{}, err
	}
	return resp, nil
}

func normalizeResponseMap(result any) map[string]any {
	if result == nil {
		return nil
	}
	if existing, ok := result.(map[string]any); ok {
		return existing
	}
	if decoded, ok := reencodeAsMap(result); ok {
		return decoded
	}
	return map[string]any{"value": result}
}
