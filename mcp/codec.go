package mcp

import "encoding/json"

// FrameKind classifies a decoded JSON-RPC value per spec.md §4.1: has `id`
// and `method` -> Request; has `id` and (`result` or `error`) -> Response;
// has `method` only -> Notification.
type FrameKind int

const (
	FrameInvalid FrameKind = iota
	FrameRequest
	FrameResponse
	FrameNotification
)

type frameEnvelope struct {
	ID      *json.RawMessage `json:"id"`
	Method  string           `json:"method"`
	Result  *json.RawMessage `json:"result"`
	Error   *json.RawMessage `json:"error"`
	JSONRPC string           `json:"jsonrpc"`
}

// ClassifyFrame decodes raw just far enough to determine its JSON-RPC shape
// without committing to a concrete message type, so the caller can dispatch
// to the right decoder. Invalid JSON or a shape matching none of the three
// message kinds reports FrameInvalid.
func ClassifyFrame(raw []byte) (FrameKind, error) {
	var env frameEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return FrameInvalid, err
	}

	switch {
	case env.ID != nil && env.Method != "":
		return FrameRequest, nil
	case env.ID != nil && (env.Result != nil || env.Error != nil):
		return FrameResponse, nil
	case env.ID == nil && env.Method != "":
		return FrameNotification, nil
	default:
		return FrameInvalid, nil
	}
}
