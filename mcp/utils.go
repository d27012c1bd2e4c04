package mcp

import "encoding/json"

// reencodeAsMap round-trips a decoded `any` result through JSON to coerce it
// into a map[string]any, used when a peer response's result isn't already
// map-shaped (e.g. it decoded as a typed struct before reaching here).
func reencodeAsMap(result any) (map[string]any, bool) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, false
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, false
	}
	return decoded, true
}
