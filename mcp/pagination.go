package mcp

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// Page sizing for the four list operations (tools/list, resources/list,
// prompts/list, resources/templates/list): a caller that omits limit gets
// listPageSizeDefault items (or fewer, if the collection is smaller); no
// caller may ask for more than listPageSizeCeiling at once regardless of
// what it requests.
const (
	listPageSizeDefault = 64
	listPageSizeCeiling = 256
)

var (
	errCursorMalformed = errors.New("pagination: cursor is not a value this engine issued")
	errCursorExhausted = errors.New("pagination: cursor addresses a position past the end of the collection")
)

type paginationParams struct {
	Cursor string `json:"cursor,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// cursorCodec hides the offset-in-a-string representation behind base64 so
// callers that try to parse or increment a cursor themselves get nonsense
// instead of an integer they might be tempted to rely on; spec.md §3 only
// promises "the core treats it as ... an offset into an ordered list", not
// that the wire representation is numeric.
type cursorCodec struct{}

func (cursorCodec) encode(offset int) string {
	return base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf("o%d", offset)))
}

func (cursorCodec) decode(cursor string) (int, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil || len(raw) < 2 || raw[0] != 'o' {
		return 0, errCursorMalformed
	}
	var offset int
	if _, err := fmt.Sscanf(string(raw[1:]), "%d", &offset); err != nil {
		return 0, errCursorMalformed
	}
	return offset, nil
}

// applyPagination slices items starting at the position cursor addresses,
// returning at most limit of them plus a follow-up cursor when more remain.
// Page boundaries are resolved entirely here; nothing upstream ever sees an
// offset directly.
func applyPagination[T any](items []T, cursor string, limit int) ([]T, *string, error) {
	var codec cursorCodec

	limit = clampPageSize(limit, len(items))

	start := 0
	if cursor != "" {
		offset, err := codec.decode(cursor)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", cursor, err)
		}
		if offset < 0 || offset > len(items) {
			return nil, nil, errCursorExhausted
		}
		start = offset
	}

	if start >= len(items) {
		return []T{}, nil, nil
	}

	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	page := items[start:end]

	if end >= len(items) {
		return page, nil, nil
	}
	next := codec.encode(end)
	return page, &next, nil
}

func clampPageSize(requested, collectionSize int) int {
	switch {
	case requested <= 0:
		if collectionSize < listPageSizeDefault {
			return collectionSize
		}
		return listPageSizeDefault
	case requested > listPageSizeCeiling:
		return listPageSizeCeiling
	default:
		return requested
	}
}

func decodePaginationParams(raw json.RawMessage) (paginationParams, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return paginationParams{}, nil
	}
	var params paginationParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return paginationParams{}, err
	}
	return params, nil
}
