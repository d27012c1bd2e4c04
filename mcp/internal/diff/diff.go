// Package diff renders readable unified diffs for test failures that
// compare multi-line JSON-RPC payloads (pagination pages, negotiated
// capability sets), where testify's default "%+v" dump is unreadable.
package diff

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
)

// Unified renders a unified diff between two arbitrary values, JSON-encoding
// each with indentation first. Intended for use in test failure messages,
// e.g. t.Errorf("mismatch:\n%s", diff.Unified("want", want, "got", got)).
func Unified(aName string, a any, bName string, b any) string {
	aText, bText := render(a), render(b)
	if aText == bText {
		return ""
	}

	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(aText),
		B:        difflib.SplitLines(bText),
		FromFile: aName,
		ToFile:   bName,
		Context:  3,
	}
	out, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return fmt.Sprintf("(failed to render diff: %v)\nwant: %s\ngot:  %s", err, aText, bText)
	}
	return out
}

func render(v any) string {
	if raw, ok := v.(json.RawMessage); ok {
		v = json.RawMessage(prettyJSON(raw))
		return string(v.(json.RawMessage))
	}
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(data)
}

func prettyJSON(raw []byte) []byte {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return raw
	}
	return buf.Bytes()
}
