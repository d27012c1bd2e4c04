// Package transport provides the C2 transport adapters: line-delimited
// stdio, and HTTP/TLS with streaming responses. Each adapter implements
// mcp.FrameWriter and owns the actual byte-level I/O; the protocol engine
// never touches a socket or file descriptor directly.
package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/oxhq/mcpcore/mcp"
)

// Stdio is the standard-streams transport: one JSON value per line in
// each direction, matching the teacher's bufio framing and the ndjson
// shape used across the MCP ecosystem.
type Stdio struct {
	reader *bufio.Reader
	writer *bufio.Writer

	writeMu sync.Mutex
}

// NewStdio builds a Stdio transport over the given streams (os.Stdin/
// os.Stdout in production; pipes in tests).
func NewStdio(r io.Reader, w io.Writer) *Stdio {
	return &Stdio{
		reader: bufio.NewReader(r),
		writer: bufio.NewWriter(w),
	}
}

// WriteFrame implements mcp.FrameWriter: it appends a newline and flushes,
// so every frame reaches the peer immediately rather than sitting in the
// buffered writer.
func (t *Stdio) WriteFrame(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := fmt.Fprintf(t.writer, "%s\n", data); err != nil {
		return err
	}
	return t.writer.Flush()
}

// Serve drives sess from this transport's input stream until EOF, ctx is
// done, or an unrecoverable decode error occurs. It begins the handshake
// (Session.Begin) before reading the first frame and closes sess on exit.
func (t *Stdio) Serve(ctx context.Context, sess *mcp.Session) error {
	if err := sess.Begin(); err != nil {
		return err
	}
	defer sess.Close()

	decoder := json.NewDecoder(t.reader)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var raw json.RawMessage
		err := decoder.Decode(&raw)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if err == io.ErrUnexpectedEOF {
				return err
			}
			parseErr, marshalErr := json.Marshal(mcp.ErrorResponse(nil, mcp.ParseError, err.Error()))
			if marshalErr == nil {
				_ = t.WriteFrame(parseErr)
			}
			decoder = json.NewDecoder(t.reader)
			continue
		}

		if resp := sess.HandleFrame(ctx, raw); resp != nil {
			if err := t.WriteFrame(resp); err != nil {
				return err
			}
		}
	}
}
