package transport

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oxhq/mcpcore/mcp"
)

const sessionHeader = "Mcp-Session-Id"

// HTTPConfig holds HTTP/TLS transport listener settings, following the
// teacher's Config struct shape for the HTTP command line.
type HTTPConfig struct {
	Addr       string
	CORSOrigin string

	// TLSCertFile/TLSKeyFile are the cert/key pair HTTP.ListenAndServeTLS
	// serves HTTPS with; when both are empty it generates a self-signed
	// development certificate instead. ListenAndServe ignores them.
	TLSCertFile string
	TLSKeyFile  string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultHTTPConfig returns sensible listener defaults.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Addr:         ":8080",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// queueWriter is the mcp.FrameWriter given to each HTTP-bound Session: it
// buffers outbound frames (progress notifications emitted mid-handler,
// peer-initiated requests, resource-update pushes) until the next POST for
// that session drains them and forwards them ahead of its response.
type queueWriter struct {
	frames chan []byte
}

func newQueueWriter() *queueWriter {
	return &queueWriter{frames: make(chan []byte, 256)}
}

func (q *queueWriter) WriteFrame(data []byte) error {
	select {
	case q.frames <- data:
		return nil
	default:
		return fmt.Errorf("http transport: outbound frame queue full")
	}
}

func (q *queueWriter) drain() [][]byte {
	var out [][]byte
	for {
		select {
		case f := <-q.frames:
			out = append(out, f)
		default:
			return out
		}
	}
}

// HTTP is the C2 HTTP transport: each logical connection is a Session keyed
// by an Mcp-Session-Id header, created on `initialize` and reused by every
// subsequent POST. A bearer token, if Validator is set, gates every request
// (the external JWT collaborator described in spec.md §1).
type HTTP struct {
	Server    *mcp.Server
	Validator func(token string) (bool, error)

	mu       sync.RWMutex
	sessions map[string]*boundSession

	httpServer *http.Server
}

type boundSession struct {
	session *mcp.Session
	queue   *queueWriter
}

// NewHTTP builds an HTTP transport serving srv's handler registries.
func NewHTTP(srv *mcp.Server, cfg HTTPConfig) *HTTP {
	h := &HTTP{
		Server:   srv,
		sessions: make(map[string]*boundSession),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", h.handleMCP)
	mux.HandleFunc("/health", h.handleHealth)

	h.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      h.withCORS(cfg.CORSOrigin, h.withAuth(mux)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return h
}

// ListenAndServe starts the plaintext HTTP listener.
func (h *HTTP) ListenAndServe() error {
	return h.httpServer.ListenAndServe()
}

func (h *HTTP) withCORS(origin string, next http.Handler) http.Handler {
	if origin == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+sessionHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *HTTP) withAuth(next http.Handler) http.Handler {
	if h.Validator == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		ok, err := h.Validator(token)
		if err != nil || !ok {
			writeJSONError(w, http.StatusUnauthorized, "invalid or missing bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}

func (h *HTTP) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
}

func (h *HTTP) handleMCP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"transport": "http-jsonrpc",
		})
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "only GET and POST are allowed")
	}
}

func (h *HTTP) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 16<<20))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	sessionID := r.Header.Get(sessionHeader)
	bound, resolvedID, isNew, err := h.resolveSession(sessionID, body)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}

	ctx := r.Context()
	resp := bound.session.HandleFrame(ctx, body)
	frames := bound.queue.drain()
	if resp != nil {
		frames = append(frames, resp)
	}

	if isNew {
		w.Header().Set(sessionHeader, resolvedID)
	}

	if len(frames) > 1 {
		// A handler emitted notifications (progress, logging) ahead of its
		// final response: switch to line-delimited streaming so the peer
		// sees them in order instead of only the last frame (SPEC_FULL
		// supplement 5).
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		for _, frame := range frames {
			_, _ = w.Write(frame)
			_, _ = w.Write([]byte("\n"))
			if flusher != nil {
				flusher.Flush()
			}
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if len(frames) == 1 {
		_, _ = w.Write(frames[0])
	} else {
		_, _ = w.Write([]byte("{}"))
	}
}

// resolveSession finds the session for sessionID, or — if absent and body is
// an `initialize` request — creates one, assigning it a fresh id. It returns
// the id the caller should report back to the peer (the existing header
// value, or the freshly minted one for a new session).
func (h *HTTP) resolveSession(sessionID string, body []byte) (*boundSession, string, bool, error) {
	if sessionID != "" {
		h.mu.RLock()
		bound, ok := h.sessions[sessionID]
		h.mu.RUnlock()
		if !ok {
			return nil, "", false, fmt.Errorf("unknown or expired session: %s", sessionID)
		}
		return bound, sessionID, false, nil
	}

	var envelope struct {
		Method string `json:"method"`
	}
	_ = json.Unmarshal(body, &envelope)
	if envelope.Method != "initialize" {
		return nil, "", false, fmt.Errorf("missing %s header", sessionHeader)
	}

	queue := newQueueWriter()
	sess := mcp.NewSession(h.Server, queue, mcp.RoleServer)
	if err := sess.Begin(); err != nil {
		return nil, "", false, err
	}

	newID := uuid.NewString()
	bound := &boundSession{session: sess, queue: queue}
	h.mu.Lock()
	h.sessions[newID] = bound
	h.mu.Unlock()

	return bound, newID, true, nil
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": message})
}
