package mcp

import (
	"io"
	"time"
)

// SupportedProtocolVersions lists the protocol versions this engine
// understands, newest first. Handshake negotiation (spec.md §4.8, §8
// scenario 6) picks the first entry also present in the peer's list.
var SupportedProtocolVersions = []string{"2025-06-18", "2025-03-26", "2024-11-05"}

// Config holds the construction-time settings for a Server.
type Config struct {
	// ServerName/ServerVersion populate the `serverInfo` block of the
	// initialize response.
	ServerName    string
	ServerVersion string

	// Instructions, if set, is returned to the client in `initialize` as
	// free-form guidance on how to use this server.
	Instructions string

	// Debug enables process debug logging (distinct from the MCP logging
	// capability's notifications/message) to LogWriter.
	Debug     bool
	LogWriter io.Writer

	// PingInterval and PingTimeout hold a liveness-ping cadence and reply
	// deadline. No component of the engine reads them: sessions answer an
	// inbound ping but never send one themselves, and a silent peer does
	// not close the session.
	PingInterval time.Duration
	PingTimeout  time.Duration

	// ProtocolVersions overrides SupportedProtocolVersions for this server,
	// in preference order.
	ProtocolVersions []string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ServerName:       "mcpcore",
		ServerVersion:    "0.1.0",
		Debug:            false,
		PingInterval:     30 * time.Second,
		PingTimeout:      10 * time.Second,
		ProtocolVersions: SupportedProtocolVersions,
	}
}

func (c Config) protocolVersions() []string {
	if len(c.ProtocolVersions) > 0 {
		return c.ProtocolVersions
	}
	return SupportedProtocolVersions
}
