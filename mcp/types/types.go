// Package types provides shared types and interfaces for MCP components,
// avoiding circular dependencies between the core package and its handlers.
package types

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ToolHandler handles a single tools/call invocation.
type ToolHandler func(ctx context.Context, params json.RawMessage) (any, error)

// Component is a registrable MCP component (tool, prompt, resource).
type Component interface {
	Name() string
	Description() string
}

// Tool is an executable tool with a handler and an input schema.
type Tool interface {
	Component
	Handler() ToolHandler
	InputSchema() map[string]any
}

// PromptArgument describes one argument a prompt template accepts.
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// PromptHandler renders a prompt's message list given bound arguments.
type PromptHandler func(ctx context.Context, args map[string]string) (string, []PromptMessage, error)

// Prompt is a named template producing a prepared message list.
type Prompt interface {
	Component
	Arguments() []PromptArgument
	Handler() PromptHandler
}

// PromptMessage is one message in a prompt's rendered conversation.
type PromptMessage struct {
	Role    string       `json:"role"`
	Content ContentBlock `json:"content"`
}

// Resource is a readable resource addressed by a single, fixed URI.
type Resource interface {
	Component
	URI() string
	MimeType() string
	Contents(ctx context.Context) (string, error)
}

// WatchableResource is implemented by resources that can push update events
// on their own, independent of the explicit Server.ResourceUpdated path.
type WatchableResource interface {
	Resource
	Watch(ctx context.Context) (<-chan ResourceUpdate, error)
}

// ErrResourceWatchUnsupported is returned when a resource does not support
// subscriptions.
var ErrResourceWatchUnsupported = errors.New("resource does not support watch")

// ResourceUpdateType identifies the kind of update a watchable resource emits.
type ResourceUpdateType string

const (
	ResourceUpdateTypeUpdated     ResourceUpdateType = "updated"
	ResourceUpdateTypeRemoved     ResourceUpdateType = "removed"
	ResourceUpdateTypeListChanged ResourceUpdateType = "list_changed"
)

// ResourceUpdate describes a change emitted by a watchable resource.
type ResourceUpdate struct {
	URI  string              `json:"uri,omitempty"`
	Type ResourceUpdateType  `json:"type,omitempty"`
	Data map[string]any      `json:"data,omitempty"`
}

// ResourceTemplate is a parameterized resource entry point: its contents are
// produced from the URI segments bound by matching a request URI against
// URITemplate() (see mcp.ParseURITemplate).
type ResourceTemplate interface {
	Component
	URITemplate() string
	MimeType() string
	Handler() ResourceTemplateHandler
}

// ResourceTemplateHandler produces resource contents from bound placeholder
// segments, keyed by placeholder name.
type ResourceTemplateHandler func(ctx context.Context, bindings map[string]string) (string, error)

// DefaultJSONSchemaURI is the canonical JSON Schema dialect reference applied
// by NormalizeSchema to tool input schemas that do not declare one.
const DefaultJSONSchemaURI = "https://json-schema.org/draft/2020-12/schema"

// NormalizeSchema clones the provided schema and injects required defaults.
func NormalizeSchema(schema map[string]any) map[string]any {
	cloned := cloneSchemaMap(schema)
	if cloned == nil {
		cloned = map[string]any{}
	}
	if _, ok := cloned["type"]; !ok {
		cloned["type"] = "object"
	}
	if _, ok := cloned["$schema"]; !ok {
		cloned["$schema"] = DefaultJSONSchemaURI
	}
	return cloned
}

func cloneSchemaMap(source map[string]any) map[string]any {
	if source == nil {
		return nil
	}
	result := make(map[string]any, len(source))
	for key, value := range source {
		result[key] = cloneSchemaValue(value)
	}
	return result
}

func cloneSchemaSlice(source []any) []any {
	if source == nil {
		return nil
	}
	result := make([]any, len(source))
	for i, value := range source {
		result[i] = cloneSchemaValue(value)
	}
	return result
}

func cloneSchemaValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return cloneSchemaMap(typed)
	case []any:
		return cloneSchemaSlice(typed)
	default:
		return typed
	}
}

// ToolDefinition mirrors the tool metadata exposed to clients via tools/list.
type ToolDefinition struct {
	Name         string         `json:"name"`
	Title        string         `json:"title,omitempty"`
	Description  string         `json:"description,omitempty"`
	InputSchema  map[string]any `json:"inputSchema,omitempty"`
	OutputSchema map[string]any `json:"outputSchema,omitempty"`
	Annotations  map[string]any `json:"annotations,omitempty"`
}

// PromptDefinition describes a prompt for the MCP client.
type PromptDefinition struct {
	Name        string           `json:"name"`
	Title       string           `json:"title,omitempty"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

// ResourceDefinition describes a fixed-URI resource for the MCP client.
type ResourceDefinition struct {
	URI         string         `json:"uri"`
	Name        string         `json:"name"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	MimeType    string         `json:"mimeType,omitempty"`
	Annotations map[string]any `json:"annotations,omitempty"`
	Size        *int64         `json:"size,omitempty"`
}

// ResourceTemplateDefinition describes a templated resource entry point.
type ResourceTemplateDefinition struct {
	Name        string         `json:"name"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	URITemplate string         `json:"uriTemplate"`
	MimeType    string         `json:"mimeType,omitempty"`
	InputSchema map[string]any `json:"inputSchema,omitempty"`
	Annotations map[string]any `json:"annotations,omitempty"`
}

// SamplingRecord captures a server-initiated sampling exchange with the client.
type SamplingRecord struct {
	Timestamp time.Time      `json:"timestamp"`
	Params    map[string]any `json:"params"`
	Result    map[string]any `json:"result,omitempty"`
}

// ElicitationRecord captures an elicitation interaction with the client.
type ElicitationRecord struct {
	Timestamp time.Time      `json:"timestamp"`
	Params    map[string]any `json:"params"`
	Result    map[string]any `json:"result,omitempty"`
}

// ContentBlock is a unit of content returned by tools or prompts.
type ContentBlock struct {
	Type        string         `json:"type"`
	Text        string         `json:"text,omitempty"`
	URI         string         `json:"uri,omitempty"`
	MimeType    string         `json:"mimeType,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	Annotations map[string]any `json:"annotations,omitempty"`
}

// CallToolResult is the standard MCP response payload for tool invocations.
type CallToolResult struct {
	Content           []ContentBlock `json:"content"`
	StructuredContent any            `json:"structuredContent,omitempty"`
	IsError           bool           `json:"isError,omitempty"`
}
