package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/oxhq/mcpcore/mcp/types"
)

// ErrToolNotFound indicates that a requested tool is not registered.
var ErrToolNotFound = errors.New("tool not found")

// ErrPromptNotFound indicates that a requested prompt is not registered.
var ErrPromptNotFound = errors.New("prompt not found")

// ErrResourceNotFound indicates no resource or resource template matched a URI.
var ErrResourceNotFound = errors.New("resource not found")

// Registry is the generic shape shared by every MCP component registry.
type Registry[T any] interface {
	Register(name string, component T)
	Get(name string) (T, bool)
	List() []T
	Names() []string
}

// BaseRegistry is a thread-safe, insertion-order-preserving registry. Per the
// concurrency model, registration happens single-writer before a session
// starts serving; Get/List/Names may run concurrently with late (runtime)
// registrations without blocking readers indefinitely.
type BaseRegistry[T any] struct {
	mu         sync.RWMutex
	components map[string]T
	ordered    []string
}

// NewBaseRegistry creates an empty registry.
func NewBaseRegistry[T any]() *BaseRegistry[T] {
	return &BaseRegistry[T]{
		components: make(map[string]T),
		ordered:    make([]string, 0),
	}
}

// Register adds or replaces a component under name.
func (r *BaseRegistry[T]) Register(name string, component T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.components[name]; !exists {
		r.ordered = append(r.ordered, name)
	}
	r.components[name] = component
}

// Get retrieves a component by name.
func (r *BaseRegistry[T]) Get(name string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	component, exists := r.components[name]
	return component, exists
}

// List returns all components in registration order.
func (r *BaseRegistry[T]) List() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]T, 0, len(r.ordered))
	for _, name := range r.ordered {
		result = append(result, r.components[name])
	}
	return result
}

// Names returns all component names in registration order.
func (r *BaseRegistry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, len(r.ordered))
	copy(result, r.ordered)
	return result
}

// ToolRegistry manages tool registration and execution.
type ToolRegistry struct {
	*BaseRegistry[types.Tool]
}

// NewToolRegistry creates an empty tool registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{BaseRegistry: NewBaseRegistry[types.Tool]()}
}

// Execute runs a tool by name with the given raw JSON params.
func (tr *ToolRegistry) Execute(ctx context.Context, name string, params json.RawMessage) (any, error) {
	tool, exists := tr.Get(name)
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return tool.Handler()(ctx, params)
}

// Definitions returns tool definitions for tools/list.
func (tr *ToolRegistry) Definitions() []types.ToolDefinition {
	tools := tr.List()
	definitions := make([]types.ToolDefinition, 0, len(tools))
	for _, tool := range tools {
		definitions = append(definitions, types.ToolDefinition{
			Name:        tool.Name(),
			Description: tool.Description(),
			InputSchema: types.NormalizeSchema(tool.InputSchema()),
		})
	}
	return definitions
}

// PromptRegistry manages prompt registration.
type PromptRegistry struct {
	*BaseRegistry[types.Prompt]
}

// NewPromptRegistry creates an empty prompt registry.
func NewPromptRegistry() *PromptRegistry {
	return &PromptRegistry{BaseRegistry: NewBaseRegistry[types.Prompt]()}
}

// Definitions returns prompt definitions for prompts/list.
func (pr *PromptRegistry) Definitions() []types.PromptDefinition {
	prompts := pr.List()
	definitions := make([]types.PromptDefinition, 0, len(prompts))
	for _, prompt := range prompts {
		definitions = append(definitions, types.PromptDefinition{
			Name:        prompt.Name(),
			Description: prompt.Description(),
			Arguments:   prompt.Arguments(),
		})
	}
	return definitions
}

// ResourceRegistry manages fixed-URI resource registration.
type ResourceRegistry struct {
	*BaseRegistry[types.Resource]
}

// NewResourceRegistry creates an empty resource registry.
func NewResourceRegistry() *ResourceRegistry {
	return &ResourceRegistry{BaseRegistry: NewBaseRegistry[types.Resource]()}
}

// Definitions returns resource definitions for resources/list.
func (rr *ResourceRegistry) Definitions() []types.ResourceDefinition {
	resources := rr.List()
	definitions := make([]types.ResourceDefinition, 0, len(resources))
	for _, resource := range resources {
		definitions = append(definitions, types.ResourceDefinition{
			URI:         resource.URI(),
			Name:        resource.Name(),
			Description: resource.Description(),
			MimeType:    resource.MimeType(),
		})
	}
	return definitions
}

// ResourceTemplateRegistry manages resource template registration. Templates
// are held in an ordered slice (not a map) since matching is a linear scan
// over registration order per spec.md §4.4.
type ResourceTemplateRegistry struct {
	mu        sync.RWMutex
	templates []types.ResourceTemplate
	parsed    []parsedURITemplate
}

// NewResourceTemplateRegistry creates an empty resource template registry.
func NewResourceTemplateRegistry() *ResourceTemplateRegistry {
	return &ResourceTemplateRegistry{}
}

// Register appends a resource template to the scan order.
func (rt *ResourceTemplateRegistry) Register(template types.ResourceTemplate) error {
	parsed, err := ParseURITemplate(template.URITemplate())
	if err != nil {
		return fmt.Errorf("register resource template %s: %w", template.Name(), err)
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.templates = append(rt.templates, template)
	rt.parsed = append(rt.parsed, parsed)
	return nil
}

// List returns all registered templates in registration order.
func (rt *ResourceTemplateRegistry) List() []types.ResourceTemplate {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	result := make([]types.ResourceTemplate, len(rt.templates))
	copy(result, rt.templates)
	return result
}

// Definitions returns resource template definitions for resources/templates/list.
func (rt *ResourceTemplateRegistry) Definitions() []types.ResourceTemplateDefinition {
	templates := rt.List()
	definitions := make([]types.ResourceTemplateDefinition, 0, len(templates))
	for _, t := range templates {
		definitions = append(definitions, types.ResourceTemplateDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			URITemplate: t.URITemplate(),
			MimeType:    t.MimeType(),
		})
	}
	return definitions
}

// Match scans registered templates in order and returns the first whose
// scheme and segment shape agree with uri, along with the placeholder
// bindings extracted from it.
func (rt *ResourceTemplateRegistry) Match(uri string) (types.ResourceTemplate, map[string]string, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	candidate, err := ParseURI(uri)
	if err != nil {
		return nil, nil, false
	}
	for i, parsed := range rt.parsed {
		if bindings, ok := parsed.Match(candidate); ok {
			return rt.templates[i], bindings, true
		}
	}
	return nil, nil, false
}

// NotificationSubscriber is a handler registered against a notification
// method string (e.g. a host-side listener for notifications/progress).
type NotificationSubscriber func(ctx context.Context, params json.RawMessage) error

// NotificationRegistry manages notification subscriber registration. Unlike
// the router's single built-in dispatch table, a method may have any number
// of subscribers; all are invoked.
type NotificationRegistry struct {
	mu          sync.RWMutex
	subscribers map[string][]NotificationSubscriber
}

// NewNotificationRegistry creates an empty notification registry.
func NewNotificationRegistry() *NotificationRegistry {
	return &NotificationRegistry{subscribers: make(map[string][]NotificationSubscriber)}
}

// Subscribe registers fn to be invoked whenever method is received.
func (nr *NotificationRegistry) Subscribe(method string, fn NotificationSubscriber) {
	nr.mu.Lock()
	defer nr.mu.Unlock()
	nr.subscribers[method] = append(nr.subscribers[method], fn)
}

// Dispatch invokes every subscriber registered for method, collecting errors.
func (nr *NotificationRegistry) Dispatch(ctx context.Context, method string, params json.RawMessage) []error {
	nr.mu.RLock()
	subs := append([]NotificationSubscriber(nil), nr.subscribers[method]...)
	nr.mu.RUnlock()

	var errs []error
	for _, sub := range subs {
		if err := sub(ctx, params); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
