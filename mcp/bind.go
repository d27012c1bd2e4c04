package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
)

// Injector resolves a session-scoped value that binds without consuming a
// JSON slot: the request context, the negotiated `_meta`, the progress
// token, or a shared service resolved from the session. Per spec.md §4.5,
// a downstream resolution failure here is an InternalError, never
// InvalidParams.
type Injector func(ctx context.Context) (any, error)

// Binder holds the named injectors available to Bind's `inject:"..."` tag.
// NewServer installs the built-in set (see NewBinder below) as Server.Binder,
// and embedders may register additional ones before serving.
type Binder struct {
	injectors map[string]Injector
}

// NewBinder creates a Binder with the built-in session-scoped injectors:
// "context", "meta", "progressToken", "session".
func NewBinder() *Binder {
	b := &Binder{injectors: make(map[string]Injector)}
	b.Register("context", func(ctx context.Context) (any, error) {
		return ctx, nil
	})
	b.Register("progressToken", func(ctx context.Context) (any, error) {
		token, _ := progressTokenFromContext(ctx)
		return token, nil
	})
	b.Register("meta", func(ctx context.Context) (any, error) {
		meta, _ := metaFromContext(ctx)
		return meta, nil
	})
	b.Register("session", func(ctx context.Context) (any, error) {
		sess, _ := SessionFromContext(ctx)
		return sess, nil
	})
	return b
}

// Register installs or replaces an injector under name.
func (b *Binder) Register(name string, fn Injector) {
	b.injectors[name] = fn
}

// Bind populates dst (a pointer to a struct) from three sources, in order:
//  1. raw JSON object fields, via the struct's `json` tags (standard
//     encoding/json unmarshal into dst);
//  2. URI-template placeholder segments, via `uri:"name"` tags, bound
//     positionally by name into string fields;
//  3. session-scoped injectors, via `inject:"name"` tags.
//
// A field may carry only one of `uri` or `inject`; json-tagged fields are
// always populated first so the other two can overlay or supplement them.
// A JSON parse failure or a missing field tagged `required:"true"` surfaces
// as InvalidParams; an injector error surfaces as InternalError.
func (b *Binder) Bind(ctx context.Context, dst any, raw json.RawMessage, uriBindings map[string]string) error {
	val := reflect.ValueOf(dst)
	if val.Kind() != reflect.Ptr || val.Elem().Kind() != reflect.Struct {
		return NewError(InternalError, "bind target must be a pointer to struct")
	}
	elem := val.Elem()

	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, dst); err != nil {
			return NewError(InvalidParams, "invalid parameters", map[string]any{"error": err.Error()})
		}
	}

	typ := elem.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		fieldVal := elem.Field(i)
		if !fieldVal.CanSet() {
			continue
		}

		if uriName, ok := field.Tag.Lookup("uri"); ok {
			bound, present := uriBindings[uriName]
			if !present {
				if field.Tag.Get("required") == "true" {
					return NewError(InvalidParams, fmt.Sprintf("missing uri placeholder %q", uriName))
				}
				continue
			}
			if fieldVal.Kind() != reflect.String {
				return NewError(InternalError, fmt.Sprintf("uri-bound field %s must be string", field.Name))
			}
			fieldVal.SetString(bound)
			continue
		}

		if injectName, ok := field.Tag.Lookup("inject"); ok {
			fn, registered := b.injectors[injectName]
			if !registered {
				return NewError(InternalError, fmt.Sprintf("no injector registered for %q", injectName))
			}
			resolved, err := fn(ctx)
			if err != nil {
				return NewError(InternalError, fmt.Sprintf("resolve injected value %q", injectName), map[string]any{"error": err.Error()})
			}
			if resolved == nil {
				continue
			}
			rv := reflect.ValueOf(resolved)
			if !rv.Type().AssignableTo(fieldVal.Type()) {
				return NewError(InternalError, fmt.Sprintf("injected value %q not assignable to field %s", injectName, field.Name))
			}
			fieldVal.Set(rv)
			continue
		}

		if field.Tag.Get("required") == "true" && fieldVal.IsZero() {
			return NewError(InvalidParams, fmt.Sprintf("missing required parameter %q", field.Name))
		}
	}

	return nil
}
