package mcp

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/oxhq/mcpcore/mcp/types"
)

type listToolsResult struct {
	Tools      []types.ToolDefinition `json:"tools"`
	NextCursor *string                `json:"nextCursor,omitempty"`
}

type listPromptsResult struct {
	Prompts    []types.PromptDefinition `json:"prompts"`
	NextCursor *string                  `json:"nextCursor,omitempty"`
}

type listResourcesResult struct {
	Resources  []types.ResourceDefinition `json:"resources"`
	NextCursor *string                    `json:"nextCursor,omitempty"`
}

type listResourceTemplatesResult struct {
	ResourceTemplates []types.ResourceTemplateDefinition `json:"resourceTemplates"`
	NextCursor        *string                            `json:"nextCursor,omitempty"`
}

type readResourceResult struct {
	Contents []resourceContent `json:"contents"`
}

type resourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text"`
}

type getPromptResult struct {
	Description string               `json:"description,omitempty"`
	Messages    []types.PromptMessage `json:"messages"`
}

// registerBuiltinHandlers wires the built-in method table of spec.md §4.7
// into this session's router. Middleware installed on the Server wraps
// every entry.
func (sess *Session) registerBuiltinHandlers() {
	reg := func(method string, fn func(context.Context, RequestMessage) ResponseMessage) {
		sess.router.RegisterRequest(method, sess.wrapRequestHandler(fn))
	}

	reg("initialize", sess.handleInitialize)
	reg("ping", sess.handlePing)
	reg("tools/list", sess.handleListTools)
	reg("tools/call", sess.handleCallTool)
	reg("prompts/list", sess.handleListPrompts)
	reg("prompts/get", sess.handleGetPrompt)
	reg("resources/list", sess.handleListResources)
	reg("resources/read", sess.handleReadResource)
	reg("resources/templates/list", sess.handleListResourceTemplates)
	reg("resources/subscribe", sess.handleSubscribeResource)
	reg("resources/unsubscribe", sess.handleUnsubscribeResource)
	reg("logging/setLevel", sess.handleSetLoggingLevel)
	reg("completion/complete", sess.handleCompletion)

	sess.router.RegisterNotification("notifications/initialized", sess.wrapNotificationHandler(sess.handleInitializedNotification))
	sess.router.RegisterNotification("notifications/cancelled", sess.handleCancelledNotification)
}

// wrapRequestHandler installs per-request cancellation plumbing: it derives
// a cancellable context keyed by the request id (and progress token, if
// any), runs the Server's middleware chain around fn, and clears the
// cancellation entry once the handler returns.
func (sess *Session) wrapRequestHandler(fn func(context.Context, RequestMessage) ResponseMessage) RequestHandler {
	handler := Chain(fn, sess.server.middlewares...)

	return func(ctx context.Context, msg RequestMessage) ResponseMessage {
		reqID := stringifyID(msg.ID)
		progressToken, _ := msg.Meta.ProgressToken()

		reqCtx, cancel := context.WithCancel(ctx)
		reqCtx = withSession(reqCtx, sess)
		if progressToken != "" {
			reqCtx = withProgressToken(reqCtx, progressToken)
		}
		if len(msg.Meta) > 0 {
			reqCtx = withMeta(reqCtx, msg.Meta)
		}

		keys := []string{reqID}
		if progressToken != "" {
			keys = append(keys, progressToken)
		}
		sess.registerCancellation(cancel, keys...)
		defer func() {
			sess.clearCancellation(keys...)
			cancel()
		}()

		return handler(reqCtx, msg)
	}
}

func (sess *Session) wrapNotificationHandler(fn func(context.Context, RequestMessage) ResponseMessage) NotificationHandler {
	return func(ctx context.Context, msg NotificationMessage) error {
		req := RequestMessage{JSONRPC: msg.JSONRPC, Meta: msg.Meta, Method: msg.Method, Params: msg.Params}
		fn(withSession(ctx, sess), req)
		return nil
	}
}

// handleInitialize performs protocol version negotiation (spec.md §4.8,
// §8 scenario 6): pick the highest mutually supported version from the
// server's ordered preference list; if none match, the handshake fails.
func (sess *Session) handleInitialize(ctx context.Context, req RequestMessage) ResponseMessage {
	var params struct {
		ProtocolVersion string         `json:"protocolVersion"`
		Capabilities    map[string]any `json:"capabilities"`
		ClientInfo      map[string]any `json:"clientInfo"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		_ = sess.lifecycle.transition(StateClosed)
		return ErrorResponse(req.ID, InvalidParams, "invalid initialize parameters")
	}

	negotiated := ""
	for _, supported := range sess.server.config.protocolVersions() {
		if supported == params.ProtocolVersion {
			negotiated = supported
			break
		}
	}
	if negotiated == "" {
		_ = sess.lifecycle.transition(StateClosed)
		return ErrorResponse(req.ID, InvalidRequest, "no mutually supported protocol version")
	}

	sess.state.MarkNegotiated(negotiated, params.Capabilities)

	result := map[string]any{
		"protocolVersion": negotiated,
		"capabilities":    sess.server.capabilities(),
		"serverInfo": map[string]any{
			"name":    sess.server.config.ServerName,
			"version": sess.server.config.ServerVersion,
		},
	}
	if sess.server.config.Instructions != "" {
		result["instructions"] = sess.server.config.Instructions
	}

	return SuccessResponse(req.ID, result)
}

// handleInitializedNotification completes the handshake (Handshaking ->
// Running) once the peer confirms notifications/initialized.
func (sess *Session) handleInitializedNotification(ctx context.Context, req RequestMessage) ResponseMessage {
	if err := sess.lifecycle.transition(StateRunning); err != nil {
		sess.server.debugLog("initialized notification in unexpected state: %v", err)
		return ResponseMessage{}
	}
	if sess.OnInitialized != nil {
		sess.OnInitialized(sess)
	}
	return ResponseMessage{}
}

func (sess *Session) handlePing(ctx context.Context, req RequestMessage) ResponseMessage {
	return SuccessResponse(req.ID, map[string]any{})
}

func (sess *Session) handleListTools(ctx context.Context, req RequestMessage) ResponseMessage {
	params, err := decodePaginationParams(req.Params)
	if err != nil {
		return ErrorResponse(req.ID, InvalidParams, "invalid pagination parameters")
	}
	definitions := sess.server.Tools.Definitions()
	page, next, err := applyPagination(definitions, params.Cursor, params.Limit)
	if err != nil {
		return ErrorResponse(req.ID, InvalidParams, err.Error())
	}
	return SuccessResponse(req.ID, listToolsResult{Tools: page, NextCursor: next})
}

func (sess *Session) handleCallTool(ctx context.Context, req RequestMessage) ResponseMessage {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return ErrorResponse(req.ID, InvalidParams, "invalid params structure")
	}

	progressToken, hasProgress := req.Meta.ProgressToken()
	status := "completed"
	if hasProgress {
		sess.ReportProgress(progressToken, 0, 100, "queued")
		defer func() { sess.ReportProgress(progressToken, 100, 100, status) }()
	}

	result, err := sess.server.Tools.Execute(ctx, params.Name, params.Arguments)
	if err != nil {
		status = "failed"
		switch {
		case errors.Is(err, ErrToolNotFound):
			return ErrorResponse(req.ID, MethodNotFound, "tool not found: "+params.Name)
		case isCancellation(err):
			status = "cancelled"
			return SuccessResponse(req.ID, errorToolResult(CancelledError, "request cancelled", map[string]any{"detail": err.Error()}))
		}
		if mcpErr, ok := AsError(err); ok {
			return SuccessResponse(req.ID, errorToolResult(mcpErr.Code, mcpErr.Message, mcpErr.Data))
		}
		return ErrorResponse(req.ID, InternalError, err.Error())
	}

	return SuccessResponse(req.ID, normalizeToolResult(result))
}

func (sess *Session) handleListPrompts(ctx context.Context, req RequestMessage) ResponseMessage {
	params, err := decodePaginationParams(req.Params)
	if err != nil {
		return ErrorResponse(req.ID, InvalidParams, "invalid pagination parameters")
	}
	definitions := sess.server.Prompts.Definitions()
	page, next, err := applyPagination(definitions, params.Cursor, params.Limit)
	if err != nil {
		return ErrorResponse(req.ID, InvalidParams, err.Error())
	}
	return SuccessResponse(req.ID, listPromptsResult{Prompts: page, NextCursor: next})
}

func (sess *Session) handleGetPrompt(ctx context.Context, req RequestMessage) ResponseMessage {
	var params struct {
		Name      string            `json:"name"`
		Arguments map[string]string `json:"arguments,omitempty"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return ErrorResponse(req.ID, InvalidParams, "invalid prompt parameters")
	}

	prompt, ok := sess.server.Prompts.Get(params.Name)
	if !ok {
		return ErrorResponse(req.ID, InvalidParams, "prompt not found: "+params.Name)
	}

	description, messages, err := prompt.Handler()(ctx, params.Arguments)
	if err != nil {
		if mcpErr, ok := AsError(err); ok {
			return ErrorResponseFrom(req.ID, mcpErr)
		}
		return ErrorResponse(req.ID, InternalError, err.Error())
	}

	return SuccessResponse(req.ID, getPromptResult{Description: description, Messages: messages})
}

func (sess *Session) handleListResources(ctx context.Context, req RequestMessage) ResponseMessage {
	params, err := decodePaginationParams(req.Params)
	if err != nil {
		return ErrorResponse(req.ID, InvalidParams, "invalid pagination parameters")
	}
	definitions := sess.server.Resources.Definitions()
	page, next, err := applyPagination(definitions, params.Cursor, params.Limit)
	if err != nil {
		return ErrorResponse(req.ID, InvalidParams, err.Error())
	}
	return SuccessResponse(req.ID, listResourcesResult{Resources: page, NextCursor: next})
}

func (sess *Session) handleListResourceTemplates(ctx context.Context, req RequestMessage) ResponseMessage {
	params, err := decodePaginationParams(req.Params)
	if err != nil {
		return ErrorResponse(req.ID, InvalidParams, "invalid pagination parameters")
	}
	definitions := sess.server.ResourceTemplates.Definitions()
	page, next, err := applyPagination(definitions, params.Cursor, params.Limit)
	if err != nil {
		return ErrorResponse(req.ID, InvalidParams, err.Error())
	}
	return SuccessResponse(req.ID, listResourceTemplatesResult{ResourceTemplates: page, NextCursor: next})
}

// handleReadResource performs the two-stage lookup of spec.md §4.4: exact
// URI match against the resource registry, then a linear scan of resource
// templates for the first whose scheme and segment shape agree.
func (sess *Session) handleReadResource(ctx context.Context, req RequestMessage) ResponseMessage {
	var params struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return ErrorResponse(req.ID, InvalidParams, "invalid resource read parameters")
	}

	if resource, ok := sess.server.Resources.Get(params.URI); ok {
		text, err := resource.Contents(ctx)
		if err != nil {
			return ErrorResponse(req.ID, InternalError, err.Error())
		}
		return SuccessResponse(req.ID, readResourceResult{Contents: []resourceContent{{
			URI: params.URI, MimeType: resource.MimeType(), Text: text,
		}}})
	}

	template, bindings, ok := sess.server.ResourceTemplates.Match(params.URI)
	if !ok {
		return ErrorResponse(req.ID, ResourceNotFound, "resource not found: "+params.URI)
	}
	text, err := template.Handler()(ctx, bindings)
	if err != nil {
		return ErrorResponse(req.ID, InternalError, err.Error())
	}
	return SuccessResponse(req.ID, readResourceResult{Contents: []resourceContent{{
		URI: params.URI, MimeType: template.MimeType(), Text: text,
	}}})
}

func (sess *Session) handleSubscribeResource(ctx context.Context, req RequestMessage) ResponseMessage {
	var params struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return ErrorResponse(req.ID, InvalidParams, "invalid subscribe parameters")
	}
	if params.URI == "" {
		return ErrorResponse(req.ID, InvalidParams, "resource uri is required")
	}

	sess.server.subscriptions.subscribe(params.URI, sess)
	sess.resourceSubsMu.Lock()
	sess.resourceSubs[params.URI] = struct{}{}
	sess.resourceSubsMu.Unlock()

	if resource, ok := sess.server.Resources.Get(params.URI); ok {
		if watchable, ok := resource.(types.WatchableResource); ok {
			sess.forwardWatchableUpdates(params.URI, watchable)
		}
	}

	return SuccessResponse(req.ID, map[string]any{})
}

func (sess *Session) handleUnsubscribeResource(ctx context.Context, req RequestMessage) ResponseMessage {
	var params struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return ErrorResponse(req.ID, InvalidParams, "invalid unsubscribe parameters")
	}
	sess.server.subscriptions.unsubscribe(params.URI, sess)
	sess.resourceSubsMu.Lock()
	delete(sess.resourceSubs, params.URI)
	sess.resourceSubsMu.Unlock()
	return SuccessResponse(req.ID, map[string]any{})
}

// forwardWatchableUpdates bridges a WatchableResource's push channel into
// the session's explicit notification path, for resources that can detect
// their own changes instead of relying solely on a handler calling
// Server.ResourceUpdated.
func (sess *Session) forwardWatchableUpdates(uri string, watchable types.WatchableResource) {
	ctx, cancel := context.WithCancel(context.Background())
	updates, err := watchable.Watch(ctx)
	if err != nil || updates == nil {
		cancel()
		return
	}
	sess.registerCancellation(cancel, "watch:"+uri)
	go func() {
		defer cancel()
		for update := range updates {
			target := update.URI
			if target == "" {
				target = uri
			}
			switch update.Type {
			case types.ResourceUpdateTypeListChanged:
				sess.sendResourceListChangedNotification()
			case types.ResourceUpdateTypeRemoved:
				sess.sendResourceUpdatedNotification(target)
				sess.sendResourceListChangedNotification()
			default:
				sess.sendResourceUpdatedNotification(target)
			}
		}
	}()
}

// handleCompletion backs `completion/complete` (SPEC_FULL supplement 3).
func (sess *Session) handleCompletion(ctx context.Context, req RequestMessage) ResponseMessage {
	var params struct {
		Ref      map[string]any `json:"ref"`
		Argument struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"argument"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return ErrorResponse(req.ID, InvalidParams, "invalid completion parameters")
	}

	values := []string{}
	if sess.server.completionHandler != nil {
		refKind, _ := params.Ref["type"].(string)
		refName, _ := params.Ref["name"].(string)
		if refName == "" {
			refName, _ = params.Ref["uri"].(string)
		}
		values = sess.server.completionHandler(ctx, refKind, refName, params.Argument.Name, params.Argument.Value)
	}

	return SuccessResponse(req.ID, map[string]any{
		"completion": map[string]any{
			"values":  values,
			"total":   len(values),
			"hasMore": false,
		},
	})
}

func (sess *Session) handleCancelledNotification(ctx context.Context, msg NotificationMessage) error {
	var params struct {
		RequestID     any    `json:"requestId,omitempty"`
		ProgressToken string `json:"progressToken,omitempty"`
	}
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			sess.server.debugLog("invalid cancellation payload: %v", err)
			return nil
		}
	}

	requestID := stringifyID(params.RequestID)
	handled := sess.cancelByKey(params.ProgressToken) || sess.cancelByKey(requestID)
	if !handled {
		sess.server.debugLog("cancellation for unknown key: token=%s id=%s", params.ProgressToken, requestID)
	}
	return nil
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func errorToolResult(code int, message string, data any) types.CallToolResult {
	structured := map[string]any{"code": code, "message": message}
	if data != nil {
		structured["data"] = data
	}
	return types.CallToolResult{
		Content:           []types.ContentBlock{{Type: "text", Text: message}},
		StructuredContent: structured,
		IsError:           true,
	}
}

func normalizeToolResult(result any) types.CallToolResult {
	if already, ok := result.(types.CallToolResult); ok {
		return already
	}
	if block, ok := result.(types.ContentBlock); ok {
		return types.CallToolResult{Content: []types.ContentBlock{block}}
	}
	if text, ok := result.(string); ok {
		return types.CallToolResult{Content: []types.ContentBlock{{Type: "text", Text: text}}}
	}
	return types.CallToolResult{
		Content:           []types.ContentBlock{{Type: "text", Text: "ok"}},
		StructuredContent: result,
	}
}
