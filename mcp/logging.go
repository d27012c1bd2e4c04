package mcp

import (
	"context"
	"encoding/json"
	"time"
)

// LogLevel is one of the eight RFC 5424 severities the MCP logging
// capability defines (SPEC_FULL supplement 2).
type LogLevel string

const (
	LogLevelDebug     LogLevel = "debug"
	LogLevelInfo      LogLevel = "info"
	LogLevelNotice    LogLevel = "notice"
	LogLevelWarning   LogLevel = "warning"
	LogLevelError     LogLevel = "error"
	LogLevelCritical  LogLevel = "critical"
	LogLevelAlert     LogLevel = "alert"
	LogLevelEmergency LogLevel = "emergency"
)

var logLevelRank = map[LogLevel]int{
	LogLevelDebug:     0,
	LogLevelInfo:      1,
	LogLevelNotice:    2,
	LogLevelWarning:   3,
	LogLevelError:     4,
	LogLevelCritical:  5,
	LogLevelAlert:     6,
	LogLevelEmergency: 7,
}

func shouldEmitLog(min, level LogLevel) bool {
	minRank, ok := logLevelRank[min]
	if !ok {
		minRank = logLevelRank[LogLevelInfo]
	}
	levelRank, ok := logLevelRank[level]
	if !ok {
		levelRank = logLevelRank[LogLevelInfo]
	}
	return levelRank >= minRank
}

// LogData is structured data attached to a log notification.
type LogData map[string]any

// handleSetLoggingLevel implements `logging/setLevel`.
func (sess *Session) handleSetLoggingLevel(ctx context.Context, req RequestMessage) ResponseMessage {
	var params struct {
		Level LogLevel `json:"level"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return ErrorResponse(req.ID, InvalidParams, "invalid logging level parameters")
	}
	sess.state.SetLoggingLevel(params.Level)
	sess.server.debugLog("logging level set to %s", params.Level)
	return SuccessResponse(req.ID, map[string]any{})
}

// LogInfo sends an info-level notifications/message, if the session's
// configured minimum level permits it.
func (sess *Session) LogInfo(message string, data ...LogData) {
	sess.sendLogNotification(LogLevelInfo, message, firstOrNil(data))
}

// LogWarning sends a warning-level notifications/message.
func (sess *Session) LogWarning(message string, data ...LogData) {
	sess.sendLogNotification(LogLevelWarning, message, firstOrNil(data))
}

// LogError sends an error-level notifications/message.
func (sess *Session) LogError(message string, data ...LogData) {
	sess.sendLogNotification(LogLevelError, message, firstOrNil(data))
}

// LogDebug sends a debug-level notifications/message.
func (sess *Session) LogDebug(message string, data ...LogData) {
	sess.sendLogNotification(LogLevelDebug, message, firstOrNil(data))
}

func firstOrNil(data []LogData) LogData {
	if len(data) > 0 {
		return data[0]
	}
	return nil
}

func (sess *Session) sendLogNotification(level LogLevel, message string, data LogData) {
	if !shouldEmitLog(sess.state.LoggingLevel(), level) {
		return
	}
	if data == nil {
		data = make(LogData)
	}
	data["message"] = message
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)

	sess.emitNotification("notifications/message", map[string]any{
		"level":  level,
		"data":   data,
		"logger": sess.server.config.ServerName,
	})
}

func (sess *Session) sendResourceUpdatedNotification(uri string) {
	sess.emitNotification("notifications/resources/updated", map[string]any{"uri": uri})
}

func (sess *Session) sendResourceListChangedNotification() {
	sess.emitNotification("notifications/resources/list_changed", map[string]any{})
}

func (sess *Session) sendToolListChangedNotification() {
	sess.emitNotification("notifications/tools/list_changed", map[string]any{})
}

func (sess *Session) sendPromptListChangedNotification() {
	sess.emitNotification("notifications/prompts/list_changed", map[string]any{})
}

func (sess *Session) sendCancelledNotification(requestID, progressToken string) {
	params := map[string]any{}
	if requestID != "" {
		params["requestId"] = requestID
	}
	if progressToken != "" {
		params["progressToken"] = progressToken
	}
	sess.emitNotification("notifications/cancelled", params)
}

// ReportProgress sends a notifications/progress frame tied to token,
// implementing the progress half of C10.
func (sess *Session) ReportProgress(token string, progress, total float64, message string) {
	if token == "" {
		return
	}
	params := map[string]any{
		"progressToken": token,
		"progress":      progress,
		"total":         total,
	}
	if message != "" {
		params["message"] = message
	}
	sess.emitNotification("notifications/progress", params)
}
