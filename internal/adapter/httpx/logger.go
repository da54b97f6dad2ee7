package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"
)

// Logger provides structured logging for external API calls.
type Logger interface {
	// LogRequest logs an outgoing API request (credentials redacted)
	LogRequest(ctx context.Context, req RequestLog)

	// LogResponse logs an API response with timing info
	LogResponse(ctx context.Context, resp ResponseLog)

	// LogError logs an API error
	LogError(ctx context.Context, err ErrorLog)

	// LogInfo logs an informational message with structured fields
	LogInfo(ctx context.Context, message string, fields map[string]interface{})
}

// RequestLog contains request information for logging.
type RequestLog struct {
	Service   string
	Method    string
	URL       string
	Timestamp time.Time
	Token     string // Will be redacted to last 4 chars
}

// ResponseLog contains response information for logging.
type ResponseLog struct {
	Service    string
	URL        string
	Timestamp  time.Time
	Duration   time.Duration
	StatusCode int
}

// ErrorLog contains error information for logging.
type ErrorLog struct {
	Service    string
	URL        string
	Timestamp  time.Time
	Duration   time.Duration
	Error      error
	StatusCode int
	Retryable  bool
}

// LogLevel defines the logging verbosity level.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelError
)

// ParseLogLevel maps a config string to a level, defaulting to info.
func ParseLogLevel(s string) LogLevel {
	switch s {
	case "debug":
		return LogLevelDebug
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// LogFormat defines the output format for logs.
type LogFormat int

const (
	LogFormatHuman LogFormat = iota
	LogFormatJSON
)

// ParseLogFormat maps a config string to a format, defaulting to human.
func ParseLogFormat(s string) LogFormat {
	if s == "json" {
		return LogFormatJSON
	}
	return LogFormatHuman
}

// DefaultLogger writes logs in structured format via the standard logger.
type DefaultLogger struct {
	level        LogLevel
	redactTokens bool
	format       LogFormat
}

// NewDefaultLogger creates a logger with the specified config.
func NewDefaultLogger(level LogLevel, format LogFormat, redactTokens bool) *DefaultLogger {
	return &DefaultLogger{
		level:        level,
		redactTokens: redactTokens,
		format:       format,
	}
}

// SetRedaction enables or disables token redaction.
func (l *DefaultLogger) SetRedaction(enabled bool) {
	l.redactTokens = enabled
}

// LogRequest logs an API request.
func (l *DefaultLogger) LogRequest(ctx context.Context, req RequestLog) {
	if l.level > LogLevelDebug {
		return
	}
	l.emit("request", map[string]interface{}{
		"service": req.Service,
		"method":  req.Method,
		"url":     req.URL,
		"token":   l.RedactToken(req.Token),
	})
}

// LogResponse logs an API response.
func (l *DefaultLogger) LogResponse(ctx context.Context, resp ResponseLog) {
	if l.level > LogLevelInfo {
		return
	}
	l.emit("response", map[string]interface{}{
		"service":    resp.Service,
		"url":        resp.URL,
		"status":     resp.StatusCode,
		"durationMs": resp.Duration.Milliseconds(),
	})
}

// LogError logs an API error.
func (l *DefaultLogger) LogError(ctx context.Context, errLog ErrorLog) {
	l.emit("error", map[string]interface{}{
		"service":   errLog.Service,
		"url":       errLog.URL,
		"status":    errLog.StatusCode,
		"retryable": errLog.Retryable,
		"error":     fmt.Sprint(errLog.Error),
	})
}

// LogInfo logs an informational message with structured fields.
func (l *DefaultLogger) LogInfo(ctx context.Context, message string, fields map[string]interface{}) {
	if l.level > LogLevelInfo {
		return
	}
	payload := map[string]interface{}{"message": message}
	for k, v := range fields {
		payload[k] = v
	}
	l.emit("info", payload)
}

func (l *DefaultLogger) emit(event string, fields map[string]interface{}) {
	if l.format == LogFormatJSON {
		fields["event"] = event
		if data, err := json.Marshal(fields); err == nil {
			log.Println(string(data))
			return
		}
	}
	log.Printf("[%s] %v", event, fields)
}

// RedactToken reduces a credential to its last 4 characters.
func (l *DefaultLogger) RedactToken(token string) string {
	if !l.redactTokens {
		return token
	}
	if token == "" {
		return ""
	}
	if len(token) <= 4 {
		return "****"
	}
	return "****" + token[len(token)-4:]
}
