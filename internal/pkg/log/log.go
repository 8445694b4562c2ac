// Package log is the console logger for the listing service. Levels
// are color coded; the context variants carry the request id issued by
// the request id middleware so a listing's session reads and database
// statements can be correlated.
package log

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/fatih/color"
)

const contextKeyRequestID = "request_id"

// out receives all log output. Tests swap it to capture lines.
var out io.Writer = os.Stdout

// WithRequestID adds request ID to context for logging
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, requestID)
}

// getRequestID retrieves request ID from context
func getRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(contextKeyRequestID).(string); ok {
		return id
	}
	return ""
}

// formatLog formats log message with optional request ID
func formatLog(level string, requestID string, format string, a ...interface{}) string {
	msg := fmt.Sprintf(format, a...)
	if requestID != "" {
		return fmt.Sprintf("[%s] [req_id=%s] %s", level, requestID, msg)
	}
	return fmt.Sprintf("[%s] %s", level, msg)
}

// Info log information
func Info(format string, a ...interface{}) {
	tag := color.New(color.FgWhite, color.BgGreen).SprintFunc()
	fmt.Fprintf(out, "%s %s\n", tag("[INFO] "), fmt.Sprintf(format, a...))
}

// InfoWithContext logs information with context (includes request ID if available)
func InfoWithContext(ctx context.Context, format string, a ...interface{}) {
	tag := color.New(color.FgWhite, color.BgGreen).SprintFunc()
	fmt.Fprintf(out, "%s %s\n", tag("[INFO] "), formatLog("INFO", getRequestID(ctx), format, a...))
}

// Warn log warning
func Warn(format string, a ...interface{}) {
	tag := color.New(color.FgWhite, color.BgYellow).SprintFunc()
	fmt.Fprintf(out, "%s %s\n", tag("[WARN] "), fmt.Sprintf(format, a...))
}

// WarnWithContext logs warning with context (includes request ID if available)
func WarnWithContext(ctx context.Context, format string, a ...interface{}) {
	tag := color.New(color.FgWhite, color.BgYellow).SprintFunc()
	fmt.Fprintf(out, "%s %s\n", tag("[WARN] "), formatLog("WARN", getRequestID(ctx), format, a...))
}

// Error log error
func Error(format string, a ...interface{}) {
	tag := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(out, "%s %s\n", tag("[Error]"), fmt.Sprintf(format, a...))
}

// ErrorWithContext logs error with context (includes request ID if available)
func ErrorWithContext(ctx context.Context, format string, a ...interface{}) {
	tag := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(out, "%s %s\n", tag("[Error]"), formatLog("ERROR", getRequestID(ctx), format, a...))
}

// InfoStruct dumps a labeled value with field names and types. Startup
// uses it to show the effective plugin settings in debug mode.
func InfoStruct(label string, a ...interface{}) {
	tag := color.New(color.FgWhite, color.BgBlue).SprintFunc()
	fmt.Fprintf(out, "%s %s\n%s", tag("[DUMP] "), label, spew.Sdump(a...))
}
