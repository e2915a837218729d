// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
	"os"
	"sort"

	"github.com/google/uuid"
)

// Logger is the slog.Logger observability helpers write through.
type Logger struct {
	*slog.Logger
}

// GlobalLogger starts as a plain JSON logger. middleware swaps in the
// request-aware logger at init through SetLogger.
var GlobalLogger = &Logger{Logger: slog.New(slog.NewJSONHandler(os.Stdout, nil))}

// SetLogger routes observability output through l.
func SetLogger(l *slog.Logger) {
	if l != nil {
		GlobalLogger = &Logger{Logger: l}
	}
}

// Fields are extra key/value pairs attached to a log record.
type Fields map[string]any

// attrs renders f in key order so records are stable across runs.
func (f Fields) attrs() []slog.Attr {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		out = append(out, slog.Any(k, f[k]))
	}
	return out
}

type correlationKey struct{}

// WithCorrelationID returns a child context carrying id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// EnsureCorrelationID returns ctx unchanged if it already carries a
// correlation id, otherwise a child context with a fresh UUID.
func EnsureCorrelationID(ctx context.Context) context.Context {
	if ExtractCorrelationID(ctx) != "" {
		return ctx
	}
	return WithCorrelationID(ctx, uuid.NewString())
}

// ExtractCorrelationID returns the correlation id in ctx, or "".
func ExtractCorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// emit writes one record tagged with its kind and correlation id.
func emit(ctx context.Context, level slog.Level, msg, kind string, err error, fields Fields, base ...slog.Attr) {
	attrs := append(base, slog.String("kind", kind))
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	if id := ExtractCorrelationID(ctx); id != "" {
		attrs = append(attrs, slog.String("correlation_id", id))
	}
	attrs = append(attrs, fields.attrs()...)
	GlobalLogger.LogAttrs(ctx, level, msg, attrs...)
}

// RepoLogger logs row-level writes for one table at debug level. Failures
// log at error level.
type RepoLogger struct {
	table string
}

// NewRepoLogger returns a RepoLogger for table.
func NewRepoLogger(table string) *RepoLogger {
	return &RepoLogger{table: table}
}

func (l *RepoLogger) write(ctx context.Context, op string, fields Fields) {
	emit(ctx, slog.LevelDebug, l.table+" "+op, "repository", nil, fields,
		slog.String("table", l.table), slog.String("op", op))
}

// LogCreate records an insert.
func (l *RepoLogger) LogCreate(ctx context.Context, fields Fields) { l.write(ctx, "create", fields) }

// LogUpdate records an update.
func (l *RepoLogger) LogUpdate(ctx context.Context, fields Fields) { l.write(ctx, "update", fields) }

// LogDelete records a delete.
func (l *RepoLogger) LogDelete(ctx context.Context, fields Fields) { l.write(ctx, "delete", fields) }

// LogError records a failed statement.
func (l *RepoLogger) LogError(ctx context.Context, err error, op string) {
	emit(ctx, slog.LevelError, l.table+" "+op+" failed", "repository", err, nil,
		slog.String("table", l.table), slog.String("op", op))
}

// StructuredLogger logs service-level failures.
type StructuredLogger struct{}

// NewStructuredLogger returns a StructuredLogger.
func NewStructuredLogger() *StructuredLogger {
	return &StructuredLogger{}
}

// LogServiceError logs a failure that is about to reach the caller as a
// generic internal error. The detail only exists here.
func (l *StructuredLogger) LogServiceError(ctx context.Context, service, method string, err error, fields Fields) {
	emit(ctx, slog.LevelError, service+"."+method+" failed", "service", err, fields,
		slog.String("service", service), slog.String("method", method))
}

// LogAsyncOperationStart logs the start of a background job run.
func LogAsyncOperationStart(ctx context.Context, operation string, fields Fields) {
	emit(ctx, slog.LevelInfo, operation+" started", "background", nil, fields,
		slog.String("operation", operation))
}

// LogAsyncOperationEnd logs a completed background job run.
func LogAsyncOperationEnd(ctx context.Context, operation string, fields Fields) {
	emit(ctx, slog.LevelInfo, operation+" finished", "background", nil, fields,
		slog.String("operation", operation))
}

// LogAsyncOperationError logs a failed background job run.
func LogAsyncOperationError(ctx context.Context, operation string, err error, fields Fields) {
	emit(ctx, slog.LevelError, operation+" failed", "background", err, fields,
		slog.String("operation", operation))
}
