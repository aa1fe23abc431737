package ygggo_mysqlpool

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"
)

var (
	defaultLogger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
)

// EnableLogging enables or disables structured logging for this manager.
// Configure logging before issuing queries.
func (m *Manager) EnableLogging(enabled bool) {
	if m == nil { return }
	m.loggingEnabled = enabled
	if enabled && m.logger == nil {
		m.logger = defaultLogger
	}
}

// SetLogger sets a custom logger for this manager.
func (m *Manager) SetLogger(logger *slog.Logger) {
	if m == nil { return }
	m.logger = logger
}

// SetSlowQueryThreshold overrides Config.SlowQueryThreshold; 0 disables.
func (m *Manager) SetSlowQueryThreshold(d time.Duration) {
	if m == nil { return }
	m.slowQueryThreshold = d
}

func (m *Manager) logEnabled() bool { return m != nil && m.loggingEnabled && m.logger != nil }

// errorAttrs describes err; parameter values are never logged.
func errorAttrs(err error) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("status", "error"),
		slog.String("error", err.Error()),
	}
	var typed *Error
	if errors.As(err, &typed) {
		attrs = append(attrs, slog.String("error_kind", typed.Kind.String()))
		if typed.Code != 0 {
			attrs = append(attrs, slog.Int("error_code", int(typed.Code)))
		}
	}
	return attrs
}

// logQuery logs query execution with structured fields
func (m *Manager) logQuery(ctx context.Context, id, operation, query string, args []any, duration time.Duration, err error) {
	if !m.logEnabled() { return }

	attrs := []slog.Attr{
		slog.String("operation", operation),
		slog.String("query_id", id),
		slog.String("query", query),
		slog.Float64("duration_ms", float64(duration.Nanoseconds())/1e6),
	}
	if len(args) > 0 {
		attrs = append(attrs, slog.Int("arg_count", len(args)))
	}

	if err != nil {
		attrs = append(attrs, errorAttrs(err)...)
		m.logger.LogAttrs(ctx, slog.LevelError, "database query failed", attrs...)
		return
	}
	attrs = append(attrs, slog.String("status", "success"))

	if m.slowQueryThreshold > 0 && duration > m.slowQueryThreshold {
		m.logger.LogAttrs(ctx, slog.LevelWarn, "slow query detected", attrs...)
		return
	}
	m.logger.LogAttrs(ctx, slog.LevelDebug, "database query executed", attrs...)
}

// logConnection logs pool and connection lifecycle events
func (m *Manager) logConnection(ctx context.Context, event string, duration time.Duration, err error) {
	if !m.logEnabled() { return }

	attrs := []slog.Attr{
		slog.String("event", event),
		slog.Float64("duration_ms", float64(duration.Nanoseconds())/1e6),
	}
	if event == "pool_open" {
		attrs = append(attrs,
			slog.String("dsn", redactedDSN(m.cfg)),
			slog.Int("pool_size", m.cfg.PoolSize),
			slog.Int("max_idle", m.cfg.MaxIdle),
		)
	}

	if err != nil {
		attrs = append(attrs, errorAttrs(err)...)
		m.logger.LogAttrs(ctx, slog.LevelError, "database connection event", attrs...)
		return
	}
	attrs = append(attrs, slog.String("status", "success"))
	m.logger.LogAttrs(ctx, slog.LevelDebug, "database connection event", attrs...)
}

// logTestConnection reports the outcome of OpenTestConnection
func (m *Manager) logTestConnection(ctx context.Context, duration time.Duration, err error) {
	if !m.logEnabled() { return }

	attrs := []slog.Attr{
		slog.String("event", "test_connection"),
		slog.String("dsn", redactedDSN(m.cfg)),
		slog.Float64("duration_ms", float64(duration.Nanoseconds())/1e6),
	}
	if err != nil {
		attrs = append(attrs, errorAttrs(err)...)
		m.logger.LogAttrs(ctx, slog.LevelError, "test connection failed", attrs...)
		return
	}
	attrs = append(attrs, slog.String("status", "success"))
	m.logger.LogAttrs(ctx, slog.LevelInfo, "test connection established", attrs...)
}

func (m *Manager) logRetry(ctx context.Context, attempt int, next time.Duration, err error) {
	if !m.logEnabled() { return }

	attrs := []slog.Attr{
		slog.String("event", "wait_for_server"),
		slog.Int("attempt", attempt),
		slog.Duration("next_attempt_in", next),
	}
	attrs = append(attrs, errorAttrs(err)...)
	m.logger.LogAttrs(ctx, slog.LevelWarn, "database not ready", attrs...)
}
