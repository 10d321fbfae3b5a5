package log

import (
	"context"

	golog "github.com/ipfs/go-log/v2"
	"go.uber.org/zap"
)

// Logger is a structured logger. keysAndValues are treated as pairs,
// e.g. "entry", id, "number", n.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
	// With returns a logger that always adds the given pair.
	With(key string, value any) Logger
	// NewSystem returns a logger for a named subsystem that keeps the
	// pairs accumulated with With.
	NewSystem(name string) Logger
}

// Setup configures the global log level ("debug", "info", "warn", "error").
// Unknown levels fall back to info.
func Setup(level string) {
	lvl, err := golog.LevelFromString(level)
	if err != nil {
		lvl = golog.LevelInfo
	}
	golog.SetupLogging(golog.Config{
		Level:  lvl,
		Stderr: true,
	})
}

// New returns a logger for the named subsystem.
func New(name string) Logger {
	return &zapLogger{
		lg: golog.Logger(name).SugaredLogger.Desugar().WithOptions(zap.AddCallerSkip(1)).Sugar(),
	}
}

// Nop discards everything.
func Nop() Logger {
	return &zapLogger{lg: zap.NewNop().Sugar()}
}

type zapLogger struct {
	lg     *zap.SugaredLogger
	fields []any
}

func (l *zapLogger) Debug(msg string, keysAndValues ...any) { l.lg.Debugw(msg, keysAndValues...) }
func (l *zapLogger) Info(msg string, keysAndValues ...any)  { l.lg.Infow(msg, keysAndValues...) }
func (l *zapLogger) Warn(msg string, keysAndValues ...any)  { l.lg.Warnw(msg, keysAndValues...) }
func (l *zapLogger) Error(msg string, keysAndValues ...any) { l.lg.Errorw(msg, keysAndValues...) }

func (l *zapLogger) With(key string, value any) Logger {
	fields := make([]any, 0, len(l.fields)+2)
	fields = append(fields, l.fields...)
	fields = append(fields, key, value)
	return &zapLogger{lg: l.lg.With(key, value), fields: fields}
}

func (l *zapLogger) NewSystem(name string) Logger {
	lg := golog.Logger(name).SugaredLogger.Desugar().WithOptions(zap.AddCallerSkip(1)).Sugar()
	return &zapLogger{lg: lg.With(l.fields...), fields: l.fields}
}

type contextKey struct{}

// WithContext attaches a logger to ctx.
func WithContext(ctx context.Context, lg Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, lg)
}

// FromContext returns the logger stored in ctx, or a no-op logger.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(contextKey{}).(Logger); ok {
		return l
	}
	return Nop()
}
