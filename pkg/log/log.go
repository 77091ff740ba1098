package log

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logger handed to agent components. Values are
// given as alternating keys and values.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	// Error logs msg with err attached under the "error" key. err may be nil.
	Error(err error, msg string, keysAndValues ...any)

	// WithName appends name to the logger name, e.g. "agent.status".
	WithName(name string) Logger
	// WithValues returns a logger that adds keysAndValues to every entry.
	WithValues(keysAndValues ...any) Logger

	// Logr adapts the logger for libraries logging through logr, such as klog.
	Logr() logr.Logger

	// Sync flushes buffered entries. Call it before the process exits.
	Sync() error
}

var _ Logger = (*zapLogger)(nil)

type zapLogger struct {
	core *zap.Logger
}

var (
	// level is the threshold of the global logger. SetLevel moves it while
	// the agent runs.
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	std atomic.Pointer[zapLogger]
)

func init() {
	std.Store(nop())
}

// Init replaces the global logger with one built from opts. Later calls
// replace it again; loggers derived before keep writing to the old outputs.
func Init(opts *Options) {
	if opts == nil {
		opts = NewOptions()
	}
	level.SetLevel(parseLevel(opts.Level))
	std.Store(build(opts, level))
}

// NewLogger builds a standalone logger from opts. Its level is fixed.
func NewLogger(opts *Options) Logger {
	if opts == nil {
		opts = NewOptions()
	}
	return build(opts, zap.NewAtomicLevelAt(parseLevel(opts.Level)))
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() Logger {
	return nop()
}

// Std returns the global logger.
func Std() Logger {
	return std.Load()
}

// SetLevel changes the threshold of the global logger, e.g. after the
// config file changed.
func SetLevel(text string) error {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(text)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", text, err)
	}
	level.SetLevel(l)
	return nil
}

// Level returns the current threshold of the global logger.
func Level() string {
	return level.String()
}

func Debug(msg string, keysAndValues ...any)            { std.Load().Debug(msg, keysAndValues...) }
func Info(msg string, keysAndValues ...any)             { std.Load().Info(msg, keysAndValues...) }
func Warn(msg string, keysAndValues ...any)             { std.Load().Warn(msg, keysAndValues...) }
func Error(err error, msg string, keysAndValues ...any) { std.Load().Error(err, msg, keysAndValues...) }
func WithName(name string) Logger                       { return std.Load().WithName(name) }
func WithValues(keysAndValues ...any) Logger            { return std.Load().WithValues(keysAndValues...) }
func Logr() logr.Logger                                 { return std.Load().Logr() }
func Sync() error                                       { return std.Load().Sync() }

func (z *zapLogger) Debug(msg string, keysAndValues ...any) {
	z.core.Debug(msg, toFields(keysAndValues...)...)
}

func (z *zapLogger) Info(msg string, keysAndValues ...any) {
	z.core.Info(msg, toFields(keysAndValues...)...)
}

func (z *zapLogger) Warn(msg string, keysAndValues ...any) {
	z.core.Warn(msg, toFields(keysAndValues...)...)
}

func (z *zapLogger) Error(err error, msg string, keysAndValues ...any) {
	fields := toFields(keysAndValues...)
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	z.core.Error(msg, fields...)
}

func (z *zapLogger) WithName(name string) Logger {
	return &zapLogger{core: z.core.Named(name)}
}

func (z *zapLogger) WithValues(keysAndValues ...any) Logger {
	return &zapLogger{core: z.core.With(toFields(keysAndValues...)...)}
}

func (z *zapLogger) Logr() logr.Logger {
	return zapr.NewLogger(z.core)
}

func (z *zapLogger) Sync() error {
	return z.core.Sync()
}

func nop() *zapLogger {
	return &zapLogger{core: zap.NewNop()}
}

// build panics when an output cannot be opened.
func build(opts *Options, lvl zap.AtomicLevel) *zapLogger {
	outputs := opts.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}
	if opts.MaxSize > 0 {
		outputs = rotatedPaths(outputs, opts)
	}

	cfg := zap.Config{
		Level:            lvl,
		DisableCaller:    opts.DisableCaller,
		Encoding:         opts.Format,
		EncoderConfig:    encoderConfig(opts),
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
	}

	z, err := cfg.Build(zap.AddCallerSkip(opts.CallerSkip), zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	if opts.Name != "" {
		z = z.Named(opts.Name)
	}
	return &zapLogger{core: z}
}

// encoderConfig writes durations as text, e.g. "5m0s".
func encoderConfig(opts *Options) zapcore.EncoderConfig {
	cfg := zapcore.EncoderConfig{
		MessageKey:     "message",
		LevelKey:       "level",
		TimeKey:        "timestamp",
		NameKey:        "logger",
		CallerKey:      "caller",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout(time.RFC3339Nano),
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	if opts.Format == "console" && opts.EnableColor {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return cfg
}

func parseLevel(text string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(text))); err != nil {
		return zapcore.InfoLevel
	}
	return l
}
