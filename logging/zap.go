package logging

import (
	"context"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapConfig mirrors the log section of the pipeline config.
type ZapConfig struct {
	Level             string
	Encoding          string // "json" or "console"
	Development       bool
	DisableCaller     bool
	DisableStacktrace bool
	OutputPaths       []string
}

// ZapLogger adapts a *zap.Logger to the Logger interface.
type ZapLogger struct {
	base  *zap.Logger
	level zap.AtomicLevel
}

// NewZapLogger builds a zap logger from cfg.
func NewZapLogger(cfg ZapConfig) (*ZapLogger, error) {
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		lvl = InfoLevel
	}
	atomic := zap.NewAtomicLevelAt(toZapLevel(lvl))

	encoding := cfg.Encoding
	if encoding == "" {
		encoding = "console"
	}
	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	zc := zap.Config{
		Level:             atomic,
		Development:       cfg.Development,
		Encoding:          encoding,
		DisableCaller:     cfg.DisableCaller,
		DisableStacktrace: cfg.DisableStacktrace,
		EncoderConfig:     zap.NewProductionEncoderConfig(),
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
	}
	if encoding == "console" {
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	base, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return &ZapLogger{base: base, level: atomic}, nil
}

// WrapZap adapts an existing zap logger. Its level can no longer be changed
// through SetLevel.
func WrapZap(base *zap.Logger) *ZapLogger {
	return &ZapLogger{base: base, level: zap.NewAtomicLevelAt(zapcore.DebugLevel)}
}

// Sync flushes buffered entries.
func (z *ZapLogger) Sync() error {
	return z.base.Sync()
}

func toZapLevel(l Level) zapcore.Level {
	switch l {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	case FatalLevel:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func zapFields(fields []Fields) []zap.Field {
	n := 0
	for _, f := range fields {
		n += len(f)
	}
	out := make([]zap.Field, 0, n)
	for _, f := range fields {
		keys := make([]string, 0, len(f))
		for k := range f {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, zap.Any(k, f[k]))
		}
	}
	return out
}

func (z *ZapLogger) Debug(msg string, fields ...Fields) {
	z.base.Debug(msg, zapFields(fields)...)
}

func (z *ZapLogger) Info(msg string, fields ...Fields) {
	z.base.Info(msg, zapFields(fields)...)
}

func (z *ZapLogger) Warn(msg string, fields ...Fields) {
	z.base.Warn(msg, zapFields(fields)...)
}

func (z *ZapLogger) Error(err error, msg string, fields ...Fields) {
	z.base.Error(msg, append(zapFields(fields), zap.Error(err))...)
}

func (z *ZapLogger) Fatal(err error, msg string, fields ...Fields) {
	z.base.Fatal(msg, append(zapFields(fields), zap.Error(err))...)
}

func (z *ZapLogger) WithFields(fields Fields) Logger {
	return &ZapLogger{base: z.base.With(zapFields([]Fields{fields})...), level: z.level}
}

func (z *ZapLogger) WithContext(ctx context.Context) Logger {
	if fields, ok := fieldsFromContext(ctx); ok {
		return z.WithFields(fields)
	}
	return z
}

func (z *ZapLogger) SetLevel(level Level) {
	z.level.SetLevel(toZapLevel(level))
}
