// Where: internal/logger/logger.go
// What: Leveled logger used by every stage and collaborator.
// Why: Keep one log format (level prefix, optional timestamp and caller when offline).
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// EnvLogLevel sets the minimum level (DEBUG, INFO, WARN, ERROR).
	EnvLogLevel = "HYBRIDLESS_LOG_LEVEL"
	// EnvOffline switches to the verbose local format.
	EnvOffline = "IS_OFFLINE"
)

// Config controls logger construction.
type Config struct {
	Out     io.Writer
	Level   string
	Offline bool
}

// Logger formats variadic arguments into a single line per call.
type Logger struct {
	z *zap.Logger
}

// FromEnv builds a logger writing to stderr using environment settings.
func FromEnv() *Logger {
	_, offline := os.LookupEnv(EnvOffline)
	return New(Config{
		Out:     os.Stderr,
		Level:   os.Getenv(EnvLogLevel),
		Offline: offline,
	})
}

// New builds a logger from cfg.
func New(cfg Config) *Logger {
	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}
	level := zapcore.DebugLevel
	if cfg.Level != "" {
		if parsed, err := zapcore.ParseLevel(strings.ToLower(cfg.Level)); err == nil {
			level = parsed
		}
	}

	encCfg := zapcore.EncoderConfig{
		MessageKey:       "msg",
		LevelKey:         "level",
		StacktraceKey:    "stacktrace",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      bracketLevelEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
	opts := []zap.Option{}
	if cfg.Offline {
		encCfg.TimeKey = "time"
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("01/02/2006 15:04:05")
		encCfg.CallerKey = "caller"
		encCfg.EncodeCaller = zapcore.ShortCallerEncoder
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(2))
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(out), level)
	return &Logger{z: zap.New(core, opts...)}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{z: zap.NewNop()}
}

func bracketLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	name := level.CapitalString()
	if level == zapcore.WarnLevel {
		name = "WARN"
	}
	enc.AppendString("[" + name + "]")
}

func (l *Logger) Debug(args ...any) { l.emit(nil, zapcore.DebugLevel, Format(args...)) }
func (l *Logger) Info(args ...any)  { l.emit(nil, zapcore.InfoLevel, Format(args...)) }
func (l *Logger) Warn(args ...any)  { l.emit(nil, zapcore.WarnLevel, Format(args...)) }
func (l *Logger) Error(args ...any) { l.emit(nil, zapcore.ErrorLevel, Format(args...)) }

// Log is an alias of Info.
func (l *Logger) Log(args ...any) { l.emit(nil, zapcore.InfoLevel, Format(args...)) }

// Exception logs err at ERROR level with a stack trace.
func (l *Logger) Exception(err error, args ...any) {
	msg := Format(args...)
	if err != nil {
		if msg != "" {
			msg += " "
		}
		msg += err.Error()
	}
	l.emit([]zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}, zapcore.ErrorLevel, msg)
}

// Sync flushes buffered output.
func (l *Logger) Sync() error {
	if l == nil || l.z == nil {
		return nil
	}
	return l.z.Sync()
}

func (l *Logger) emit(opts []zap.Option, level zapcore.Level, msg string) {
	if l == nil || l.z == nil {
		return
	}
	z := l.z
	if len(opts) > 0 {
		z = z.WithOptions(opts...)
	}
	if ce := z.Check(level, msg); ce != nil {
		ce.Write()
	}
}

// Format joins args with spaces, rendering composite values as indented JSON.
func Format(args ...any) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		parts = append(parts, formatArg(arg))
	}
	return strings.Join(parts, " ")
}

func formatArg(arg any) string {
	switch v := arg.(type) {
	case nil:
		return "null"
	case string:
		return v
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	case bool, int, int32, int64, uint, uint32, uint64, float32, float64:
		return fmt.Sprint(v)
	}
	data, err := json.MarshalIndent(arg, "", "  ")
	if err != nil {
		return fmt.Sprint(arg)
	}
	return string(data)
}
