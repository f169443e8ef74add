package logger

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logging surface shared by the client and its callers.
type Logger interface {
	InfoObj(msg, key string, obj interface{})
	DebugObj(msg, key string, obj interface{})
	WarnObj(msg, key string, obj interface{})
	ErrorObj(msg, key string, obj interface{})
}

// ZapLogger implements Logger on top of a zap.Logger.
type ZapLogger struct {
	l *zap.Logger
}

// NewZapLogger wraps an existing zap.Logger.
func NewZapLogger(l *zap.Logger) *ZapLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return &ZapLogger{l: l}
}

func (z *ZapLogger) InfoObj(msg, key string, obj interface{})  { z.l.Info(msg, zap.Any(key, obj)) }
func (z *ZapLogger) DebugObj(msg, key string, obj interface{}) { z.l.Debug(msg, zap.Any(key, obj)) }
func (z *ZapLogger) WarnObj(msg, key string, obj interface{})  { z.l.Warn(msg, zap.Any(key, obj)) }
func (z *ZapLogger) ErrorObj(msg, key string, obj interface{}) { z.l.Error(msg, zap.Any(key, obj)) }

// Named returns a child logger whose entries carry the component name.
func (z *ZapLogger) Named(component string) *ZapLogger {
	return &ZapLogger{l: z.l.Named(component)}
}

// Sync flushes buffered entries.
func (z *ZapLogger) Sync() error { return z.l.Sync() }

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) InfoObj(string, string, interface{})  {}
func (NopLogger) DebugObj(string, string, interface{}) {}
func (NopLogger) WarnObj(string, string, interface{})  {}
func (NopLogger) ErrorObj(string, string, interface{}) {}

// Ensure returns log, or a NopLogger when log is nil.
func Ensure(log Logger) Logger {
	if log == nil {
		return NopLogger{}
	}
	return log
}

// ParseLevel maps a config level name to a zap level. "warning" is accepted
// as an alias and unknown names fall back to info.
func ParseLevel(name string) zapcore.Level {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "warning" {
		name = "warn"
	}
	level, err := zapcore.ParseLevel(name)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

var (
	mu      sync.RWMutex
	process *ZapLogger
)

// Init builds the process logger. Entries are JSON on stderr so command
// output on stdout stays machine readable.
func Init(level string) (*ZapLogger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(os.Stderr),
		ParseLevel(level),
	)
	log := NewZapLogger(zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)))

	mu.Lock()
	process = log
	mu.Unlock()
	return log, nil
}

// Close flushes the process logger, if any.
func Close() error {
	mu.RLock()
	log := process
	mu.RUnlock()
	if log == nil {
		return nil
	}
	// Sync on stderr reports EINVAL/ENOTTY on some platforms; nothing to flush there.
	_ = log.Sync()
	return nil
}

func current() Logger {
	mu.RLock()
	defer mu.RUnlock()
	if process == nil {
		return NopLogger{}
	}
	return process
}

// Process-wide helpers. They are no-ops until Init has run.

func InfoObj(msg, key string, obj interface{})  { current().InfoObj(msg, key, obj) }
func DebugObj(msg, key string, obj interface{}) { current().DebugObj(msg, key, obj) }
func WarnObj(msg, key string, obj interface{})  { current().WarnObj(msg, key, obj) }
func ErrorObj(msg, key string, obj interface{}) { current().ErrorObj(msg, key, obj) }
