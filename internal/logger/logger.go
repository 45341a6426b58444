package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap logger with a debug flag
type Logger struct {
	debug bool
	*zap.SugaredLogger
}

// New creates a new logger writing to stderr when debug is enabled
func New(debug bool) *Logger {
	var writer io.Writer = io.Discard
	if debug {
		writer = os.Stderr
	}
	return NewWithWriter(debug, writer)
}

// NewWithWriter creates a logger writing JSON lines to w.
// Fatal messages are written even when debug is off.
func NewWithWriter(debug bool, w io.Writer) *Logger {
	level := zapcore.ErrorLevel
	if debug {
		level = zapcore.DebugLevel
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(w), level)
	return &Logger{
		debug:         debug,
		SugaredLogger: zap.New(core).Sugar(),
	}
}

// Nop returns a logger that drops everything
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// Printf logs if debug is enabled
func (l *Logger) Printf(format string, v ...interface{}) {
	if l.debug {
		l.Infof(format, v...)
	}
}

// Print logs if debug is enabled
func (l *Logger) Print(v ...interface{}) {
	if l.debug {
		l.Info(v...)
	}
}

// Println logs if debug is enabled
func (l *Logger) Println(v ...interface{}) {
	if l.debug {
		l.Infoln(v...)
	}
}

// With returns a child logger carrying the given key/value pairs
func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{debug: l.debug, SugaredLogger: l.SugaredLogger.With(args...)}
}

// Fatalf always logs (fatal errors)
func (l *Logger) Fatalf(format string, v ...interface{}) {
	l.SugaredLogger.Fatalf(format, v...)
}

// IsDebug reports whether debug logging is enabled
func (l *Logger) IsDebug() bool { return l.debug }
