package core

import "log"

// Logger is any leveled logging service.
// expected args: error, map[string]interface{}, ...
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

type stdLogger struct {
	std     *log.Logger
	enabled bool
}

var _ Logger = (*stdLogger)(nil)

// NewStdLogger returns a Logger backed by the standard library log package;
// used in DEV and TEST where rollbar reporting is unwanted.
func NewStdLogger(std *log.Logger) *stdLogger {
	return &stdLogger{std: std, enabled: true}
}

func (l *stdLogger) Enable(enabled bool) { l.enabled = enabled }

func (l *stdLogger) print(lvl, msg string, args []interface{}) {
	if !l.enabled {
		return
	}
	l.std.Printf("[%s] %s", lvl, msg)
	for _, arg := range args {
		l.std.Printf("%+v\n", arg)
	}
}

func (l *stdLogger) Debug(msg string, args ...interface{}) { l.print("DEBUG", msg, args) }
func (l *stdLogger) Info(msg string, args ...interface{})  { l.print("INFO", msg, args) }
func (l *stdLogger) Warn(msg string, args ...interface{})  { l.print("WARN", msg, args) }
func (l *stdLogger) Error(msg string, args ...interface{}) { l.print("ERROR", msg, args) }

func (l *stdLogger) Fatal(msg string, args ...interface{}) {
	l.print("FATAL", msg, args)
	l.std.Fatal(msg)
}
