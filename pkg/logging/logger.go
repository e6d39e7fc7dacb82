package logging

import (
	"fmt"
	"log"
	"sync/atomic"

	"github.com/fatih/color"
)

// currentLevel is the current maximum level at which messages are emitted.
// It is stored atomically so that loggers are safe for concurrent use even
// though the core engine itself is single-threaded.
var currentLevel uint32 = uint32(LevelInfo)

// SetLevel sets the maximum level at which messages are emitted.
func SetLevel(level Level) {
	atomic.StoreUint32(&currentLevel, uint32(level))
}

// CurrentLevel returns the current maximum level at which messages are
// emitted.
func CurrentLevel() Level {
	return Level(atomic.LoadUint32(&currentLevel))
}

// Logger is the main logger type. It has the novel property that it still
// functions if nil, but it doesn't log anything. It writes through the
// standard logger provided by the log package, so it respects any flags set
// for that logger.
type Logger struct {
	// prefix is any prefix specified for the logger.
	prefix string
}

// RootLogger is the root logger from which all other loggers derive.
var RootLogger = &Logger{}

// Sublogger creates a new sublogger with the specified name.
func (l *Logger) Sublogger(name string) *Logger {
	// If the logger is nil, then the sublogger will be as well.
	if l == nil {
		return nil
	}

	// Compute the new prefix.
	prefix := name
	if l.prefix != "" {
		prefix = l.prefix + "." + name
	}

	// Create the sublogger.
	return &Logger{prefix: prefix}
}

// output emits a single line at the specified level.
func (l *Logger) output(level Level, line string) {
	if l == nil || level > CurrentLevel() {
		return
	}
	switch level {
	case LevelError:
		line = color.RedString("%s", line)
	case LevelWarn:
		line = color.YellowString("%s", line)
	}
	if l.prefix != "" {
		log.Printf("[%s] %s", l.prefix, line)
	} else {
		log.Print(line)
	}
}

// Error logs an error message.
func (l *Logger) Error(v ...interface{}) {
	l.output(LevelError, fmt.Sprint(v...))
}

// Errorf logs a formatted error message.
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.output(LevelError, fmt.Sprintf(format, v...))
}

// Warn logs a warning message.
func (l *Logger) Warn(v ...interface{}) {
	l.output(LevelWarn, fmt.Sprint(v...))
}

// Warnf logs a formatted warning message.
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.output(LevelWarn, fmt.Sprintf(format, v...))
}

// Info logs an informational message.
func (l *Logger) Info(v ...interface{}) {
	l.output(LevelInfo, fmt.Sprint(v...))
}

// Infof logs a formatted informational message.
func (l *Logger) Infof(format string, v ...interface{}) {
	l.output(LevelInfo, fmt.Sprintf(format, v...))
}

// Debug logs a debugging message.
func (l *Logger) Debug(v ...interface{}) {
	l.output(LevelDebug, fmt.Sprint(v...))
}

// Debugf logs a formatted debugging message.
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.output(LevelDebug, fmt.Sprintf(format, v...))
}

// Trace logs a trace message.
func (l *Logger) Trace(v ...interface{}) {
	l.output(LevelTrace, fmt.Sprint(v...))
}

// Tracef logs a formatted trace message.
func (l *Logger) Tracef(format string, v ...interface{}) {
	l.output(LevelTrace, fmt.Sprintf(format, v...))
}
