package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "INFO"
	}
}

// sink is shared by a logger and every child created with Named, so
// console output from concurrent workers is not interleaved mid-line.
type sink struct {
	mu         sync.Mutex
	fileLogger *log.Logger
	console    io.Writer
	closer     io.Closer
}

type Logger struct {
	sink      *sink
	level     Level
	component string
}

// New opens (or creates) filePath for appending. When includeStdout is set,
// INFO and above are echoed to stdout as well.
func New(filePath string, level Level, includeStdout bool) (*Logger, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	var console io.Writer
	if includeStdout {
		console = os.Stdout
	}

	l := NewWriter(f, console, level)
	l.sink.closer = f
	return l, nil
}

// NewWriter logs every line at or above level to out, and INFO and above to
// console when console is non-nil.
func NewWriter(out io.Writer, console io.Writer, level Level) *Logger {
	if out == nil {
		out = io.Discard
	}
	return &Logger{
		sink: &sink{
			fileLogger: log.New(out, "", 0),
			console:    console,
		},
		level: level,
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return NewWriter(io.Discard, nil, LevelFatal+1)
}

// Named returns a child logger whose messages are tagged with [component].
func (l *Logger) Named(component string) *Logger {
	child := *l
	if l.component != "" {
		child.component = l.component + "/" + component
	} else {
		child.component = component
	}
	return &child
}

func (l *Logger) log(lvl Level, format string, v ...interface{}) {
	if lvl < l.level {
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	msg := fmt.Sprintf(format, v...)
	if l.component != "" {
		msg = "[" + l.component + "] " + msg
	}
	fullMsg := fmt.Sprintf("%s [%s] %s", timestamp, lvl, msg)

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	l.sink.fileLogger.Println(fullMsg)

	// Debug stays out of the console so it doesn't break the progress bar
	if l.sink.console != nil && lvl >= LevelInfo {
		fmt.Fprintf(l.sink.console, "\n%s", fullMsg)
	}
}

func ParseLevel(lvl string) Level {
	switch strings.ToLower(lvl) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l *Logger) Debug(f string, v ...any) { l.log(LevelDebug, f, v...) }
func (l *Logger) Info(f string, v ...any)  { l.log(LevelInfo, f, v...) }
func (l *Logger) Warn(f string, v ...any)  { l.log(LevelWarn, f, v...) }
func (l *Logger) Error(f string, v ...any) { l.log(LevelError, f, v...) }
func (l *Logger) Fatal(f string, v ...any) { l.log(LevelFatal, f, v...); os.Exit(1) }

func (l *Logger) Write(p []byte) (n int, err error) {
	// Echo and other libraries often include a newline at the end
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		l.Info("%s", msg)
	}
	return len(p), nil
}

// Close releases the log file opened by New.
func (l *Logger) Close() error {
	if l.sink.closer != nil {
		return l.sink.closer.Close()
	}
	return nil
}
