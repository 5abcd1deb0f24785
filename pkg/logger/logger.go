// Package logger configures the process-wide slog logger.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/term"
)

const (
	packagePrefix = "github.com/kadirpekel/a2achat"

	FormatSimple  = "simple"
	FormatVerbose = "verbose"
	FormatJSON    = "json"
)

var (
	mu            sync.Mutex
	defaultLogger *slog.Logger
)

// ParseLevel converts a string log level to slog.Level.
// Unknown levels fall back to warn.
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// Options selects the logger's level, destination and format.
type Options struct {
	Level  string
	File   string
	Format string
}

// Setup installs the default logger from opts. The returned cleanup closes
// the log file when one was opened.
func Setup(opts Options) (func(), error) {
	out := os.Stderr
	cleanup := func() {}
	if opts.File != "" {
		f, closeFn, err := OpenLogFile(opts.File)
		if err != nil {
			return nil, err
		}
		out, cleanup = f, closeFn
	}
	Init(ParseLevel(opts.Level), out, opts.Format)
	return cleanup, nil
}

// Init builds the handler chain and sets it as the slog default.
// Colors are used only when output is a terminal. Logs from other modules
// are dropped unless level is debug.
func Init(level slog.Level, output *os.File, format string) {
	handler := newHandler(level, output, IsTerminal(output), format)

	mu.Lock()
	defaultLogger = slog.New(&moduleFilter{handler: handler, minLevel: level})
	mu.Unlock()

	slog.SetDefault(defaultLogger)
}

func newHandler(level slog.Level, w io.Writer, color bool, format string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey && a.Value.String() == "WARNING" {
				return slog.String(slog.LevelKey, "WARN")
			}
			return a
		},
	}

	switch format {
	case FormatJSON:
		return slog.NewJSONHandler(w, opts)
	case FormatVerbose:
		base := slog.NewTextHandler(w, opts)
		if !color {
			return base
		}
		return &lineHandler{base: base, w: w, color: true, withTime: true}
	default:
		return &lineHandler{base: slog.NewTextHandler(w, opts), w: w, color: color}
	}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// moduleFilter drops records emitted outside this module unless the
// minimum level is debug.
type moduleFilter struct {
	handler  slog.Handler
	minLevel slog.Level
}

func (h *moduleFilter) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.minLevel && h.handler.Enabled(ctx, level)
}

func (h *moduleFilter) Handle(ctx context.Context, record slog.Record) error {
	if h.minLevel <= slog.LevelDebug || fromModule(record.PC) {
		return h.handler.Handle(ctx, record)
	}
	return nil
}

func (h *moduleFilter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &moduleFilter{handler: h.handler.WithAttrs(attrs), minLevel: h.minLevel}
}

func (h *moduleFilter) WithGroup(name string) slog.Handler {
	return &moduleFilter{handler: h.handler.WithGroup(name), minLevel: h.minLevel}
}

func fromModule(pc uintptr) bool {
	if pc == 0 {
		return false
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return false
	}
	file, _ := fn.FileLine(pc)
	return strings.Contains(fn.Name(), packagePrefix) || strings.Contains(file, "a2achat/")
}

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "\033[31m"
	case level >= slog.LevelWarn:
		return "\033[33m"
	case level >= slog.LevelInfo:
		return "\033[36m"
	default:
		return "\033[90m"
	}
}

// lineHandler writes "LEVEL message key=value" lines, optionally prefixed
// with a timestamp and colored by level.
type lineHandler struct {
	base     slog.Handler
	w        io.Writer
	color    bool
	withTime bool
	attrs    []slog.Attr
}

func (h *lineHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *lineHandler) Handle(_ context.Context, record slog.Record) error {
	var buf strings.Builder

	if h.withTime && !record.Time.IsZero() {
		buf.WriteString(record.Time.Format("2006/01/02 15:04:05 "))
	}

	level := strings.ToUpper(record.Level.String())
	if level == "WARNING" {
		level = "WARN"
	}
	if h.color {
		buf.WriteString(levelColor(record.Level))
		buf.WriteString(level)
		buf.WriteString("\033[0m")
	} else {
		buf.WriteString(level)
	}
	buf.WriteString(" ")
	buf.WriteString(record.Message)

	write := func(a slog.Attr) bool {
		buf.WriteString(" ")
		buf.WriteString(a.Key)
		buf.WriteString("=")
		buf.WriteString(a.Value.String())
		return true
	}
	for _, a := range h.attrs {
		write(a)
	}
	record.Attrs(write)
	buf.WriteString("\n")

	_, err := io.WriteString(h.w, buf.String())
	return err
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.base = h.base.WithAttrs(attrs)
	next.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &next
}

func (h *lineHandler) WithGroup(name string) slog.Handler {
	next := *h
	next.base = h.base.WithGroup(name)
	return &next
}

// OpenLogFile opens or creates a log file in append mode.
func OpenLogFile(path string) (*os.File, func(), error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return file, func() { _ = file.Close() }, nil
}

// GetLogger returns the default logger, initializing it at info level on
// stderr when Init has not run.
func GetLogger() *slog.Logger {
	mu.Lock()
	l := defaultLogger
	mu.Unlock()
	if l == nil {
		Init(slog.LevelInfo, os.Stderr, FormatSimple)
		mu.Lock()
		l = defaultLogger
		mu.Unlock()
	}
	return l
}
