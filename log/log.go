// Package log provides the leveled, structured logger shared by every
// Dunitrust module. It is deliberately small: a terminal handler that
// color-codes by level when standard error is a TTY, and falls back to a
// plain "key=value" form otherwise (log aggregators, files, pipes).
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Level is the severity of a log record, ordered least to most severe.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelCrit
)

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelCrit:
		return "CRIT"
	default:
		return "?????"
	}
}

// Logger is the capability every Dunitrust package depends on. New returns a
// child logger with additional context fields merged into every record it
// emits, mirroring the "New(ctx ...any) Logger" convention used throughout
// the go-ethereum family of nodes.
type Logger interface {
	Trace(msg string, ctx ...any)
	Debug(msg string, ctx ...any)
	Info(msg string, ctx ...any)
	Warn(msg string, ctx ...any)
	Error(msg string, ctx ...any)
	Crit(msg string, ctx ...any) // logs then os.Exit(1); reserved for invariant breaches (spec §7)
	New(ctx ...any) Logger
}

// Handler receives a fully composed record. Tests substitute a handler that
// appends to a slice instead of writing to a stream.
type Handler interface {
	Log(r *Record)
}

// Record is one emitted log line.
type Record struct {
	Time  time.Time
	Level Level
	Msg   string
	Ctx   []any // alternating key, value
}

type logger struct {
	ctx     []any
	handler Handler
}

// Root is the default logger, writing to stderr via the terminal handler.
var Root = newLogger(nil, NewTerminalHandler(os.Stderr))

func newLogger(ctx []any, h Handler) *logger {
	return &logger{ctx: ctx, handler: h}
}

// New returns a root-level logger carrying ctx, writing through the
// terminal handler. Use Root.New(ctx...) to extend an existing logger.
func New(ctx ...any) Logger { return Root.New(ctx...) }

func (l *logger) New(ctx ...any) Logger {
	merged := make([]any, 0, len(l.ctx)+len(ctx))
	merged = append(merged, l.ctx...)
	merged = append(merged, ctx...)
	return &logger{ctx: merged, handler: l.handler}
}

func (l *logger) write(lvl Level, msg string, ctx []any) {
	merged := make([]any, 0, len(l.ctx)+len(ctx))
	merged = append(merged, l.ctx...)
	merged = append(merged, ctx...)
	l.handler.Log(&Record{Time: time.Now(), Level: lvl, Msg: msg, Ctx: merged})
}

func (l *logger) Trace(msg string, ctx ...any) { l.write(LevelTrace, msg, ctx) }
func (l *logger) Debug(msg string, ctx ...any) { l.write(LevelDebug, msg, ctx) }
func (l *logger) Info(msg string, ctx ...any)  { l.write(LevelInfo, msg, ctx) }
func (l *logger) Warn(msg string, ctx ...any)  { l.write(LevelWarn, msg, ctx) }
func (l *logger) Error(msg string, ctx ...any) { l.write(LevelError, msg, ctx) }
func (l *logger) Crit(msg string, ctx ...any) {
	l.write(LevelCrit, msg, ctx)
	os.Exit(1)
}

// terminalHandler renders records as "LEVEL[time] msg key=value ...",
// colorizing the level tag when the underlying stream is a TTY.
type terminalHandler struct {
	mu     sync.Mutex
	out    io.Writer
	color  bool
	colors map[Level]*color.Color
}

// NewTerminalHandler builds a Handler writing to w, auto-detecting color
// support the same way the teacher's CLI tooling does (mattn/go-isatty +
// mattn/go-colorable so Windows consoles still render ANSI codes).
func NewTerminalHandler(w io.Writer) Handler {
	useColor := false
	out := w
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		useColor = true
		out = colorable.NewColorable(f)
	}
	return &terminalHandler{
		out:   out,
		color: useColor,
		colors: map[Level]*color.Color{
			LevelTrace: color.New(color.FgWhite),
			LevelDebug: color.New(color.FgCyan),
			LevelInfo:  color.New(color.FgGreen),
			LevelWarn:  color.New(color.FgYellow),
			LevelError: color.New(color.FgRed),
			LevelCrit:  color.New(color.FgHiRed, color.Bold),
		},
	}
}

func (h *terminalHandler) Log(r *Record) {
	h.mu.Lock()
	defer h.mu.Unlock()

	tag := r.Level.String()
	if h.color {
		tag = h.colors[r.Level].Sprint(tag)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-5s[%s] %s", tag, r.Time.Format("01-02|15:04:05.000"), r.Msg)
	for _, kv := range pairs(r.Ctx) {
		fmt.Fprintf(&b, " %s=%v", kv.key, kv.val)
	}
	b.WriteByte('\n')
	io.WriteString(h.out, b.String())
}

type kvpair struct {
	key string
	val any
}

// pairs normalizes an alternating key/value slice, tolerating an odd final
// element (logged under the synthetic key "!MISSING").
func pairs(ctx []any) []kvpair {
	out := make([]kvpair, 0, len(ctx)/2+1)
	for i := 0; i < len(ctx); i += 2 {
		key := fmt.Sprint(ctx[i])
		if i+1 >= len(ctx) {
			out = append(out, kvpair{"!MISSING", key})
			break
		}
		out = append(out, kvpair{key, ctx[i+1]})
	}
	return out
}
