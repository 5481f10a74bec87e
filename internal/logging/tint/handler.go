// Package tint is a colored, human-readable slog.Handler for terminal
// output. It is the text-format counterpart to slog.JSONHandler: one line
// per record, level and timestamp dimmed/colorized, falling back to plain
// text when the destination isn't a TTY.
package tint

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"golang.org/x/term"
)

const (
	ansiBrightRed    = "\x1b[91m" // ERROR
	ansiBrightYellow = "\x1b[93m" // WARN
	ansiBrightGreen  = "\x1b[92m" // INFO
	ansiBrightBlue   = "\x1b[94m" // DEBUG
	ansiReset        = "\x1b[0m"
	ansiFaint        = "\x1b[2m"
)

// Options configure a Handler.
type Options struct {
	// Level is the minimum level logged. Default slog.LevelInfo.
	Level slog.Leveler

	// AddSource includes file:line in output when true.
	AddSource bool

	// TimeFormat is the time.Layout string used for timestamps.
	// Default "15:04:05.000".
	TimeFormat string

	// NoColor disables ANSI color output. Auto-detected from the
	// destination's TTY-ness when left false.
	NoColor bool
}

// buffer is a pooled byte slice used to build one log line without an
// allocation per field.
type buffer []byte

var bufPool = sync.Pool{
	New: func() any {
		b := make(buffer, 0, 1024)
		return &b
	},
}

func newBuffer() *buffer { return bufPool.Get().(*buffer) }

func (b *buffer) Free() {
	*b = (*b)[:0]
	bufPool.Put(b)
}

func (b *buffer) Write(p []byte) (int, error) {
	*b = append(*b, p...)
	return len(p), nil
}

func (b *buffer) WriteString(s string) { *b = append(*b, s...) }
func (b *buffer) WriteByte(c byte)     { *b = append(*b, c) }

// Handler implements slog.Handler for colored console output.
type Handler struct {
	attrsPrefix string
	groupPrefix string
	groups      []string

	mu   *sync.Mutex // shared across every clone produced by WithAttrs/WithGroup
	w    io.Writer
	opts Options
}

var _ slog.Handler = (*Handler)(nil)

// NewHandler builds a Handler writing to w. Colors are auto-disabled when w
// isn't a terminal, unless opts.NoColor is already set.
func NewHandler(w io.Writer, opts *Options) *Handler {
	h := &Handler{w: w, mu: &sync.Mutex{}}
	if opts != nil {
		h.opts = *opts
	}

	if !h.opts.NoColor {
		if f, ok := w.(*os.File); ok {
			h.opts.NoColor = !term.IsTerminal(int(f.Fd()))
		} else {
			h.opts.NoColor = true
		}
	}

	if h.opts.TimeFormat == "" {
		h.opts.TimeFormat = "15:04:05.000"
	}
	return h
}

// Enabled reports whether the handler handles records at the given level.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func (h *Handler) clone() *Handler {
	return &Handler{
		attrsPrefix: h.attrsPrefix,
		groupPrefix: h.groupPrefix,
		groups:      h.groups,
		mu:          h.mu,
		w:           h.w,
		opts:        h.opts,
	}
}

// WithAttrs returns a new Handler with attrs pre-formatted under the
// current group prefix.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := h.clone()

	buf := newBuffer()
	defer buf.Free()

	for _, attr := range attrs {
		h.appendAttr(buf, attr, h.groupPrefix, h.groups)
	}
	h2.attrsPrefix = h.attrsPrefix + string(*buf)
	return h2
}

// WithGroup returns a new Handler nesting subsequent keys under name.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := h.clone()
	h2.groupPrefix += name + "."
	h2.groups = append(h2.groups, name)
	return h2
}

// Handle writes one formatted, colorized line for r.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	buf := newBuffer()
	defer buf.Free()

	if !r.Time.IsZero() {
		h.appendTime(buf, r.Time)
		buf.WriteByte(' ')
	}

	h.appendLevel(buf, r.Level)
	buf.WriteByte(' ')

	if h.opts.AddSource && r.PC != 0 {
		h.appendSource(buf, r.PC)
		buf.WriteByte(' ')
	}

	buf.WriteString(r.Message)

	if len(h.attrsPrefix) > 0 {
		buf.WriteByte(' ')
		buf.WriteString(h.attrsPrefix)
	}

	if r.NumAttrs() > 0 {
		buf.WriteByte(' ')
		r.Attrs(func(a slog.Attr) bool {
			h.appendAttr(buf, a, h.groupPrefix, h.groups)
			return true
		})
	}

	if len(*buf) > 0 && (*buf)[len(*buf)-1] == ' ' {
		(*buf)[len(*buf)-1] = '\n'
	} else {
		buf.WriteByte('\n')
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(*buf)
	return err
}

func (h *Handler) appendLevel(buf *buffer, level slog.Level) {
	if !h.opts.NoColor {
		switch {
		case level < slog.LevelInfo:
			buf.WriteString(ansiBrightBlue)
		case level < slog.LevelWarn:
			buf.WriteString(ansiBrightGreen)
		case level < slog.LevelError:
			buf.WriteString(ansiBrightYellow)
		default:
			buf.WriteString(ansiBrightRed)
		}
	}

	switch {
	case level < slog.LevelInfo:
		buf.WriteString("DBG")
	case level < slog.LevelWarn:
		buf.WriteString("INF")
	case level < slog.LevelError:
		buf.WriteString("WRN")
	default:
		buf.WriteString("ERR")
	}

	if !h.opts.NoColor {
		buf.WriteString(ansiReset)
	}
}

func (h *Handler) appendTime(buf *buffer, t time.Time) {
	if !h.opts.NoColor {
		buf.WriteString(ansiFaint)
	}
	*buf = t.AppendFormat(*buf, h.opts.TimeFormat)
	if !h.opts.NoColor {
		buf.WriteString(ansiReset)
	}
}

func (h *Handler) appendSource(buf *buffer, pc uintptr) {
	fs := runtime.CallersFrames([]uintptr{pc})
	f, _ := fs.Next()
	if f.File == "" {
		return
	}

	if !h.opts.NoColor {
		buf.WriteString(ansiFaint)
	}

	dir := filepath.Base(filepath.Dir(f.File))
	file := filepath.Base(f.File)
	buf.WriteString(dir)
	buf.WriteByte('/')
	buf.WriteString(file)
	buf.WriteByte(':')
	*buf = strconv.AppendInt(*buf, int64(f.Line), 10)

	if !h.opts.NoColor {
		buf.WriteString(ansiReset)
	}
}

func (h *Handler) appendAttr(buf *buffer, a slog.Attr, groupPrefix string, groups []string) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		if len(attrs) == 0 {
			return
		}
		prefix := groupPrefix
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, ga := range attrs {
			h.appendAttr(buf, ga, prefix, groups)
		}
		return
	}

	if !h.opts.NoColor {
		buf.WriteString(ansiFaint)
	}
	buf.WriteString(groupPrefix)
	buf.WriteString(a.Key)
	buf.WriteByte('=')
	if !h.opts.NoColor {
		buf.WriteString(ansiReset)
	}

	h.appendValue(buf, a.Value)
	buf.WriteByte(' ')
}

func (h *Handler) appendValue(buf *buffer, v slog.Value) {
	switch v.Kind() {
	case slog.KindString:
		buf.WriteString(v.String())
	case slog.KindInt64:
		*buf = strconv.AppendInt(*buf, v.Int64(), 10)
	case slog.KindUint64:
		*buf = strconv.AppendUint(*buf, v.Uint64(), 10)
	case slog.KindFloat64:
		*buf = strconv.AppendFloat(*buf, v.Float64(), 'f', -1, 64)
	case slog.KindBool:
		*buf = strconv.AppendBool(*buf, v.Bool())
	case slog.KindDuration:
		buf.WriteString(v.Duration().String())
	case slog.KindTime:
		*buf = v.Time().AppendFormat(*buf, time.RFC3339)
	case slog.KindAny:
		fmt.Fprint(buf, v.Any())
	default:
		buf.WriteString(v.String())
	}
}
