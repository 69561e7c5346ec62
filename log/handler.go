// Package log provides structured logging (slog) routed through the host's
// log primitive.
package log

import (
	"context"
	"log/slog"
	"strings"

	"github.com/reglet-dev/modbridge/domain/ports"
)

// Sink receives formatted log lines at a host log level.
type Sink interface {
	Log(level, message string)
}

// HostLogHandler implements slog.Handler by formatting records into a single
// line and handing them to a Sink.
type HostLogHandler struct {
	sink   Sink
	attrs  []LogAttrWire
	groups []string
	opts   handlerConfig
}

// HandlerOption configures the HostLogHandler.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	level     slog.Level
	addSource bool
}

// defaultHandlerConfig returns the default configuration.
func defaultHandlerConfig() handlerConfig {
	return handlerConfig{
		level: slog.LevelInfo,
	}
}

// WithLevel sets the minimum log level to report.
// Records below this level are filtered before reaching the host.
func WithLevel(level slog.Level) HandlerOption {
	return func(c *handlerConfig) {
		c.level = level
	}
}

// WithSource enables reporting of source location (file/line).
func WithSource(enabled bool) HandlerOption {
	return func(c *handlerConfig) {
		c.addSource = enabled
	}
}

// NewHandler creates a new HostLogHandler writing to sink.
func NewHandler(sink Sink, opts ...HandlerOption) *HostLogHandler {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &HostLogHandler{sink: sink, opts: cfg}
}

// Enabled reports whether the handler handles records at the given level.
func (h *HostLogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.level
}

// WithAttrs returns a new HostLogHandler that includes the given attributes.
func (h *HostLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := h.clone()
	for _, a := range attrs {
		clone.attrs = append(clone.attrs, h.wire(a))
	}
	return clone
}

// WithGroup returns a new HostLogHandler that qualifies later keys with name.
func (h *HostLogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := h.clone()
	clone.groups = append(clone.groups, name)
	return clone
}

// Handle formats the record and forwards it to the sink.
func (h *HostLogHandler) Handle(_ context.Context, record slog.Record) error {
	if h.sink == nil {
		return nil
	}

	var b strings.Builder
	b.WriteString(record.Message)
	for _, a := range h.attrs {
		writeAttr(&b, a)
	}
	record.Attrs(func(attr slog.Attr) bool {
		writeAttr(&b, h.wire(attr))
		return true
	})
	if h.opts.addSource && record.PC != 0 {
		if src := record.Source(); src != nil {
			writeAttr(&b, LogAttrWire{Key: "source", Value: src.File + ":" + itoa(src.Line)})
		}
	}

	h.sink.Log(HostLevel(record.Level), b.String())
	return nil
}

func (h *HostLogHandler) clone() *HostLogHandler {
	c := *h
	c.attrs = append([]LogAttrWire(nil), h.attrs...)
	c.groups = append([]string(nil), h.groups...)
	return &c
}

func (h *HostLogHandler) wire(attr slog.Attr) LogAttrWire {
	w := toLogAttrWire(attr)
	if len(h.groups) > 0 {
		w.Key = strings.Join(h.groups, ".") + "." + w.Key
	}
	return w
}

func writeAttr(b *strings.Builder, a LogAttrWire) {
	b.WriteByte(' ')
	b.WriteString(a.Key)
	b.WriteByte('=')
	if strings.ContainsAny(a.Value, " \t\"") {
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(a.Value, `"`, `\"`))
		b.WriteByte('"')
		return
	}
	b.WriteString(a.Value)
}

// HostLevel maps an slog level onto the host's log levels.
func HostLevel(level slog.Level) string {
	switch {
	case level < slog.LevelInfo:
		return ports.LogDebug
	case level < slog.LevelWarn:
		return ports.LogNotice
	default:
		return ports.LogWarning
	}
}

// SlogLevel maps a host log level back onto slog.
func SlogLevel(level string) slog.Level {
	switch level {
	case ports.LogDebug:
		return slog.LevelDebug
	case ports.LogVerbose:
		return slog.LevelDebug + 2
	case ports.LogWarning:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
