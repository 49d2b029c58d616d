package logging

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"time"
)

// privateKeyPattern matches base58 strings of the length used for encoded
// ed25519 secret keys (87-88 characters). Public addresses are 32-44
// characters and never match.
var privateKeyPattern = regexp.MustCompile(`[1-9A-HJ-NP-Za-km-z]{87,88}`)

// Redact replaces base58-looking key material in free text before it is
// emitted to any log or status output.
func Redact(s string) string {
	return privateKeyPattern.ReplaceAllString(s, "[REDACTED]")
}

// Entry is one captured log record, exposed through the logs endpoint.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// Ring is a bounded in-memory buffer of recent log entries.
type Ring struct {
	mu      sync.Mutex
	max     int
	entries []Entry
}

// NewRing creates a ring buffer holding at most max entries.
func NewRing(max int) *Ring {
	return &Ring{max: max}
}

func (r *Ring) append(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	if len(r.entries) > r.max {
		r.entries = r.entries[len(r.entries)-r.max:]
	}
}

// Entries returns a copy of the captured entries, oldest first.
func (r *Ring) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// redactHandler wraps a slog.Handler and redacts key material from the
// message and all string attribute values before delegating.
type redactHandler struct {
	next slog.Handler
}

func (h *redactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *redactHandler) Handle(ctx context.Context, rec slog.Record) error {
	out := slog.NewRecord(rec.Time, rec.Level, Redact(rec.Message), rec.PC)
	rec.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redactAttr(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *redactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = redactAttr(a)
	}
	return &redactHandler{next: h.next.WithAttrs(redacted)}
}

func (h *redactHandler) WithGroup(name string) slog.Handler {
	return &redactHandler{next: h.next.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, Redact(a.Value.String()))
	case slog.KindGroup:
		members := a.Value.Group()
		redacted := make([]any, 0, len(members))
		for _, m := range members {
			redacted = append(redacted, redactAttr(m))
		}
		return slog.Group(a.Key, redacted...)
	default:
		return a
	}
}

// ringHandler captures records into a Ring. It never filters by level so the
// logs endpoint reflects everything that was emitted.
type ringHandler struct {
	ring  *Ring
	attrs []slog.Attr
}

func (h *ringHandler) Enabled(ctx context.Context, level slog.Level) bool { return true }

func (h *ringHandler) Handle(ctx context.Context, rec slog.Record) error {
	h.ring.append(Entry{
		Timestamp: rec.Time,
		Level:     rec.Level.String(),
		Message:   rec.Message,
	})
	return nil
}

func (h *ringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ringHandler{ring: h.ring, attrs: append(h.attrs, attrs...)}
}

func (h *ringHandler) WithGroup(name string) slog.Handler { return h }

// fanoutHandler forwards records to multiple handlers.
type fanoutHandler struct {
	handlers []slog.Handler
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, next := range h.handlers {
		if next.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, rec slog.Record) error {
	var firstErr error
	for _, next := range h.handlers {
		if !next.Enabled(ctx, rec.Level) {
			continue
		}
		if err := next.Handle(ctx, rec.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(h.handlers))
	for i, next := range h.handlers {
		out[i] = next.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: out}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(h.handlers))
	for i, next := range h.handlers {
		out[i] = next.WithGroup(name)
	}
	return &fanoutHandler{handlers: out}
}

// NewLogger creates a structured JSON logger at the given level. All output
// passes through redaction; if ring is non-nil, records are also captured for
// the logs endpoint.
func NewLogger(levelStr string, w io.Writer, ring *Ring) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	if ring != nil {
		handler = &fanoutHandler{handlers: []slog.Handler{handler, &ringHandler{ring: ring}}}
	}
	return slog.New(&redactHandler{next: handler})
}
