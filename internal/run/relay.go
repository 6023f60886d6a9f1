package run

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// LogEntry is one worker log record in transit. Attrs are fully resolved
// and group-qualified before the entry crosses the channel, so the
// coordinator can re-emit it through its own handler without touching
// worker state.
type LogEntry struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Attrs   []slog.Attr
}

// RelayHandler is a slog.Handler that forwards records over a bounded
// channel instead of writing them. Workers log through it; the coordinator
// drains the channel every poll tick and re-emits through its own sink, so
// workers never write to a shared handler directly.
//
// Handle blocks when the buffer is full. That is deliberate back-pressure:
// the coordinator drains on every tick, so the wait is bounded by one tick.
type RelayHandler struct {
	ch     chan<- LogEntry
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
}

// NewRelayHandler creates a handler forwarding records at or above the
// given level.
func NewRelayHandler(ch chan<- LogEntry, level slog.Leveler) *RelayHandler {
	return &RelayHandler{ch: ch, level: level}
}

// Enabled implements slog.Handler.
func (h *RelayHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

// Handle implements slog.Handler by sending the record over the channel.
func (h *RelayHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, h.qualify(a))
		return true
	})
	h.ch <- LogEntry{Time: r.Time, Level: r.Level, Message: r.Message, Attrs: attrs}
	return nil
}

// WithAttrs implements slog.Handler. Attrs are qualified with the groups
// open at the time they are attached.
func (h *RelayHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := h.clone()
	for _, a := range attrs {
		clone.attrs = append(clone.attrs, h.qualify(a))
	}
	return clone
}

// WithGroup implements slog.Handler.
func (h *RelayHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := h.clone()
	clone.groups = append(clone.groups, name)
	return clone
}

func (h *RelayHandler) clone() *RelayHandler {
	return &RelayHandler{
		ch:     h.ch,
		level:  h.level,
		attrs:  append([]slog.Attr(nil), h.attrs...),
		groups: append([]string(nil), h.groups...),
	}
}

func (h *RelayHandler) qualify(a slog.Attr) slog.Attr {
	if len(h.groups) == 0 {
		return a
	}
	a.Key = strings.Join(h.groups, ".") + "." + a.Key
	return a
}
