package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// TestLogHandler records every log entry so tests can assert on what was logged,
// and on what was not.
type TestLogHandler struct {
	state *logState
	attrs []slog.Attr
}

type logState struct {
	mu      sync.Mutex
	records []TestLogRecord
}

type TestLogRecord struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

func NewTestLogHandler() *TestLogHandler {
	return &TestLogHandler{state: &logState{}}
}

func (h *TestLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return true
}

func (h *TestLogHandler) Handle(ctx context.Context, record slog.Record) error {
	attrs := make(map[string]any, len(h.attrs)+record.NumAttrs())
	for _, attr := range h.attrs {
		attrs[attr.Key] = attr.Value.Any()
	}
	record.Attrs(func(attr slog.Attr) bool {
		attrs[attr.Key] = attr.Value.Any()
		return true
	})

	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	h.state.records = append(h.state.records, TestLogRecord{
		Level:   record.Level,
		Message: record.Message,
		Attrs:   attrs,
	})

	return nil
}

// WithAttrs shares the record buffer with h so component loggers are captured too.
func (h *TestLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TestLogHandler{
		state: h.state,
		attrs: append(append([]slog.Attr(nil), h.attrs...), attrs...),
	}
}

func (h *TestLogHandler) WithGroup(name string) slog.Handler {
	return h
}

func (h *TestLogHandler) GetRecords() []TestLogRecord {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	return append([]TestLogRecord(nil), h.state.records...)
}

func (h *TestLogHandler) GetRecordsByLevel(level slog.Level) []TestLogRecord {
	var filtered []TestLogRecord
	for _, record := range h.GetRecords() {
		if record.Level == level {
			filtered = append(filtered, record)
		}
	}
	return filtered
}

func (h *TestLogHandler) Reset() {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	h.state.records = h.state.records[:0]
}

func (h *TestLogHandler) ContainsMessage(level slog.Level, message string) bool {
	for _, record := range h.GetRecordsByLevel(level) {
		if record.Message == message {
			return true
		}
	}
	return false
}

func (h *TestLogHandler) CountByLevel(level slog.Level) int {
	return len(h.GetRecordsByLevel(level))
}

// Contains reports whether any message or attribute value includes s.
func (h *TestLogHandler) Contains(s string) bool {
	for _, record := range h.GetRecords() {
		if strings.Contains(record.Message, s) {
			return true
		}
		for _, value := range record.Attrs {
			if strings.Contains(fmt.Sprint(value), s) {
				return true
			}
		}
	}
	return false
}
