package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHandler captures log records for testing.
type testHandler struct {
	buf   *bytes.Buffer
	level slog.Level
	attrs []slog.Attr
}

func newTestHandler() *testHandler {
	return &testHandler{
		buf:   &bytes.Buffer{},
		level: slog.LevelDebug,
	}
}

func (h *testHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *testHandler) Handle(_ context.Context, r slog.Record) error {
	data := map[string]any{
		"level": r.Level.String(),
		"msg":   r.Message,
	}
	for _, attr := range h.attrs {
		data[attr.Key] = attr.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.Any()
		return true
	})
	return json.NewEncoder(h.buf).Encode(data)
}

func (h *testHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newH := &testHandler{
		buf:   h.buf,
		level: h.level,
		attrs: make([]slog.Attr, len(h.attrs)+len(attrs)),
	}
	copy(newH.attrs, h.attrs)
	copy(newH.attrs[len(h.attrs):], attrs)
	return newH
}

func (h *testHandler) WithGroup(_ string) slog.Handler {
	return h
}

func (h *testHandler) getLastRecord() map[string]any {
	lines := bytes.Split(h.buf.Bytes(), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		if len(lines[i]) > 0 {
			var m map[string]any
			if err := json.Unmarshal(lines[i], &m); err == nil {
				return m
			}
		}
	}
	return nil
}

func TestEnrichLogger(t *testing.T) {
	t.Run("adds session_id, path, and rank", func(t *testing.T) {
		h := newTestHandler()
		enriched := EnrichLogger(slog.New(h), "sess-1", "restart.db", 3)
		enriched.Info("test message")

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "sess-1", record["session_id"])
		assert.Equal(t, "restart.db", record["path"])
		assert.Equal(t, float64(3), record["rank"]) // JSON decodes ints as float64
	})

	t.Run("nil logger returns nil", func(t *testing.T) {
		assert.Nil(t, EnrichLogger(nil, "sess-1", "restart.db", 0))
	})
}

func TestLogWrite(t *testing.T) {
	h := newTestHandler()

	LogWrite(slog.New(h), "/report_step", "4", "process_split", 128)

	record := h.getLastRecord()
	require.NotNil(t, record)
	assert.Equal(t, "DEBUG", record["level"])
	assert.Equal(t, "dataset written", record["msg"])
	assert.Equal(t, "/report_step", record["group"])
	assert.Equal(t, "4", record["dataset"])
	assert.Equal(t, "process_split", record["mode"])
	assert.Equal(t, float64(128), record["size_bytes"])
}

func TestLogWriteError(t *testing.T) {
	h := newTestHandler()

	LogWriteError(slog.New(h), "/", "simulator_info", "encoding", errors.New("unsupported type"))

	record := h.getLastRecord()
	require.NotNil(t, record)
	assert.Equal(t, "ERROR", record["level"])
	assert.Equal(t, "encoding", record["kind"])
	assert.Equal(t, "unsupported type", record["error"])
}

func TestLogReadAndReadError(t *testing.T) {
	h := newTestHandler()
	logger := slog.New(h)

	LogRead(logger, "/report_step", "2", "process_split", 64)
	record := h.getLastRecord()
	require.NotNil(t, record)
	assert.Equal(t, "dataset read", record["msg"])
	assert.Equal(t, float64(64), record["size_bytes"])

	LogReadError(logger, "/report_step", "9", "io", errors.New("dataset not found"))
	record = h.getLastRecord()
	require.NotNil(t, record)
	assert.Equal(t, "ERROR", record["level"])
	assert.Equal(t, "io", record["kind"])
}

func TestLogHeader(t *testing.T) {
	h := newTestHandler()

	LogHeader(slog.New(h), "flow", "2024.10", "NORNE_ATW2013", 8)

	record := h.getLastRecord()
	require.NotNil(t, record)
	assert.Equal(t, "INFO", record["level"])
	assert.Equal(t, "flow", record["simulator"])
	assert.Equal(t, "NORNE_ATW2013", record["case"])
	assert.Equal(t, float64(8), record["num_procs"])
}

func TestLogOpenClose(t *testing.T) {
	h := newTestHandler()
	logger := slog.New(h)

	LogOpen(logger, "create", 4)
	record := h.getLastRecord()
	require.NotNil(t, record)
	assert.Equal(t, "create", record["open_mode"])

	LogClose(logger, nil)
	record = h.getLastRecord()
	require.NotNil(t, record)
	assert.Equal(t, "INFO", record["level"])

	LogClose(logger, errors.New("disk full"))
	record = h.getLastRecord()
	require.NotNil(t, record)
	assert.Equal(t, "WARN", record["level"])
	assert.Equal(t, "disk full", record["error"])
}

func TestNilLoggerDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		LogOpen(nil, "read", 1)
		LogClose(nil, nil)
		LogWrite(nil, "/", "a", "root_only", 1)
		LogWriteError(nil, "/", "a", "io", errors.New("x"))
		LogRead(nil, "/", "a", "root_only", 1)
		LogReadError(nil, "/", "a", "io", errors.New("x"))
		LogHeader(nil, "flow", "1", "case", 1)
	})
}

func TestTimedOperation(t *testing.T) {
	done := TimedOperation()
	time.Sleep(5 * time.Millisecond)
	assert.GreaterOrEqual(t, done(), 5*time.Millisecond)
}
