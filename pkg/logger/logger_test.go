package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestLogger_RoutesErrorsToErrStream(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewWithWriters(&out, &errOut, slog.LevelDebug)

	l.Info("hello", "contact_id", "42")
	l.Error("boom", "status", 502)

	stdout := decodeLines(t, &out)
	stderr := decodeLines(t, &errOut)
	require.Len(t, stdout, 1)
	require.Len(t, stderr, 1)

	assert.Equal(t, "info", stdout[0]["level"])
	assert.Equal(t, "hello", stdout[0]["message"])
	assert.Equal(t, "42", stdout[0]["contact_id"])
	assert.Equal(t, "error", stderr[0]["level"])
	assert.Equal(t, float64(502), stderr[0]["status"])

	ts, ok := stdout[0]["timestamp"].(string)
	require.True(t, ok)
	_, err := time.Parse(time.RFC3339Nano, ts)
	assert.NoError(t, err)
}

func TestLogger_InfoThresholdSuppressesDebugOnly(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewWithWriters(&out, &errOut, ParseLevel("info"))

	l.Debug("hidden")
	l.Info("shown")
	l.Warn("shown too")

	lines := decodeLines(t, &out)
	require.Len(t, lines, 2)
	assert.Equal(t, "warn", lines[1]["level"])
}

func TestLogger_ErrorThreshold(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewWithWriters(&out, &errOut, ParseLevel("error"))

	l.Warn("nope")
	l.Error("yes")

	assert.Empty(t, out.String())
	assert.Len(t, decodeLines(t, &errOut), 1)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestFrom_FallsBackToDefault(t *testing.T) {
	assert.Same(t, slog.Default(), From(context.Background()))

	l := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	assert.Same(t, l, From(With(context.Background(), l)))
}

func TestMiddleware_SetsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var out, errOut bytes.Buffer
	l := NewWithWriters(&out, &errOut, slog.LevelInfo)

	r := gin.New()
	r.Use(Middleware(l))
	r.GET("/x", func(c *gin.Context) {
		assert.NotSame(t, slog.Default(), From(c.Request.Context()))
		assert.Equal(t, "rid-1", RequestID(c.Request.Context()))
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(headerRequestID, "rid-1")
	r.ServeHTTP(w, req)

	assert.Equal(t, "rid-1", w.Header().Get(headerRequestID))
	lines := decodeLines(t, &out)
	require.Len(t, lines, 1)
	assert.Equal(t, "rid-1", lines[0]["request_id"])
	assert.Equal(t, "/x", lines[0]["path"])
	assert.Equal(t, float64(http.StatusNoContent), lines[0]["status"])
}
