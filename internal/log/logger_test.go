// SPDX-License-Identifier: MIT

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
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
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestConfigure_AttachesServiceAndVersion(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "eventgen", Version: "v1.2.3"})
	t.Cleanup(func() { Configure(Config{}) })

	l := WithComponent("runner")
	l.Info().Str(FieldEvent, "run.started").Msg("hello")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "eventgen", lines[0]["service"])
	assert.Equal(t, "v1.2.3", lines[0]["version"])
	assert.Equal(t, "runner", lines[0][FieldComponent])
	assert.Equal(t, "run.started", lines[0][FieldEvent])
}

func TestConfigure_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "shouting", Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestWithContext_AddsCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithRunID(ctx, "run-9")
	l := WithContext(ctx, logger)
	l.Info().Msg("x")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "req-1", lines[0][FieldRequestID])
	assert.Equal(t, "run-9", lines[0][FieldRunID])
}

func TestContextHelpers_NilContext(t *testing.T) {
	//nolint:staticcheck // nil context is part of the contract
	assert.Equal(t, "", RequestIDFromContext(nil))
	//nolint:staticcheck
	ctx := ContextWithRequestID(nil, "abc")
	assert.Equal(t, "abc", RequestIDFromContext(ctx))
}

func TestMiddleware_LogsStatus(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "info", Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	h := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/event/types", nil))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "request.handled", lines[0][FieldEvent])
	assert.Equal(t, float64(http.StatusTeapot), lines[0][FieldStatus])
	assert.Equal(t, float64(len("short and stout")), lines[0]["bytes"])
	assert.Equal(t, "warn", lines[0]["level"])
}
