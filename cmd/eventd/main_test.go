// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novalabs/eventsim/internal/config"
	"github.com/novalabs/eventsim/internal/event"
	"github.com/novalabs/eventsim/internal/health"
)

func TestRun_Version(t *testing.T) {
	var out, errOut bytes.Buffer
	assert.Equal(t, 0, run(context.Background(), []string{"-version"}, &out, &errOut))
	assert.True(t, strings.HasPrefix(out.String(), "eventd "))
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("EVENTD_STORE_BACKEND", "cassandra")
	var out, errOut bytes.Buffer
	assert.Equal(t, 1, run(context.Background(), nil, &out, &errOut))
	assert.Contains(t, errOut.String(), "config.load_failed")
}

func serve(t *testing.T, cfg config.ServerConfig) *httptest.Server {
	t.Helper()
	svc, err := newService(context.Background(), cfg)
	require.NoError(t, err)
	ts := httptest.NewServer(svc.handler)
	t.Cleanup(func() {
		ts.Close()
		_ = svc.store.Close()
	})
	return ts
}

func postEvent(t *testing.T, base string, e event.Event) *http.Response {
	t.Helper()
	body, err := json.Marshal(e)
	require.NoError(t, err)
	resp, err := http.Post(base+"/event/events", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func latestValue(t *testing.T, base, eventType string) string {
	t.Helper()
	resp, err := http.Get(base + "/event/events/" + eventType + "/latest")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var v event.View
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v.Value
}

func TestService_Backends(t *testing.T) {
	mr := miniredis.RunT(t)

	cases := []struct {
		name string
		mod  func(*config.ServerConfig)
	}{
		{"memory store, no cache", func(c *config.ServerConfig) {
			c.Store.Backend = "memory"
			c.Cache.Backend = "none"
		}},
		{"sqlite store, memory cache", func(c *config.ServerConfig) {
			c.Store.Backend = "sqlite"
			c.Store.Path = filepath.Join(t.TempDir(), "events.db")
		}},
		{"badger store, redis cache", func(c *config.ServerConfig) {
			c.Store.Backend = "badger"
			c.Store.Path = filepath.Join(t.TempDir(), "badger")
			c.Cache.Backend = "redis"
			c.Cache.RedisAddr = mr.Addr()
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.DefaultServer()
			tc.mod(&cfg)
			ts := serve(t, cfg)

			resp := postEvent(t, ts.URL, event.Event{Type: "front_door", Value: "open", EpochMillis: 1484006400000})
			require.Equal(t, http.StatusCreated, resp.StatusCode)
			assert.Equal(t, "/event/events/front_door/", resp.Header.Get("Location"))
			assert.Equal(t, "open", latestValue(t, ts.URL, "front_door"))

			// A newer event must not be hidden by the cached previous latest.
			resp = postEvent(t, ts.URL, event.Event{Type: "front_door", Value: "closed", EpochMillis: 1484006500000})
			require.Equal(t, http.StatusCreated, resp.StatusCode)
			assert.Equal(t, "closed", latestValue(t, ts.URL, "front_door"))

			ready, err := http.Get(ts.URL + "/readyz")
			require.NoError(t, err)
			_ = ready.Body.Close()
			assert.Equal(t, http.StatusOK, ready.StatusCode)
		})
	}
}

func TestService_RedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := config.DefaultServer()
	cfg.Store.Backend = "memory"
	cfg.Cache.Backend = "redis"
	cfg.Cache.RedisAddr = addr

	_, err := newService(context.Background(), cfg)
	require.Error(t, err)
}

func TestService_ReadinessDegradesWhenRedisDrops(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := config.DefaultServer()
	cfg.Store.Backend = "memory"
	cfg.Cache.Backend = "redis"
	cfg.Cache.RedisAddr = mr.Addr()
	ts := serve(t, cfg)

	readiness := func() (int, health.Report) {
		resp, err := http.Get(ts.URL + "/readyz")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		var rep health.Report
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&rep))
		return resp.StatusCode, rep
	}

	code, rep := readiness()
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, health.StatusOK, rep.Status)
	require.Len(t, rep.Dependencies, 2)
	assert.Equal(t, "store", rep.Dependencies[0].Name)
	assert.Equal(t, "redis", rep.Dependencies[1].Name)

	mr.Close()

	code, rep = readiness()
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, health.StatusDegraded, rep.Status)
	assert.False(t, rep.Dependencies[1].OK)

	// Events are still accepted with the cache gone.
	resp := postEvent(t, ts.URL, event.Event{Type: "alarm", Value: "enabled", EpochMillis: 1484006400000})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}
