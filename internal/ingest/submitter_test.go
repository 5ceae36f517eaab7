// SPDX-License-Identifier: MIT

package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/novalabs/eventsim/internal/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSubmitter_PostsJSON(t *testing.T) {
	var gotBody []byte
	var gotContentType, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	s := NewHTTPSubmitterWithClient(srv.URL+"/event/events", srv.Client())
	res, err := s.Submit(context.Background(), event.Event{Type: "front_door", Value: "closed", EpochMillis: 1484006400123})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "application/json", gotContentType)
	assert.JSONEq(t, `{"type":"front_door","value":"closed","epochMillis":1484006400123}`, string(gotBody))
	assert.Equal(t, gotBody, res.Payload)
	assert.Equal(t, http.StatusCreated, res.Status)
	assert.True(t, res.OK())
}

func TestHTTPSubmitter_Non2xxIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewHTTPSubmitterWithClient(srv.URL, srv.Client())
	res, err := s.Submit(context.Background(), event.Event{Type: "lathe", Value: "on", EpochMillis: 1})
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, res.Status)
	assert.False(t, res.OK())
}

func TestHTTPSubmitter_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	url := srv.URL
	srv.Close()

	s := NewHTTPSubmitter(url, time.Second)
	res, err := s.Submit(context.Background(), event.Event{Type: "lathe", Value: "on", EpochMillis: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))
	assert.Equal(t, 0, res.Status)
	assert.NotEmpty(t, res.Payload)
}

func TestHTTPSubmitter_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewHTTPSubmitterWithClient(srv.URL, srv.Client())
	_, err := s.Submit(ctx, event.Event{Type: "alarm", Value: "enabled", EpochMillis: 5})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDryRunSubmitter(t *testing.T) {
	e := event.Event{Type: "mongo", Value: "off", EpochMillis: 42}
	res, err := DryRunSubmitter{}.Submit(context.Background(), e)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, res.Status)

	var decoded event.Event
	require.NoError(t, json.Unmarshal(res.Payload, &decoded))
	assert.Equal(t, e, decoded)
}
