// SPDX-License-Identifier: MIT

package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/novalabs/eventsim/internal/event"
	"github.com/novalabs/eventsim/internal/generator"
	"github.com/novalabs/eventsim/internal/ingest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recordingSubmitter answers with statuses from a script and records every event.
type recordingSubmitter struct {
	mu       sync.Mutex
	events   []event.Event
	statuses func(n int, e event.Event) (int, error)
}

func (s *recordingSubmitter) Submit(_ context.Context, e event.Event) (ingest.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	payload, _ := json.Marshal(e)
	status, err := http.StatusCreated, error(nil)
	if s.statuses != nil {
		status, err = s.statuses(len(s.events), e)
	}
	if err != nil {
		return ingest.Result{Payload: payload}, err
	}
	return ingest.Result{Payload: payload, Status: status}, nil
}

func mustDef(t *testing.T, name string, states []string, changes int) *generator.Definition {
	t.Helper()
	def, err := generator.NewDefinition(name, states, changes)
	require.NoError(t, err)
	return def
}

var start = time.Date(2017, 1, 10, 0, 0, 0, 0, time.UTC)

func TestRun_ZeroDays(t *testing.T) {
	sub := &recordingSubmitter{}
	var out bytes.Buffer
	r, err := New(Config{
		Start:       start,
		Days:        0,
		Definitions: []*generator.Definition{mustDef(t, "front_door", []string{"open", "closed"}, 30)},
		Submitter:   sub,
		Out:         &out,
	})
	require.NoError(t, err)

	require.NoError(t, r.Run(context.Background()))
	assert.Empty(t, sub.events)
	assert.Empty(t, out.String())
	assert.Equal(t, int64(0), r.Report().Submitted)
}

func TestRun_GroupedByDefinitionPerDay(t *testing.T) {
	sub := &recordingSubmitter{}
	defs := []*generator.Definition{
		mustDef(t, "lathe", []string{"on", "off"}, 3),
		mustDef(t, "alarm", []string{"enabled", "disabled"}, 2),
	}
	r, err := New(Config{
		Start:       start.Add(13 * time.Hour),
		Days:        2,
		Definitions: defs,
		Generator:   generator.NewSeeded(7),
		Submitter:   sub,
	})
	require.NoError(t, err)
	require.NoError(t, r.Run(context.Background()))

	var types []string
	for _, e := range sub.events {
		types = append(types, e.Type)
	}
	want := []string{
		"lathe", "lathe", "lathe", "alarm", "alarm",
		"lathe", "lathe", "lathe", "alarm", "alarm",
	}
	if diff := cmp.Diff(want, types); diff != "" {
		t.Fatalf("submission order mismatch (-want +got):\n%s", diff)
	}

	for i, e := range sub.events {
		day := start
		if i >= 5 {
			day = start.AddDate(0, 0, 1)
		}
		lo := day.UnixMilli()
		assert.GreaterOrEqual(t, e.EpochMillis, lo, "event %d", i)
		assert.LessOrEqual(t, e.EpochMillis, lo+generator.MillisPerDay-1, "event %d", i)
	}

	rep := r.Report()
	assert.Equal(t, 2, rep.DaysCompleted)
	assert.Equal(t, int64(10), rep.Submitted)
	assert.Equal(t, int64(6), rep.Types["lathe"].Generated)
	assert.Equal(t, int64(4), rep.Types["alarm"].Accepted)
}

func TestRun_CycleContinuesAcrossDays(t *testing.T) {
	sub := &recordingSubmitter{}
	r, err := New(Config{
		Start:       start,
		Days:        3,
		Definitions: []*generator.Definition{mustDef(t, "mongo", []string{"on", "off"}, 1)},
		Submitter:   sub,
	})
	require.NoError(t, err)
	require.NoError(t, r.Run(context.Background()))

	var values []string
	for _, e := range sub.events {
		values = append(values, e.Value)
	}
	assert.Equal(t, []string{"off", "on", "off"}, values)
}

func TestRun_Non2xxContinues(t *testing.T) {
	sub := &recordingSubmitter{
		statuses: func(n int, _ event.Event) (int, error) {
			if n%2 == 0 {
				return http.StatusBadRequest, nil
			}
			return http.StatusCreated, nil
		},
	}
	var out bytes.Buffer
	r, err := New(Config{
		Start:       start,
		Days:        1,
		Definitions: []*generator.Definition{mustDef(t, "table_saw", []string{"on", "off"}, 4)},
		Submitter:   sub,
		Out:         &out,
	})
	require.NoError(t, err)
	require.NoError(t, r.Run(context.Background()))

	assert.Len(t, sub.events, 4)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasSuffix(lines[0], " - 201"), lines[0])
	assert.True(t, strings.HasSuffix(lines[1], " - 400"), lines[1])

	payload, _ := json.Marshal(sub.events[0])
	assert.Equal(t, fmt.Sprintf("%s - 201", payload), lines[0])

	rep := r.Report()
	assert.Equal(t, int64(2), rep.Rejected)
	assert.Equal(t, int64(2), rep.StatusClasses["4xx"])
	assert.False(t, rep.Aborted)
}

func TestRun_TransportErrorAborts(t *testing.T) {
	boom := errors.New("connection refused")
	sub := &recordingSubmitter{
		statuses: func(n int, _ event.Event) (int, error) {
			if n == 3 {
				return 0, fmt.Errorf("%w: %w", ingest.ErrTransport, boom)
			}
			return http.StatusCreated, nil
		},
	}
	var out bytes.Buffer
	r, err := New(Config{
		Start:       start,
		Days:        5,
		Definitions: []*generator.Definition{mustDef(t, "shop_door", []string{"open", "closed"}, 20)},
		Submitter:   sub,
		Out:         &out,
	})
	require.NoError(t, err)

	err = r.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAborted)
	assert.ErrorIs(t, err, ingest.ErrTransport)
	assert.ErrorIs(t, err, boom)

	assert.Len(t, sub.events, 3)
	assert.Equal(t, 2, strings.Count(out.String(), "\n"), "prior output stays")
	assert.True(t, r.Report().Aborted)
	assert.Equal(t, 0, r.Report().DaysCompleted)
}

func TestRun_CancelledContext(t *testing.T) {
	sub := &recordingSubmitter{}
	r, err := New(Config{
		Start:       start,
		Days:        1,
		Definitions: []*generator.Definition{mustDef(t, "lathe", []string{"on", "off"}, 8)},
		Submitter:   sub,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = r.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sub.events)
}

func TestRun_AgainstHTTPServer(t *testing.T) {
	var mu sync.Mutex
	var received []event.Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var e event.Event
		if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	sub := ingest.NewHTTPSubmitterWithClient(srv.URL+"/event/events", srv.Client())
	r, err := New(Config{
		Start:         start,
		Days:          1,
		Definitions:   []*generator.Definition{mustDef(t, "front_door", []string{"open", "closed"}, 5)},
		Generator:     generator.NewSeeded(1),
		Submitter:     sub,
		RatePerSecond: 1000,
	})
	require.NoError(t, err)
	require.NoError(t, r.Run(context.Background()))
	srv.CloseClientConnections()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 5)
	assert.Equal(t, "closed", received[0].Value)
	assert.Equal(t, "open", received[1].Value)
}

func TestNew_RejectsBadConfig(t *testing.T) {
	_, err := New(Config{Days: -1, Submitter: &recordingSubmitter{}})
	assert.Error(t, err)

	_, err = New(Config{Days: 1})
	assert.Error(t, err)

	_, err = New(Config{Days: 1, Submitter: &recordingSubmitter{}, Definitions: []*generator.Definition{{Name: "x"}}})
	assert.ErrorIs(t, err, generator.ErrInvalidDefinition)
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "run.json")
	r, err := New(Config{
		Start:       start,
		Days:        1,
		Definitions: []*generator.Definition{mustDef(t, "alarm", []string{"enabled", "disabled"}, 6)},
		Submitter:   ingest.DryRunSubmitter{},
		RunID:       "run-42",
		Seed:        42,
	})
	require.NoError(t, err)
	require.NoError(t, r.Run(context.Background()))

	require.NoError(t, WriteReport(path, r.Report()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got Report
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "run-42", got.RunID)
	assert.Equal(t, uint64(42), got.Seed)
	assert.Equal(t, int64(6), got.Submitted)
	assert.Equal(t, int64(6), got.Types["alarm"].Accepted)
}
