// SPDX-License-Identifier: MIT

// Package ingest delivers generated events to an event-ingestion endpoint.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/novalabs/eventsim/internal/event"
	"github.com/novalabs/eventsim/internal/platform/httpx"
	platformnet "github.com/novalabs/eventsim/internal/platform/net"
)

// ErrTransport marks a submission that produced no HTTP status code.
var ErrTransport = errors.New("event submission transport failure")

// maxDrainBytes bounds how much of a response body is read before the connection is reused.
const maxDrainBytes = 64 << 10

// Result is the outcome of one submission.
type Result struct {
	// Payload is the exact JSON body that was sent.
	Payload []byte
	// Status is the HTTP status code, 0 if none was received.
	Status   int
	Duration time.Duration
}

// OK reports whether the endpoint answered with a 2xx status.
func (r Result) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Submitter sends a single event and reports the resulting status.
type Submitter interface {
	Submit(ctx context.Context, e event.Event) (Result, error)
}

// HTTPSubmitter POSTs events as JSON to a fixed endpoint.
type HTTPSubmitter struct {
	endpoint string
	client   *http.Client
}

// NewHTTPSubmitter builds a submitter using a traced client with the given timeout.
func NewHTTPSubmitter(endpoint string, timeout time.Duration) *HTTPSubmitter {
	return NewHTTPSubmitterWithClient(endpoint, httpx.NewTracedClient(timeout))
}

// NewHTTPSubmitterWithClient builds a submitter around an existing client.
func NewHTTPSubmitterWithClient(endpoint string, client *http.Client) *HTTPSubmitter {
	if client == nil {
		client = httpx.NewClient(0)
	}
	return &HTTPSubmitter{endpoint: endpoint, client: client}
}

// Endpoint returns the target URL.
func (s *HTTPSubmitter) Endpoint() string { return s.endpoint }

// Submit encodes e, POSTs it and returns the status. Non-2xx statuses are not errors;
// only failures that prevent a status from being received are, and those wrap ErrTransport.
func (s *HTTPSubmitter) Submit(ctx context.Context, e event.Event) (Result, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return Result{}, fmt.Errorf("encode event: %w", err)
	}
	res := Result{Payload: payload}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return res, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	res.Duration = time.Since(start)
	if err != nil {
		return res, fmt.Errorf("%w: post %s: %w", ErrTransport, platformnet.SanitizeURL(s.endpoint), err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	res.Status = resp.StatusCode
	return res, nil
}

// DryRunSubmitter encodes events without sending them and reports a fixed status.
type DryRunSubmitter struct {
	Status int
}

// Submit implements Submitter.
func (d DryRunSubmitter) Submit(_ context.Context, e event.Event) (Result, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return Result{}, fmt.Errorf("encode event: %w", err)
	}
	status := d.Status
	if status == 0 {
		status = http.StatusCreated
	}
	return Result{Payload: payload, Status: status}, nil
}
