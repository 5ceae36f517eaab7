// SPDX-License-Identifier: MIT

package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{Enabled: false, ServiceName: "eventgen"})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if provider.tp != nil {
		t.Error("Expected noop provider (tp == nil)")
	}

	_, span := otel.Tracer("test").Start(context.Background(), "noop-check")
	if span.IsRecording() {
		t.Error("Expected noop tracer span to be non-recording")
	}
	span.End()
}

func TestNewProvider_InvalidExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{
		Enabled:      true,
		ServiceName:  "eventgen",
		ExporterType: "invalid",
	})
	if err == nil {
		t.Fatal("Expected error for invalid exporter type")
	}
	want := "unsupported exporter type: invalid (supported: grpc, http)"
	if err.Error() != want {
		t.Errorf("Expected error message %q, got %q", want, err.Error())
	}
}

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{rate: 1.0, want: sdktrace.AlwaysSample().Description()},
		{rate: 2.0, want: sdktrace.AlwaysSample().Description()},
		{rate: 0.0, want: sdktrace.NeverSample().Description()},
		{rate: 0.25, want: sdktrace.TraceIDRatioBased(0.25).Description()},
	}
	for _, tt := range tests {
		if got := samplerFor(tt.rate).Description(); got != tt.want {
			t.Errorf("samplerFor(%v) = %q, want %q", tt.rate, got, tt.want)
		}
	}
}

func TestProvider_ShutdownNoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := (&Provider{}).Shutdown(ctx); err != nil {
		t.Errorf("Expected no error on noop shutdown, got: %v", err)
	}
}
