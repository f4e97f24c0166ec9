package tracing

import (
	"context"
	"testing"

	"github.com/nextlevelbuilder/chatclaw/internal/config"
)

func TestSetupDisabledIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TelemetryConfig{}, "test")
	if err != nil {
		t.Fatal(err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("no-op shutdown returned %v", err)
	}
}

func TestSetupEmptyEndpointFallsBackToExporterDefault(t *testing.T) {
	cfg := config.TelemetryConfig{Enabled: true, Protocol: "http", Insecure: true}
	shutdown, err := Setup(context.Background(), cfg, "test")
	if err != nil {
		t.Fatalf("Setup with empty endpoint: %v", err)
	}
	// No spans were recorded, so shutdown has nothing to flush and must
	// not try to reach an endpoint.
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestSetupRejectsUnknownProtocol(t *testing.T) {
	cfg := config.TelemetryConfig{Enabled: true, Protocol: "udp"}
	if _, err := Setup(context.Background(), cfg, "test"); err == nil {
		t.Fatal("expected error for unknown protocol")
	}
}
