package telemetry

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsEndpoint(t *testing.T) {
	ctx := context.Background()
	p, err := Setup(ctx, "padtour-test", "dev")
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(ctx) })

	in, err := NewInstruments(p.Meter())
	if err != nil {
		t.Fatalf("NewInstruments failed: %v", err)
	}
	in.RecordRequest(ctx, "synthesize", 120*time.Millisecond, nil)
	in.RecordRequest(ctx, "synthesize", 80*time.Millisecond, errors.New("boom"))
	in.RecordCache(ctx, "")
	in.RecordTransition(ctx, "tour", "playing")
	in.RecordChunk(ctx, "in")

	srv := httptest.NewServer(p.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET metrics failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, name := range []string{"genai_requests_total", "genai_failures_total", "activity_transitions_total"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("Expected %s in metrics output", name)
		}
	}
	if !strings.Contains(string(body), `operation="synthesize"`) {
		t.Error("Expected operation label in metrics output")
	}
}

func TestNilInstrumentsAreNoOps(t *testing.T) {
	var in *Instruments
	in.RecordRequest(context.Background(), "text", time.Second, nil)
	in.RecordCache(context.Background(), "L1-Memory")
	in.RecordTransition(context.Background(), "live", "connected")
	in.RecordChunk(context.Background(), "out")
}
