package tracing

import (
	"context"
	"testing"
)

func TestSampleRatio(t *testing.T) {
	cases := map[string]float64{
		"":     1,
		"0.25": 0.25,
		"0":    0,
		"2":    1,
		"-1":   1,
		"abc":  1,
	}
	for in, want := range cases {
		if got := sampleRatio(in); got != want {
			t.Errorf("sampleRatio(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	shutdown, err := Init(context.Background(), nil, "tasktracker", "test")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	_, span := Start(context.Background(), "noop", "tenant-1")
	span.End()
}
