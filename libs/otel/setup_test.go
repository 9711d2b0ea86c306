package otelx

import (
	"context"
	"testing"
)

func TestSampleRatio(t *testing.T) {
	cases := map[string]float64{
		"0.25": 0.25,
		"1":    1,
		"0":    0,
		"1.5":  1,
		"-1":   1,
		"abc":  1,
	}
	for in, want := range cases {
		if got := sampleRatio(in); got != want {
			t.Fatalf("sampleRatio(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetupDisabledIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{Enabled: false, ServiceName: "booking-service"})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	if parent, _ := TraceContextStrings(context.Background()); parent != "" {
		t.Fatalf("expected empty traceparent without a span, got %q", parent)
	}
}
