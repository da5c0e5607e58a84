package config

import (
	"testing"
	"time"
)

func TestHTTPAddr(t *testing.T) {
	cases := map[string]string{
		"8080":  ":8080",
		":9000": ":9000",
		"":      ":8080",
	}
	for port, want := range cases {
		cfg := Config{Port: port}
		if got := cfg.HTTPAddr(); got != want {
			t.Fatalf("HTTPAddr(%q) = %q, want %q", port, got, want)
		}
	}
}

func TestSplitAndTrim(t *testing.T) {
	got := splitAndTrim(" https://a.example , ,https://b.example")
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Fatalf("unexpected origins: %v", got)
	}
	if splitAndTrim("") != nil {
		t.Fatal("expected nil for empty input")
	}
}

func TestParseDurationFallsBack(t *testing.T) {
	if d := parseDuration("not-a-duration", "30s"); d != 30*time.Second {
		t.Fatalf("expected fallback 30s, got %s", d)
	}
	if d := parseDuration("2m", "30s"); d != 2*time.Minute {
		t.Fatalf("expected 2m, got %s", d)
	}
}
