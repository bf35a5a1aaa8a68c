package main

import (
	"errors"
	"fmt"
	"testing"

	werrors "github.com/atharvkhisti/WebReckon/internal/errors"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", werrors.NewInvalidInputError("", "missing target URL"), 2},
		{"cancelled", werrors.NewCancelledError("https://example.com", "navigate", nil), 130},
		{"wrapped cancel", fmt.Errorf("run: %w", werrors.NewCancelledError("", "navigate", nil)), 130},
		{"fatal", werrors.NewSessionFatalError("https://example.com", "launch", "browser failed to launch", nil), 1},
		{"plain", errors.New("boom"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseHeaders(t *testing.T) {
	got, err := parseHeaders([]string{"Authorization: Bearer abc", "X-Trace:1", "X-Empty:"})
	if err != nil {
		t.Fatalf("parseHeaders() error = %v", err)
	}
	if got["Authorization"] != "Bearer abc" || got["X-Trace"] != "1" {
		t.Errorf("headers = %v", got)
	}
	if v, ok := got["X-Empty"]; !ok || v != "" {
		t.Errorf("X-Empty = %q, %v", v, ok)
	}

	for _, bad := range []string{"no-colon", ": value"} {
		if _, err := parseHeaders([]string{bad}); err == nil {
			t.Errorf("parseHeaders(%q) should fail", bad)
		}
	}
}

func TestLooksLikeFile(t *testing.T) {
	tests := []struct {
		ref  string
		want bool
	}{
		{"results/apis-2024-05-01T12-00-00-000Z.json", true},
		{"apis-2024-05-01T12-00-00-000Z.json", true},
		{"20240501T120000.000000000Z", false},
	}
	for _, tt := range tests {
		if got := looksLikeFile(tt.ref); got != tt.want {
			t.Errorf("looksLikeFile(%q) = %v, want %v", tt.ref, got, tt.want)
		}
	}
}
