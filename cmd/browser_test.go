package main

import (
	"strings"
	"testing"
)

func TestBrowserCommand(t *testing.T) {
	const consent = "https://accounts.spotify.com/authorize?client_id=id&state=abc"

	tests := []struct {
		goos string
		name string
	}{
		{"darwin", "open"},
		{"linux", "xdg-open"},
		{"freebsd", "xdg-open"},
		{"windows", "rundll32"},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			name, args, err := browserCommand(tt.goos, consent)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if name != tt.name {
				t.Errorf("expected %s, got %s", tt.name, name)
			}
			if len(args) == 0 || args[len(args)-1] != consent {
				t.Errorf("expected consent url as last argument, got %v", args)
			}
		})
	}

	t.Run("unsupported platform", func(t *testing.T) {
		_, _, err := browserCommand("plan9", consent)
		if err == nil || !strings.Contains(err.Error(), "plan9") {
			t.Errorf("expected unsupported platform error, got %v", err)
		}
	})
}
