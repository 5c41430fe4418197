package main

import (
	"testing"
)

func TestClip(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short string unchanged", "abc", 10, "abc"},
		{"exact length unchanged", "abcde", 5, "abcde"},
		{"long string clipped", "abcdefghij", 6, "abc..."},
		{"tiny max hard cut", "abcdef", 2, "ab"},
		{"newlines collapse to spaces", "def act(observation, state):\n    return 'C', state", 38, "def act(observation, state): return..."},
		{"runs of whitespace collapse", "a \t b\n\nc", 10, "a b c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := clip(tt.in, tt.max); got != tt.want {
				t.Errorf("clip(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
		})
	}
}

func TestParseID(t *testing.T) {
	id, err := parseID("42", "bot id")
	if err != nil {
		t.Fatalf("parseID(42) error: %v", err)
	}
	if id != 42 {
		t.Errorf("parseID(42) = %d, want 42", id)
	}

	if _, err := parseID("abc", "bot id"); err == nil {
		t.Error("parseID(abc) should fail")
	}
	if _, err := parseID("", "match id"); err == nil {
		t.Error("parseID of empty string should fail")
	}
}

func TestResolvedServer(t *testing.T) {
	// Default with no flag and no env.
	if got := resolvedServer(); got != "http://localhost:8080" {
		t.Errorf("resolvedServer() = %q, want localhost default", got)
	}

	// Env var wins over the default.
	t.Setenv("ARENA_SERVER", "http://example.test:9000")
	if got := resolvedServer(); got != "http://example.test:9000" {
		t.Errorf("resolvedServer() with env = %q, want env value", got)
	}

	// An explicit flag wins over the env var.
	if err := rootCmd.PersistentFlags().Set("server", "http://flagged:1234"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	defer func() {
		_ = rootCmd.PersistentFlags().Set("server", "http://localhost:8080")
	}()
	if got := resolvedServer(); got != "http://flagged:1234" {
		t.Errorf("resolvedServer() with flag = %q, want flag value", got)
	}
}
