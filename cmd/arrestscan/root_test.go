package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "arrestscan" {
			t.Errorf("expected use 'arrestscan', got %q", cmd.Use)
		}
	})

	t.Run("has version", func(t *testing.T) {
		t.Parallel()
		if cmd.Version == "" {
			t.Error("expected non-empty version")
		}
	})

	t.Run("has global flags", func(t *testing.T) {
		t.Parallel()
		flag := cmd.PersistentFlags().Lookup("verbose")
		if flag == nil {
			t.Fatal("expected verbose flag")
		}
		if flag.Shorthand != "v" {
			t.Errorf("expected shorthand 'v', got %q", flag.Shorthand)
		}
		if cmd.PersistentFlags().Lookup("log-json") == nil {
			t.Error("expected log-json flag")
		}
	})

	t.Run("has subcommands", func(t *testing.T) {
		t.Parallel()
		want := map[string]bool{"scrape": false, "history": false, "check": false, "init": false, "version": false}
		for _, sub := range cmd.Commands() {
			name := strings.Fields(sub.Use)[0]
			if _, ok := want[name]; ok {
				want[name] = true
			}
		}
		for name, found := range want {
			if !found {
				t.Errorf("expected %s subcommand", name)
			}
		}
	})

	t.Run("silences usage and errors", func(t *testing.T) {
		t.Parallel()
		if !cmd.SilenceUsage || !cmd.SilenceErrors {
			t.Error("expected SilenceUsage and SilenceErrors")
		}
	})
}

func TestSetupLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		args     []string
		wantJSON bool
		wantInfo bool
	}{
		{name: "default text at warn", args: nil},
		{name: "verbose", args: []string{"-v"}, wantInfo: true},
		{name: "json", args: []string{"--log-json", "-v"}, wantJSON: true, wantInfo: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cmd := NewRootCmd()
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatal(err)
			}
			var buf bytes.Buffer
			logger := setupLogger(cmd, &buf)
			logger.Info("hello", "token", "secret-value")

			got := buf.String()
			if (got != "") != tt.wantInfo {
				t.Fatalf("info logged = %v, want %v: %q", got != "", tt.wantInfo, got)
			}
			if tt.wantJSON && !strings.HasPrefix(got, "{") {
				t.Errorf("expected JSON output, got %q", got)
			}
			if strings.Contains(got, "secret-value") {
				t.Errorf("token leaked into log: %q", got)
			}
		})
	}
}
