package app

import (
	"strings"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Command
	}{
		{"empty defaults to serve", []string{}, CommandServe},
		{"serve", []string{"serve"}, CommandServe},
		{"worker", []string{"worker"}, CommandWorker},
		{"migrate", []string{"migrate"}, CommandMigrate},
		{"seed", []string{"seed"}, CommandSeed},
		{"replay", []string{"replay", "script.yaml"}, CommandReplay},
		{"healthcheck", []string{"healthcheck"}, CommandHealthcheck},
		{"unknown defaults to serve", []string{"unknown"}, CommandServe},
		{"ignores extra args", []string{"worker", "--flag", "value"}, CommandWorker},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseCommand(tt.args); got != tt.want {
				t.Errorf("ParseCommand(%v) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

func TestCommandString(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{CommandServe, "serve"},
		{CommandWorker, "worker"},
		{CommandMigrate, "migrate"},
		{CommandSeed, "seed"},
		{CommandReplay, "replay"},
		{CommandHealthcheck, "healthcheck"},
	}

	for _, tt := range tests {
		if got := string(tt.cmd); got != tt.want {
			t.Errorf("Command(%q) string = %q, want %q", tt.cmd, got, tt.want)
		}
	}
}

func TestCommandNeedsDatabase(t *testing.T) {
	for cmd, want := range map[Command]bool{
		CommandServe:       true,
		CommandWorker:      true,
		CommandMigrate:     true,
		CommandSeed:        true,
		CommandReplay:      false,
		CommandHealthcheck: false,
		Command("other"):   true,
	} {
		if got := cmd.NeedsDatabase(); got != want {
			t.Errorf("%q.NeedsDatabase() = %v, want %v", cmd, got, want)
		}
	}
}

func TestUsage(t *testing.T) {
	usage := Usage()
	for _, want := range []string{"usage: newsswiper", "serve", "worker", "migrate", "seed", "replay <script.yaml>", "healthcheck"} {
		if !strings.Contains(usage, want) {
			t.Errorf("Usage() should mention %q:\n%s", want, usage)
		}
	}
}
