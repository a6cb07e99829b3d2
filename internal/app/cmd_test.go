package app

import (
	"errors"
	"strings"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Command
	}{
		{"no args defaults to serve", nil, CommandServe},
		{"serve", []string{"serve"}, CommandServe},
		{"worker", []string{"worker"}, CommandWorker},
		{"migrate", []string{"migrate"}, CommandMigrate},
		{"healthcheck", []string{"healthcheck"}, CommandHealthcheck},
		{"extra args ignored", []string{"worker", "--flag", "value"}, CommandWorker},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.args)
			if err != nil {
				t.Fatalf("ParseCommand(%v) error = %v", tt.args, err)
			}
			if got != tt.want {
				t.Errorf("ParseCommand(%v) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

func TestParseCommand_Unknown_ReturnsUsage(t *testing.T) {
	for _, arg := range []string{"unknown", "Serve", "--help"} {
		t.Run(arg, func(t *testing.T) {
			_, err := ParseCommand([]string{arg})
			if !errors.Is(err, ErrUnknownCommand) {
				t.Fatalf("err = %v, want ErrUnknownCommand", err)
			}
			if !strings.Contains(err.Error(), Usage()) {
				t.Errorf("error %q should include usage", err.Error())
			}
		})
	}
}

func TestUsage_ListsEveryCommand(t *testing.T) {
	usage := Usage()
	for _, c := range commands {
		if !strings.Contains(usage, string(c)) {
			t.Errorf("Usage() = %q, missing %q", usage, c)
		}
	}
}
