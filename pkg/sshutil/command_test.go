package sshutil

import (
	"context"
	"errors"
	"testing"
)

func disconnectedClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(&Config{Host: "dns.internal", User: "admin", Password: "p"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestCommandRunnerNotConnected(t *testing.T) {
	runner := NewSSHCommandRunner(disconnectedClient(t))

	if err := runner.Run(context.Background(), "true"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Run = %v, want ErrNotConnected", err)
	}
	if _, err := runner.RunWithOutput(context.Background(), "true"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("RunWithOutput = %v, want ErrNotConnected", err)
	}
}

func TestExtractExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"process exited format", errors.New("Process exited with status 3"), 3},
		{"exit status format", errors.New("exit status 127"), 127},
		{"unrelated error", errors.New("session channel closed"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractExitCode(tt.err); got != tt.want {
				t.Errorf("extractExitCode = %d, want %d", got, tt.want)
			}
		})
	}
}
