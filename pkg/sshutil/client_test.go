package sshutil

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	client, err := NewClient(&Config{Host: "dns.internal", User: "admin", Password: "p"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if client.IsConnected() {
		t.Error("new client must not report connected")
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := NewClient(&Config{Host: "dns.internal"}); err == nil {
		t.Error("expected error for invalid config")
	}
}

func TestGetConnectionNotConnected(t *testing.T) {
	client, err := NewClient(&Config{Host: "dns.internal", User: "admin", Password: "p"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if _, err := client.GetConnection(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("GetConnection = %v, want ErrNotConnected", err)
	}
}

func TestCloseNotConnected(t *testing.T) {
	client, err := NewClient(&Config{Host: "dns.internal", User: "admin", Password: "p"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close on disconnected client: %v", err)
	}
}

func TestBuildAuthMethods(t *testing.T) {
	t.Run("password only", func(t *testing.T) {
		client, _ := NewClient(&Config{Host: "h", User: "u", Password: "p"})
		methods, err := client.buildAuthMethods()
		if err != nil {
			t.Fatalf("buildAuthMethods: %v", err)
		}
		if len(methods) != 1 {
			t.Errorf("methods = %d, want 1", len(methods))
		}
	})

	t.Run("missing key file", func(t *testing.T) {
		client, _ := NewClient(&Config{Host: "h", User: "u", KeyFile: "/nonexistent/key"})
		if _, err := client.buildAuthMethods(); err == nil {
			t.Error("expected error for unreadable key file")
		}
	})

	t.Run("garbage key data", func(t *testing.T) {
		client, _ := NewClient(&Config{Host: "h", User: "u", KeyData: "not a pem block"})
		if _, err := client.buildAuthMethods(); err == nil {
			t.Error("expected error for unparseable key data")
		}
	})
}

func TestConnectUnreachableHost(t *testing.T) {
	client, err := NewClient(&Config{
		Host:     "192.0.2.1", // TEST-NET, never routable
		User:     "admin",
		Password: "p",
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := client.Connect(ctx); err == nil {
		t.Error("expected connection failure")
		_ = client.Close()
	}
}

func TestIsAuthError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("ssh: unable to authenticate, attempted methods [none publickey]"), true},
		{errors.New("permission denied (publickey)"), true},
		{errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		if got := isAuthError(tt.err); got != tt.want {
			t.Errorf("isAuthError(%v) = %t, want %t", tt.err, got, tt.want)
		}
	}
}
