package httputil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(nil)

	if client == nil {
		t.Fatal("NewClient returned nil")
	}

	if client.Timeout != DefaultTimeout {
		t.Errorf("expected timeout %v, got %v", DefaultTimeout, client.Timeout)
	}

	uaTransport, ok := client.Transport.(*userAgentTransport)
	if !ok {
		t.Fatal("expected transport to be *userAgentTransport")
	}

	if uaTransport.userAgent != DefaultUserAgent {
		t.Errorf("expected userAgent %q, got %q", DefaultUserAgent, uaTransport.userAgent)
	}
}

func TestNewClient_ZeroTimeout_UsesDefault(t *testing.T) {
	client := NewClient(&ClientConfig{Timeout: 0})

	if client.Timeout != DefaultTimeout {
		t.Errorf("expected default timeout %v for zero value, got %v", DefaultTimeout, client.Timeout)
	}
}

func TestNewClient_CustomTimeout(t *testing.T) {
	client := NewClient(&ClientConfig{Timeout: 60 * time.Second})

	if client.Timeout != 60*time.Second {
		t.Errorf("expected timeout 60s, got %v", client.Timeout)
	}
}

func TestNewClient_TLSSkipVerify(t *testing.T) {
	client := NewClient(&ClientConfig{TLSSkipVerify: true})

	uaTransport, ok := client.Transport.(*userAgentTransport)
	if !ok {
		t.Fatal("expected transport to be *userAgentTransport")
	}

	transport, ok := uaTransport.base.(*http.Transport)
	if !ok {
		t.Fatal("expected base transport to be *http.Transport")
	}

	if transport.TLSClientConfig == nil || !transport.TLSClientConfig.InsecureSkipVerify {
		t.Error("expected InsecureSkipVerify to be true")
	}
}

func TestNewClient_UserAgentAppliedToRequests(t *testing.T) {
	var receivedUserAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedUserAgent = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(&ClientConfig{UserAgent: "test-syncer/1.2.3"})

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if receivedUserAgent != "test-syncer/1.2.3" {
		t.Errorf("expected User-Agent %q, got %q", "test-syncer/1.2.3", receivedUserAgent)
	}
}

func TestDefaultClient(t *testing.T) {
	client := DefaultClient()

	if client == nil {
		t.Fatal("DefaultClient returned nil")
	}

	if client.Timeout != DefaultTimeout {
		t.Errorf("expected timeout %v, got %v", DefaultTimeout, client.Timeout)
	}
}
