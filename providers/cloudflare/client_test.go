package cloudflare

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"gitlab.bluewillows.net/root/dns-syncer/pkg/provider"
)

// successResponse creates a successful Cloudflare API response.
func successResponse(result interface{}) map[string]interface{} {
	return map[string]interface{}{
		"success":  true,
		"errors":   []interface{}{},
		"messages": []interface{}{},
		"result":   result,
	}
}

// errorResponse creates an error Cloudflare API response.
func errorResponse(code int, message string) map[string]interface{} {
	return map[string]interface{}{
		"success": false,
		"errors": []map[string]interface{}{
			{"code": code, "message": message},
		},
		"messages": []interface{}{},
		"result":   nil,
	}
}

func tokenClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	c, err := NewClient(provider.APIToken{Token: "test-token"}, WithAPIEndpoint(endpoint))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestNewClientAuthVariants(t *testing.T) {
	c, err := NewClient(provider.APIToken{Token: "tok"})
	if err != nil {
		t.Fatalf("api_token: %v", err)
	}
	if c.apiEndpoint != DefaultAPIEndpoint {
		t.Errorf("apiEndpoint = %s", c.apiEndpoint)
	}

	if _, err := NewClient(provider.APIKey{Email: "ops@example.org", Key: "k"}); err != nil {
		t.Errorf("api_key: %v", err)
	}

	if _, err := NewClient(provider.APIToken{}); err == nil {
		t.Error("expected error for empty token")
	}
	if _, err := NewClient(provider.APIKey{Email: "ops@example.org"}); err == nil {
		t.Error("expected error for api_key without key")
	}
	if _, err := NewClient(provider.TSIG{KeyName: "k", Secret: "s"}); err == nil {
		t.Error("expected error for unsupported auth variant")
	}
	if _, err := NewClient(nil); err == nil {
		t.Error("expected error for nil auth")
	}
}

func TestVerifyAuthTokenHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user/tokens/verify" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(successResponse(map[string]interface{}{"status": "active"}))
	}))
	defer server.Close()

	if err := tokenClient(t, server.URL).VerifyAuth(context.Background()); err != nil {
		t.Errorf("VerifyAuth: %v", err)
	}
}

func TestVerifyAuthKeyHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("X-Auth-Email") != "ops@example.org" || r.Header.Get("X-Auth-Key") != "global-key" {
			t.Errorf("auth headers = %q / %q", r.Header.Get("X-Auth-Email"), r.Header.Get("X-Auth-Key"))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(successResponse(map[string]interface{}{"id": "user-1"}))
	}))
	defer server.Close()

	c, err := NewClient(provider.APIKey{Email: "ops@example.org", Key: "global-key"}, WithAPIEndpoint(server.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := c.VerifyAuth(context.Background()); err != nil {
		t.Errorf("VerifyAuth: %v", err)
	}
}

func TestVerifyAuthRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(errorResponse(1000, "Invalid API token"))
	}))
	defer server.Close()

	err := tokenClient(t, server.URL).VerifyAuth(context.Background())
	if !provider.IsUnauthorized(err) {
		t.Errorf("expected unauthorized sentinel, got %v", err)
	}
}

func TestZoneIDLookupAndCache(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/zones" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("name") == "example.org" {
			_ = json.NewEncoder(w).Encode(successResponse([]map[string]interface{}{
				{"id": "zone-123", "name": "example.org", "status": "active"},
			}))
			return
		}
		_ = json.NewEncoder(w).Encode(successResponse([]map[string]interface{}{}))
	}))
	defer server.Close()

	c := tokenClient(t, server.URL)

	for i := 0; i < 3; i++ {
		id, err := c.ZoneID(context.Background(), "example.org")
		if err != nil {
			t.Fatalf("ZoneID: %v", err)
		}
		if id != "zone-123" {
			t.Errorf("id = %q", id)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("API calls = %d, want 1 (cached)", got)
	}

	_, err := c.ZoneID(context.Background(), "missing.example")
	if !provider.IsZoneNotFound(err) {
		t.Errorf("expected zone-not-found sentinel, got %v", err)
	}
}

func TestListRecordsQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/zones/zone-123/dns_records" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("type") != "A" || q.Get("name") != "www.example.org" {
			t.Errorf("query = %v", q)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(successResponse([]map[string]interface{}{
			{"id": "rec-1", "type": "A", "name": "www.example.org", "content": "192.0.2.1", "ttl": 300},
		}))
	}))
	defer server.Close()

	records, err := tokenClient(t, server.URL).ListRecords(context.Background(), "zone-123", "A", "www.example.org")
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(records) != 1 || records[0].ID != "rec-1" || records[0].Content != "192.0.2.1" {
		t.Errorf("records = %+v", records)
	}
}

func TestWriteMethods(t *testing.T) {
	type call struct {
		method string
		path   string
	}
	var calls []call
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, call{r.Method, r.URL.Path})
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			var req recordRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decoding body: %v", err)
			}
			if req.Type != "A" || req.Content != "192.0.2.1" {
				t.Errorf("body = %+v", req)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(successResponse(map[string]interface{}{"id": "rec-1"}))
	}))
	defer server.Close()

	c := tokenClient(t, server.URL)
	rec := recordRequest{Type: "A", Name: "www.example.org", Content: "192.0.2.1", TTL: 300}

	if err := c.CreateRecord(context.Background(), "zone-123", rec); err != nil {
		t.Errorf("CreateRecord: %v", err)
	}
	if err := c.UpdateRecord(context.Background(), "zone-123", "rec-1", rec); err != nil {
		t.Errorf("UpdateRecord: %v", err)
	}
	if err := c.DeleteRecord(context.Background(), "zone-123", "rec-1"); err != nil {
		t.Errorf("DeleteRecord: %v", err)
	}

	want := []call{
		{http.MethodPost, "/zones/zone-123/dns_records"},
		{http.MethodPut, "/zones/zone-123/dns_records/rec-1"},
		{http.MethodDelete, "/zones/zone-123/dns_records/rec-1"},
	}
	if len(calls) != len(want) {
		t.Fatalf("calls = %+v", calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %+v, want %+v", i, calls[i], want[i])
		}
	}
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		class  provider.Class
	}{
		{"rate limited", http.StatusTooManyRequests, provider.ClassTransient},
		{"server error", http.StatusBadGateway, provider.ClassTransient},
		{"bad request", http.StatusBadRequest, provider.ClassPermanent},
		{"forbidden", http.StatusForbidden, provider.ClassAuth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := tokenClient(t, server.URL).ListRecords(context.Background(), "zone-123", "A", "www.example.org")
			if err == nil {
				t.Fatal("expected error")
			}
			if got := provider.Classify(err); got != tt.class {
				t.Errorf("class = %s, want %s", got, tt.class)
			}
		})
	}
}
