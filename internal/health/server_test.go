package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHandleHealth(t *testing.T) {
	s := New(0)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	var resp Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %q", resp.Status)
	}
}

func TestHandleReadyAllHealthy(t *testing.T) {
	s := New(0)
	s.RegisterChecker("cloudflare-main", func(context.Context) error { return nil })
	s.RegisterChecker("internal-dns", func(context.Context) error { return nil })

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	var resp Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if resp.Status != StatusReady {
		t.Errorf("status = %q", resp.Status)
	}
	if len(resp.Components) != 2 {
		t.Errorf("components = %d", len(resp.Components))
	}
}

func TestHandleReadyUnhealthyComponent(t *testing.T) {
	s := New(0)
	s.RegisterChecker("good", func(context.Context) error { return nil })
	s.RegisterChecker("bad", func(context.Context) error { return errors.New("credentials rejected") })

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	var resp Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if resp.Status != StatusNotReady {
		t.Errorf("status = %q", resp.Status)
	}

	found := false
	for _, c := range resp.Components {
		if c.Name == "bad" {
			found = true
			if c.Healthy || c.Error == "" {
				t.Errorf("bad component = %+v", c)
			}
		}
	}
	if !found {
		t.Error("bad component missing from response")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := New(0)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("expected metrics exposition output")
	}
}
