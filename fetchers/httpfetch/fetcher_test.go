package httpfetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gitlab.bluewillows.net/root/dns-syncer/pkg/fetcher"
)

const traceBodyV4 = `fl=490f68
h=1.1.1.1
ip=155.156.157.158
ts=1743642238.374
visit_scheme=https
uag=
colo=SYD
loc=AU
warp=off
`

const traceBodyV6 = `fl=465f162
h=[2606:4700:4700::1111]
ip=2604:5006:8:1d0::4b:d000
ts=1744159940.969
visit_scheme=https
colo=SJC
loc=US
`

func TestParseBody(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{"trace v4", traceBodyV4, "155.156.157.158", false},
		{"trace v6", traceBodyV6, "2604:5006:8:1d0::4b:d000", false},
		{"bare body", "198.51.100.4\n", "198.51.100.4", false},
		{"bare body v6", "2001:db8::1", "2001:db8::1", false},
		{"trace without ip line", "fl=490f68\nh=1.1.1.1\n", "", true},
		{"trace with empty ip", "ip=\nloc=AU\n", "", true},
		{"empty body", "   \n", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBody(tt.body)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseBody: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseBody = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFetchIP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(traceBodyV4))
	}))
	defer server.Close()

	f, err := New(Config{Name: "main", URLv4: server.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ip, err := f.FetchIP(context.Background(), fetcher.IPv4)
	if err != nil {
		t.Fatalf("FetchIP: %v", err)
	}
	if ip != "155.156.157.158" {
		t.Errorf("ip = %q", ip)
	}
}

func TestFetchIPBareBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("198.51.100.4\n"))
	}))
	defer server.Close()

	f, err := New(Config{Name: "main", URLv4: server.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ip, err := f.FetchIP(context.Background(), fetcher.IPv4)
	if err != nil {
		t.Fatalf("FetchIP: %v", err)
	}
	if ip != "198.51.100.4" {
		t.Errorf("ip = %q", ip)
	}
}

func TestFetchIPFamilyMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("198.51.100.4"))
	}))
	defer server.Close()

	f, err := New(Config{Name: "main", URLv6: server.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = f.FetchIP(context.Background(), fetcher.IPv6)
	if err == nil || !strings.Contains(err.Error(), "IPv6") {
		t.Errorf("expected family mismatch error, got %v", err)
	}
}

func TestFetchIPNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	f, err := New(Config{Name: "main", URLv4: server.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := f.FetchIP(context.Background(), fetcher.IPv4); err == nil {
		t.Error("expected error for non-200 status")
	}
}

func TestFetchIPGarbageBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not an address"))
	}))
	defer server.Close()

	f, err := New(Config{Name: "main", URLv4: server.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := f.FetchIP(context.Background(), fetcher.IPv4); err == nil {
		t.Error("expected parse error for garbage body")
	}
}

func TestNewDefaults(t *testing.T) {
	f, err := New(Config{Name: "main"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if f.urlV4 != DefaultURLv4 || f.urlV6 != DefaultURLv6 {
		t.Errorf("unexpected default URLs: %q %q", f.urlV4, f.urlV6)
	}
	if f.Alive() != DefaultAlive {
		t.Errorf("Alive() = %v, want %v", f.Alive(), DefaultAlive)
	}
	if f.Type() != TypeName || f.Name() != "main" {
		t.Errorf("unexpected identity: %s/%s", f.Type(), f.Name())
	}
}

func TestNewRequiresName(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for missing name")
	}
}

func TestNewZeroAliveUsesDefault(t *testing.T) {
	f, err := New(Config{Name: "main", Alive: -1 * time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if f.Alive() != DefaultAlive {
		t.Errorf("Alive() = %v", f.Alive())
	}
}
