// Package httpfetch implements the http_fetcher type: public-IP
// discovery over plain HTTP endpoints such as Cloudflare's
// cdn-cgi/trace or bare-body services.
package httpfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"gitlab.bluewillows.net/root/dns-syncer/pkg/fetcher"
	"gitlab.bluewillows.net/root/dns-syncer/pkg/httputil"
)

// TypeName is the fetcher type as written in the configuration.
const TypeName = "http_fetcher"

// Default lookup endpoints. Cloudflare's trace endpoint answers on
// both families; the bracketed literal forces the IPv6 path.
const (
	DefaultURLv4 = "https://1.1.1.1/cdn-cgi/trace"
	DefaultURLv6 = "https://[2606:4700:4700::1111]/cdn-cgi/trace"

	// DefaultAlive is how long a fetched address stays fresh when the
	// configuration does not say otherwise.
	DefaultAlive = 5 * time.Minute

	// maxBodySize caps how much of a lookup response we read.
	maxBodySize = 64 * 1024
)

// Config configures one http_fetcher instance.
type Config struct {
	// Name is the fetcher instance name (unique key).
	Name string

	// URLv4 and URLv6 are the per-family lookup endpoints. Empty
	// values fall back to the Cloudflare trace defaults.
	URLv4 string
	URLv6 string

	// Alive is the cache lifetime for fetched addresses.
	Alive time.Duration

	// HTTPClient overrides the HTTP client. Defaults to the shared
	// client with its standard timeout.
	HTTPClient *http.Client
}

// Fetcher discovers the public IP by asking an HTTP endpoint.
type Fetcher struct {
	name   string
	urlV4  string
	urlV6  string
	alive  time.Duration
	client *http.Client
}

var _ fetcher.Fetcher = (*Fetcher)(nil)

// New creates an http_fetcher instance.
func New(cfg Config) (*Fetcher, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("fetcher name is required")
	}

	f := &Fetcher{
		name:   cfg.Name,
		urlV4:  cfg.URLv4,
		urlV6:  cfg.URLv6,
		alive:  cfg.Alive,
		client: cfg.HTTPClient,
	}
	if f.urlV4 == "" {
		f.urlV4 = DefaultURLv4
	}
	if f.urlV6 == "" {
		f.urlV6 = DefaultURLv6
	}
	if f.alive <= 0 {
		f.alive = DefaultAlive
	}
	if f.client == nil {
		f.client = httputil.DefaultClient()
	}
	return f, nil
}

// Name returns the fetcher instance name.
func (f *Fetcher) Name() string { return f.name }

// Type returns the fetcher type.
func (f *Fetcher) Type() string { return TypeName }

// Alive returns the cache lifetime for fetched addresses.
func (f *Fetcher) Alive() time.Duration { return f.alive }

// FetchIP performs one live lookup for the given address family.
func (f *Fetcher) FetchIP(ctx context.Context, family fetcher.Family) (string, error) {
	url := f.urlV4
	if family == fetcher.IPv6 {
		url = f.urlV6
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	raw, err := ParseBody(string(body))
	if err != nil {
		return "", err
	}

	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return "", fmt.Errorf("endpoint returned %q: %w", raw, err)
	}
	if family == fetcher.IPv4 && !addr.Is4() && !addr.Is4In6() {
		return "", fmt.Errorf("endpoint returned %s for an IPv4 lookup", addr)
	}
	if family == fetcher.IPv6 && (addr.Is4() || addr.Is4In6()) {
		return "", fmt.Errorf("endpoint returned %s for an IPv6 lookup", addr)
	}
	return addr.String(), nil
}

// ParseBody extracts the IP string from a lookup response. Trace-style
// responses carry key=value lines and the address sits on the "ip="
// line; anything else is treated as a bare-body response whose whole
// trimmed content is the address.
func ParseBody(body string) (string, error) {
	trimmed := strings.TrimSpace(body)
	if !strings.Contains(trimmed, "=") {
		if trimmed == "" {
			return "", fmt.Errorf("empty response body")
		}
		return trimmed, nil
	}

	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "ip="); ok {
			if rest == "" {
				return "", fmt.Errorf("trace response has an empty ip field")
			}
			return rest, nil
		}
	}
	return "", fmt.Errorf("trace response has no ip field")
}
