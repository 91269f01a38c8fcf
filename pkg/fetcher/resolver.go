package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"gitlab.bluewillows.net/root/dns-syncer/internal/metrics"
)

// cachedIP is one cached lookup result for a (fetcher, family) pair.
type cachedIP struct {
	ip        string
	fetchedAt time.Time
}

// Resolver caches public-IP lookups across record targets. Within one
// cache lifetime every dynamic record sees the same address, and a
// burst of concurrent lookups for the same fetcher collapses into a
// single upstream request.
type Resolver struct {
	mu       sync.Mutex
	fetchers map[string]Fetcher
	cache    map[string]cachedIP
	group    singleflight.Group
	logger   *slog.Logger
	now      func() time.Time
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLogger sets the logger for resolution events.
func WithLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// withClock overrides the time source. Test hook.
func withClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		r.now = now
	}
}

// NewResolver creates a resolver over the given fetcher instances.
func NewResolver(fetchers []Fetcher, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		fetchers: make(map[string]Fetcher, len(fetchers)),
		cache:    make(map[string]cachedIP),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, f := range fetchers {
		r.fetchers[f.Name()] = f
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Has reports whether a fetcher with the given name is registered.
func (r *Resolver) Has(name string) bool {
	_, ok := r.fetchers[name]
	return ok
}

// Resolve returns the public IP for the named fetcher and family. A
// cached address younger than the fetcher's alive window is returned
// as is. On a live lookup failure the last known address is reused,
// however stale, so an upstream outage does not tear down records
// that were resolvable a cycle ago.
func (r *Resolver) Resolve(ctx context.Context, name string, family Family) (string, error) {
	f, ok := r.fetchers[name]
	if !ok {
		return "", &ResolutionError{
			Fetcher: name,
			Family:  family,
			Err:     fmt.Errorf("%w: unknown fetcher", ErrResolution),
		}
	}

	key := name + "/" + string(family)

	r.mu.Lock()
	if c, ok := r.cache[key]; ok && r.now().Sub(c.fetchedAt) < f.Alive() {
		r.mu.Unlock()
		metrics.FetchesTotal.WithLabelValues(name, "cached").Inc()
		return c.ip, nil
	}
	r.mu.Unlock()

	v, err, _ := r.group.Do(key, func() (any, error) {
		ip, err := f.FetchIP(ctx, family)
		if err != nil {
			return "", err
		}
		r.mu.Lock()
		r.cache[key] = cachedIP{ip: ip, fetchedAt: r.now()}
		r.mu.Unlock()
		return ip, nil
	})
	if err != nil {
		r.mu.Lock()
		c, stale := r.cache[key]
		r.mu.Unlock()
		if stale {
			r.logger.Warn("public IP lookup failed, reusing last known address",
				slog.String("fetcher", name),
				slog.String("family", string(family)),
				slog.String("ip", c.ip),
				slog.String("error", err.Error()),
			)
			metrics.FetchesTotal.WithLabelValues(name, "fallback").Inc()
			return c.ip, nil
		}
		metrics.FetchesTotal.WithLabelValues(name, "error").Inc()
		return "", &ResolutionError{
			Fetcher: name,
			Family:  family,
			Err:     fmt.Errorf("%w: %v", ErrResolution, err),
		}
	}
	metrics.FetchesTotal.WithLabelValues(name, "success").Inc()
	return v.(string), nil
}
