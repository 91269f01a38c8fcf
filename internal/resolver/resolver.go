// Package resolver expands the configured record list into concrete
// reconciliation targets, one per (record, provider, zone) combination,
// filling in dynamic content from the public-IP resolver.
package resolver

import (
	"context"
	"fmt"
	"log/slog"

	"gitlab.bluewillows.net/root/dns-syncer/internal/config"
	"gitlab.bluewillows.net/root/dns-syncer/pkg/fetcher"
	"gitlab.bluewillows.net/root/dns-syncer/pkg/provider"
)

// Target is the unit of reconciliation: one concrete record at one
// provider and zone. Targets live for a single cycle.
type Target struct {
	// Provider is the provider instance name the target belongs to.
	Provider string

	// Zone is the provider-specific namespace the record lives in.
	Zone string

	// Record is the desired record, content fully resolved.
	Record provider.Record

	// Op is the desired reconciliation intent.
	Op config.Op

	// Err is set when content resolution failed. The engine reports
	// such a target failed without issuing any provider calls.
	Err error
}

// Key identifies the target for logs and conflict detection.
func (t Target) Key() string {
	return fmt.Sprintf("%s/%s/%s/%s", t.Provider, t.Zone, t.Record.Type, t.Record.Name)
}

// Resolver expands record specs into targets.
type Resolver struct {
	registry       *provider.Registry
	ips            *fetcher.Resolver
	defaultFetcher string
	logger         *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger for resolution events.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// New creates a resolver. defaultFetcher may be empty when every
// record carries explicit content.
func New(registry *provider.Registry, ips *fetcher.Resolver, defaultFetcher string, opts ...Option) *Resolver {
	r := &Resolver{
		registry:       registry,
		ips:            ips,
		defaultFetcher: defaultFetcher,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve expands specs into targets. Validation problems (dangling
// provider references, empty zone lists, conflicting duplicates) are
// collected as issues; they skip the affected targets only, never the
// whole cycle. A failed public-IP lookup attaches the error to each
// affected target instead of dropping it, so the cycle report shows
// the failure.
func (r *Resolver) Resolve(ctx context.Context, specs []config.RecordSpec) ([]Target, []string) {
	var (
		targets []Target
		issues  []string
	)

	// Desired content per (provider, zone, type, name); detects
	// conflicting duplicate declarations.
	type desired struct {
		content string
		op      config.Op
	}
	seen := make(map[string]desired)

	for _, spec := range specs {
		content, contentErr := r.resolveContent(ctx, spec)

		for _, backend := range spec.Backends {
			if _, ok := r.registry.Get(backend.Provider); !ok {
				issues = append(issues, fmt.Sprintf(
					"record %s %s: backend references unknown provider %q",
					spec.Type, spec.Name, backend.Provider))
				continue
			}
			if len(backend.Zones) == 0 {
				issues = append(issues, fmt.Sprintf(
					"record %s %s: backend %s has no zones",
					spec.Type, spec.Name, backend.Provider))
				continue
			}

			for _, zone := range backend.Zones {
				target := Target{
					Provider: backend.Provider,
					Zone:     zone,
					Record: provider.Record{
						Type:    spec.Type,
						Name:    spec.Name,
						Content: content,
						TTL:     spec.TTL,
						Params:  backend.Params,
					},
					Op:  spec.Op,
					Err: contentErr,
				}

				key := target.Key()
				if prev, dup := seen[key]; dup {
					if prev.content == content && prev.op == spec.Op {
						// Exact duplicate declaration, keep one.
						continue
					}
					issues = append(issues, fmt.Sprintf(
						"conflicting duplicate declarations for %s: %q (%s) vs %q (%s)",
						key, prev.content, prev.op, content, spec.Op))
					continue
				}
				seen[key] = desired{content: content, op: spec.Op}
				targets = append(targets, target)
			}
		}
	}

	return targets, issues
}

// resolveContent returns the record's content, consulting the default
// fetcher when none is declared. Delete targets match on (type, name)
// only, so their content never needs resolving.
func (r *Resolver) resolveContent(ctx context.Context, spec config.RecordSpec) (string, error) {
	if spec.HasContent() || spec.Op == config.OpDelete {
		return spec.Content, nil
	}

	family := fetcher.IPv4
	if spec.Type == provider.RecordTypeAAAA {
		family = fetcher.IPv6
	}

	ip, err := r.ips.Resolve(ctx, r.defaultFetcher, family)
	if err != nil {
		r.logger.Warn("content resolution failed",
			slog.String("record", spec.Name),
			slog.String("type", string(spec.Type)),
			slog.String("error", err.Error()),
		)
		return "", err
	}
	return ip, nil
}
