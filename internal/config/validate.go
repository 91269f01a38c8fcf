package config

import (
	"fmt"
	"strings"

	"gitlab.bluewillows.net/root/dns-syncer/pkg/provider"
)

// ValidationError aggregates configuration validation failures.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration error: %s", e.Errors[0])
	}
	return fmt.Sprintf("configuration errors:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// validateConfig performs structural validation on the complete
// configuration. Cross-reference checks that only skip individual
// records (dangling provider names, conflicting duplicates) live in
// the desired-state resolver; failures here abort startup.
func validateConfig(cfg *Config) []string {
	var errs []string

	seenFetchers := make(map[string]bool)
	for _, f := range cfg.Fetchers {
		if f.Name == "" {
			errs = append(errs, "fetcher with empty name")
			continue
		}
		if seenFetchers[f.Name] {
			errs = append(errs, fmt.Sprintf("duplicate fetcher name: %q", f.Name))
		}
		seenFetchers[f.Name] = true
		if f.Type == "" {
			errs = append(errs, fmt.Sprintf("fetcher %q: type is required", f.Name))
		}
	}

	seenProviders := make(map[string]bool)
	for _, p := range cfg.Providers {
		if p.Name == "" {
			errs = append(errs, "provider with empty name")
			continue
		}
		if seenProviders[p.Name] {
			errs = append(errs, fmt.Sprintf("duplicate provider name: %q", p.Name))
		}
		seenProviders[p.Name] = true
		if p.Type == "" {
			errs = append(errs, fmt.Sprintf("provider %q: type is required", p.Name))
		}
		if p.Auth == nil {
			errs = append(errs, fmt.Sprintf("provider %q: authentication is required", p.Name))
		}
	}

	if cfg.DefaultFetcher != "" && !seenFetchers[cfg.DefaultFetcher] {
		errs = append(errs, fmt.Sprintf("public_ip_fecher %q does not name a declared fetcher", cfg.DefaultFetcher))
	}

	needsFetcher := false
	for i, r := range cfg.Records {
		label := r.Name
		if label == "" {
			label = fmt.Sprintf("#%d", i)
			errs = append(errs, fmt.Sprintf("record %s: name is required", label))
		}

		rtype, ok := provider.ParseRecordType(string(r.Type))
		if !ok {
			errs = append(errs, fmt.Sprintf("record %s: unknown type %q", label, r.Type))
		}
		if _, ok := ParseOp(string(r.Op)); !ok {
			errs = append(errs, fmt.Sprintf("record %s: unknown op %q", label, r.Op))
		}
		if !r.HasContent() && r.Op != OpDelete {
			if !ok || !rtype.IsAddress() {
				errs = append(errs, fmt.Sprintf("record %s: content may only be omitted for A/AAAA records", label))
			} else {
				needsFetcher = true
			}
		}
		if r.TTL < 0 {
			errs = append(errs, fmt.Sprintf("record %s: ttl must be non-negative", label))
		}
		if len(r.Backends) == 0 {
			errs = append(errs, fmt.Sprintf("record %s: at least one backend is required", label))
		}
	}

	if needsFetcher && cfg.DefaultFetcher == "" {
		errs = append(errs, "records without content require public_ip_fecher to be set")
	}

	if cfg.HealthPort < 0 || cfg.HealthPort > 65535 {
		errs = append(errs, fmt.Sprintf("health_port out of range: %d", cfg.HealthPort))
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("unknown logging level: %q", cfg.LogLevel))
	}
	switch cfg.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("unknown logging format: %q", cfg.LogFormat))
	}

	return errs
}
