// Package provider defines the adapter interface that all DNS hosting
// backends must implement, plus the record model shared by the engine
// and the adapters.
package provider

import "context"

// RecordType represents the type of DNS record.
type RecordType string

const (
	RecordTypeA     RecordType = "A"
	RecordTypeAAAA  RecordType = "AAAA"
	RecordTypeCNAME RecordType = "CNAME"
	RecordTypeTXT   RecordType = "TXT"
	RecordTypeMX    RecordType = "MX"
)

// ParseRecordType converts a configuration string into a RecordType.
func ParseRecordType(s string) (RecordType, bool) {
	switch RecordType(s) {
	case RecordTypeA, RecordTypeAAAA, RecordTypeCNAME, RecordTypeTXT, RecordTypeMX:
		return RecordType(s), true
	default:
		return "", false
	}
}

// IsAddress returns true for record types whose content is an IP address
// and may therefore be filled in from a public-IP fetcher.
func (t RecordType) IsAddress() bool {
	return t == RecordTypeA || t == RecordTypeAAAA
}

// Record represents one DNS record as seen by an adapter.
type Record struct {
	// ID is the provider-assigned record identifier. Empty for desired
	// records that have not been created yet.
	ID string

	// Type is the DNS record type (A, AAAA, CNAME, ...).
	Type RecordType

	// Name is the record host name.
	Name string

	// Content is the record value (IP for A/AAAA, hostname for CNAME, ...).
	Content string

	// TTL in seconds. Zero means "provider automatic".
	TTL int

	// Params carries backend-specific settings from the configuration,
	// e.g. Cloudflare's "proxied" flag. Adapters read the params they
	// understand and ignore the rest.
	Params map[string]string
}

// Param reads a backend param with a fallback default.
func (r Record) Param(name, def string) string {
	if v, ok := r.Params[name]; ok {
		return v
	}
	return def
}

// ContentEquals reports whether two records carry the same value.
// Names and types are assumed to match already; IDs, TTLs and params
// never participate in content matching.
func ContentEquals(a, b Record) bool {
	return a.Content == b.Content
}

// Adapter is the uniform interface over a DNS hosting provider's
// management API. One adapter instance corresponds to one declared
// provider account; a single instance may address multiple zones.
//
// All methods must honor context cancellation and classify failures
// using the sentinel errors in this package so the engine can tell
// auth, transient and permanent conditions apart.
type Adapter interface {
	// Name returns the provider instance name (e.g. "cloudflare-main").
	Name() string

	// Type returns the provider type (e.g. "cloudflare").
	Type() string

	// Authenticate validates the configured credentials. The engine
	// calls it once per cycle per provider; a failure marks every
	// target of this provider failed for the cycle.
	Authenticate(ctx context.Context) error

	// ListRecords returns the live records in zone matching the given
	// type and name.
	ListRecords(ctx context.Context, zone string, rtype RecordType, name string) ([]Record, error)

	// CreateRecord adds a record to the zone.
	CreateRecord(ctx context.Context, zone string, record Record) error

	// UpdateRecord replaces the record identified by recordID.
	UpdateRecord(ctx context.Context, zone, recordID string, record Record) error

	// DeleteRecord removes the record identified by recordID.
	DeleteRecord(ctx context.Context, zone, recordID string) error
}
