// Package config handles loading and validation of dns-syncer
// configuration from YAML or TOML files.
package config

import (
	"time"

	"gitlab.bluewillows.net/root/dns-syncer/pkg/provider"
)

// Default configuration values.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
	DefaultWorkers   = 4

	// DefaultFetcherAlive is the cache lifetime applied when a fetcher
	// omits the alive setting.
	DefaultFetcherAlive = 5 * time.Minute
)

// Op is the desired reconciliation intent declared on a record.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// ParseOp converts a configuration string into an Op.
func ParseOp(s string) (Op, bool) {
	switch Op(s) {
	case OpCreate, OpUpdate, OpDelete:
		return Op(s), true
	default:
		return "", false
	}
}

// Config is the fully parsed runtime configuration.
type Config struct {
	// CheckInterval is the pause between reconciliation cycles.
	// Zero means run exactly one cycle and exit.
	CheckInterval time.Duration

	// DefaultFetcher names the fetcher that fills in content for
	// address records that omit it. May be empty when every record
	// carries explicit content.
	DefaultFetcher string

	// HealthPort is the port for the health/metrics server.
	// Zero disables the server.
	HealthPort int

	// Workers bounds how many targets reconcile concurrently.
	Workers int

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// LogFormat is json or text.
	LogFormat string

	Fetchers  []FetcherConfig
	Providers []ProviderConfig
	Records   []RecordSpec
}

// FetcherConfig declares one public-IP fetcher instance.
type FetcherConfig struct {
	Name   string
	Type   string
	Alive  time.Duration
	Params map[string]string
}

// ProviderConfig declares one DNS provider account.
type ProviderConfig struct {
	Name   string
	Type   string
	Auth   provider.Auth
	Params map[string]string
}

// RecordSpec is one desired DNS record, fanned out across backends.
type RecordSpec struct {
	Type     provider.RecordType
	Name     string
	Content  string // empty means resolve via the default fetcher
	TTL      int
	Comment  string
	Op       Op
	Backends []BackendRef
}

// HasContent reports whether the record carries explicit content.
func (r RecordSpec) HasContent() bool {
	return r.Content != ""
}

// BackendRef points a record at one provider and its zones.
type BackendRef struct {
	Provider string
	Params   map[string]string
	Zones    []string
}
