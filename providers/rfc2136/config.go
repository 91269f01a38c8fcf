package rfc2136

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gitlab.bluewillows.net/root/dns-syncer/pkg/dnsupdate"
	"gitlab.bluewillows.net/root/dns-syncer/pkg/provider"
)

// Default configuration values.
const (
	// DefaultTTL is applied to records that carry no TTL.
	DefaultTTL = 300

	// DefaultTimeout is the DNS exchange timeout in seconds.
	DefaultTimeout = 10
)

// Config holds rfc2136 provider configuration, assembled from the
// provider params and the tsig authentication variant.
type Config struct {
	// Server is the authoritative server, host or host:port.
	Server string

	// TSIG carries the transaction-signature key material.
	TSIG provider.TSIG

	// Timeout is the DNS exchange timeout in seconds.
	Timeout int

	// UseTCP forces TCP transport instead of UDP.
	UseTCP bool

	// TTL is applied to records that carry no TTL.
	TTL int
}

// configFromProvider builds the Config from the generic provider
// configuration, rejecting authentication variants this type cannot
// use.
func configFromProvider(cfg provider.Config) (*Config, error) {
	tsig, ok := cfg.Auth.(provider.TSIG)
	if !ok {
		method := "none"
		if cfg.Auth != nil {
			method = cfg.Auth.Method()
		}
		return nil, fmt.Errorf("rfc2136 requires tsig authentication, got %s", method)
	}

	c := &Config{
		Server:  cfg.Param("server", ""),
		TSIG:    tsig,
		Timeout: DefaultTimeout,
		TTL:     DefaultTTL,
	}

	if v := cfg.Param("timeout", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid timeout param: %q", v)
		}
		c.Timeout = n
	}
	if v := cfg.Param("use_tcp", ""); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid use_tcp param: %q", v)
		}
		c.UseTCP = b
	}
	if v := cfg.Param("ttl", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid ttl param: %q", v)
		}
		c.TTL = n
	}

	return c, c.Validate()
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	var errs []string

	if c.Server == "" {
		errs = append(errs, "server param is required")
	}
	if c.TSIG.KeyName == "" {
		errs = append(errs, "tsig key_name is required")
	}
	if c.TSIG.Secret == "" {
		errs = append(errs, "tsig secret is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("rfc2136 config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// toDNSUpdateConfig converts this config to a dnsupdate.Config.
func (c *Config) toDNSUpdateConfig() *dnsupdate.Config {
	return &dnsupdate.Config{
		Server:        c.Server,
		Timeout:       time.Duration(c.Timeout) * time.Second,
		UseTCP:        c.UseTCP,
		TSIGKeyName:   c.TSIG.KeyName,
		TSIGSecret:    c.TSIG.Secret,
		TSIGAlgorithm: c.TSIG.Algorithm,
	}
}
