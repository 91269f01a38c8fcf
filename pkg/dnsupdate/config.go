package dnsupdate

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// Default configuration values.
const (
	// DefaultPort is the standard DNS port.
	DefaultPort = "53"

	// DefaultTimeout bounds a single DNS exchange.
	DefaultTimeout = 5 * time.Second
)

// Config configures a dynamic-update client.
type Config struct {
	// Server is the authoritative server, as host or host:port.
	// Port 53 is assumed when absent.
	Server string

	// Timeout bounds each DNS exchange. Defaults to 5 seconds.
	Timeout time.Duration

	// UseTCP forces TCP instead of UDP. Large updates and TSIG-signed
	// messages are usually better off over TCP.
	UseTCP bool

	// TSIGKeyName, TSIGSecret and TSIGAlgorithm enable RFC 2845
	// transaction signatures when set. Secret is base64-encoded.
	TSIGKeyName   string
	TSIGSecret    string
	TSIGAlgorithm string
}

// Validate checks the configuration for completeness.
func (c *Config) Validate() error {
	if c.Server == "" {
		return errors.New("server is required")
	}
	if (c.TSIGKeyName == "") != (c.TSIGSecret == "") {
		return errors.New("tsig key name and secret must be set together")
	}
	return nil
}

// HasTSIG reports whether transaction signatures are configured.
func (c *Config) HasTSIG() bool {
	return c.TSIGKeyName != "" && c.TSIGSecret != ""
}

// ServerAddr returns the server as host:port.
func (c *Config) ServerAddr() string {
	if _, _, err := net.SplitHostPort(c.Server); err == nil {
		return c.Server
	}
	return net.JoinHostPort(c.Server, DefaultPort)
}

// GetTimeout returns the exchange timeout, applying the default.
func (c *Config) GetTimeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

func (c *Config) String() string {
	return fmt.Sprintf("dnsupdate{server: %s, tcp: %t, tsig: %t}", c.ServerAddr(), c.UseTCP, c.HasTSIG())
}
