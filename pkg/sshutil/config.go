// Package sshutil provides SSH and SFTP client plumbing for providers
// that manage DNS records through configuration files on a remote host.
package sshutil

import (
	"fmt"
	"strings"
	"time"
)

// Default SSH client configuration values.
const (
	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultSSHTimeout is the default connection timeout.
	DefaultSSHTimeout = 30 * time.Second
)

// Config holds SSH connection configuration.
type Config struct {
	// Host is the SSH server hostname or IP address (required).
	Host string

	// Port is the SSH server port (default: 22).
	Port int

	// User is the SSH username (required).
	User string

	// KeyFile is the path to the SSH private key file.
	// Either KeyFile, KeyData, or Password must be provided.
	KeyFile string

	// KeyData is the SSH private key content directly, for setups where
	// the key arrives through a secret file rather than a path.
	KeyData string

	// KeyPassphrase is the passphrase for encrypted SSH keys (optional).
	KeyPassphrase string

	// Password is the SSH password for password authentication.
	// Key-based authentication is recommended over password.
	Password string

	// Timeout is the SSH connection timeout (default: 30s).
	Timeout time.Duration
}

// Validate checks that all required configuration is present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Host == "" {
		errs = append(errs, "host is required")
	}
	if c.User == "" {
		errs = append(errs, "user is required")
	}
	if c.KeyFile == "" && c.KeyData == "" && c.Password == "" {
		errs = append(errs, "at least one authentication method required (key_file, key_data, or password)")
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, "port must be between 0 and 65535")
	}
	if c.Timeout < 0 {
		errs = append(errs, "timeout must be non-negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("ssh config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Address returns the SSH server address in host:port format.
func (c *Config) Address() string {
	port := c.Port
	if port == 0 {
		port = DefaultSSHPort
	}
	return fmt.Sprintf("%s:%d", c.Host, port)
}

// GetTimeout returns the configured timeout or the default.
func (c *Config) GetTimeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultSSHTimeout
}
