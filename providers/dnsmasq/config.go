package dnsmasq

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gitlab.bluewillows.net/root/dns-syncer/pkg/provider"
	"gitlab.bluewillows.net/root/dns-syncer/pkg/sshutil"
)

// Default configuration values.
const (
	// DefaultConfFile is where managed records live on the remote host.
	DefaultConfFile = "/etc/dnsmasq.d/dns-syncer.conf"

	// DefaultReloadCommand re-reads the configuration after a change.
	DefaultReloadCommand = "systemctl reload dnsmasq"
)

// Config holds dnsmasq provider configuration, assembled from the
// provider params and the ssh authentication variant.
type Config struct {
	// Host is the SSH server running dnsmasq.
	Host string

	// Port is the SSH port (default 22).
	Port int

	// SSH carries the ssh authentication variant.
	SSH provider.SSH

	// ConfFile is the managed configuration file path.
	ConfFile string

	// ReloadCommand runs after every write to apply the change.
	ReloadCommand string

	// Timeout is the SSH connection timeout in seconds.
	Timeout int
}

// configFromProvider builds the Config from the generic provider
// configuration, rejecting authentication variants this type cannot
// use.
func configFromProvider(cfg provider.Config) (*Config, error) {
	auth, ok := cfg.Auth.(provider.SSH)
	if !ok {
		method := "none"
		if cfg.Auth != nil {
			method = cfg.Auth.Method()
		}
		return nil, fmt.Errorf("dnsmasq requires ssh authentication, got %s", method)
	}

	c := &Config{
		Host:          cfg.Param("host", ""),
		Port:          sshutil.DefaultSSHPort,
		SSH:           auth,
		ConfFile:      cfg.Param("conf_file", DefaultConfFile),
		ReloadCommand: cfg.Param("reload_command", DefaultReloadCommand),
	}

	if v := cfg.Param("port", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 65535 {
			return nil, fmt.Errorf("invalid port param: %q", v)
		}
		c.Port = n
	}
	if v := cfg.Param("timeout", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid timeout param: %q", v)
		}
		c.Timeout = n
	}

	return c, c.Validate()
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	var errs []string

	if c.Host == "" {
		errs = append(errs, "host param is required")
	}
	if c.SSH.User == "" {
		errs = append(errs, "ssh user is required")
	}
	if c.SSH.KeyFile == "" && c.SSH.KeyData == "" && c.SSH.Password == "" {
		errs = append(errs, "ssh auth needs key_file, key_data, or password")
	}

	if len(errs) > 0 {
		return fmt.Errorf("dnsmasq config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// toSSHConfig converts this config to an sshutil.Config.
func (c *Config) toSSHConfig() *sshutil.Config {
	return &sshutil.Config{
		Host:          c.Host,
		Port:          c.Port,
		User:          c.SSH.User,
		KeyFile:       c.SSH.KeyFile,
		KeyData:       c.SSH.KeyData,
		KeyPassphrase: c.SSH.KeyPassphrase,
		Password:      c.SSH.Password,
		Timeout:       time.Duration(c.Timeout) * time.Second,
	}
}
