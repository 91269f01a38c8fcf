package sshutil

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/ssh"
)

// Sentinel errors for SSH operations.
var (
	// ErrNotConnected is returned when an operation is attempted on a disconnected client.
	ErrNotConnected = errors.New("ssh client is not connected")

	// ErrAlreadyConnected is returned when Connect is called on an already connected client.
	ErrAlreadyConnected = errors.New("ssh client is already connected")

	// ErrAuthenticationFailed is returned when SSH authentication fails.
	ErrAuthenticationFailed = errors.New("ssh authentication failed")

	// ErrConnectionTimeout is returned when the connection times out.
	ErrConnectionTimeout = errors.New("ssh connection timed out")
)

// Client manages a single SSH connection to a remote host.
type Client struct {
	config *Config
	logger *slog.Logger

	mu   sync.RWMutex
	conn *ssh.Client
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*Client)

// WithLogger sets a custom logger for the SSH client.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a new SSH client with the given configuration.
// The client is not connected until Connect() is called.
func NewClient(config *Config, opts ...ClientOption) (*Client, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Client{
		config: config,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Connect establishes an SSH connection to the configured server.
// If already connected, returns ErrAlreadyConnected.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return ErrAlreadyConnected
	}

	sshConfig, err := c.buildSSHConfig()
	if err != nil {
		return fmt.Errorf("building SSH config: %w", err)
	}

	c.logger.Debug("connecting to SSH server",
		slog.String("host", c.config.Host),
		slog.Int("port", c.config.Port),
		slog.String("user", c.config.User),
	)

	timeout := c.config.GetTimeout()
	dialCtx, dialCancel := context.WithTimeout(ctx, timeout)
	defer dialCancel()

	dialer := &net.Dialer{Timeout: timeout}
	netConn, err := dialer.DialContext(dialCtx, "tcp", c.config.Address())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrConnectionTimeout
		}
		return fmt.Errorf("dialing %s: %w", c.config.Address(), err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, c.config.Address(), sshConfig)
	if err != nil {
		_ = netConn.Close()
		if isAuthError(err) {
			return fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
		}
		return fmt.Errorf("SSH handshake failed: %w", err)
	}

	c.conn = ssh.NewClient(sshConn, chans, reqs)

	c.logger.Info("SSH connection established",
		slog.String("host", c.config.Host),
		slog.Int("port", c.config.Port),
	)
	return nil
}

// Close closes the SSH connection. Safe to call multiple times.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil

	c.logger.Debug("SSH connection closed",
		slog.String("host", c.config.Host),
	)
	return err
}

// IsConnected returns true if the client has an active connection.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// GetConnection returns the underlying SSH client connection.
// Returns ErrNotConnected if not connected. The connection should not
// be closed directly; use Client.Close() instead.
func (c *Client) GetConnection() (*ssh.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.conn == nil {
		return nil, ErrNotConnected
	}
	return c.conn, nil
}

// buildSSHConfig creates the ssh.ClientConfig from our Config.
func (c *Client) buildSSHConfig() (*ssh.ClientConfig, error) {
	authMethods, err := c.buildAuthMethods()
	if err != nil {
		return nil, fmt.Errorf("building auth methods: %w", err)
	}

	// Host keys are not verified. The tool is meant for trusted
	// internal networks where the DNS host is already under the
	// operator's control.
	c.logger.Warn("host key verification disabled",
		slog.String("host", c.config.Host),
	)

	return &ssh.ClientConfig{
		User:            c.config.User,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec
		Timeout:         c.config.GetTimeout(),
	}, nil
}

// buildAuthMethods creates authentication methods from the config.
func (c *Client) buildAuthMethods() ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if c.config.KeyFile != "" {
		keyData, err := os.ReadFile(c.config.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading key file %s: %w", c.config.KeyFile, err)
		}
		signer, err := c.parsePrivateKey(keyData)
		if err != nil {
			return nil, fmt.Errorf("parsing key from file: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if c.config.KeyData != "" {
		signer, err := c.parsePrivateKey([]byte(c.config.KeyData))
		if err != nil {
			return nil, fmt.Errorf("parsing key data: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if c.config.Password != "" {
		methods = append(methods, ssh.Password(c.config.Password))
	}

	if len(methods) == 0 {
		return nil, errors.New("no authentication methods configured")
	}
	return methods, nil
}

// parsePrivateKey parses a private key, handling encrypted keys if a passphrase is provided.
func (c *Client) parsePrivateKey(keyData []byte) (ssh.Signer, error) {
	if c.config.KeyPassphrase != "" {
		return ssh.ParsePrivateKeyWithPassphrase(keyData, []byte(c.config.KeyPassphrase))
	}
	return ssh.ParsePrivateKey(keyData)
}

// isAuthError checks if an error is an authentication-related error.
func isAuthError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "unable to authenticate") ||
		strings.Contains(errStr, "no supported methods") ||
		strings.Contains(errStr, "permission denied") ||
		strings.Contains(errStr, "publickey") ||
		strings.Contains(errStr, "password")
}
