package dnsmasq

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"sync"

	"gitlab.bluewillows.net/root/dns-syncer/pkg/provider"
	"gitlab.bluewillows.net/root/dns-syncer/pkg/sshutil"
)

// TypeName is the provider type as written in the configuration.
const TypeName = "dnsmasq"

// Provider reconciles records by rewriting a dnsmasq configuration
// file on a remote host and reloading the daemon. The backend zone is
// the domain suffix managed records must fall under.
type Provider struct {
	name   string
	config *Config
	logger *slog.Logger

	mu     sync.Mutex
	ssh    *sshutil.Client
	sftp   *sshutil.SFTPFileSystem
	fs     sshutil.FileSystem
	runner sshutil.CommandRunner
}

var _ provider.Adapter = (*Provider)(nil)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithFileSystem substitutes the remote file system (for testing).
func WithFileSystem(fs sshutil.FileSystem) Option {
	return func(p *Provider) {
		p.fs = fs
	}
}

// WithRunner substitutes the reload command runner (for testing).
func WithRunner(runner sshutil.CommandRunner) Option {
	return func(p *Provider) {
		p.runner = runner
	}
}

// New creates a dnsmasq provider instance.
func New(cfg provider.Config, opts ...Option) (*Provider, error) {
	config, err := configFromProvider(cfg)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		name:   cfg.Name,
		config: config,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Factory returns the registry factory for this provider type.
func Factory(logger *slog.Logger) provider.Factory {
	return func(cfg provider.Config) (provider.Adapter, error) {
		return New(cfg, WithLogger(logger))
	}
}

// Name returns the provider instance name.
func (p *Provider) Name() string { return p.name }

// Type returns "dnsmasq".
func (p *Provider) Type() string { return TypeName }

// Authenticate establishes the SSH and SFTP sessions. A rejected key
// or password surfaces here, before any record work starts.
func (p *Provider) Authenticate(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connectLocked(ctx)
}

// connectLocked dials SSH and SFTP unless a file system and runner
// were injected. Callers hold p.mu.
func (p *Provider) connectLocked(ctx context.Context) error {
	if p.fs != nil && p.runner != nil {
		return nil
	}

	if p.ssh == nil {
		client, err := sshutil.NewClient(p.config.toSSHConfig(), sshutil.WithLogger(p.logger))
		if err != nil {
			return fmt.Errorf("%w: %v", provider.ErrBadRecord, err)
		}
		p.ssh = client
	}

	if !p.ssh.IsConnected() {
		if err := p.ssh.Connect(ctx); err != nil {
			return p.mapSSHError(err)
		}
	}

	if p.sftp == nil {
		p.sftp = sshutil.NewSFTPFileSystem(p.ssh, sshutil.WithSFTPLogger(p.logger))
	}
	if err := p.sftp.Connect(ctx); err != nil {
		return p.mapSSHError(err)
	}

	p.fs = p.sftp
	p.runner = sshutil.NewSSHCommandRunner(p.ssh, sshutil.WithCommandLogger(p.logger))
	return nil
}

// Close tears down the SSH session.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sftp != nil {
		_ = p.sftp.Close()
	}
	if p.ssh != nil {
		return p.ssh.Close()
	}
	return nil
}

// ListRecords returns the managed records matching type and name.
func (p *Provider) ListRecords(ctx context.Context, zone string, rtype provider.RecordType, name string) ([]provider.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.connectLocked(ctx); err != nil {
		return nil, err
	}

	file, err := p.readConfLocked()
	if err != nil {
		return nil, err
	}

	var out []provider.Record
	for _, rec := range file.records() {
		if rec.Type != rtype || rec.Name != name || !inZone(rec.Name, zone) {
			continue
		}
		out = append(out, provider.Record{
			ID:      recordID(rec),
			Type:    rec.Type,
			Name:    rec.Name,
			Content: rec.Content,
		})
	}
	return out, nil
}

// CreateRecord appends a record to the configuration file and reloads
// dnsmasq.
func (p *Provider) CreateRecord(ctx context.Context, zone string, record provider.Record) error {
	if !inZone(record.Name, zone) {
		return fmt.Errorf("%w: %s is outside zone %s", provider.ErrBadRecord, record.Name, zone)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.connectLocked(ctx); err != nil {
		return err
	}

	file, err := p.readConfLocked()
	if err != nil {
		return err
	}
	if err := file.add(confRecord{Type: record.Type, Name: record.Name, Content: record.Content}); err != nil {
		return err
	}
	return p.writeAndReloadLocked(ctx, file)
}

// UpdateRecord replaces the record identified by recordID.
func (p *Provider) UpdateRecord(ctx context.Context, zone, recordID string, record provider.Record) error {
	if !inZone(record.Name, zone) {
		return fmt.Errorf("%w: %s is outside zone %s", provider.ErrBadRecord, record.Name, zone)
	}

	old, err := parseRecordID(recordID)
	if err != nil {
		return fmt.Errorf("%w: %v", provider.ErrBadRecord, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.connectLocked(ctx); err != nil {
		return err
	}

	file, err := p.readConfLocked()
	if err != nil {
		return err
	}
	file.remove(old)
	if err := file.add(confRecord{Type: record.Type, Name: record.Name, Content: record.Content}); err != nil {
		return err
	}
	return p.writeAndReloadLocked(ctx, file)
}

// DeleteRecord removes the record identified by recordID.
func (p *Provider) DeleteRecord(ctx context.Context, _ string, recordID string) error {
	old, err := parseRecordID(recordID)
	if err != nil {
		return fmt.Errorf("%w: %v", provider.ErrBadRecord, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.connectLocked(ctx); err != nil {
		return err
	}

	file, err := p.readConfLocked()
	if err != nil {
		return err
	}
	if file.remove(old) == 0 {
		// Already gone; skip the rewrite and reload.
		return nil
	}
	return p.writeAndReloadLocked(ctx, file)
}

// readConfLocked reads and parses the configuration file. A missing
// file is an empty one.
func (p *Provider) readConfLocked() (*confFile, error) {
	content, err := p.fs.ReadFile(p.config.ConfFile)
	if err != nil {
		if isNotExist(err) {
			return &confFile{}, nil
		}
		return nil, fmt.Errorf("%w: reading %s: %v", provider.ErrUnavailable, p.config.ConfFile, err)
	}
	return parseConfFile(string(content))
}

// writeAndReloadLocked rewrites the configuration through a temp file
// rename and reloads the daemon.
func (p *Provider) writeAndReloadLocked(ctx context.Context, file *confFile) error {
	tmpPath := p.config.ConfFile + ".tmp"
	if err := p.fs.WriteFile(tmpPath, []byte(file.render()), 0o644); err != nil {
		return fmt.Errorf("%w: writing %s: %v", provider.ErrUnavailable, tmpPath, err)
	}
	if err := p.fs.Rename(tmpPath, p.config.ConfFile); err != nil {
		return fmt.Errorf("%w: replacing %s: %v", provider.ErrUnavailable, p.config.ConfFile, err)
	}

	if err := p.runner.Run(ctx, p.config.ReloadCommand); err != nil {
		return fmt.Errorf("%w: reload command: %v", provider.ErrUnavailable, err)
	}

	p.logger.Debug("configuration rewritten",
		slog.String("path", p.config.ConfFile),
		slog.String("reload", p.config.ReloadCommand),
	)
	return nil
}

// mapSSHError translates sshutil failures onto the provider taxonomy.
func (p *Provider) mapSSHError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sshutil.ErrAuthenticationFailed):
		return fmt.Errorf("%w: %v", provider.ErrUnauthorized, err)
	default:
		return fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
	}
}

// isNotExist recognizes missing-file errors from both the local fake
// file system and SFTP servers, whose status text varies.
func isNotExist(err error) bool {
	if errors.Is(err, fs.ErrNotExist) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "no such file") || strings.Contains(msg, "does not exist")
}

// recordID encodes the managed record into an opaque identifier, the
// same way rfc2136 does; the file has no native record IDs.
func recordID(rec confRecord) string {
	return fmt.Sprintf("%s|%s|%s", rec.Type, rec.Name, rec.Content)
}

func parseRecordID(id string) (confRecord, error) {
	parts := strings.SplitN(id, "|", 3)
	if len(parts) != 3 {
		return confRecord{}, fmt.Errorf("malformed record id: %q", id)
	}
	rtype, ok := provider.ParseRecordType(parts[0])
	if !ok {
		return confRecord{}, fmt.Errorf("malformed record id type: %q", parts[0])
	}
	return confRecord{Type: rtype, Name: parts[1], Content: parts[2]}, nil
}
