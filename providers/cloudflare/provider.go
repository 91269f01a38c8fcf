package cloudflare

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"gitlab.bluewillows.net/root/dns-syncer/pkg/provider"
)

// TypeName is the provider type as written in the configuration.
const TypeName = "cloudflare"

// DefaultTTL is the TTL applied to records that carry none.
// Cloudflare treats 1 as "automatic".
const DefaultTTL = 1

// Provider reconciles records through the Cloudflare v4 API. One
// instance serves every zone the account can see; zone names resolve
// to zone IDs on first use.
type Provider struct {
	name       string
	ttl        int
	client     *Client
	clientOpts []ClientOption
	logger     *slog.Logger
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

// WithClientOptions forwards options to the underlying API client.
func WithClientOptions(opts ...ClientOption) Option {
	return func(p *Provider) {
		p.clientOpts = append(p.clientOpts, opts...)
	}
}

// New creates a Cloudflare provider instance.
func New(cfg provider.Config, opts ...Option) (*Provider, error) {
	p := &Provider{
		name:   cfg.Name,
		ttl:    DefaultTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if v := cfg.Param("ttl", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid ttl param: %q", v)
		}
		p.ttl = n
	}

	clientOpts := append([]ClientOption{WithClientLogger(p.logger)}, p.clientOpts...)
	client, err := NewClient(cfg.Auth, clientOpts...)
	if err != nil {
		return nil, err
	}
	p.client = client

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

// Type returns "cloudflare".
func (p *Provider) Type() string { return TypeName }

// Authenticate verifies the credentials against the API.
func (p *Provider) Authenticate(ctx context.Context) error {
	return p.client.VerifyAuth(ctx)
}

// ListRecords returns the live records matching type and name.
func (p *Provider) ListRecords(ctx context.Context, zone string, rtype provider.RecordType, name string) ([]provider.Record, error) {
	zoneID, err := p.client.ZoneID(ctx, zone)
	if err != nil {
		return nil, err
	}

	records, err := p.client.ListRecords(ctx, zoneID, string(rtype), name)
	if err != nil {
		return nil, err
	}

	out := make([]provider.Record, 0, len(records))
	for _, rec := range records {
		out = append(out, provider.Record{
			ID:      rec.ID,
			Type:    rtype,
			Name:    rec.Name,
			Content: rec.Content,
			TTL:     rec.TTL,
		})
	}
	return out, nil
}

// CreateRecord adds a record to the zone.
func (p *Provider) CreateRecord(ctx context.Context, zone string, record provider.Record) error {
	zoneID, err := p.client.ZoneID(ctx, zone)
	if err != nil {
		return err
	}
	req, err := p.toRequest(record)
	if err != nil {
		return err
	}
	return p.client.CreateRecord(ctx, zoneID, req)
}

// UpdateRecord replaces the record identified by recordID.
func (p *Provider) UpdateRecord(ctx context.Context, zone, recordID string, record provider.Record) error {
	zoneID, err := p.client.ZoneID(ctx, zone)
	if err != nil {
		return err
	}
	req, err := p.toRequest(record)
	if err != nil {
		return err
	}
	return p.client.UpdateRecord(ctx, zoneID, recordID, req)
}

// DeleteRecord removes the record identified by recordID.
func (p *Provider) DeleteRecord(ctx context.Context, zone, recordID string) error {
	zoneID, err := p.client.ZoneID(ctx, zone)
	if err != nil {
		return err
	}
	return p.client.DeleteRecord(ctx, zoneID, recordID)
}

// toRequest translates the desired record into the API request shape,
// applying the proxied backend param and the default TTL.
func (p *Provider) toRequest(record provider.Record) (recordRequest, error) {
	ttl := record.TTL
	if ttl <= 0 {
		ttl = p.ttl
	}

	req := recordRequest{
		Type:    string(record.Type),
		Name:    record.Name,
		Content: record.Content,
		TTL:     ttl,
	}

	if v := record.Param("proxied", "false"); v != "" {
		proxied, err := strconv.ParseBool(v)
		if err != nil {
			return recordRequest{}, fmt.Errorf("%w: invalid proxied param %q", provider.ErrBadRecord, v)
		}
		req.Proxied = proxied
	}
	// Cloudflare refuses proxied records with an explicit TTL.
	if req.Proxied {
		req.TTL = 1
	}

	if record.Type == provider.RecordTypeMX {
		prio, err := strconv.Atoi(record.Param("priority", "10"))
		if err != nil || prio < 0 {
			return recordRequest{}, fmt.Errorf("%w: invalid priority param", provider.ErrBadRecord)
		}
		req.Priority = prio
	}

	return req, nil
}
