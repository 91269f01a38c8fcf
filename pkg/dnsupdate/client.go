// Package dnsupdate implements RFC 2136 dynamic DNS updates plus
// targeted queries, over UDP or TCP, with optional TSIG signing.
package dnsupdate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/miekg/dns"
)

// Sentinel errors for dynamic-update operations.
var (
	// ErrUpdateFailed is returned when the server rejected an update.
	ErrUpdateFailed = errors.New("dns update failed")

	// ErrAuthenticationFailed is returned when TSIG verification fails.
	ErrAuthenticationFailed = errors.New("tsig authentication failed")

	// ErrConnectionFailed is returned when the server is unreachable.
	ErrConnectionFailed = errors.New("connection to dns server failed")

	// ErrNotZone is returned when the server is not authoritative for
	// the requested zone or the name falls outside it.
	ErrNotZone = errors.New("name not within server zone")
)

// Client issues dynamic updates and queries against one authoritative
// server. The zone is chosen per operation; a single client can serve
// several zones hosted on the same server.
type Client struct {
	config    *Config
	tsig      *TSIG
	logger    *slog.Logger
	dnsClient *dns.Client
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*Client)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a dynamic-update client.
func NewClient(config *Config, opts ...ClientOption) (*Client, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	tsig, err := TSIGFromConfig(config)
	if err != nil {
		return nil, fmt.Errorf("invalid TSIG configuration: %w", err)
	}

	c := &Client{
		config: config,
		tsig:   tsig,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.dnsClient = &dns.Client{Timeout: config.GetTimeout()}
	if config.UseTCP {
		c.dnsClient.Net = "tcp"
	} else {
		c.dnsClient.Net = "udp"
	}
	tsig.ApplyToClient(c.dnsClient)

	c.logger.Debug("dynamic update client initialized",
		slog.String("server", config.ServerAddr()),
		slog.Bool("tsig", tsig != nil),
		slog.Bool("tcp", config.UseTCP),
	)

	return c, nil
}

// Ping verifies connectivity and authority by querying the zone SOA.
func (c *Client) Ping(ctx context.Context, zone string) error {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(zone), dns.TypeSOA)
	msg.RecursionDesired = false

	resp, rtt, err := c.exchange(ctx, msg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return fmt.Errorf("%w: server returned %s", ErrConnectionFailed, dns.RcodeToString[resp.Rcode])
	}

	c.logger.Debug("dns server reachable",
		slog.String("zone", zone),
		slog.Duration("rtt", rtt),
	)
	return nil
}

// Query returns the records of the given type at name within zone.
// An NXDOMAIN answer is an empty result, not an error.
func (c *Client) Query(ctx context.Context, zone, name string, rtype uint16) ([]Record, error) {
	fqdn := dns.Fqdn(name)

	msg := new(dns.Msg)
	msg.SetQuestion(fqdn, rtype)
	msg.RecursionDesired = false

	resp, _, err := c.exchange(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	if resp.Rcode == dns.RcodeNameError {
		return nil, nil
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, checkRcode(resp)
	}

	records := make([]Record, 0, len(resp.Answer))
	for _, rr := range resp.Answer {
		if rr.Header().Rrtype != rtype {
			continue
		}
		record, err := RecordFromRR(rr)
		if err != nil {
			c.logger.Warn("skipping unparsable answer record",
				slog.String("rr", rr.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// Insert adds a record to the zone.
func (c *Client) Insert(ctx context.Context, zone string, record Record) error {
	rr, err := record.ToRR()
	if err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}

	msg := new(dns.Msg)
	msg.SetUpdate(dns.Fqdn(zone))
	msg.Insert([]dns.RR{rr})

	return c.sendUpdate(ctx, msg, "insert", record)
}

// Replace removes oldRecord and inserts newRecord in one update, so
// the change is applied atomically by the server.
func (c *Client) Replace(ctx context.Context, zone string, oldRecord, newRecord Record) error {
	oldRR, err := oldRecord.ToRR()
	if err != nil {
		return fmt.Errorf("invalid old record: %w", err)
	}
	newRR, err := newRecord.ToRR()
	if err != nil {
		return fmt.Errorf("invalid new record: %w", err)
	}

	msg := new(dns.Msg)
	msg.SetUpdate(dns.Fqdn(zone))
	msg.Remove([]dns.RR{oldRR})
	msg.Insert([]dns.RR{newRR})

	return c.sendUpdate(ctx, msg, "replace", newRecord)
}

// Remove deletes one specific record from the zone.
func (c *Client) Remove(ctx context.Context, zone string, record Record) error {
	rr, err := record.ToRR()
	if err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}

	msg := new(dns.Msg)
	msg.SetUpdate(dns.Fqdn(zone))
	msg.Remove([]dns.RR{rr})

	return c.sendUpdate(ctx, msg, "remove", record)
}

func (c *Client) sendUpdate(ctx context.Context, msg *dns.Msg, op string, record Record) error {
	c.tsig.ApplyToMessage(msg)

	resp, _, err := c.exchange(ctx, msg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	if err := checkRcode(resp); err != nil {
		return err
	}

	c.logger.Info("dns update applied",
		slog.String("op", op),
		slog.String("name", record.Name),
		slog.String("type", record.TypeString()),
	)
	return nil
}

// exchange performs a DNS exchange with context support. miekg/dns
// exchanges are not context-aware, so the call runs in a goroutine
// and the context can abandon it.
func (c *Client) exchange(ctx context.Context, msg *dns.Msg) (*dns.Msg, time.Duration, error) {
	type result struct {
		resp *dns.Msg
		rtt  time.Duration
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		resp, rtt, err := c.dnsClient.Exchange(msg, c.config.ServerAddr())
		ch <- result{resp, rtt, err}
	}()

	select {
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	case r := <-ch:
		return r.resp, r.rtt, r.err
	}
}

// checkRcode maps a response code onto the package sentinels.
func checkRcode(resp *dns.Msg) error {
	if resp == nil {
		return fmt.Errorf("%w: no response from server", ErrUpdateFailed)
	}

	switch resp.Rcode {
	case dns.RcodeSuccess:
		return nil

	case dns.RcodeNotAuth:
		if resp.IsTsig() != nil {
			return fmt.Errorf("%w: %s", ErrAuthenticationFailed, dns.RcodeToString[resp.Rcode])
		}
		return fmt.Errorf("%w: server not authoritative", ErrNotZone)

	case dns.RcodeNotZone:
		return ErrNotZone

	case dns.RcodeRefused:
		return fmt.Errorf("%w: refused (check server policy or TSIG configuration)", ErrAuthenticationFailed)

	default:
		return fmt.Errorf("%w: %s", ErrUpdateFailed, dns.RcodeToString[resp.Rcode])
	}
}
