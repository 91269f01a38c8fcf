package dnsupdate

import (
	"fmt"
	"net"
	"strings"

	"github.com/miekg/dns"
)

// Record represents one resource record for dynamic-update operations.
type Record struct {
	// Name is the DNS name, with or without trailing dot.
	Name string

	// Type is the record type (dns.TypeA, dns.TypeCNAME, ...).
	Type uint16

	// TTL in seconds.
	TTL uint32

	// RData is the record data; its format depends on Type.
	RData string

	// Priority is used for MX records.
	Priority uint16
}

// TypeString returns the textual record type.
func (r Record) TypeString() string {
	if name, ok := dns.TypeToString[r.Type]; ok {
		return name
	}
	return fmt.Sprintf("TYPE%d", r.Type)
}

// ToRR converts the Record to a dns.RR.
func (r Record) ToRR() (dns.RR, error) {
	header := dns.RR_Header{
		Name:   dns.Fqdn(r.Name),
		Rrtype: r.Type,
		Class:  dns.ClassINET,
		Ttl:    r.TTL,
	}

	switch r.Type {
	case dns.TypeA:
		ip := net.ParseIP(r.RData)
		if ip == nil || ip.To4() == nil {
			return nil, fmt.Errorf("invalid IPv4 address: %s", r.RData)
		}
		return &dns.A{Hdr: header, A: ip.To4()}, nil

	case dns.TypeAAAA:
		ip := net.ParseIP(r.RData)
		if ip == nil || ip.To16() == nil || ip.To4() != nil {
			return nil, fmt.Errorf("invalid IPv6 address: %s", r.RData)
		}
		return &dns.AAAA{Hdr: header, AAAA: ip.To16()}, nil

	case dns.TypeCNAME:
		return &dns.CNAME{Hdr: header, Target: dns.Fqdn(r.RData)}, nil

	case dns.TypeTXT:
		return &dns.TXT{Hdr: header, Txt: []string{r.RData}}, nil

	case dns.TypeMX:
		return &dns.MX{Hdr: header, Preference: r.Priority, Mx: dns.Fqdn(r.RData)}, nil

	default:
		return nil, fmt.Errorf("unsupported record type: %s", r.TypeString())
	}
}

// RecordFromRR creates a Record from a dns.RR.
func RecordFromRR(rr dns.RR) (Record, error) {
	header := rr.Header()
	record := Record{
		Name: header.Name,
		Type: header.Rrtype,
		TTL:  header.Ttl,
	}

	switch v := rr.(type) {
	case *dns.A:
		record.RData = v.A.String()

	case *dns.AAAA:
		record.RData = v.AAAA.String()

	case *dns.CNAME:
		record.RData = v.Target

	case *dns.TXT:
		record.RData = strings.Join(v.Txt, " ")

	case *dns.MX:
		record.RData = v.Mx
		record.Priority = v.Preference

	default:
		return record, fmt.Errorf("unsupported record type: %s", dns.TypeToString[header.Rrtype])
	}

	return record, nil
}

// StringToType converts a record type string to its uint16 value.
func StringToType(s string) (uint16, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if t, ok := dns.StringToType[s]; ok {
		return t, nil
	}
	return 0, fmt.Errorf("unknown record type: %s", s)
}
