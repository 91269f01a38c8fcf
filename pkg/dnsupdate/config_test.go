package dnsupdate

import (
	"errors"
	"testing"
	"time"

	"github.com/miekg/dns"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"valid minimal", Config{Server: "ns1.example.org"}, false},
		{"valid with tsig", Config{Server: "ns1.example.org", TSIGKeyName: "k", TSIGSecret: "c2VjcmV0"}, false},
		{"missing server", Config{}, true},
		{"tsig name without secret", Config{Server: "ns1.example.org", TSIGKeyName: "k"}, true},
		{"tsig secret without name", Config{Server: "ns1.example.org", TSIGSecret: "c2VjcmV0"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %t", err, tt.wantErr)
			}
		})
	}
}

func TestConfigServerAddr(t *testing.T) {
	tests := []struct {
		server string
		want   string
	}{
		{"ns1.example.org", "ns1.example.org:53"},
		{"ns1.example.org:5353", "ns1.example.org:5353"},
		{"192.0.2.1", "192.0.2.1:53"},
		{"[2001:db8::1]:53", "[2001:db8::1]:53"},
	}
	for _, tt := range tests {
		c := Config{Server: tt.server}
		if got := c.ServerAddr(); got != tt.want {
			t.Errorf("ServerAddr(%q) = %q, want %q", tt.server, got, tt.want)
		}
	}
}

func TestConfigGetTimeout(t *testing.T) {
	c := Config{Server: "ns1.example.org"}
	if c.GetTimeout() != DefaultTimeout {
		t.Errorf("default timeout = %v", c.GetTimeout())
	}
	c.Timeout = 10 * time.Second
	if c.GetTimeout() != 10*time.Second {
		t.Errorf("timeout = %v", c.GetTimeout())
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := NewClient(&Config{}); err == nil {
		t.Error("expected error for missing server")
	}
	if _, err := NewClient(&Config{Server: "ns1", TSIGKeyName: "k", TSIGSecret: "!!"}); err == nil {
		t.Error("expected error for invalid TSIG secret")
	}

	c, err := NewClient(&Config{Server: "ns1.example.org", UseTCP: true})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.dnsClient.Net != "tcp" {
		t.Errorf("net = %q", c.dnsClient.Net)
	}
}

func TestCheckRcode(t *testing.T) {
	mkResp := func(rcode int) *dns.Msg {
		m := new(dns.Msg)
		m.Rcode = rcode
		return m
	}

	if err := checkRcode(mkResp(dns.RcodeSuccess)); err != nil {
		t.Errorf("success rcode: %v", err)
	}
	if err := checkRcode(mkResp(dns.RcodeNotZone)); !errors.Is(err, ErrNotZone) {
		t.Errorf("notzone: %v", err)
	}
	if err := checkRcode(mkResp(dns.RcodeRefused)); !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("refused: %v", err)
	}
	if err := checkRcode(mkResp(dns.RcodeServerFailure)); !errors.Is(err, ErrUpdateFailed) {
		t.Errorf("servfail: %v", err)
	}
	if err := checkRcode(nil); !errors.Is(err, ErrUpdateFailed) {
		t.Errorf("nil response: %v", err)
	}
}
