package dnsupdate

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/miekg/dns"
)

// DefaultTSIGAlgorithm is used when the configuration names none.
const DefaultTSIGAlgorithm = dns.HmacSHA256

// TSIG is an RFC 2845 transaction-signature key.
type TSIG struct {
	// Name is the key name in FQDN form.
	Name string

	// Secret is the base64-encoded shared secret.
	Secret string

	// Algorithm is the TSIG algorithm in miekg/dns form.
	Algorithm string
}

// NewTSIG creates a TSIG key. The secret must be valid base64.
func NewTSIG(name, secret, algorithm string) (*TSIG, error) {
	if _, err := base64.StdEncoding.DecodeString(secret); err != nil {
		return nil, fmt.Errorf("tsig secret is not valid base64: %w", err)
	}

	alg := normalizeAlgorithm(algorithm)
	if !isValidAlgorithm(alg) {
		return nil, fmt.Errorf("unsupported tsig algorithm: %s", algorithm)
	}

	return &TSIG{
		Name:      dns.Fqdn(name),
		Secret:    secret,
		Algorithm: alg,
	}, nil
}

// TSIGFromConfig creates the TSIG key from a Config.
// Returns nil when TSIG is not configured.
func TSIGFromConfig(config *Config) (*TSIG, error) {
	if !config.HasTSIG() {
		return nil, nil //nolint:nilnil // nil TSIG is valid (no auth)
	}
	return NewTSIG(config.TSIGKeyName, config.TSIGSecret, config.TSIGAlgorithm)
}

// ApplyToClient installs the shared secret on a dns.Client.
func (t *TSIG) ApplyToClient(client *dns.Client) {
	if t == nil {
		return
	}
	client.TsigSecret = map[string]string{t.Name: t.Secret}
}

// ApplyToMessage signs a fully constructed DNS message.
func (t *TSIG) ApplyToMessage(msg *dns.Msg) {
	if t == nil {
		return
	}
	msg.SetTsig(t.Name, t.Algorithm, 300, 0)
}

// normalizeAlgorithm maps config spellings onto miekg/dns names.
func normalizeAlgorithm(alg string) string {
	switch strings.ToLower(strings.TrimSpace(alg)) {
	case "":
		return DefaultTSIGAlgorithm
	case "hmac-md5", "md5":
		return dns.HmacMD5
	case "hmac-sha256", "sha256":
		return dns.HmacSHA256
	case "hmac-sha512", "sha512":
		return dns.HmacSHA512
	default:
		return alg
	}
}

func isValidAlgorithm(alg string) bool {
	switch alg {
	case dns.HmacMD5, dns.HmacSHA256, dns.HmacSHA512:
		return true
	default:
		return false
	}
}
