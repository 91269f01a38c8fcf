package provider

// Auth is the tagged union of authentication material declared on a
// provider. The configured variant must match what the provider type
// can use; adapter factories reject everything else.
type Auth interface {
	// Method returns the configuration name of the variant
	// (api_token, api_key, tsig, ssh).
	Method() string
}

// APIToken is bearer-token authentication (Cloudflare API tokens).
type APIToken struct {
	Token string
}

func (APIToken) Method() string { return "api_token" }

// APIKey is legacy email+key authentication (Cloudflare global API keys).
type APIKey struct {
	Email string
	Key   string
}

func (APIKey) Method() string { return "api_key" }

// TSIG is RFC 2845 transaction-signature authentication for RFC 2136
// dynamic updates.
type TSIG struct {
	KeyName   string
	Secret    string // base64-encoded shared secret
	Algorithm string // hmac-sha256 when empty
}

func (TSIG) Method() string { return "tsig" }

// SSH is SSH authentication for file-based providers reached over the
// network (dnsmasq). Exactly one of KeyFile, KeyData or Password must
// be set.
type SSH struct {
	User          string
	KeyFile       string
	KeyData       string
	KeyPassphrase string
	Password      string
}

func (SSH) Method() string { return "ssh" }
